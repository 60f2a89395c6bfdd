package engine

import (
	"encoding/json"
	"testing"
)

func encodedSolid(t *testing.T, w, h int, r, g, b, a byte) []byte {
	t.Helper()
	data, err := EncodeTex(w, h, 1, solidRGBA(w, h, r, g, b, a), FormatA8R8G8B8)
	if err != nil {
		t.Fatalf("EncodeTex() error: %v", err)
	}
	return data
}

func TestComposite_NoFirstLayer(t *testing.T) {
	_, err := Composite(Recipe{}, &Meta{}, CollectionSettings{}, func(p Path) ([]byte, error) {
		return nil, nil
	})
	ce, ok := err.(*CompositeError)
	if !ok || ce.Kind != "NoFirstLayer" {
		t.Fatalf("expected NoFirstLayer error, got %v", err)
	}
}

func TestComposite_SingleLayerPassthrough(t *testing.T) {
	base := encodedSolid(t, 2, 2, 10, 20, 30, 255)
	recipe := Recipe{Layers: []Layer{
		{Name: "base", Path: Path{Kind: PathMod, StoredName: "base"}, Blend: BlendNormal},
	}}
	resolve := func(p Path) ([]byte, error) { return base, nil }

	canvas, err := Composite(recipe, &Meta{}, CollectionSettings{}, resolve)
	if err != nil {
		t.Fatalf("Composite() error: %v", err)
	}
	if canvas.Width != 2 || canvas.Height != 2 {
		t.Fatalf("canvas dims = %dx%d, want 2x2", canvas.Width, canvas.Height)
	}
	if canvas.Pixels[0] != 10 || canvas.Pixels[1] != 20 || canvas.Pixels[2] != 30 {
		t.Errorf("unexpected base pixel: %v", canvas.Pixels[:4])
	}
}

func TestComposite_TintColorModifier(t *testing.T) {
	base := encodedSolid(t, 1, 1, 200, 200, 200, 255)
	lit, _ := literalColorRef([4]float32{0.5, 0.5, 0.5, 1})
	recipe := Recipe{Layers: []Layer{
		{
			Name:  "base",
			Path:  Path{Kind: PathMod, StoredName: "base"},
			Blend: BlendNormal,
			Modifiers: []Modifier{
				{Kind: ModifierColor, Value: lit},
			},
		},
	}}
	resolve := func(p Path) ([]byte, error) { return base, nil }

	canvas, err := Composite(recipe, &Meta{}, CollectionSettings{}, resolve)
	if err != nil {
		t.Fatalf("Composite() error: %v", err)
	}
	if canvas.Pixels[0] != 100 {
		t.Errorf("tinted red = %d, want 100", canvas.Pixels[0])
	}
}

func TestComposite_MultiplyBlend(t *testing.T) {
	base := encodedSolid(t, 1, 1, 200, 200, 200, 255)
	top := encodedSolid(t, 1, 1, 128, 128, 128, 255)
	recipe := Recipe{Layers: []Layer{
		{Name: "base", Path: Path{Kind: PathMod, StoredName: "base"}, Blend: BlendNormal},
		{Name: "top", Path: Path{Kind: PathMod, StoredName: "top"}, Blend: BlendMultiply},
	}}
	resolve := func(p Path) ([]byte, error) {
		if p.StoredName == "base" {
			return base, nil
		}
		return top, nil
	}

	canvas, err := Composite(recipe, &Meta{}, CollectionSettings{}, resolve)
	if err != nil {
		t.Fatalf("Composite() error: %v", err)
	}
	// Multiply(200/255, 128/255) * 255 ~= 100
	if canvas.Pixels[0] < 95 || canvas.Pixels[0] > 105 {
		t.Errorf("multiplied channel = %d, want ~100", canvas.Pixels[0])
	}
}

func TestComposite_AlphaMaskResolvesSeparateTexture(t *testing.T) {
	// Base layer is pure white with full alpha; if AlphaMask sampled the
	// base's own red channel (255/255 = 1.0) it would never cull anything.
	// A separate mask texture with red=0 everywhere must still zero it out.
	base := encodedSolid(t, 1, 1, 255, 255, 255, 255)
	mask := encodedSolid(t, 1, 1, 0, 0, 0, 255)
	cull := ValueRef{Literal: json.RawMessage("0.5")}

	recipe := Recipe{Layers: []Layer{
		{
			Name: "base",
			Path: Path{Kind: PathMod, StoredName: "base"},
			Modifiers: []Modifier{
				{Kind: ModifierAlphaMask, Path: Path{Kind: PathMod, StoredName: "mask"}, CullPoint: cull},
			},
			Blend: BlendNormal,
		},
	}}
	resolve := func(p Path) ([]byte, error) {
		if p.StoredName == "mask" {
			return mask, nil
		}
		return base, nil
	}

	canvas, err := Composite(recipe, &Meta{}, CollectionSettings{}, resolve)
	if err != nil {
		t.Fatalf("Composite() error: %v", err)
	}
	if canvas.Pixels[3] != 0 {
		t.Errorf("alpha = %d, want 0 (culled by separate mask texture)", canvas.Pixels[3])
	}
}

func TestComposite_AlphaMaskMissingResolverIsError(t *testing.T) {
	base := encodedSolid(t, 1, 1, 255, 255, 255, 255)
	cull := ValueRef{Literal: json.RawMessage("0.5")}

	recipe := Recipe{Layers: []Layer{
		{
			Name: "base",
			Path: Path{Kind: PathMod, StoredName: "base"},
			Modifiers: []Modifier{
				{Kind: ModifierAlphaMask, Path: Path{Kind: PathMod, StoredName: "missing-mask"}, CullPoint: cull},
			},
			Blend: BlendNormal,
		},
	}}
	resolve := func(p Path) ([]byte, error) {
		if p.StoredName == "missing-mask" {
			return nil, nil
		}
		return base, nil
	}

	_, err := Composite(recipe, &Meta{}, CollectionSettings{}, resolve)
	ce, ok := err.(*CompositeError)
	if !ok || ce.Kind != "Modifier" {
		t.Fatalf("expected Modifier error, got %v", err)
	}
}

func literalColorRef(c [4]float32) (ValueRef, error) {
	arr := []float32{c[0], c[1], c[2], c[3]}
	data, err := json.Marshal(arr)
	if err != nil {
		return ValueRef{}, err
	}
	return ValueRef{IsOptionRef: false, Literal: data}, nil
}
