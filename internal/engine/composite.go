package engine

import (
	"encoding/json"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// PathKind selects which source a composite layer reads from.
type PathKind string

const (
	PathMod    PathKind = "Mod"
	PathGame   PathKind = "Game"
	PathOption PathKind = "Option"
)

// Path identifies a composite input: a file bundled with the mod, a live
// game asset, or a mod-local file selected through an option's current
// sub-option.
type Path struct {
	Kind       PathKind
	StoredName string // Mod
	GamePath   string // Game
	OptionName string // Option
	PathID     string // Option
}

func (p Path) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PathMod:
		return json.Marshal(map[string]string{string(PathMod): p.StoredName})
	case PathGame:
		return json.Marshal(map[string]string{string(PathGame): p.GamePath})
	case PathOption:
		return json.Marshal(map[string]interface{}{string(PathOption): [2]string{p.OptionName, p.PathID}})
	default:
		return nil, fmt.Errorf("marshaling path: unknown kind %q", p.Kind)
	}
}

func (p *Path) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decoding path: %w", err)
	}
	for k, raw := range wrapper {
		p.Kind = PathKind(k)
		switch p.Kind {
		case PathMod:
			return json.Unmarshal(raw, &p.StoredName)
		case PathGame:
			return json.Unmarshal(raw, &p.GamePath)
		case PathOption:
			var pair [2]string
			if err := json.Unmarshal(raw, &pair); err != nil {
				return err
			}
			p.OptionName, p.PathID = pair[0], pair[1]
			return nil
		default:
			return fmt.Errorf("decoding path: unknown variant %q", k)
		}
	}
	return fmt.Errorf("decoding path: empty object")
}

// ValueRef is either a literal value or a reference to the collection's
// current setting for an option, per §3.4's "literal or OptionRef" rule
// applied to modifier paths, cull points, and colors.
type ValueRef struct {
	IsOptionRef bool
	OptionName  string
	Literal     json.RawMessage
}

func (v ValueRef) MarshalJSON() ([]byte, error) {
	if v.IsOptionRef {
		return json.Marshal(map[string]string{"OptionRef": v.OptionName})
	}
	return json.Marshal(map[string]json.RawMessage{"Literal": v.Literal})
}

func (v *ValueRef) UnmarshalJSON(data []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decoding value ref: %w", err)
	}
	if raw, ok := wrapper["OptionRef"]; ok {
		v.IsOptionRef = true
		return json.Unmarshal(raw, &v.OptionName)
	}
	if raw, ok := wrapper["Literal"]; ok {
		v.IsOptionRef = false
		v.Literal = raw
		return nil
	}
	return fmt.Errorf("decoding value ref: expected OptionRef or Literal")
}

func (v ValueRef) resolveFloat(meta *Meta, settings CollectionSettings) (float32, error) {
	if !v.IsOptionRef {
		var f float32
		if err := json.Unmarshal(v.Literal, &f); err != nil {
			return 0, fmt.Errorf("literal cull point: %w", err)
		}
		return f, nil
	}
	vals, err := resolveNumericOption(meta, settings, v.OptionName)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("resolving option ref %q: %w", v.OptionName, err)
	}
	return vals[0], nil
}

func (v ValueRef) resolveColor(meta *Meta, settings CollectionSettings) ([4]float32, error) {
	var out [4]float32
	if !v.IsOptionRef {
		var arr []float32
		if err := json.Unmarshal(v.Literal, &arr); err != nil {
			return out, fmt.Errorf("literal color: %w", err)
		}
		for i := 0; i < 4 && i < len(arr); i++ {
			out[i] = arr[i]
		}
		return out, nil
	}
	vals, err := resolveNumericOption(meta, settings, v.OptionName)
	if err != nil {
		return out, fmt.Errorf("resolving option ref %q: %w", v.OptionName, err)
	}
	for i := 0; i < 4 && i < len(vals); i++ {
		out[i] = vals[i]
	}
	return out, nil
}

// ModifierKind enumerates the per-layer pixel operations.
type ModifierKind string

const (
	ModifierAlphaMask             ModifierKind = "AlphaMask"
	ModifierAlphaMaskAlphaStretch ModifierKind = "AlphaMaskAlphaStretch"
	ModifierColor                 ModifierKind = "Color"
)

type Modifier struct {
	Kind      ModifierKind
	Path      Path     // AlphaMask / AlphaMaskAlphaStretch: the mask texture
	CullPoint ValueRef // AlphaMask / AlphaMaskAlphaStretch
	Value     ValueRef // Color
}

// BlendMode selects the Porter-Duff color function used to combine a
// layer with the accumulated canvas.
type BlendMode string

const (
	BlendNormal             BlendMode = "Normal"
	BlendMultiply           BlendMode = "Multiply"
	BlendScreen             BlendMode = "Screen"
	BlendOverlay            BlendMode = "Overlay"
	BlendHardLight          BlendMode = "HardLight"
	BlendSoftLightPhotoshop BlendMode = "SoftLightPhotoshop"
)

// Layer is one entry of a composite recipe; index 0 is the bottom.
type Layer struct {
	Name      string     `json:"name"`
	Path      Path       `json:"path"`
	Modifiers []Modifier `json:"modifiers"`
	Blend     BlendMode  `json:"blend"`
}

// Recipe is the full .comp payload: an ordered sequence of layers.
type Recipe struct {
	Layers []Layer `json:"layers"`
}

// Canvas is a decoded RGBA8 image with straight alpha.
type Canvas struct {
	Width  int
	Height int
	Pixels []byte // len = Width*Height*4
}

// CompositeError distinguishes the failure kinds named in §4.2 so callers
// can apply the §7 recovery policy (skip the file, keep the prior output).
type CompositeError struct {
	Kind       string // NoFirstLayer, NoResolverReturn, Modifier
	LayerIndex int
	ModKind    string
}

func (e *CompositeError) Error() string {
	if e.Kind == "Modifier" {
		return fmt.Sprintf("composite: layer %d: modifier error (%s)", e.LayerIndex, e.ModKind)
	}
	if e.Kind == "NoResolverReturn" {
		return fmt.Sprintf("composite: layer %d: resolver returned nothing", e.LayerIndex)
	}
	return fmt.Sprintf("composite: %s", e.Kind)
}

// Resolver looks up the bytes for a composite Path; resolution of Mod,
// Game, and Option path kinds is the caller's responsibility (it depends
// on the mod directory, game-asset reader, and option schema), so the
// composite engine only consumes the resolved bytes.
type Resolver func(p Path) ([]byte, error)

// Composite evaluates a layered texture composite per §4.2: iterate
// layers reversed (so the bottom of the visual stack, index 0, is
// processed first as the base canvas), resize every other layer to the
// base's dimensions, apply each layer's modifiers in reverse order, then
// Porter-Duff blend onto the accumulating canvas.
func Composite(recipe Recipe, meta *Meta, settings CollectionSettings, resolve Resolver) (*Canvas, error) {
	if len(recipe.Layers) == 0 {
		return nil, &CompositeError{Kind: "NoFirstLayer"}
	}

	// "Iterate reversed" means layer 0 (the bottom) is the base; later
	// layers are composited on top in ascending index order.
	base := recipe.Layers[0]
	baseBytes, err := resolve(base.Path)
	if err != nil || baseBytes == nil {
		return nil, &CompositeError{Kind: "NoFirstLayer"}
	}
	baseTex, err := DecodeTex(baseBytes)
	if err != nil {
		return nil, fmt.Errorf("composite: decoding base layer: %w", err)
	}

	canvas := &Canvas{Width: baseTex.Width, Height: baseTex.Height, Pixels: append([]byte(nil), baseTex.Pixels...)}
	if err := applyModifiers(canvas, base.Modifiers, meta, settings, 0, resolve); err != nil {
		return nil, err
	}

	for i := 1; i < len(recipe.Layers); i++ {
		layer := recipe.Layers[i]
		raw, err := resolve(layer.Path)
		if err != nil || raw == nil {
			return nil, &CompositeError{Kind: "NoResolverReturn", LayerIndex: i}
		}
		tex, err := DecodeTex(raw)
		if err != nil {
			return nil, fmt.Errorf("composite: decoding layer %d: %w", i, err)
		}

		layerCanvas := &Canvas{Width: tex.Width, Height: tex.Height, Pixels: tex.Pixels}
		if layerCanvas.Width != canvas.Width || layerCanvas.Height != canvas.Height {
			layerCanvas = resizeNearest(layerCanvas, canvas.Width, canvas.Height)
		}

		if err := applyModifiers(layerCanvas, layer.Modifiers, meta, settings, i, resolve); err != nil {
			return nil, err
		}

		blendOnto(canvas, layerCanvas, layer.Blend)
	}

	return canvas, nil
}

// applyModifiers applies a layer's modifier list in reverse source order,
// so the first modifier written in the recipe ends up outermost. AlphaMask
// and AlphaMaskAlphaStretch resolve their own mask texture via resolve(),
// per §4.2 step 3 — they never read the layer's own pixels as the mask.
func applyModifiers(c *Canvas, mods []Modifier, meta *Meta, settings CollectionSettings, layerIdx int, resolve Resolver) error {
	for i := len(mods) - 1; i >= 0; i-- {
		m := mods[i]
		switch m.Kind {
		case ModifierAlphaMask, ModifierAlphaMaskAlphaStretch:
			cull, err := m.CullPoint.resolveFloat(meta, settings)
			if err != nil {
				return &CompositeError{Kind: "Modifier", LayerIndex: layerIdx, ModKind: "CullPoint"}
			}
			maskRaw, err := resolve(m.Path)
			if err != nil || maskRaw == nil {
				return &CompositeError{Kind: "Modifier", LayerIndex: layerIdx, ModKind: "NoFileResolverReturn"}
			}
			maskTex, err := DecodeTex(maskRaw)
			if err != nil {
				return fmt.Errorf("composite: layer %d: decoding mask: %w", layerIdx, err)
			}
			mask := &Canvas{Width: maskTex.Width, Height: maskTex.Height, Pixels: maskTex.Pixels}
			if mask.Width != c.Width || mask.Height != c.Height {
				mask = resizeNearest(mask, c.Width, c.Height)
			}
			applyAlphaMask(c, mask.Pixels, cull, m.Kind == ModifierAlphaMaskAlphaStretch)
		case ModifierColor:
			color, err := m.Value.resolveColor(meta, settings)
			if err != nil {
				return &CompositeError{Kind: "Modifier", LayerIndex: layerIdx, ModKind: "Color"}
			}
			applyColorMultiply(c, color)
		}
	}
	return nil
}

// applyAlphaMask culls c's pixels wherever the resolved mask's red channel
// falls below cullPoint, per §4.2 step 3. AlphaStretch additionally
// rescales the surviving alpha channel so its lowest nonzero value becomes
// fully transparent, stretching the remaining range to fill [0,1].
func applyAlphaMask(c *Canvas, mask []byte, cullPoint float32, stretch bool) {
	n := c.Width * c.Height
	lowest := float32(1.0)
	for i := 0; i < n; i++ {
		red := float32(mask[i*4]) / 255.0
		if red < cullPoint {
			c.Pixels[i*4+0] = 0
			c.Pixels[i*4+1] = 0
			c.Pixels[i*4+2] = 0
			c.Pixels[i*4+3] = 0
			continue
		}
		if !stretch {
			continue
		}
		a := float32(c.Pixels[i*4+3]) / 255.0
		if a > 0 && a < lowest {
			lowest = a
		}
	}
	if !stretch || lowest >= 1.0 {
		return
	}
	for i := 0; i < n; i++ {
		a := float32(c.Pixels[i*4+3]) / 255.0
		if a == 0 {
			continue
		}
		stretched := (a - lowest) / (1 - lowest)
		c.Pixels[i*4+3] = clampByte(int(stretched*255 + 0.5))
	}
}

func applyColorMultiply(c *Canvas, color [4]float32) {
	n := c.Width * c.Height
	for i := 0; i < n; i++ {
		c.Pixels[i*4+0] = clampByte(int(float32(c.Pixels[i*4+0]) * color[0]))
		c.Pixels[i*4+1] = clampByte(int(float32(c.Pixels[i*4+1]) * color[1]))
		c.Pixels[i*4+2] = clampByte(int(float32(c.Pixels[i*4+2]) * color[2]))
		c.Pixels[i*4+3] = clampByte(int(float32(c.Pixels[i*4+3]) * color[3]))
	}
}

// resizeNearest performs nearest-neighbor resampling — the deliberate
// filter choice from §4.2 that preserves hard alpha-mask edges.
func resizeNearest(src *Canvas, w, h int) *Canvas {
	srcImg := &image.NRGBA{Pix: src.Pixels, Stride: src.Width * 4, Rect: image.Rect(0, 0, src.Width, src.Height)}
	dstImg := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)
	return &Canvas{Width: w, Height: h, Pixels: dstImg.Pix}
}

// blendOnto applies straight-alpha Porter-Duff source-over per §4.2 step 4,
// skipping layers whose source pixel alpha is 0.
func blendOnto(base, layer *Canvas, blend BlendMode) {
	n := base.Width * base.Height
	f := colorFunc(blend)
	for i := 0; i < n; i++ {
		lA := float32(layer.Pixels[i*4+3]) / 255.0
		if lA == 0 {
			continue
		}
		bA := float32(base.Pixels[i*4+3]) / 255.0
		a := lA + bA*(1-lA)
		if a == 0 {
			continue
		}
		for ch := 0; ch < 3; ch++ {
			b := float32(base.Pixels[i*4+ch]) / 255.0
			l := float32(layer.Pixels[i*4+ch]) / 255.0
			out := (f(b, l)*lA*255 + b*255*bA*(1-lA)) / a
			base.Pixels[i*4+ch] = clampByte(int(out + 0.5))
		}
		base.Pixels[i*4+3] = clampByte(int(a*255 + 0.5))
	}
}

func colorFunc(blend BlendMode) func(b, l float32) float32 {
	switch blend {
	case BlendMultiply:
		return func(b, l float32) float32 { return b * l }
	case BlendScreen:
		return func(b, l float32) float32 { return 1 - (1-b)*(1-l) }
	case BlendOverlay:
		return func(b, l float32) float32 {
			if b <= 0.5 {
				return 2 * b * l
			}
			return 1 - 2*(1-b)*(1-l)
		}
	case BlendHardLight:
		return func(b, l float32) float32 {
			if l <= 0.5 {
				return 2 * b * l
			}
			return 1 - 2*(1-b)*(1-l)
		}
	case BlendSoftLightPhotoshop:
		return softLightPhotoshop
	default: // Normal
		return func(b, l float32) float32 { return l }
	}
}

// softLightPhotoshop implements Photoshop's published soft-light formula.
func softLightPhotoshop(b, l float32) float32 {
	if l <= 0.5 {
		return b - (1-2*l)*b*(1-b)
	}
	var d float32
	if b <= 0.25 {
		d = ((16*b-12)*b + 4) * b
	} else {
		d = float32(math.Sqrt(float64(b)))
	}
	return b + (2*l-1)*(d-b)
}
