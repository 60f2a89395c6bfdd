package engine

import (
	"bytes"
	"testing"
)

func TestModpackWriter_DedupesByDigest(t *testing.T) {
	meta := &Meta{Name: "test"}
	w := NewModpackWriter(meta)

	red := solidRGBA(4, 4, 255, 0, 0, 255)
	w.AddFile("chara/a.tex", red)
	w.AddFile("chara/b.tex", red)

	var buf bytes.Buffer
	if err := w.Finalize(&buf, 2); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	if len(w.byHash) != 1 {
		t.Errorf("expected one deduped stored file, got %d", len(w.byHash))
	}
	if len(w.remap) != 2 {
		t.Errorf("expected two remap entries, got %d", len(w.remap))
	}
	if w.remap["chara/a.tex"] != w.remap["chara/b.tex"] {
		t.Errorf("identical bytes should map to the same stored name")
	}
}

func TestModpackWriteRead_RoundTrip(t *testing.T) {
	meta := &Meta{Name: "round-trip", Files: map[string]string{"chara/a.tex": "a"}}
	w := NewModpackWriter(meta)
	data := solidRGBA(2, 2, 1, 2, 3, 255)
	w.AddFile("a", data)

	var buf bytes.Buffer
	if err := w.Finalize(&buf, 1); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	reader := bytes.NewReader(buf.Bytes())
	mp, err := OpenModpack(reader, int64(buf.Len()), nil)
	if err != nil {
		t.Fatalf("OpenModpack() error: %v", err)
	}
	defer mp.Close()

	if mp.Meta.Name != "round-trip" {
		t.Errorf("meta.Name = %q, want round-trip", mp.Meta.Name)
	}
	stored, ok := mp.Remap["a"]
	if !ok {
		t.Fatal("expected remap entry for logical name 'a'")
	}
	got, err := mp.ReadFile(stored)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round-tripped file bytes do not match original")
	}
}

func TestClassifyStoredFiles_DirectVsCompositeOnly(t *testing.T) {
	meta := &Meta{
		Files: map[string]string{
			"chara/direct.tex": "direct_logical",
			"chara/recipe.comp": "comp_logical",
		},
	}
	w := NewModpackWriter(meta)
	w.AddFile("direct_logical", []byte("direct-bytes"))
	w.AddFile("comp_logical", []byte("comp-bytes"))

	var buf bytes.Buffer
	if err := w.Finalize(&buf, 1); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	reader := bytes.NewReader(buf.Bytes())
	mp, err := OpenModpack(reader, int64(buf.Len()), nil)
	if err != nil {
		t.Fatalf("OpenModpack() error: %v", err)
	}
	defer mp.Close()

	direct, compositeOnly := mp.ClassifyStoredFiles()
	if _, ok := direct["direct_logical"]; !ok {
		t.Error("expected direct_logical to be classified as direct")
	}
	if _, ok := compositeOnly["comp_logical"]; !ok {
		t.Error("expected comp_logical (referenced only by a .comp path) to be composite-only")
	}
}
