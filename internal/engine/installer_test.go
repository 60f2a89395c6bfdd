package engine

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCompData_RawCopiesCompositeOnlyEntries(t *testing.T) {
	meta := &Meta{
		Files: map[string]string{
			"chara/direct.tex":  "direct_logical",
			"chara/recipe.comp": "comp_logical",
		},
	}
	w := NewModpackWriter(meta)
	w.AddFile("direct_logical", []byte("direct-bytes"))
	compBytes := []byte(`{"layers":[]}`)
	w.AddFile("comp_logical", compBytes)

	var buf bytes.Buffer
	if err := w.Finalize(&buf, 1); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	mp, err := OpenModpack(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
	if err != nil {
		t.Fatalf("OpenModpack() error: %v", err)
	}
	defer mp.Close()

	_, compositeOnly := mp.ClassifyStoredFiles()
	if len(compositeOnly) != 1 {
		t.Fatalf("expected one composite-only entry, got %d", len(compositeOnly))
	}

	dir := t.TempDir()
	if err := writeCompData(mp, dir, compositeOnly); err != nil {
		t.Fatalf("writeCompData() error: %v", err)
	}

	stored := compositeOnly["comp_logical"]
	zr, err := zip.OpenReader(filepath.Join(dir, compDataName))
	if err != nil {
		t.Fatalf("opening %s: %v", compDataName, err)
	}
	defer zr.Close()

	f, err := zr.Open(stored)
	if err != nil {
		t.Fatalf("reading %s from %s: %v", stored, compDataName, err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("reading entry bytes: %v", err)
	}
	if !bytes.Equal(got, compBytes) {
		t.Errorf("raw-copied entry bytes = %q, want %q", got, compBytes)
	}

	if _, err := readCompDataFile(dir, stored); err != nil {
		t.Errorf("readCompDataFile() fallback error: %v", err)
	}
}

func TestWriteLoaderMeta_Schema(t *testing.T) {
	dir := t.TempDir()
	meta := &Meta{
		Name:        "Glam Pack",
		Author:      "someone",
		Description: "a description",
		Version:     "1.0.0",
		Website:     "https://example.invalid",
		Tags:        []string{"glamour", "texture"},
	}
	if err := writeLoaderMeta(dir, meta); err != nil {
		t.Fatalf("writeLoaderMeta() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("reading meta.json: %v", err)
	}
	var lm loaderMetaFile
	if err := json.Unmarshal(data, &lm); err != nil {
		t.Fatalf("parsing meta.json: %v", err)
	}
	if lm.FileVersion != 3 {
		t.Errorf("FileVersion = %d, want 3", lm.FileVersion)
	}
	if lm.Name != "Glam Pack" || lm.Author != "someone" || len(lm.ModTags) != 2 {
		t.Errorf("unexpected loader meta: %+v", lm)
	}
}

func TestWriteDefaultMod_EmptyBaseline(t *testing.T) {
	dir := t.TempDir()
	if err := writeDefaultMod(dir); err != nil {
		t.Fatalf("writeDefaultMod() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "default_mod.json"))
	if err != nil {
		t.Fatalf("reading default_mod.json: %v", err)
	}
	var dm defaultModFile
	if err := json.Unmarshal(data, &dm); err != nil {
		t.Fatalf("parsing default_mod.json: %v", err)
	}
	if len(dm.Files) != 0 || len(dm.FileSwaps) != 0 || len(dm.Manipulations) != 0 {
		t.Errorf("expected an empty baseline, got %+v", dm)
	}
}
