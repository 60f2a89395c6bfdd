package engine

import (
	"path/filepath"
	"testing"
)

func TestOpenSettings_Missing(t *testing.T) {
	s, err := OpenSettings(t.TempDir(), "my_mod")
	if err != nil {
		t.Fatalf("OpenSettings() error: %v", err)
	}
	if len(s.Collections) != 0 {
		t.Errorf("expected empty collections, got %d", len(s.Collections))
	}
}

func TestSaveAndReopenSettings(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSettings(dir, "my_mod")
	if err != nil {
		t.Fatalf("OpenSettings() error: %v", err)
	}

	meta := &Meta{Options: []OptionEntry{
		{Option: &Option{Name: "Color", Settings: OptionSettings{
			Kind: SettingsRgba,
			Rgba: &NumericOptionSettings{Default: []float32{1, 1, 1, 1}},
		}}},
	}}
	cs := s.GetCollection(meta, "default")
	if _, ok := cs["Color"]; !ok {
		t.Fatal("expected Color to be lazily initialized from default")
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path := filepath.Join(dir, "my_mod", "settings.json")
	reopened, err := OpenSettings(dir, "my_mod")
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if _, ok := reopened.Collections["default"]; !ok {
		t.Errorf("expected collection to survive round trip via %s", path)
	}
}

func TestEncodeDecodePreset_RoundTrip(t *testing.T) {
	preset := CollectionSettings{"Color": []byte(`[1,0,0,1]`)}
	encoded, err := EncodePreset(preset)
	if err != nil {
		t.Fatalf("EncodePreset() error: %v", err)
	}
	decoded, err := DecodePreset("MyPreset", encoded)
	if err != nil {
		t.Fatalf("DecodePreset() error: %v", err)
	}
	if !preset.Equal(decoded) {
		t.Errorf("preset round trip mismatch: %v != %v", preset, decoded)
	}
}

func TestDecodePreset_RejectsReservedNames(t *testing.T) {
	encoded, _ := EncodePreset(CollectionSettings{})
	for _, name := range []string{"", "Custom", "Default"} {
		if _, err := DecodePreset(name, encoded); err == nil {
			t.Errorf("expected rejection for reserved name %q", name)
		}
	}
}
