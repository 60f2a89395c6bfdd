package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the persisted per-mod settings store: one CollectionSettings
// per collection id, plus a shared preset list whose schema matches
// meta.Presets.
type Settings struct {
	modID       string
	dir         string
	Collections map[string]CollectionSettings `json:"collections"`
	Presets     map[string]CollectionSettings `json:"presets"`
}

// SettingsDir returns <config>/<mod_id>, creating nothing.
func SettingsDir(configDir, modID string) string {
	return filepath.Join(configDir, modID)
}

// OpenSettings loads (or lazily initializes) the settings file for a mod.
func OpenSettings(configDir, modID string) (*Settings, error) {
	dir := SettingsDir(configDir, modID)
	path := filepath.Join(dir, "settings.json")

	s := &Settings{
		modID:       modID,
		dir:         dir,
		Collections: map[string]CollectionSettings{},
		Presets:     map[string]CollectionSettings{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading settings for %s: %w", modID, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings for %s: %w", modID, err)
	}
	s.modID, s.dir = modID, dir
	return s, nil
}

// GetCollection returns the CollectionSettings for a collection, lazily
// initializing missing entries from the mod's option defaults.
func (s *Settings) GetCollection(meta *Meta, collectionID string) CollectionSettings {
	cs, ok := s.Collections[collectionID]
	if !ok {
		cs = CollectionSettings{}
		s.Collections[collectionID] = cs
	}
	for _, entry := range meta.Options {
		if entry.Option == nil {
			continue
		}
		if _, present := cs[entry.Option.Name]; present {
			continue
		}
		if def := defaultSettingValue(entry.Option.Settings); def != nil {
			cs[entry.Option.Name] = def
		}
	}
	return cs
}

func defaultSettingValue(s OptionSettings) json.RawMessage {
	switch s.Kind {
	case SettingsSingleFiles:
		v, _ := json.Marshal(s.SingleFiles.Default)
		return v
	case SettingsMultiFiles:
		v, _ := json.Marshal(s.MultiFiles.Default)
		return v
	case SettingsPath:
		v, _ := json.Marshal(s.Path.Default)
		return v
	case SettingsRgb, SettingsRgba, SettingsGrayscale, SettingsOpacity, SettingsMask:
		ns := numericSettingsFor(s)
		v, _ := json.Marshal(ns.Default)
		return v
	default:
		return nil
	}
}

// Save writes the settings file atomically: write to a temp file in the
// same directory, then rename over the target.
func (s *Settings) Save() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating settings directory for %s: %w", s.modID, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings for %s: %w", s.modID, err)
	}

	path := filepath.Join(s.dir, "settings.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp settings for %s: %w", s.modID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing settings for %s: %w", s.modID, err)
	}
	return nil
}

// EncodePreset returns the preset-sharing string: base64url(no-pad) of the
// preset's JSON encoding.
func EncodePreset(preset CollectionSettings) (string, error) {
	data, err := json.Marshal(preset)
	if err != nil {
		return "", fmt.Errorf("encoding preset: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodePreset parses a preset-sharing string back into CollectionSettings.
// Import rejects the reserved names "", "Custom", and "Default" before the
// payload is decoded.
func DecodePreset(name, encoded string) (CollectionSettings, error) {
	if name == "" || name == "Custom" || name == "Default" {
		return nil, fmt.Errorf("preset name %q is reserved", name)
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding preset string: %w", err)
	}
	var cs CollectionSettings
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("parsing preset JSON: %w", err)
	}
	return cs, nil
}
