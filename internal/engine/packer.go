package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Pack builds a .aeth archive from an author's working mod directory: a
// meta.json whose Files/sub-option Files values are local filenames (not
// yet content-addressed) alongside the referenced files themselves.
// Composite recipes are canonicalized too: every Path::Mod entry inside a
// .comp file is rewritten to the content-addressed name of the asset it
// references before the recipe itself is digested, so the final meta.json
// written into the archive, and every embedded recipe, never needs a
// separate remap lookup at apply time — see DESIGN.md.
func Pack(modDir string, version string) (string, error) {
	metaPath := filepath.Join(modDir, "meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", metaPath, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("parsing meta.json: %w", err)
	}

	writer := NewModpackWriter(&meta)

	meta.Files, err = bakeFileMap(modDir, meta.Files, writer)
	if err != nil {
		return "", err
	}
	for i, entry := range meta.Options {
		if entry.Option == nil {
			continue
		}
		switch entry.Option.Settings.Kind {
		case SettingsSingleFiles:
			if err := bakeSubOptions(modDir, entry.Option.Settings.SingleFiles.Options, writer); err != nil {
				return "", err
			}
		case SettingsMultiFiles:
			if err := bakeSubOptions(modDir, entry.Option.Settings.MultiFiles.Options, writer); err != nil {
				return "", err
			}
		case SettingsPath:
			if err := bakePathOptions(modDir, entry.Option.Settings.Path.Options, writer); err != nil {
				return "", err
			}
		}
		meta.Options[i] = entry
	}

	writer.meta = &meta

	if version == "" {
		version = time.Now().UTC().Format("20060102150405")
	}
	outDir := filepath.Join(modDir, "packs")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("creating packs directory: %w", err)
	}
	outPath := filepath.Join(outDir, version+".aeth")

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	if err := writer.Finalize(out, 4); err != nil {
		return "", fmt.Errorf("finalizing archive: %w", err)
	}
	return outPath, nil
}

func bakeSubOptions(modDir string, subs []SubOption, writer *ModpackWriter) error {
	for i, sub := range subs {
		baked, err := bakeFileMap(modDir, sub.Files, writer)
		if err != nil {
			return err
		}
		subs[i].Files = baked
	}
	return nil
}

func bakePathOptions(modDir string, subs []PathSubOption, writer *ModpackWriter) error {
	for i, sub := range subs {
		baked := map[string]string{}
		for pathID, local := range sub.Paths {
			stored, err := addLocalFile(modDir, local, writer)
			if err != nil {
				return err
			}
			baked[pathID] = stored
		}
		subs[i].Paths = baked
	}
	return nil
}

// bakeFileMap replaces each local filename in a Files map with its final
// content-addressed stored name, recursing into .comp recipes so their
// embedded Path::Mod references are canonicalized too.
func bakeFileMap(modDir string, files map[string]string, writer *ModpackWriter) (map[string]string, error) {
	out := make(map[string]string, len(files))
	for gamePath, local := range files {
		if filepath.Ext(gamePath) == ".comp" || hasCompSuffix(gamePath) {
			stored, err := bakeRecipe(modDir, local, writer)
			if err != nil {
				return nil, fmt.Errorf("packing recipe for %s: %w", gamePath, err)
			}
			out[gamePath] = stored
			continue
		}
		stored, err := addLocalFile(modDir, local, writer)
		if err != nil {
			return nil, fmt.Errorf("packing %s: %w", gamePath, err)
		}
		out[gamePath] = stored
	}
	return out, nil
}

func hasCompSuffix(gamePath string) bool {
	return len(gamePath) > 5 && gamePath[len(gamePath)-5:] == ".comp"
}

func bakeRecipe(modDir, local string, writer *ModpackWriter) (string, error) {
	data, err := os.ReadFile(filepath.Join(modDir, local))
	if err != nil {
		return "", err
	}
	var recipe Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return "", fmt.Errorf("parsing recipe %s: %w", local, err)
	}

	for i, layer := range recipe.Layers {
		if layer.Path.Kind == PathMod {
			stored, err := addLocalFile(modDir, layer.Path.StoredName, writer)
			if err != nil {
				return "", err
			}
			recipe.Layers[i].Path.StoredName = stored
		}
		for j, mod := range layer.Modifiers {
			if mod.Path.Kind != PathMod {
				continue
			}
			stored, err := addLocalFile(modDir, mod.Path.StoredName, writer)
			if err != nil {
				return "", err
			}
			recipe.Layers[i].Modifiers[j].Path.StoredName = stored
		}
	}

	baked, err := json.Marshal(recipe)
	if err != nil {
		return "", fmt.Errorf("re-encoding recipe %s: %w", local, err)
	}
	stored := ContentDigestName(baked, local)
	writer.AddFile(local, baked)
	return stored, nil
}

func addLocalFile(modDir, local string, writer *ModpackWriter) (string, error) {
	data, err := os.ReadFile(filepath.Join(modDir, local))
	if err != nil {
		return "", err
	}
	stored := ContentDigestName(data, local)
	writer.AddFile(local, data)
	return stored, nil
}
