package engine

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// InstallResult reports where a mod landed and which collections were
// queued for apply, so a caller (CLI or future GUI) can show a summary.
type InstallResult struct {
	ModID       string
	ModDir      string
	Collections []string
}

// Install implements §4.5: create the mod's on-disk directory structure
// from an opened modpack archive, extract its stored files, hand the mod
// to the loader, queue an apply for every target collection, and run one
// apply pass so the install is immediately visible.
func Install(ctx *EngineContext, r *ModpackReader, modID string, collectionIDs []string) (*InstallResult, error) {
	modDir := filepath.Join(ctx.LoaderRoot, modID)
	aethDir := filepath.Join(modDir, "aetherment")
	filesDir := filepath.Join(modDir, "files")

	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("creating mod directory: %w", err)
	}
	if err := os.MkdirAll(aethDir, 0755); err != nil {
		return nil, fmt.Errorf("creating aetherment metadata directory: %w", err)
	}

	metaData, err := json.MarshalIndent(r.Meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling meta.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(aethDir, "meta.json"), metaData, 0644); err != nil {
		return nil, fmt.Errorf("writing meta.json: %w", err)
	}
	if err := writeLoaderMeta(modDir, r.Meta); err != nil {
		return nil, err
	}

	byLogical, compositeOnly := r.ClassifyStoredFiles()
	ctx.Progress.SetTotal(len(byLogical) + len(collectionIDs) + 2)

	for _, stored := range byLogical {
		if err := extractStoredFile(r, filesDir, stored); err != nil {
			return nil, err
		}
		ctx.Progress.Advance(fmt.Sprintf("extracted %s", stored))
	}
	if len(compositeOnly) > 0 {
		// Composite-only inputs are never the direct game_path mapping, so
		// they are kept compressed in a secondary zip, files/_compdata,
		// rather than extracted loose alongside the direct files.
		if err := writeCompData(r, filesDir, compositeOnly); err != nil {
			return nil, err
		}
	}
	ctx.Progress.Advance(fmt.Sprintf("packed %d composite-only input(s) into %s", len(compositeOnly), compDataName))

	if err := writeDefaultMod(modDir); err != nil {
		return nil, err
	}
	ctx.Progress.Advance("wrote default_mod.json")

	if _, err := ctx.Backend.AddModEntry(modID); err != nil {
		return nil, fmt.Errorf("registering mod with loader: %w", err)
	}
	if _, err := ctx.Backend.ReloadMod(modID); err != nil {
		ctx.Progress.Advance(fmt.Sprintf("reload warning: %v", err))
	}

	for _, collectionID := range collectionIDs {
		ctx.ApplyQueue.Enqueue(QueueEntry{ModID: modID, CollectionID: collectionID, Action: ActionKeep})
		ctx.Progress.Advance(fmt.Sprintf("queued apply for %s", collectionID))
	}

	if err := NewScheduler(ctx).RunApply(); err != nil {
		return nil, fmt.Errorf("running initial apply: %w", err)
	}

	return &InstallResult{ModID: modID, ModDir: modDir, Collections: collectionIDs}, nil
}

func extractStoredFile(r *ModpackReader, filesDir, stored string) error {
	data, err := r.ReadFile(stored)
	if err != nil {
		return fmt.Errorf("reading %s from archive: %w", stored, err)
	}
	if err := os.WriteFile(filepath.Join(filesDir, stored), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", stored, err)
	}
	return nil
}

// writeCompData builds files/_compdata: a secondary zip holding every
// composite-only input, raw-copied from the source archive's own zip
// entry (same compression method, CRC, and sizes) rather than decompressed
// and recompressed, per §3.6/§4.4.
func writeCompData(r *ModpackReader, filesDir string, compositeOnly map[string]string) error {
	out, err := os.Create(filepath.Join(filesDir, compDataName))
	if err != nil {
		return fmt.Errorf("creating %s: %w", compDataName, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, stored := range compositeOnly {
		src, err := r.rawEntry(stored)
		if err != nil {
			return err
		}
		rc, err := src.OpenRaw()
		if err != nil {
			return fmt.Errorf("opening raw entry %s: %w", stored, err)
		}
		fh := src.FileHeader
		fh.Name = stored
		w, err := zw.CreateRaw(&fh)
		if err != nil {
			return fmt.Errorf("creating raw entry %s: %w", stored, err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			return fmt.Errorf("copying raw entry %s: %w", stored, err)
		}
	}
	return zw.Close()
}

// loaderMetaFile mirrors the loader's own top-level <mod_id>/meta.json
// schema (§3.6/§6.1) — distinct from our own aetherment/meta.json copy.
type loaderMetaFile struct {
	FileVersion int      `json:"FileVersion"`
	Name        string   `json:"Name"`
	Author      string   `json:"Author"`
	Description string   `json:"Description"`
	Version     string   `json:"Version"`
	Website     string   `json:"Website"`
	ModTags     []string `json:"ModTags"`
}

func writeLoaderMeta(modDir string, meta *Meta) error {
	lm := &loaderMetaFile{
		FileVersion: 3,
		Name:        meta.Name,
		Author:      meta.Author,
		Description: meta.Description,
		Version:     meta.Version,
		Website:     meta.Website,
		ModTags:     meta.Tags,
	}
	data, err := json.MarshalIndent(lm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling loader meta.json: %w", err)
	}
	return os.WriteFile(filepath.Join(modDir, "meta.json"), data, 0644)
}

// defaultModFile mirrors the loader's root default_mod.json: an empty
// baseline (§3.6/§6.1 — "always empty for our mods"). Per-mod settings
// live in the group_NNN__<collection>.json files the scheduler writes.
type defaultModFile struct {
	Name          string            `json:"Name"`
	Priority      int               `json:"Priority"`
	Files         map[string]string `json:"Files"`
	FileSwaps     map[string]string `json:"FileSwaps"`
	Manipulations []json.RawMessage `json:"Manipulations"`
}

func writeDefaultMod(modDir string) error {
	dm := &defaultModFile{
		Name:          "Default",
		Priority:      0,
		Files:         map[string]string{},
		FileSwaps:     map[string]string{},
		Manipulations: []json.RawMessage{},
	}
	data, err := json.MarshalIndent(dm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling default_mod.json: %w", err)
	}
	return os.WriteFile(filepath.Join(modDir, "default_mod.json"), data, 0644)
}
