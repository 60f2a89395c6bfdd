package engine

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/overthinkos/aetherment-engine/internal/backend"
	"github.com/overthinkos/aetherment-engine/internal/uicolor"
)

// SettingsAction selects how apply_mod should resolve a queued mod's
// settings: Clear disables loader inherit for the pair, Keep reloads
// whatever is already on disk, Some carries a fresh CollectionSettings.
type SettingsAction int

const (
	ActionClear SettingsAction = iota
	ActionKeep
	ActionSome
)

// QueueEntry is one (mod, collection) -> (action, whitelist) request.
type QueueEntry struct {
	ModID        string
	CollectionID string
	Action       SettingsAction
	Settings     CollectionSettings // only meaningful when Action == ActionSome
	Whitelist    map[string]bool    // nil means unrestricted
}

// ApplyQueue is the mutex-guarded queue the GUI thread enqueues into and
// the apply thread drains, per spec §5.
type ApplyQueue struct {
	mu      sync.Mutex
	entries []QueueEntry
}

// NewApplyQueue returns an empty queue.
func NewApplyQueue() *ApplyQueue {
	return &ApplyQueue{}
}

// Enqueue adds an entry. New apply requests during an in-progress apply
// are coalesced here and drained on the next pass.
func (q *ApplyQueue) Enqueue(e QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
}

// Drain removes and returns every queued entry.
func (q *ApplyQueue) Drain() []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.entries
	q.entries = nil
	return out
}

// modPriority is a (mod_id, priority) pair used for descending sort with a
// stable mod_id tiebreak.
type modPriority struct {
	entry    QueueEntry
	priority int
}

// CompositeLinkIndex maps an external game_path to the set of mod ids
// whose composite recipes read it via Path::Game.
type CompositeLinkIndex map[string][]string

// BuildCompositeLinkIndex scans the .comp entries of every installed mod's
// top-level meta.json Files map and inverts each recipe's external
// Path::Game references into game_path -> {mod_id}. Recipes listed only
// under an option's sub-options are not indexed. It is rebuilt before
// every apply pass.
func BuildCompositeLinkIndex(loaderRoot string) (CompositeLinkIndex, error) {
	index := CompositeLinkIndex{}

	entries, err := os.ReadDir(loaderRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, fmt.Errorf("scanning loader root: %w", err)
	}

	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		modID := de.Name()
		meta, err := loadModMeta(loaderRoot, modID)
		if err != nil {
			continue // missing/corrupt meta: skip, not fatal to the whole index
		}
		for gamePath, stored := range meta.Files {
			if !strings.HasSuffix(gamePath, ".comp") {
				continue
			}
			recipe, err := loadRecipe(loaderRoot, modID, stored)
			if err != nil {
				continue
			}
			for _, layer := range recipe.Layers {
				if layer.Path.Kind == PathGame {
					index[layer.Path.GamePath] = append(index[layer.Path.GamePath], modID)
				}
				for _, mod := range layer.Modifiers {
					if (mod.Kind == ModifierAlphaMask || mod.Kind == ModifierAlphaMaskAlphaStretch) && mod.Path.Kind == PathGame {
						index[mod.Path.GamePath] = append(index[mod.Path.GamePath], modID)
					}
				}
			}
		}
	}
	return index, nil
}

func loadModMeta(loaderRoot, modID string) (*Meta, error) {
	path := filepath.Join(loaderRoot, modID, "aetherment", "meta.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func loadRecipe(loaderRoot, modID, stored string) (*Recipe, error) {
	data, err := readModFile(filepath.Join(loaderRoot, modID), stored)
	if err != nil {
		return nil, err
	}
	var recipe Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// readModFile reads a mod-relative stored file, checking the extracted
// files/ tree first and falling back to the raw-copied composite-input
// zip at files/_compdata (§3.6/§4.4) for composite-only inputs that were
// never extracted loose.
func readModFile(modDir, stored string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(modDir, "files", stored))
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	return readCompDataFile(modDir, stored)
}

func readCompDataFile(modDir, stored string) ([]byte, error) {
	zr, err := zip.OpenReader(filepath.Join(modDir, "files", compDataName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: not found under files/ or %s: %w", stored, compDataName, err)
	}
	defer zr.Close()
	f, err := zr.Open(stored)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", stored, compDataName, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// maxCascadeDepth bounds re-queue depth per mod per apply pass. A mod
// re-queued more than once per apply is skipped on the second cascade
// with a logged warning, per the §9 cyclic-graph strategy: never guess,
// record and move on.
const maxCascadeDepth = 1

// Scheduler runs apply passes against an EngineContext.
type Scheduler struct {
	ctx *EngineContext
}

// NewScheduler builds a scheduler bound to an engine context.
func NewScheduler(ctx *EngineContext) *Scheduler {
	return &Scheduler{ctx: ctx}
}

// RunApply drains the context's ApplyQueue and runs one full apply pass:
// per-collection priority loop with composite-cascade re-queueing,
// files_comp/ cleanup, then apply_ui_colors.
func (s *Scheduler) RunApply() error {
	entries := s.ctx.ApplyQueue.Drain()
	if len(entries) == 0 {
		return nil
	}

	linkIndex, err := BuildCompositeLinkIndex(s.ctx.LoaderRoot)
	if err != nil {
		return fmt.Errorf("building composite-link index: %w", err)
	}

	byCollection := map[string][]QueueEntry{}
	for _, e := range entries {
		byCollection[e.CollectionID] = append(byCollection[e.CollectionID], e)
	}

	touchedMods := map[string]bool{}
	s.ctx.Progress.SetTotal(len(byCollection))

	for collectionID, collEntries := range byCollection {
		if err := s.applyCollection(collectionID, collEntries, linkIndex, touchedMods); err != nil {
			// Per §7: the scheduler never aborts mid-collection on a single
			// mod's failure. A collection-level error here means the group
			// itself couldn't be read/resolved at all; record and continue.
			s.ctx.Progress.Advance(fmt.Sprintf("collection %s: %v", collectionID, err))
			continue
		}
		s.ctx.Progress.Advance(fmt.Sprintf("applied collection %s", collectionID))
	}

	for modID := range touchedMods {
		if err := s.cleanupCompositeOutputs(modID); err != nil {
			s.ctx.Progress.Advance(fmt.Sprintf("cleanup %s: %v", modID, err))
		}
	}

	s.applyUIColors()
	return nil
}

func (s *Scheduler) applyCollection(collectionID string, entries []QueueEntry, linkIndex CompositeLinkIndex, touchedMods map[string]bool) error {
	queue := make([]modPriority, 0, len(entries))
	depth := map[string]int{}
	seen := map[string]int{} // mod_id -> index into queue, for dedup

	for _, e := range entries {
		priority := s.fetchPriority(collectionID, e.ModID)
		mp := modPriority{entry: e, priority: priority}
		if idx, ok := seen[e.ModID]; ok {
			queue[idx] = mp // later enqueue wins if not yet popped
		} else {
			seen[e.ModID] = len(queue)
			queue = append(queue, mp)
		}
	}

	sortByPriorityDesc(queue)

	for len(queue) > 0 {
		// Pop from the back: lowest priority first.
		last := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		delete(seen, last.entry.ModID)

		changed, err := s.applyMod(collectionID, last.entry)
		if err != nil {
			// Per §7: record and continue with the next mod.
			s.ctx.Progress.Advance(fmt.Sprintf("apply %s/%s failed: %v", collectionID, last.entry.ModID, err))
			continue
		}
		touchedMods[last.entry.ModID] = true

		for gamePath := range changed {
			for _, linkedMod := range linkIndex[gamePath] {
				if linkedMod == last.entry.ModID {
					continue
				}
				linkedPriority := s.fetchPriority(collectionID, linkedMod)
				if linkedPriority <= last.priority {
					continue
				}
				if !s.modEnabledInCollection(collectionID, linkedMod) {
					continue
				}
				if depth[linkedMod] >= maxCascadeDepth {
					s.ctx.Progress.Advance(fmt.Sprintf("cascade depth bound: skipping re-queue of %s in %s", linkedMod, collectionID))
					continue // cascade depth bound: skip, log, move on
				}
				depth[linkedMod]++

				whitelist := map[string]bool{}
				for gp := range changed {
					whitelist[gp] = true
				}

				newEntry := QueueEntry{ModID: linkedMod, CollectionID: collectionID, Action: ActionKeep, Whitelist: whitelist}
				if idx, ok := seen[linkedMod]; ok {
					queue[idx] = modPriority{entry: newEntry, priority: linkedPriority}
				} else {
					seen[linkedMod] = len(queue)
					queue = append(queue, modPriority{entry: newEntry, priority: linkedPriority})
				}
				sortByPriorityDesc(queue)
			}
		}
	}

	return nil
}

func sortByPriorityDesc(queue []modPriority) {
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].priority != queue[j].priority {
			return queue[i].priority > queue[j].priority
		}
		return queue[i].entry.ModID < queue[j].entry.ModID
	})
}

func (s *Scheduler) fetchPriority(collectionID, modID string) int {
	settings, err := s.ctx.Backend.GetModSettings(collectionID, modID, true)
	if err != nil {
		return 0
	}
	return settings.Priority
}

func (s *Scheduler) modEnabledInCollection(collectionID, modID string) bool {
	settings, err := s.ctx.Backend.GetModSettings(collectionID, modID, true)
	if err != nil {
		return false
	}
	return settings.Enabled
}

// applyMod implements §4.7.1. It returns the set of stripped game_paths
// it wrote, whether or not their mapping changed.
func (s *Scheduler) applyMod(collectionID string, e QueueEntry) (map[string]bool, error) {
	modDir := filepath.Join(s.ctx.LoaderRoot, e.ModID)
	aethDir := filepath.Join(modDir, "aetherment")
	if _, err := os.Stat(aethDir); os.IsNotExist(err) {
		// Passthrough loader-native mod: report current mapping, write nothing.
		return s.passthroughChangedFiles(e.ModID, collectionID), nil
	}

	if e.Action == ActionClear {
		_, err := s.ctx.Backend.SetModInherit(collectionID, e.ModID, false)
		return map[string]bool{}, err
	}

	meta, err := loadModMeta(s.ctx.LoaderRoot, e.ModID)
	if err != nil {
		return nil, fmt.Errorf("loading meta for %s: %w", e.ModID, err)
	}

	settings, err := s.resolveSettings(e, meta)
	if err != nil {
		return nil, err
	}

	if !s.modEnabledInCollection(collectionID, e.ModID) {
		return s.previousSubOptionFiles(e.ModID, collectionID), nil
	}

	priority := s.fetchPriority(collectionID, e.ModID)

	built, err := s.buildPOption(e.ModID, collectionID, meta, settings, e.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("building contribution for %s: %w", e.ModID, err)
	}

	if err := s.writeGroupFile(e.ModID, collectionID, built); err != nil {
		return nil, err
	}

	if _, err := s.ctx.Backend.ReloadMod(e.ModID); err != nil {
		s.ctx.Progress.Advance(fmt.Sprintf("reload %s: %v", e.ModID, err))
	}
	if _, err := s.ctx.Backend.SetModSettings(collectionID, e.ModID, "_collection", []string{collectionID}); err != nil {
		s.ctx.Progress.Advance(fmt.Sprintf("set settings %s: %v", e.ModID, err))
	}

	if isInterfaceCollection(s.ctx, collectionID) {
		s.writeUIColorCache(e.ModID, built.UIColors)
	}

	changed := map[string]bool{}
	for gp := range built.Files {
		changed[gp] = true
	}
	_ = priority
	return changed, nil
}

func isInterfaceCollection(ctx *EngineContext, collectionID string) bool {
	c, err := ctx.Backend.GetCollection(backend.CollectionInterface)
	if err != nil {
		return false
	}
	return c.ID == collectionID
}

func (s *Scheduler) resolveSettings(e QueueEntry, meta *Meta) (CollectionSettings, error) {
	switch e.Action {
	case ActionSome:
		return e.Settings, nil
	case ActionKeep:
		st, err := OpenSettings(s.ctx.ConfigDir, e.ModID)
		if err != nil {
			return nil, err
		}
		return st.GetCollection(meta, e.CollectionID), nil
	default:
		return CollectionSettings{}, nil
	}
}

// POption is the single sub-option built for this collection inside
// group_001__collection.json.
type POption struct {
	Files         map[string]string
	FileSwaps     map[string]string
	Manipulations []json.RawMessage
	UIColors      []UIColorBinding
}

func newPOption() *POption {
	return &POption{Files: map[string]string{}, FileSwaps: map[string]string{}}
}

// buildPOption accumulates files/file_swaps/manipulations/ui_colors from
// every currently enabled option (in reverse meta order, so earlier
// options win ties), walking inherit chains, compositing any .comp entry,
// then merging the meta's top-level contributions last.
func (s *Scheduler) buildPOption(modID, collectionID string, meta *Meta, settings CollectionSettings, whitelist map[string]bool) (*POption, error) {
	out := newPOption()

	for i := len(meta.Options) - 1; i >= 0; i-- {
		entry := meta.Options[i]
		if entry.Option == nil {
			continue
		}
		if err := s.accumulateOption(modID, collectionID, meta, entry.Option, settings, whitelist, out); err != nil {
			return nil, err
		}
	}

	mergeFileMap(out.Files, out.FileSwaps, meta.Files, meta.FileSwaps, whitelist, modID, collectionID, s)
	out.Manipulations = append(out.Manipulations, meta.Manipulations...)
	out.UIColors = append(out.UIColors, meta.UIColors...)

	return out, nil
}

func (s *Scheduler) accumulateOption(modID, collectionID string, meta *Meta, opt *Option, settings CollectionSettings, whitelist map[string]bool, out *POption) error {
	raw, hasValue := settings[opt.Name]

	switch opt.Settings.Kind {
	case SettingsSingleFiles:
		idx := uint32(0)
		if hasValue {
			json.Unmarshal(raw, &idx)
		}
		opts := opt.Settings.SingleFiles.Options
		if int(idx) >= len(opts) {
			return nil
		}
		return s.accumulateSubOption(modID, collectionID, opts, opts[idx], whitelist, out)
	case SettingsMultiFiles:
		mask := uint32(0)
		if hasValue {
			json.Unmarshal(raw, &mask)
		}
		opts := opt.Settings.MultiFiles.Options
		for i, sub := range opts {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			if err := s.accumulateSubOption(modID, collectionID, opts, sub, whitelist, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) accumulateSubOption(modID, collectionID string, allSubs []SubOption, sub SubOption, whitelist map[string]bool, out *POption) error {
	files, fileSwaps, manips, colors := sub.Files, sub.FileSwaps, sub.Manipulations, sub.UIColors

	if sub.Inherit != nil {
		for _, cand := range allSubs {
			if cand.Name == *sub.Inherit {
				files = mergeMissing(files, cand.Files)
				fileSwaps = mergeMissing(fileSwaps, cand.FileSwaps)
				if len(manips) == 0 {
					manips = cand.Manipulations
				}
				if len(colors) == 0 {
					colors = cand.UIColors
				}
				break
			}
		}
	}

	for gamePath, stored := range files {
		if whitelist != nil {
			stripped := strings.TrimSuffix(gamePath, ".comp")
			if !whitelist[stripped] {
				continue
			}
		}
		if strings.HasSuffix(gamePath, ".comp") {
			compOut, err := s.compositeFile(modID, collectionID, gamePath, stored)
			if err != nil {
				s.ctx.Progress.Advance(fmt.Sprintf("composite %s/%s: %v", modID, gamePath, err))
				continue
			}
			out.Files[strings.TrimSuffix(gamePath, ".comp")] = compOut
		} else {
			out.Files[gamePath] = filepath.Join("files", stored)
		}
	}
	for k, v := range fileSwaps {
		out.FileSwaps[k] = v
	}
	out.Manipulations = append(out.Manipulations, manips...)
	out.UIColors = append(out.UIColors, colors...)
	return nil
}

func mergeMissing(dst, src map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

func mergeFileMap(dstFiles, dstSwaps map[string]string, files, swaps map[string]string, whitelist map[string]bool, modID, collectionID string, s *Scheduler) {
	for gamePath, stored := range files {
		if whitelist != nil && !whitelist[strings.TrimSuffix(gamePath, ".comp")] {
			continue
		}
		if _, exists := dstFiles[gamePath]; exists {
			continue // earlier (option-level) contributions win ties
		}
		if strings.HasSuffix(gamePath, ".comp") {
			compOut, err := s.compositeFile(modID, collectionID, gamePath, stored)
			if err != nil {
				continue
			}
			dstFiles[strings.TrimSuffix(gamePath, ".comp")] = compOut
		} else {
			dstFiles[gamePath] = filepath.Join("files", stored)
		}
	}
	for k, v := range swaps {
		if _, exists := dstSwaps[k]; !exists {
			dstSwaps[k] = v
		}
	}
}

// compositeFile reads a .comp recipe, composites it, writes the result
// under files_comp/<hash>.<ext>, and returns the relative path to map.
func (s *Scheduler) compositeFile(modID, collectionID, gamePath, stored string) (string, error) {
	modDir := filepath.Join(s.ctx.LoaderRoot, modID)
	recipeData, err := readModFile(modDir, stored)
	if err != nil {
		return "", fmt.Errorf("reading recipe: %w", err)
	}
	var recipe Recipe
	if err := json.Unmarshal(recipeData, &recipe); err != nil {
		return "", fmt.Errorf("parsing recipe: %w", err)
	}

	meta, err := loadModMeta(s.ctx.LoaderRoot, modID)
	if err != nil {
		return "", err
	}
	st, err := OpenSettings(s.ctx.ConfigDir, modID)
	if err != nil {
		return "", err
	}
	settings := st.GetCollection(meta, collectionID)

	resolver := s.fileResolver(modID, collectionID, meta, settings)
	canvas, err := Composite(recipe, meta, settings, resolver)
	if err != nil {
		return "", err
	}

	encoded, err := EncodeTex(canvas.Width, canvas.Height, 1, canvas.Pixels, FormatA8R8G8B8)
	if err != nil {
		return "", err
	}

	stripped := strings.TrimSuffix(gamePath, ".comp")
	isUI := IsUIPath(stripped)
	name := CompositeOutputDigestName(stripped, collectionID, encoded, isUI)

	outDir := filepath.Join(modDir, "files_comp")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(outDir, name), encoded, 0644); err != nil {
		return "", err
	}

	return filepath.Join("files_comp", name), nil
}

// fileResolver builds the Resolver closure used by Composite: Path::Mod
// reads from the mod's files/ tree or, for composite-only inputs, its
// _compdata zip; Path::Game reads live game assets; Path::Option reads
// the option's current path sub-entry.
func (s *Scheduler) fileResolver(modID, collectionID string, meta *Meta, settings CollectionSettings) Resolver {
	modDir := filepath.Join(s.ctx.LoaderRoot, modID)
	return func(p Path) ([]byte, error) {
		switch p.Kind {
		case PathMod:
			return readModFile(modDir, p.StoredName)
		case PathGame:
			return s.ctx.GameAssets.ReadGameFile(p.GamePath)
		case PathOption:
			for _, entry := range meta.Options {
				if entry.Option == nil || entry.Option.Name != p.OptionName {
					continue
				}
				if entry.Option.Settings.Kind != SettingsPath {
					continue
				}
				idx := uint32(0)
				if raw, ok := settings[p.OptionName]; ok {
					json.Unmarshal(raw, &idx)
				}
				opts := entry.Option.Settings.Path.Options
				if int(idx) >= len(opts) {
					return nil, fmt.Errorf("option %q: index %d out of range", p.OptionName, idx)
				}
				filename, ok := opts[idx].Paths[p.PathID]
				if !ok {
					return nil, fmt.Errorf("option %q: path id %q not found", p.OptionName, p.PathID)
				}
				return readModFile(modDir, filename)
			}
			return nil, fmt.Errorf("option %q not found", p.OptionName)
		default:
			return nil, fmt.Errorf("unknown path kind %q", p.Kind)
		}
	}
}

// groupFile mirrors the loader's group_001__collection.json shape (§6.1).
type groupFile struct {
	Name            string              `json:"Name"`
	Description     string              `json:"Description"`
	Priority        int                 `json:"Priority"`
	Type            string              `json:"Type"`
	DefaultSettings int                 `json:"DefaultSettings"`
	Options         []groupFileSubOption `json:"Options"`
}

type groupFileSubOption struct {
	Name          string            `json:"Name"`
	Description   string            `json:"Description"`
	Priority      int               `json:"Priority"`
	Files         map[string]string `json:"Files"`
	FileSwaps     map[string]string `json:"FileSwaps"`
	Manipulations []json.RawMessage `json:"Manipulations"`
}

func (s *Scheduler) writeGroupFile(modID, collectionID string, built *POption) error {
	path := filepath.Join(s.ctx.LoaderRoot, modID, "group_001__collection.json")

	gf := &groupFile{
		Name:        "_collection",
		Description: "Aetherment managed\nDON'T TOUCH THIS",
		Priority:    1,
		Type:        "Single",
	}
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, gf)
	}

	replaced := false
	for i, opt := range gf.Options {
		if opt.Name == collectionID {
			gf.Options[i] = groupFileSubOption{
				Name: collectionID, Priority: 1,
				Files: built.Files, FileSwaps: built.FileSwaps, Manipulations: built.Manipulations,
			}
			replaced = true
			break
		}
	}
	if !replaced {
		gf.Options = append(gf.Options, groupFileSubOption{
			Name: collectionID, Priority: 1,
			Files: built.Files, FileSwaps: built.FileSwaps, Manipulations: built.Manipulations,
		})
	}

	data, err := json.MarshalIndent(gf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling group file for %s: %w", modID, err)
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Scheduler) writeUIColorCache(modID string, colors []UIColorBinding) {
	data, err := json.MarshalIndent(colors, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(s.ctx.LoaderRoot, modID, "aetherment", "uicolorcache")
	os.WriteFile(path, data, 0644)
}

func (s *Scheduler) passthroughChangedFiles(modID, collectionID string) map[string]bool {
	path := filepath.Join(s.ctx.LoaderRoot, modID, "group_001__collection.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]bool{}
	}
	var gf groupFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return map[string]bool{}
	}
	out := map[string]bool{}
	for _, opt := range gf.Options {
		if opt.Name != collectionID {
			continue
		}
		for gp := range opt.Files {
			out[gp] = true
		}
	}
	return out
}

func (s *Scheduler) previousSubOptionFiles(modID, collectionID string) map[string]bool {
	return s.passthroughChangedFiles(modID, collectionID)
}

// cleanupCompositeOutputs implements §4.7.2: delete every file in
// files_comp/ not referenced by any enabled sub-option in the group file.
func (s *Scheduler) cleanupCompositeOutputs(modID string) error {
	path := filepath.Join(s.ctx.LoaderRoot, modID, "group_001__collection.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil // no group file yet: nothing to clean
	}
	var gf groupFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return fmt.Errorf("parsing group file for %s: %w", modID, err)
	}

	referenced := map[string]bool{}
	for _, opt := range gf.Options {
		for _, rel := range opt.Files {
			if strings.HasPrefix(rel, "files_comp"+string(filepath.Separator)) {
				referenced[filepath.Base(rel)] = true
			}
		}
	}

	outDir := filepath.Join(s.ctx.LoaderRoot, modID, "files_comp")
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if !referenced[e.Name()] {
			os.Remove(filepath.Join(outDir, e.Name()))
		}
	}
	return nil
}

// applyUIColors implements §4.7.3: fold every enabled mod's ui color
// cache in the Interface collection into the highest-priority-wins final
// table, then publish it.
func (s *Scheduler) applyUIColors() {
	iface, err := s.ctx.Backend.GetCollection(backend.CollectionInterface)
	if err != nil {
		return
	}

	type entry struct {
		priority int
		color    uicolor.Color
	}
	final := map[uicolor.Key]entry{}

	mods, err := s.ctx.Backend.ModList()
	if err != nil {
		return
	}

	for _, modID := range mods {
		settings, err := s.ctx.Backend.GetModSettings(iface.ID, modID, true)
		if err != nil || !settings.Enabled {
			continue
		}
		cachePath := filepath.Join(s.ctx.LoaderRoot, modID, "aetherment", "uicolorcache")
		data, err := os.ReadFile(cachePath)
		if err != nil {
			continue
		}
		var colors []UIColorBinding
		if err := json.Unmarshal(data, &colors); err != nil {
			continue
		}

		meta, err := loadModMeta(s.ctx.LoaderRoot, modID)
		if err != nil {
			continue
		}
		st, err := OpenSettings(s.ctx.ConfigDir, modID)
		if err != nil {
			continue
		}
		modSettings := st.GetCollection(meta, iface.ID)

		for _, binding := range colors {
			vals, err := binding.Color.Resolve(meta, modSettings)
			if err != nil || len(vals) < 3 {
				continue
			}
			key := uicolor.Key{UseTheme: binding.UseTheme, Index: binding.Index}
			color := uicolor.Color{R: clampByte(int(vals[0] * 255)), G: clampByte(int(vals[1] * 255)), B: clampByte(int(vals[2] * 255))}
			if existing, ok := final[key]; !ok || settings.Priority > existing.priority {
				final[key] = entry{priority: settings.Priority, color: color}
			}
		}
	}

	s.ctx.UIColors.Clear()
	for k, v := range final {
		s.ctx.UIColors.Set(k, v.color)
	}
}
