package engine

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// compDataName is the secondary zip's filename under a mod's files/
// directory, holding composite-only inputs raw-copied (not re-compressed)
// from the archive, per §3.6/§4.4.
const compDataName = "_compdata"

// ModpackReader opens a .aeth archive for installation.
type ModpackReader struct {
	zr     *zip.Reader
	closer io.Closer
	Meta   *Meta
	Remap  map[string]string
	Hashes map[string]string // optional, may be nil
}

// OpenModpack opens an archive from a ReaderAt (typically an *os.File) and
// parses meta.json, remap, and the optional hashes table.
func OpenModpack(ra io.ReaderAt, size int64, closer io.Closer) (*ModpackReader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("opening modpack archive: %w", err)
	}

	r := &ModpackReader{zr: zr, closer: closer}

	metaData, err := readZipEntry(zr, "meta.json")
	if err != nil {
		return nil, fmt.Errorf("reading meta.json: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("parsing meta.json: %w", err)
	}
	r.Meta = &meta

	remapData, err := readZipEntry(zr, "remap")
	if err != nil {
		return nil, fmt.Errorf("reading remap: %w", err)
	}
	var remap map[string]string
	if err := json.Unmarshal(remapData, &remap); err != nil {
		return nil, fmt.Errorf("parsing remap: %w", err)
	}
	r.Remap = remap

	if hashesData, err := readZipEntry(zr, "hashes"); err == nil {
		var hashes map[string]string
		if err := json.Unmarshal(hashesData, &hashes); err == nil {
			r.Hashes = hashes
		}
	}

	return r, nil
}

// Close releases the underlying reader, if one was supplied.
func (r *ModpackReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// ReadFile reads the raw bytes of files/<storedName> from the archive.
func (r *ModpackReader) ReadFile(storedName string) ([]byte, error) {
	return readZipEntry(r.zr, "files/"+storedName)
}

// rawEntry returns the archive's zip.File for files/<storedName>, for
// callers that want to copy its compressed bytes verbatim (e.g. into
// files/_compdata) instead of decompressing and recompressing it.
func (r *ModpackReader) rawEntry(storedName string) (*zip.File, error) {
	name := "files/" + storedName
	for _, f := range r.zr.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("entry %s not found in archive", name)
}

// DirectGamePaths returns the set of game_path values reachable from a
// non-.comp file mapping, across every option and sub-option (evaluated
// over all options, per §4.4) — these files are extracted to files/.
// Composite-only stored names (everything else referenced by the remap)
// are classified by ClassifyStoredFiles.
func (r *ModpackReader) DirectGamePaths() map[string]string {
	direct := map[string]string{}
	collect := func(files map[string]string) {
		for gamePath, storedLogical := range files {
			if strings.HasSuffix(gamePath, ".comp") {
				continue
			}
			direct[gamePath] = storedLogical
		}
	}

	collect(r.Meta.Files)
	for _, entry := range r.Meta.Options {
		if entry.Option == nil {
			continue
		}
		switch entry.Option.Settings.Kind {
		case SettingsSingleFiles:
			for _, sub := range entry.Option.Settings.SingleFiles.Options {
				collect(sub.Files)
			}
		case SettingsMultiFiles:
			for _, sub := range entry.Option.Settings.MultiFiles.Options {
				collect(sub.Files)
			}
		}
	}
	return direct
}

// ClassifyStoredFiles partitions every stored name in the remap into
// direct (extracted to files/) and composite-only (kept compressed in
// files/_compdata) per §4.4. A remap entry is direct when a non-.comp
// mapping names either its logical name or its stored name (Pack bakes
// stored names into the meta it archives).
func (r *ModpackReader) ClassifyStoredFiles() (direct, compositeOnly map[string]string) {
	direct = map[string]string{}
	compositeOnly = map[string]string{}

	directLogical := map[string]bool{}
	for _, logical := range r.DirectGamePaths() {
		directLogical[logical] = true
	}

	for logical, stored := range r.Remap {
		if directLogical[logical] || directLogical[stored] {
			direct[logical] = stored
		} else {
			compositeOnly[logical] = stored
		}
	}
	return direct, compositeOnly
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
