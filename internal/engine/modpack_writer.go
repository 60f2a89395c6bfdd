package engine

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	kflate "github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"
)

func init() {
	// Use klauspost/compress's flate implementation (faster, pure Go) for
	// the DEFLATE level the archive writer requests, registered once at
	// package init per the archive/zip extension point.
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return kflate.NewWriter(w, kflate.BestCompression)
	})
}

// pendingFile is one (logical_path, bytes) push awaiting compression.
type pendingFile struct {
	logicalPath string
	data        []byte
	compressed  []byte // filled in by the worker pool
}

// ModpackWriter builds a deterministic .aeth archive: meta.json, content
// addressed files/<digest>.<ext> entries deduplicated by blake3 digest, a
// remap table, and an optional hashes drift table.
type ModpackWriter struct {
	meta    *Meta
	mu      sync.Mutex
	remap   map[string]string // logical path -> stored name
	byHash  map[string][]byte // stored name -> bytes, for dedup
	pending []*pendingFile
	hashes  map[string]string // game_path -> digest, optional
}

// NewModpackWriter starts a new archive build for the given meta.
func NewModpackWriter(meta *Meta) *ModpackWriter {
	return &ModpackWriter{
		meta:   meta,
		remap:  map[string]string{},
		byHash: map[string][]byte{},
		hashes: map[string]string{},
	}
}

// AddFile pushes a (logical_path, bytes) pair. A second push with
// identical bytes is a no-op for storage but still updates the remap, per
// invariant 1 in §8.
func (w *ModpackWriter) AddFile(logicalPath string, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	stored := ContentDigestName(data, logicalPath)
	if _, exists := w.byHash[stored]; !exists {
		w.byHash[stored] = data
		w.pending = append(w.pending, &pendingFile{logicalPath: logicalPath, data: data})
	}
	w.remap[logicalPath] = stored
}

// SetDriftHash records the live game file's digest for a game_path, for
// the optional `hashes` drift-detection table.
func (w *ModpackWriter) SetDriftHash(gamePath string, digest []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hashes[gamePath] = fmt.Sprintf("blake3:%x", digest)
}

// Finalize compresses every pending file across a worker pool (compression
// is CPU-bound and independent per file, unlike the sequential apply
// pipeline) and writes the resulting zip to w.
func (w *ModpackWriter) Finalize(out io.Writer, workers int) error {
	if workers < 1 {
		workers = 1
	}

	if err := w.compressPending(workers); err != nil {
		return err
	}

	zw := zip.NewWriter(out)

	metaJSON, err := json.MarshalIndent(w.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta.json: %w", err)
	}
	if err := writeZipEntry(zw, "meta.json", metaJSON); err != nil {
		return err
	}

	for _, pf := range w.pending {
		name := "files/" + w.remap[pf.logicalPath]
		if err := writeZipRawEntry(zw, name, pf.data, pf.compressed); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	remapJSON, err := json.MarshalIndent(w.remap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling remap: %w", err)
	}
	if err := writeZipEntry(zw, "remap", remapJSON); err != nil {
		return err
	}

	if len(w.hashes) > 0 {
		hashesJSON, err := json.MarshalIndent(w.hashes, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling hashes: %w", err)
		}
		if err := writeZipEntry(zw, "hashes", hashesJSON); err != nil {
			return err
		}
	}

	return zw.Close()
}

// compressPending runs DEFLATE level 9 across w.pending using a bounded
// worker pool, mirroring the per-file fan-out the spec calls for in
// modpack creation (compression is CPU-bound and independent per file).
func (w *ModpackWriter) compressPending(workers int) error {
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, pf := range w.pending {
		pf := pf
		g.Go(func() error {
			var buf bytes.Buffer
			zw, err := kflate.NewWriter(&buf, kflate.BestCompression)
			if err != nil {
				return fmt.Errorf("compressing %s: %w", pf.logicalPath, err)
			}
			if _, err := zw.Write(pf.data); err != nil {
				return fmt.Errorf("compressing %s: %w", pf.logicalPath, err)
			}
			if err := zw.Close(); err != nil {
				return fmt.Errorf("compressing %s: %w", pf.logicalPath, err)
			}
			pf.compressed = buf.Bytes()
			return nil
		})
	}

	return g.Wait()
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	_, err = fw.Write(data)
	return err
}

// writeZipRawEntry writes an entry whose compressed bytes were already
// produced by the worker pool, avoiding a second compression pass through
// archive/zip's own writer.
func writeZipRawEntry(zw *zip.Writer, name string, rawData, compressed []byte) error {
	if compressed == nil {
		return writeZipEntry(zw, name, rawData)
	}
	fh := &zip.FileHeader{Name: name, Method: zip.Deflate}
	fh.UncompressedSize64 = uint64(len(rawData))
	fh.CompressedSize64 = uint64(len(compressed))
	fh.CRC32 = crc32Of(rawData)
	w, err := zw.CreateRaw(fh)
	if err != nil {
		return fmt.Errorf("creating raw entry %s: %w", name, err)
	}
	_, err = w.Write(compressed)
	return err
}

func crc32Of(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
