package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractGameFile reads a live game asset, decodes it, and writes it to
// outPath in the requested image format ("png" or "tex"). An empty
// outFormat is taken from outPath's extension, falling back to "png".
func ExtractGameFile(ctx *EngineContext, gamePath, outPath, outFormat string) error {
	data, err := ctx.GameAssets.ReadGameFile(gamePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", gamePath, err)
	}

	if outFormat == "" {
		outFormat = formatFromExt(outPath, "png")
	}
	if outFormat == "tex" {
		return os.WriteFile(outPath, data, 0644)
	}

	tex, err := DecodeTex(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", gamePath, err)
	}
	return writeRawImage(outPath, outFormat, &RawImage{Width: tex.Width, Height: tex.Height, Pixels: tex.Pixels})
}

// ConvertFile converts a single file between .tex, .png, and (decode-only)
// .dds, inferring formats from file extensions unless overridden.
func ConvertFile(inPath, outPath, inFormat, outFormat string) error {
	if inFormat == "" {
		inFormat = formatFromExt(inPath, "tex")
	}
	if outFormat == "" {
		outFormat = formatFromExt(outPath, "png")
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inPath, err)
	}

	img, err := readRawImage(data, inFormat)
	if err != nil {
		return fmt.Errorf("decoding %s as %s: %w", inPath, inFormat, err)
	}
	return writeRawImage(outPath, outFormat, img)
}

// ConvertDir recursively converts every file under inDir matching inFormat
// into outDir, preserving the relative directory structure.
func ConvertDir(inDir, outDir, inFormat, outFormat string) error {
	return filepath.Walk(inDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if inFormat != "" && formatFromExt(path, "") != inFormat {
			return nil
		}
		rel, err := filepath.Rel(inDir, path)
		if err != nil {
			return err
		}
		outExt := "." + outFormat
		outPath := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+outExt)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return err
		}
		return ConvertFile(path, outPath, inFormat, outFormat)
	})
}

func readRawImage(data []byte, format string) (*RawImage, error) {
	switch format {
	case "tex":
		tex, err := DecodeTex(data)
		if err != nil {
			return nil, err
		}
		return &RawImage{Width: tex.Width, Height: tex.Height, Pixels: tex.Pixels}, nil
	case "png":
		return DecodePNG(data)
	case "dds":
		return DecodeDDS(data)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

func writeRawImage(outPath, format string, img *RawImage) error {
	switch format {
	case "tex":
		data, err := EncodeTex(img.Width, img.Height, 1, img.Pixels, FormatA8R8G8B8)
		if err != nil {
			return err
		}
		return os.WriteFile(outPath, data, 0644)
	case "png":
		data, err := EncodePNG(img)
		if err != nil {
			return err
		}
		return os.WriteFile(outPath, data, 0644)
	case "dds":
		return fmt.Errorf("writing dds is not supported (decode-only)")
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func formatFromExt(path, def string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return def
	}
	return ext
}

// DriftEntry is one game_path whose live bytes no longer match the
// modpack's recorded hash at pack time.
type DriftEntry struct {
	GamePath string
	Recorded string
	Live     string
}

// Diff implements §6.3's `diff <pack.aeth>`: for every game_path recorded
// in the archive's optional `hashes` table, compare against the live game
// file's current digest.
func Diff(ctx *EngineContext, r *ModpackReader) ([]DriftEntry, error) {
	var drifted []DriftEntry
	for gamePath, recorded := range r.Hashes {
		data, err := ctx.GameAssets.ReadGameFile(gamePath)
		if err != nil {
			drifted = append(drifted, DriftEntry{GamePath: gamePath, Recorded: recorded, Live: "missing: " + err.Error()})
			continue
		}
		live := fmt.Sprintf("blake3:%x", BlakeSum(data))
		if live != recorded {
			drifted = append(drifted, DriftEntry{GamePath: gamePath, Recorded: recorded, Live: live})
		}
	}
	return drifted, nil
}
