package noumenon

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirReader resolves game_path lookups against a plain directory tree —
// used in tests and for any deployment that mirrors the game's virtual
// paths onto disk rather than reading the game's native container format.
type DirReader struct {
	Root string
}

func (d DirReader) ReadGameFile(gamePath string) ([]byte, error) {
	full := filepath.Join(d.Root, filepath.FromSlash(gamePath))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading game file %s: %w", gamePath, err)
	}
	return data, nil
}
