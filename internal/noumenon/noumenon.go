// Package noumenon provides read-only access to the live game's virtual
// filesystem, used to resolve Path::Game references during composition
// and to recompute live digests for drift detection.
package noumenon

import "fmt"

// Reader looks up a game asset by its logical game_path. A nil Reader
// means the game install path is unconfigured (spec §7 Config error): any
// composite that needs Path::Game must surface that as a Composite error,
// not crash.
type Reader interface {
	ReadGameFile(gamePath string) ([]byte, error)
}

// ErrNotConfigured is returned by operations that need a Reader when none
// was supplied to the EngineContext.
var ErrNotConfigured = fmt.Errorf("noumenon: game install path is not configured")

// unconfigured is the zero-value Reader substitute so callers never nil-check.
type unconfigured struct{}

func (unconfigured) ReadGameFile(gamePath string) ([]byte, error) {
	return nil, fmt.Errorf("reading %s: %w", gamePath, ErrNotConfigured)
}

// Unconfigured returns a Reader that fails every lookup with
// ErrNotConfigured, for use when no game install path is known.
func Unconfigured() Reader { return unconfigured{} }
