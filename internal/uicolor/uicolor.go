// Package uicolor holds the process-wide UI color override register that
// the apply scheduler publishes to and the host UI runtime reads from.
package uicolor

import "sync"

// Key identifies a themed or absolute color slot.
type Key struct {
	UseTheme bool
	Index    uint32
}

// Color is a clamped 0..255 RGB triple.
type Color struct {
	R, G, B uint8
}

// Service is an in-memory register of color overrides. Writers are the
// apply thread; readers are the UI runtime. Racy reads are tolerated —
// last write wins, within one frame — so access is guarded by a single
// read-write mutex rather than anything fancier.
type Service struct {
	mu     sync.RWMutex
	colors map[Key]Color
}

// New returns an empty service.
func New() *Service {
	return &Service{colors: map[Key]Color{}}
}

// Clear removes every entry. apply_ui_colors calls it after folding the
// fresh set and just before publishing it.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors = map[Key]Color{}
}

// Set is idempotent: setting the same key twice with the same value is a
// no-op in effect, though callers aren't required to check first.
func (s *Service) Set(k Key, c Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[k] = c
}

// Get returns the current color for a key, and whether one is set.
func (s *Service) Get(k Key) (Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.colors[k]
	return c, ok
}

// Enumerate returns a snapshot of all current entries.
func (s *Service) Enumerate() map[Key]Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]Color, len(s.colors))
	for k, v := range s.colors {
		out[k] = v
	}
	return out
}
