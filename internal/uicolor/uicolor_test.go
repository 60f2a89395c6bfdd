package uicolor

import "testing"

func TestService_SetAndGet(t *testing.T) {
	s := New()
	k := Key{UseTheme: false, Index: 3}
	s.Set(k, Color{R: 255})
	c, ok := s.Get(k)
	if !ok || c.R != 255 {
		t.Fatalf("Get() = %v, %v; want {255,0,0}, true", c, ok)
	}
}

func TestService_LastWriteWins(t *testing.T) {
	s := New()
	k := Key{UseTheme: false, Index: 3}

	// A second Set on the same key replaces the first value.
	s.Set(k, Color{B: 255})
	s.Set(k, Color{R: 255})

	c, _ := s.Get(k)
	if c.R != 255 || c.B != 0 {
		t.Errorf("expected last write to win, got %v", c)
	}
}

func TestService_Clear(t *testing.T) {
	s := New()
	s.Set(Key{Index: 1}, Color{R: 1})
	s.Clear()
	if len(s.Enumerate()) != 0 {
		t.Error("expected empty service after Clear()")
	}
}
