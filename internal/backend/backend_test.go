package backend

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

type fakeConn struct{}

func (fakeConn) Object(dest string, path dbus.ObjectPath) dbus.BusObject { return nil }
func (fakeConn) AddMatchSignal(options ...dbus.MatchOption) error        { return nil }
func (fakeConn) Signal(ch chan<- *dbus.Signal)                          {}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(Kind("modio"), fakeConn{}); err == nil {
		t.Error("expected error for unknown backend kind")
	}
}

func TestNew_PenumbraIPC(t *testing.T) {
	a, err := New(KindPenumbraIPC, fakeConn{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if a == nil {
		t.Fatal("expected non-nil adapter")
	}
}
