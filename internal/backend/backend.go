// Package backend implements the thin, side-effecting facade over the
// external mod loader's IPC, consumed by the apply scheduler.
package backend

import "fmt"

// Kind selects the concrete loader backend. The source assumes a single
// backend behind a trait hole; here the polymorphism is an explicit enum
// with a switch-based constructor rather than a vtable, so the IPC
// closures stay owned by one value instead of scattered across an
// interface's hidden implementations.
type Kind string

const (
	KindPenumbraIPC Kind = "penumbra-ipc"
)

// ModSettings mirrors get_mod_settings's response shape: existence,
// enable/inherit flags, priority, and the option -> [sub_option] map.
type ModSettings struct {
	Exists  bool
	Enabled bool
	Inherit bool
	Priority int
	Options  map[string][]string
}

// Collection is a host-loader named configuration set.
type Collection struct {
	ID   string
	Name string
}

// CollectionType selects which well-known collection a caller wants.
type CollectionType string

const (
	CollectionCurrent   CollectionType = "Current"
	CollectionInterface CollectionType = "Interface"
)

// ChangeKind enumerates the on_mod_changed callback's change reasons.
// Only SettingsChanged (3) and Edited (7) are given special handling by
// the apply scheduler; everything else is forwarded unexamined.
type ChangeKind int

const (
	ChangeSettingsChanged ChangeKind = 3
	ChangeEdited          ChangeKind = 7
)

// Adapter is the engine's view of the loader: exactly the operations the
// apply scheduler and installer need. IPC calls may block for tens of
// milliseconds and must never be held under the apply queue's mutex.
type Adapter interface {
	IsEnabled() bool
	RootPath() (string, error)
	ModList() ([]string, error)
	AddModEntry(modID string) (byte, error)
	ReloadMod(modID string) (byte, error)
	SetModEnabled(collectionID, modID string, enabled bool) (byte, error)
	SetModPriority(collectionID, modID string, priority int) (byte, error)
	SetModInherit(collectionID, modID string, inherit bool) (byte, error)
	SetModSettings(collectionID, modID, group string, options []string) (byte, error)
	GetModSettings(collectionID, modID string, inheritFlag bool) (ModSettings, error)
	GetCollection(t CollectionType) (Collection, error)
	GetCollections() ([]Collection, error)
	OnModChanged(cb func(kind ChangeKind, collectionID, modID string))
}

// New constructs the adapter for the requested backend kind.
func New(kind Kind, conn DBusConn) (Adapter, error) {
	switch kind {
	case KindPenumbraIPC:
		return newPenumbraAdapter(conn), nil
	default:
		return nil, fmt.Errorf("backend: unknown kind %q", kind)
	}
}
