package backend

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// DBusConn is the subset of *dbus.Conn the penumbra adapter needs, so
// tests can swap in a fake bus without touching a real session bus.
type DBusConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
}

const (
	penumbraDest = "org.mod.penumbra.api"
	penumbraPath = dbus.ObjectPath("/org/mod/penumbra")
)

// penumbraAdapter implements Adapter over Penumbra's session-bus IPC
// interface. Every call is a synchronous method call against a single
// well-known bus name; the on_mod_changed callback is wired through a
// dbus signal match rather than a long-lived stream.
type penumbraAdapter struct {
	conn DBusConn
	obj  dbus.BusObject
}

func newPenumbraAdapter(conn DBusConn) *penumbraAdapter {
	return &penumbraAdapter{conn: conn, obj: conn.Object(penumbraDest, penumbraPath)}
}

func (p *penumbraAdapter) call(method string, args ...interface{}) *dbus.Call {
	return p.obj.Call(penumbraDest+"."+method, 0, args...)
}

func (p *penumbraAdapter) IsEnabled() bool {
	var enabled bool
	if err := p.call("GetEnabled").Store(&enabled); err != nil {
		return false
	}
	return enabled
}

func (p *penumbraAdapter) RootPath() (string, error) {
	var root string
	if err := p.call("GetModDirectory").Store(&root); err != nil {
		return "", fmt.Errorf("penumbra: GetModDirectory: %w", err)
	}
	return root, nil
}

func (p *penumbraAdapter) ModList() ([]string, error) {
	var mods []string
	if err := p.call("GetModList").Store(&mods); err != nil {
		return nil, fmt.Errorf("penumbra: GetModList: %w", err)
	}
	return mods, nil
}

func (p *penumbraAdapter) AddModEntry(modID string) (byte, error) {
	var status byte
	if err := p.call("AddMod", modID).Store(&status); err != nil {
		return 0, fmt.Errorf("penumbra: AddMod(%s): %w", modID, err)
	}
	return status, nil
}

func (p *penumbraAdapter) ReloadMod(modID string) (byte, error) {
	var status byte
	if err := p.call("ReloadMod", modID).Store(&status); err != nil {
		return 0, fmt.Errorf("penumbra: ReloadMod(%s): %w", modID, err)
	}
	return status, nil
}

func (p *penumbraAdapter) SetModEnabled(collectionID, modID string, enabled bool) (byte, error) {
	var status byte
	if err := p.call("SetModEnabled", collectionID, modID, enabled).Store(&status); err != nil {
		return 0, fmt.Errorf("penumbra: SetModEnabled(%s,%s): %w", collectionID, modID, err)
	}
	return status, nil
}

func (p *penumbraAdapter) SetModPriority(collectionID, modID string, priority int) (byte, error) {
	var status byte
	if err := p.call("SetModPriority", collectionID, modID, int32(priority)).Store(&status); err != nil {
		return 0, fmt.Errorf("penumbra: SetModPriority(%s,%s): %w", collectionID, modID, err)
	}
	return status, nil
}

func (p *penumbraAdapter) SetModInherit(collectionID, modID string, inherit bool) (byte, error) {
	var status byte
	if err := p.call("SetModInherit", collectionID, modID, inherit).Store(&status); err != nil {
		return 0, fmt.Errorf("penumbra: SetModInherit(%s,%s): %w", collectionID, modID, err)
	}
	return status, nil
}

func (p *penumbraAdapter) SetModSettings(collectionID, modID, group string, options []string) (byte, error) {
	var status byte
	if err := p.call("SetModSettings", collectionID, modID, group, options).Store(&status); err != nil {
		return 0, fmt.Errorf("penumbra: SetModSettings(%s,%s,%s): %w", collectionID, modID, group, err)
	}
	return status, nil
}

func (p *penumbraAdapter) GetModSettings(collectionID, modID string, inheritFlag bool) (ModSettings, error) {
	var raw struct {
		Exists   bool
		Enabled  bool
		Inherit  bool
		Priority int32
		Options  map[string][]string
	}
	if err := p.call("GetModSettings", collectionID, modID, inheritFlag).Store(&raw); err != nil {
		return ModSettings{}, fmt.Errorf("penumbra: GetModSettings(%s,%s): %w", collectionID, modID, err)
	}
	return ModSettings{
		Exists:   raw.Exists,
		Enabled:  raw.Enabled,
		Inherit:  raw.Inherit,
		Priority: int(raw.Priority),
		Options:  raw.Options,
	}, nil
}

func (p *penumbraAdapter) GetCollection(t CollectionType) (Collection, error) {
	var c Collection
	if err := p.call("GetCollectionByType", string(t)).Store(&c.ID, &c.Name); err != nil {
		return Collection{}, fmt.Errorf("penumbra: GetCollectionByType(%s): %w", t, err)
	}
	return c, nil
}

func (p *penumbraAdapter) GetCollections() ([]Collection, error) {
	var rows [][2]string
	if err := p.call("GetCollections").Store(&rows); err != nil {
		return nil, fmt.Errorf("penumbra: GetCollections: %w", err)
	}
	collections := make([]Collection, len(rows))
	for i, row := range rows {
		collections[i] = Collection{ID: row[0], Name: row[1]}
	}
	return collections, nil
}

// OnModChanged subscribes to Penumbra's ModSettingChanged signal and starts
// a goroutine that calls cb for each one received. The goroutine runs
// until the underlying dbus connection's signal channel is closed.
func (p *penumbraAdapter) OnModChanged(cb func(kind ChangeKind, collectionID, modID string)) {
	_ = p.conn.AddMatchSignal(
		dbus.WithMatchInterface(penumbraDest),
		dbus.WithMatchMember("ModSettingChanged"),
	)

	ch := make(chan *dbus.Signal, 16)
	p.conn.Signal(ch)

	go func() {
		for sig := range ch {
			if sig.Name != penumbraDest+".ModSettingChanged" || len(sig.Body) < 3 {
				continue
			}
			kindVal, _ := sig.Body[0].(int32)
			collectionID, _ := sig.Body[1].(string)
			modID, _ := sig.Body[2].(string)
			cb(ChangeKind(kindVal), collectionID, modID)
		}
	}()
}
