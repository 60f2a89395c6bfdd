package engine

import (
	"github.com/overthinkos/aetherment-engine/internal/backend"
	"github.com/overthinkos/aetherment-engine/internal/noumenon"
	"github.com/overthinkos/aetherment-engine/internal/uicolor"
)

// EngineContext replaces the source's global mutable state (a loader
// function-table singleton, a global UI color table, a global noumenon
// handle) with an explicit value threaded through operations. Singletons
// become lazily-initialized fields here instead.
type EngineContext struct {
	LoaderRoot string
	ConfigDir  string
	Backend    backend.Adapter
	GameAssets noumenon.Reader
	UIColors   *uicolor.Service
	ApplyQueue *ApplyQueue
	Progress   *TaskProgress
}

// NewEngineContext wires the context from a resolved runtime config and a
// constructed backend adapter. GameAssets defaults to an unconfigured
// reader if none is supplied, so Path::Game lookups fail loudly as a
// Composite error instead of panicking on a nil interface.
func NewEngineContext(rt *ResolvedRuntime, adapter backend.Adapter, gameAssets noumenon.Reader) *EngineContext {
	if gameAssets == nil {
		gameAssets = noumenon.Unconfigured()
	}
	return &EngineContext{
		LoaderRoot: rt.LoaderRoot,
		ConfigDir:  rt.ConfigDir,
		Backend:    adapter,
		GameAssets: gameAssets,
		UIColors:   uicolor.New(),
		ApplyQueue: NewApplyQueue(),
		Progress:   &TaskProgress{},
	}
}
