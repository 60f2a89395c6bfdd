package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/godbus/dbus/v5"
	"golang.org/x/term"

	"github.com/overthinkos/aetherment-engine/internal/backend"
	"github.com/overthinkos/aetherment-engine/internal/engine"
	"github.com/overthinkos/aetherment-engine/internal/noumenon"
)

// CLI defines the command-line interface structure.
type CLI struct {
	Extract ExtractCmd `cmd:"" help:"Pull a game asset out as PNG or raw .tex"`
	Convert ConvertCmd `cmd:"" help:"Convert between .tex, PNG, and DDS (decode-only)"`
	Pack    PackCmd    `cmd:"" help:"Build a .aeth archive from a mod source directory"`
	Diff    DiffCmd    `cmd:"" help:"Report game files that drifted since a modpack was built"`
	Install InstallCmd `cmd:"" help:"Install a .aeth archive into the loader"`
	Apply   ApplyCmd   `cmd:"" help:"Run one apply pass for the given collections"`
	List    ListCmd    `cmd:"" help:"List installed mods"`
}

// ExtractCmd pulls a live game asset out to disk.
type ExtractCmd struct {
	GamePath  string `arg:"" help:"Game-internal path, e.g. chara/equipment/e0001/texture/foo.tex"`
	Out       string `long:"out" help:"Output file path" default:"out.png"`
	OutFormat string `long:"outformat" help:"png or tex (inferred from --out if omitted)"`
}

func (c *ExtractCmd) Run(g *Globals) error {
	ctx, err := g.engineContext()
	if err != nil {
		return err
	}
	return engine.ExtractGameFile(ctx, c.GamePath, c.Out, c.OutFormat)
}

// ConvertCmd converts between on-disk image containers.
type ConvertCmd struct {
	In        string `arg:"" help:"Input file or directory"`
	Out       string `arg:"" optional:"" help:"Output file or directory (defaults alongside input)"`
	InFormat  string `long:"informat" help:"tex, png, or dds (inferred from extension if omitted)"`
	OutFormat string `long:"outformat" help:"tex or png (inferred from extension if omitted)"`
}

func (c *ConvertCmd) Run(g *Globals) error {
	info, err := os.Stat(c.In)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.In, err)
	}
	if info.IsDir() {
		outDir := c.Out
		if outDir == "" {
			outDir = c.In + "_converted"
		}
		outFormat := c.OutFormat
		if outFormat == "" {
			outFormat = "png"
		}
		return engine.ConvertDir(c.In, outDir, c.InFormat, outFormat)
	}

	out := c.Out
	if out == "" {
		out = c.In + ".out"
	}
	return engine.ConvertFile(c.In, out, c.InFormat, c.OutFormat)
}

// PackCmd builds a .aeth archive from a mod source directory.
type PackCmd struct {
	ModDir  string `arg:"" help:"Mod source directory containing meta.json"`
	Version string `long:"version" help:"Pack version string (defaults to a timestamp)"`
}

func (c *PackCmd) Run(g *Globals) error {
	outPath, err := engine.Pack(c.ModDir, c.Version)
	if err != nil {
		return err
	}
	fmt.Println(outPath)
	return nil
}

// DiffCmd reports drifted game files recorded in a modpack's hash table.
type DiffCmd struct {
	Pack string `arg:"" help:"Path to a .aeth archive"`
}

func (c *DiffCmd) Run(g *Globals) error {
	f, err := os.Open(c.Pack)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.Pack, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	reader, err := engine.OpenModpack(f, info.Size(), f)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, err := g.engineContext()
	if err != nil {
		return err
	}

	drifted, err := engine.Diff(ctx, reader)
	if err != nil {
		return err
	}
	for _, d := range drifted {
		fmt.Printf("%s: recorded=%s live=%s\n", d.GamePath, d.Recorded, d.Live)
	}
	if len(drifted) > 0 {
		fmt.Fprintf(os.Stderr, "%d file(s) drifted\n", len(drifted))
		os.Exit(2)
	}
	return nil
}

// InstallCmd installs a .aeth archive into the loader's mod directory.
type InstallCmd struct {
	Pack        string   `arg:"" help:"Path to a .aeth archive"`
	ModID       string   `long:"mod-id" help:"Override the installed directory name"`
	Collections []string `long:"collection" help:"Collection id(s) to queue an apply for" default:"default"`
}

func (c *InstallCmd) Run(g *Globals) error {
	f, err := os.Open(c.Pack)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.Pack, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	reader, err := engine.OpenModpack(f, info.Size(), f)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, err := g.engineContext()
	if err != nil {
		return err
	}

	modID := c.ModID
	if modID == "" {
		modID = engine.NextModID(ctx.LoaderRoot, reader.Meta.Name)
	}

	result, err := engine.Install(ctx, reader, modID, c.Collections)
	if err != nil {
		return err
	}
	fmt.Printf("installed %s into %s\n", result.ModID, result.ModDir)
	printProgress(ctx.Progress.Snapshot())
	return nil
}

// ApplyCmd drains the apply queue for the given collections and runs a pass.
type ApplyCmd struct {
	Collections []string `arg:"" help:"Collection id(s) to apply"`
	ModID       string   `long:"mod-id" help:"Restrict the apply to a single mod (defaults to every installed mod)"`
}

func (c *ApplyCmd) Run(g *Globals) error {
	ctx, err := g.engineContext()
	if err != nil {
		return err
	}

	mods := []string{c.ModID}
	if c.ModID == "" {
		mods, err = ctx.Backend.ModList()
		if err != nil {
			return fmt.Errorf("listing mods: %w", err)
		}
	}

	for _, collectionID := range c.Collections {
		for _, modID := range mods {
			ctx.ApplyQueue.Enqueue(engine.QueueEntry{ModID: modID, CollectionID: collectionID, Action: engine.ActionKeep})
		}
	}

	if err := engine.NewScheduler(ctx).RunApply(); err != nil {
		return err
	}
	printProgress(ctx.Progress.Snapshot())
	return nil
}

// printProgress prints the final task-progress snapshot, truncating the
// trailing message to the terminal width when stdout is a tty.
func printProgress(snap engine.TaskProgress) {
	msg := snap.Message
	if isInteractive() {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			prefix := fmt.Sprintf("applied %d/%d: ", snap.TasksDone, snap.TaskCount)
			if budget := w - len(prefix); budget > 0 && len(msg) > budget {
				msg = msg[:budget]
			}
		}
	}
	fmt.Printf("applied %d/%d: %s\n", snap.TasksDone, snap.TaskCount, msg)
}

// ListCmd lists mods known to the loader.
type ListCmd struct{}

func (c *ListCmd) Run(g *Globals) error {
	ctx, err := g.engineContext()
	if err != nil {
		return err
	}
	mods, err := ctx.Backend.ModList()
	if err != nil {
		return err
	}
	for _, modID := range mods {
		fmt.Println(modID)
	}
	return nil
}

// Globals holds flags shared by every command and lazily builds the
// engine context once the runtime config and backend connection are known.
type Globals struct {
	LoaderRoot string `long:"loader-root" help:"Override the configured loader root"`
}

func (g *Globals) engineContext() (*engine.EngineContext, error) {
	rt, err := engine.ResolveRuntime()
	if err != nil {
		return nil, fmt.Errorf("resolving runtime config: %w", err)
	}
	if g.LoaderRoot != "" {
		rt.LoaderRoot = g.LoaderRoot
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}

	adapter, err := backend.New(backend.KindPenumbraIPC, conn)
	if err != nil {
		return nil, fmt.Errorf("constructing backend: %w", err)
	}

	return engine.NewEngineContext(rt, adapter, noumenon.Unconfigured()), nil
}

// isInteractive reports whether progress should render as a live-updating
// line rather than as plain log statements.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func main() {
	var cli CLI
	var globals Globals
	ctx := kong.Parse(&cli,
		kong.Name("aeth"),
		kong.Description("Aetherment mod composition and apply engine"),
		kong.UsageOnError(),
		kong.Bind(&globals),
	)
	err := ctx.Run(&globals)
	ctx.FatalIfErrorf(err)
}
