// Package engine wires the core components (driver, config, store,
// luaconfig) into the shape both cmd/emmylua-cli and cmd/emmylua-mcp need,
// the way the teacher's cmd/morfx/main.go assembles a cli.Runner from flags
// before either printing results itself or (in this port's case) handing
// the same driver off to an MCP tool server instead.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/driver"
	"github.com/oxhq/emmylua-core/luaconfig"
	"github.com/oxhq/emmylua-core/store"
	"github.com/oxhq/emmylua-core/vfs"
)

// Options governs how Open builds a Driver, mirroring the knobs the
// teacher's buildConfigFromFlags collects before constructing a cli.Runner.
type Options struct {
	ConfigPath     string // path to .emmyrc.json/.luarc.json, "" for defaults only
	EnvFile        string // path to a .env file for ApplyEnvOverrides, "" to skip
	StoreDSN       string // gorm DSN for the optional persistence layer, "" to disable
	StoreDebug     bool
	EnableLuaconfig bool // opt in to the luaconfig overlay checkers (spec's optional component M)
}

// Engine bundles a live Driver with its optional Store, so a caller doesn't
// need to thread both through independently.
type Engine struct {
	Driver *driver.Driver
	Store  *store.Store // nil if Options.StoreDSN was empty
}

// Open builds the Driver's configuration (file + env overrides) and, if
// requested, connects the persistence layer and registers the luaconfig
// overlay checkers. Every subcommand in cmd/emmylua-cli and every tool
// handler in cmd/emmylua-mcp goes through this one assembly path.
func Open(opts Options) (*Engine, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("engine: load config %s: %w", opts.ConfigPath, err)
		}
		cfg = loaded
	}
	cfg = config.ApplyEnvOverrides(cfg, opts.EnvFile)

	d := driver.New(cfg)
	if opts.EnableLuaconfig {
		luaconfig.RegisterCheckers(d.Diagnostics())
	}

	eng := &Engine{Driver: d}
	if opts.StoreDSN != "" {
		s, err := store.Connect(opts.StoreDSN, opts.StoreDebug)
		if err != nil {
			return nil, fmt.Errorf("engine: connect store: %w", err)
		}
		eng.Store = s
	}
	return eng, nil
}

// Close releases the optional store connection. Safe to call on an Engine
// built with no store.
func (e *Engine) Close() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close()
}

// LoadFiles reads paths off disk and applies them to the Driver's VFS as a
// single reindex batch, returning the resulting file ids in path order. A
// path that fails to read is reported immediately rather than silently
// dropped, since a CLI/MCP caller handed a bad path wants to know before it
// gets a confusing "file not found" from a later lookup.
func (e *Engine) LoadFiles(ctx context.Context, paths []string) ([]vfs.FileId, error) {
	changes := make([]vfs.Change, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("engine: read %s: %w", p, err)
		}
		text := string(data)
		changes[i] = vfs.Change{URI: pathURI(p), Text: &text}
	}
	batch := e.Driver.AddOrUpdateFiles(ctx, changes)

	if e.Store != nil {
		if err := e.Store.RecordBatch(batch.ID, e.Driver.VFS(), batch.Updated, batch.Diffs); err != nil {
			return nil, fmt.Errorf("engine: record batch: %w", err)
		}
		if err := e.Store.RecordTypeDeclContributions(e.Driver.TypeIndex(), e.Driver.VFS()); err != nil {
			return nil, fmt.Errorf("engine: record type decl contributions: %w", err)
		}
	}

	ids := make([]vfs.FileId, len(paths))
	for i, p := range paths {
		id, ok := e.Driver.VFS().GetFileId(pathURI(p))
		if !ok {
			return nil, fmt.Errorf("engine: %s was not indexed", p)
		}
		ids[i] = id
	}
	return ids, nil
}

// pathURI mirrors driver's own stripFileScheme in reverse: a bare
// filesystem path becomes a file:// URI, the VFS key every other component
// expects.
func pathURI(p string) string {
	if len(p) >= 7 && p[:7] == "file://" {
		return p
	}
	return "file://" + p
}

// Diagnose runs the checker registry over file and, if a store is
// connected, persists the run's per-code counts.
func (e *Engine) Diagnose(file vfs.FileId) ([]diagnostics.Diagnostic, error) {
	diags, ok := e.Driver.DiagnoseFile(file)
	if !ok {
		return nil, fmt.Errorf("engine: file id %d is not live", file)
	}
	if e.Store != nil {
		uri, _ := e.Driver.VFS().URI(file)
		if err := e.Store.RecordDiagnosticRun(uri, diags); err != nil {
			return nil, fmt.Errorf("engine: record diagnostic run: %w", err)
		}
	}
	return diags, nil
}
