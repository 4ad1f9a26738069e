// Package hosttune is an idempotent host-configuration reconciler for a
// fixed set of Linux tuning modules. It probes current kernel and
// service state, applies desired configuration with backups of anything
// it overwrites, verifies the result, and can revert on demand.
package hosttune

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/nnversace/hosttune/internal/backup"
	"github.com/nnversace/hosttune/internal/config"
	"github.com/nnversace/hosttune/internal/execx"
	"github.com/nnversace/hosttune/internal/hostmod"
	"github.com/nnversace/hosttune/internal/logger"
	"github.com/nnversace/hosttune/internal/metrics"
	"github.com/nnversace/hosttune/internal/pkgmgr"
	"github.com/nnversace/hosttune/internal/probe"
	"github.com/nnversace/hosttune/internal/record"
	"github.com/nnversace/hosttune/internal/record/sqlite"
	"github.com/nnversace/hosttune/internal/server"
	"github.com/nnversace/hosttune/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

// Version of the tool, stamped into every RunRecord.
const Version = "0.1.0"

// Re-export core types for external consumers. These are aliases, so
// conversions are zero-cost.

type Config = config.Config

type Mode = hostmod.Mode

type Outcome = hostmod.Outcome

type ProbeResult = probe.Result

type RunRecord = record.RunRecord

const (
	ModeApply  = hostmod.ModeApply
	ModeStatus = hostmod.ModeStatus
	ModeRevert = hostmod.ModeRevert
)

// DefaultConfig returns the built-in desired state.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads TOML config from path, layered over the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Options tweaks how an Engine binds to the host. The zero value targets
// the live system; tests point Root at a scratch tree and Runner at a
// scripted fake.
type Options struct {
	Root   string
	Runner execx.Runner
	Logger *slog.Logger
}

// Engine wires the module registry, orchestrator, and persistence
// together. It is the single entry point for the CLI and the HTTP API.
type Engine struct {
	cfg       config.Config
	reg       *hostmod.Registry
	orch      *hostmod.Orchestrator
	history   *sqlite.Store
	log       *slog.Logger
	logCloser io.Closer
}

// New builds an Engine bound to the live host.
func New(cfg Config) (*Engine, error) { return NewWithOptions(cfg, Options{}) }

// NewWithOptions builds an Engine with explicit host bindings.
func NewWithOptions(cfg Config, opts Options) (*Engine, error) {
	root := opts.Root
	if root == "" {
		root = "/"
	}
	runner := opts.Runner
	if runner == nil {
		runner = execx.System()
	}

	log := opts.Logger
	var logCloser io.Closer
	if log == nil {
		log, logCloser = logger.New(logger.Config{
			Path:       cfg.Log.Path,
			Level:      cfg.Log.Level,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
	}

	prober := probe.NewWithRoot(root, runner)
	deps := hostmod.Deps{
		Probe:    prober,
		Backup:   backup.NewStore(),
		Services: service.NewController(runner),
		Packages: pkgmgr.New(runner),
		Runner:   runner,
		Logger:   log,
	}

	reg, err := hostmod.NewRegistry(
		hostmod.NewNetwork(cfg.Network, deps, root),
		hostmod.NewSSH(cfg.SSH, deps, root),
		hostmod.NewZRAM(cfg.ZRAM, deps, root),
		hostmod.NewDNS(cfg.DNS, deps, root),
		hostmod.NewTimeSync(cfg.TimeSync, deps, root),
	)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, reg: reg, log: log, logCloser: logCloser}

	if cfg.History.Path != "" {
		hist, err := sqlite.New(cfg.History.Path)
		if err != nil {
			// history is an audit layer, not a precondition
			log.Warn("run history disabled", "path", cfg.History.Path, "error", err)
		} else {
			e.history = hist
		}
	}

	orchOpts := hostmod.Options{
		RecordPath:  cfg.Record.Path,
		ToolVersion: Version,
		Logger:      log,
		Prober:      prober,
	}
	if e.history != nil {
		orchOpts.History = e.history
	}
	e.orch = hostmod.NewOrchestrator(reg, orchOpts)
	return e, nil
}

// Run executes one orchestrator invocation.
func (e *Engine) Run(ctx context.Context, mode Mode, names []string) (*RunRecord, []Outcome, error) {
	return e.orch.Run(ctx, mode, names)
}

// Apply reconciles the selected modules ("all" or empty = everything).
func (e *Engine) Apply(ctx context.Context, names []string) (*RunRecord, []Outcome, error) {
	return e.Run(ctx, ModeApply, names)
}

// Revert restores the selected modules to their pre-first-apply state.
func (e *Engine) Revert(ctx context.Context, names []string) (*RunRecord, []Outcome, error) {
	return e.Run(ctx, ModeRevert, names)
}

// Statuses reports read-only probe results per module. It never mutates
// host state or the RunRecord.
func (e *Engine) Statuses(ctx context.Context, names []string) (map[string][]ProbeResult, error) {
	return e.orch.Statuses(ctx, names)
}

// ModuleNames lists registered modules in execution order.
func (e *Engine) ModuleNames() []string { return e.reg.Names() }

// ModuleInfo describes one registered module for listings.
type ModuleInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
	Services    []string `json:"services,omitempty"`
}

// Modules describes the registry in execution order.
func (e *Engine) Modules() []ModuleInfo {
	var out []ModuleInfo
	for _, m := range e.reg.Modules() {
		out = append(out, ModuleInfo{
			Name:        m.Name(),
			Description: m.Description(),
			Files:       m.ManagedFiles(),
			Services:    m.ManagedServices(),
		})
	}
	return out
}

// LastRecord loads the persisted RunRecord; nil means never run.
func (e *Engine) LastRecord() (*RunRecord, error) { return e.orch.LastRecord() }

// History returns up to limit recent runs, newest first, or nil when
// the history store is disabled. An enabled but empty store returns an
// empty non-nil slice.
func (e *Engine) History(ctx context.Context, limit int) ([]sqlite.Entry, error) {
	if e.history == nil {
		return nil, nil
	}
	entries, err := e.history.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []sqlite.Entry{}
	}
	return entries, nil
}

// Serve starts the local HTTP API and metrics endpoint.
func (e *Engine) Serve() *http.Server {
	_ = metrics.Register(prometheus.DefaultRegisterer)
	return server.NewServer(e.cfg.Server.Listen, e.cfg.Server.BasePath, e.orch, e.history)
}

// Logger returns the engine's logger for CLI layers to share.
func (e *Engine) Logger() *slog.Logger { return e.log }

// Close releases the history store and log sinks.
func (e *Engine) Close() error {
	var firstErr error
	if e.history != nil {
		firstErr = e.history.Close()
	}
	if e.logCloser != nil {
		if err := e.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
