// Package hostmod defines the reconciliation unit (Module), the ordered
// module registry, and the orchestrator that drives apply/status/revert
// runs over them.
package hostmod

import (
	"context"
	"log/slog"

	"github.com/nnversace/hosttune/internal/backup"
	"github.com/nnversace/hosttune/internal/execx"
	"github.com/nnversace/hosttune/internal/pkgmgr"
	"github.com/nnversace/hosttune/internal/probe"
	"github.com/nnversace/hosttune/internal/service"
)

// State is the explicit module lifecycle state. Transitions are one-shot
// per invocation; there is no internal retry loop beyond the bounded
// readiness polling inside the service controller.
type State string

const (
	StateNotApplied  State = "not_applied"
	StateApplying    State = "applying"
	StateApplied     State = "applied"
	StateApplyFailed State = "apply_failed"
	StateReverting   State = "reverting"
	StateReverted    State = "reverted"
)

// Module is the unit of reconciliation: probe, apply with backup,
// verify, and revert, over a declared set of files and services.
// Apply and Revert return *Error; Status must never mutate host state.
type Module interface {
	Name() string
	Description() string
	// ManagedFiles lists every path the module may overwrite. No two
	// registered modules may declare the same path.
	ManagedFiles() []string
	// ManagedServices lists service names the module may start or stop.
	ManagedServices() []string
	Apply(ctx context.Context) error
	Status(ctx context.Context) ([]probe.Result, error)
	Revert(ctx context.Context) error
}

// Deps bundles the collaborators a module composes. Modules receive
// only shared read/execute facilities here; the files and services each
// module owns are declared on the module itself.
type Deps struct {
	Probe    *probe.Prober
	Backup   *backup.Store
	Services *service.Controller
	Packages *pkgmgr.Manager
	Runner   execx.Runner
	Logger   *slog.Logger
}

// backup generation aliases, to keep module code terse
const (
	backupOriginal = backup.Original
	backupLastRun  = backup.LastRun
)

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
