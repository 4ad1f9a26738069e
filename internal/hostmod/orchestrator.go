package hostmod

import (
	"context"
	"log/slog"
	"time"

	"github.com/nnversace/hosttune/internal/metrics"
	"github.com/nnversace/hosttune/internal/probe"
	"github.com/nnversace/hosttune/internal/record"
)

// Mode selects what an orchestrator run does to each module.
type Mode string

const (
	ModeApply  Mode = "apply"
	ModeStatus Mode = "status"
	ModeRevert Mode = "revert"
)

// Outcome is the in-memory per-module result of one run.
type Outcome struct {
	Module   string
	State    State
	Result   string // succeeded | failed | skipped
	Kind     Kind
	Err      error
	Duration time.Duration
	Probes   []probe.Result
}

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// HistorySink receives finished run records for the audit trail.
type HistorySink interface {
	Append(ctx context.Context, rec record.RunRecord) error
}

// Options configures an Orchestrator.
type Options struct {
	RecordPath  string
	ToolVersion string
	Logger      *slog.Logger
	Prober      *probe.Prober
	History     HistorySink
}

// Orchestrator executes modules strictly in registry order, one at a
// time. A failing module never aborts the run; its failure is recorded
// and the next module still gets its attempt.
type Orchestrator struct {
	reg  *Registry
	opts Options
	log  *slog.Logger
}

func NewOrchestrator(reg *Registry, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.RecordPath == "" {
		opts.RecordPath = record.DefaultPath
	}
	return &Orchestrator{reg: reg, opts: opts, log: log}
}

// Registry exposes the module set for CLIs and the HTTP API.
func (o *Orchestrator) Registry() *Registry { return o.reg }

// LastRecord loads the persisted RunRecord; nil means never run.
func (o *Orchestrator) LastRecord() (*record.RunRecord, error) {
	return record.Load(o.opts.RecordPath)
}

// Run executes mode over the selected modules and, for apply and revert,
// persists a RunRecord. Cancelling ctx stops the run between modules:
// the module in flight finishes its backup/write/activate sequence so no
// file is left half-written, and the record is marked interrupted.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, names []string) (*record.RunRecord, []Outcome, error) {
	mods, err := o.reg.Select(names)
	if err != nil {
		return nil, nil, err
	}

	rec := &record.RunRecord{
		SchemaVersion: record.SchemaVersion,
		ToolVersion:   o.opts.ToolVersion,
		Timestamp:     time.Now().UTC(),
		Mode:          string(mode),
		Succeeded:     []string{},
		Failed:        []string{},
	}
	var outcomes []Outcome

	for i, m := range mods {
		if ctx.Err() != nil {
			rec.Interrupted = true
			for _, rest := range mods[i:] {
				outcomes = append(outcomes, Outcome{Module: rest.Name(), State: StateNotApplied, Result: ResultSkipped})
			}
			break
		}
		outcomes = append(outcomes, o.runOne(ctx, mode, m))
	}

	for _, oc := range outcomes {
		rec.Outcomes = append(rec.Outcomes, toRecordOutcome(o.reg, oc))
		switch oc.Result {
		case ResultSucceeded:
			rec.Succeeded = append(rec.Succeeded, oc.Module)
		case ResultFailed:
			rec.Failed = append(rec.Failed, oc.Module)
		}
	}
	rec.System = o.snapshot(ctx)

	if mode != ModeStatus {
		if err := rec.Save(o.opts.RecordPath); err != nil {
			o.log.Error("persist run record", "path", o.opts.RecordPath, "error", err)
		}
		if o.opts.History != nil {
			if err := o.opts.History.Append(context.WithoutCancel(ctx), *rec); err != nil {
				o.log.Warn("append run history", "error", err)
			}
		}
	}
	return rec, outcomes, nil
}

// runOne executes a single module. The module's own sequence runs under
// a non-cancellable context so an interrupt cannot abandon it between
// backup and activation.
func (o *Orchestrator) runOne(ctx context.Context, mode Mode, m Module) Outcome {
	mctx := context.WithoutCancel(ctx)
	start := time.Now()
	oc := Outcome{Module: m.Name()}

	switch mode {
	case ModeApply:
		oc.State = StateApplying
		metrics.SetState(m.Name(), string(StateApplying))
		err := m.Apply(mctx)
		oc.Duration = time.Since(start)
		if err != nil {
			oc.State = StateApplyFailed
			oc.Result = ResultFailed
			oc.Kind = KindOf(err)
			oc.Err = err
			if oc.Kind == KindCapabilityUnsupported {
				oc.Result = ResultSkipped
			}
			o.log.Error("module apply failed", "module", m.Name(), "kind", string(oc.Kind), "error", err)
		} else {
			oc.State = StateApplied
			oc.Result = ResultSucceeded
			o.log.Info("module applied", "module", m.Name(), "duration", oc.Duration)
		}
		metrics.ObserveApply(m.Name(), oc.Result, oc.Duration)
		metrics.SetState(m.Name(), string(oc.State))

	case ModeRevert:
		oc.State = StateReverting
		metrics.SetState(m.Name(), string(StateReverting))
		err := m.Revert(mctx)
		oc.Duration = time.Since(start)
		if err != nil {
			oc.State = StateApplied
			oc.Result = ResultFailed
			oc.Kind = KindOf(err)
			oc.Err = err
			o.log.Error("module revert failed", "module", m.Name(), "error", err)
		} else {
			oc.State = StateReverted
			oc.Result = ResultSucceeded
			o.log.Info("module reverted", "module", m.Name())
		}
		metrics.ObserveRevert(m.Name(), oc.Result)
		metrics.SetState(m.Name(), string(oc.State))

	case ModeStatus:
		probes, err := m.Status(mctx)
		oc.Duration = time.Since(start)
		oc.Probes = probes
		if err != nil {
			oc.Result = ResultFailed
			oc.Kind = KindOf(err)
			oc.Err = err
		} else {
			oc.Result = ResultSucceeded
		}
		oc.State = stateFromProbes(probes, err)
	}
	return oc
}

// Statuses runs read-only status for the selection without touching the
// RunRecord.
func (o *Orchestrator) Statuses(ctx context.Context, names []string) (map[string][]probe.Result, error) {
	mods, err := o.reg.Select(names)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]probe.Result, len(mods))
	for _, m := range mods {
		probes, err := m.Status(ctx)
		if err != nil {
			return nil, err
		}
		out[m.Name()] = probes
	}
	return out, nil
}

func (o *Orchestrator) snapshot(ctx context.Context) record.SystemInfo {
	if o.opts.Prober == nil {
		return record.SystemInfo{}
	}
	var info record.SystemInfo
	info.KernelRelease, _ = o.opts.Prober.Probe(ctx, probe.KeyKernelRelease)
	info.CongestionControl, _ = o.opts.Prober.Probe(ctx, probe.KeyCongestionControl)
	info.SSHPort, _ = o.opts.Prober.Probe(ctx, probe.KeySSHPort)
	return info
}

func stateFromProbes(probes []probe.Result, err error) State {
	if err != nil {
		return StateNotApplied
	}
	for _, p := range probes {
		if !p.Matches {
			return StateNotApplied
		}
	}
	if len(probes) == 0 {
		return StateNotApplied
	}
	return StateApplied
}

func toRecordOutcome(reg *Registry, oc Outcome) record.ModuleOutcome {
	ro := record.ModuleOutcome{
		Name:     oc.Module,
		Result:   oc.Result,
		Kind:     string(oc.Kind),
		Duration: oc.Duration.String(),
	}
	if oc.Err != nil {
		ro.Error = oc.Err.Error()
	}
	if m, ok := reg.Get(oc.Module); ok {
		ro.Files = m.ManagedFiles()
	}
	return ro
}
