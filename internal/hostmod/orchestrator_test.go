package hostmod

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nnversace/hosttune/internal/record"
)

type memorySink struct {
	records []record.RunRecord
}

func (s *memorySink) Append(_ context.Context, rec record.RunRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func newTestOrchestrator(t *testing.T, mods ...Module) (*Orchestrator, string) {
	t.Helper()
	reg, err := NewRegistry(mods...)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "run.json")
	return NewOrchestrator(reg, Options{
		RecordPath: path,
		Logger:     slog.New(slog.DiscardHandler),
	}), path
}

func TestApplyFailureDoesNotAbortRun(t *testing.T) {
	a := &stubModule{name: "a"}
	b := &stubModule{name: "b", applyErr: Ef("b", KindWriteFailed, "disk full")}
	c := &stubModule{name: "c"}
	orch, _ := newTestOrchestrator(t, a, b, c)

	rec, outcomes, err := orch.Run(context.Background(), ModeApply, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.applied != 1 || b.applied != 1 || c.applied != 1 {
		t.Fatalf("apply counts = %d/%d/%d", a.applied, b.applied, c.applied)
	}
	if len(rec.Succeeded) != 2 || len(rec.Failed) != 1 || rec.Failed[0] != "b" {
		t.Fatalf("succeeded=%v failed=%v", rec.Succeeded, rec.Failed)
	}
	if outcomes[1].Result != ResultFailed || outcomes[1].Kind != KindWriteFailed {
		t.Fatalf("outcome b = %+v", outcomes[1])
	}
	if outcomes[1].State != StateApplyFailed {
		t.Fatalf("state b = %s", outcomes[1].State)
	}
}

func TestUnsupportedCapabilityIsSkippedNotFailed(t *testing.T) {
	m := &stubModule{name: "tuning", applyErr: Ef("tuning", KindCapabilityUnsupported, "bbr not available")}
	orch, _ := newTestOrchestrator(t, m)

	rec, outcomes, err := orch.Run(context.Background(), ModeApply, nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Result != ResultSkipped {
		t.Fatalf("result = %s", outcomes[0].Result)
	}
	if len(rec.Failed) != 0 {
		t.Fatalf("failed = %v", rec.Failed)
	}
}

func TestApplyPersistsRecord(t *testing.T) {
	orch, path := newTestOrchestrator(t, &stubModule{name: "a"})

	if _, _, err := orch.Run(context.Background(), ModeApply, nil); err != nil {
		t.Fatal(err)
	}
	loaded, err := record.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.Mode != "apply" || loaded.SchemaVersion != record.SchemaVersion {
		t.Fatalf("loaded = %+v", loaded)
	}
	if len(loaded.Succeeded) != 1 || loaded.Succeeded[0] != "a" {
		t.Fatalf("succeeded = %v", loaded.Succeeded)
	}
}

func TestStatusWritesNoRecord(t *testing.T) {
	orch, path := newTestOrchestrator(t, &stubModule{name: "a"})

	_, outcomes, err := orch.Run(context.Background(), ModeStatus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].State != StateApplied {
		t.Fatalf("state = %s", outcomes[0].State)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("status must not persist a record, stat err = %v", err)
	}
}

func TestCancelledContextMarksRemainingSkipped(t *testing.T) {
	a := &stubModule{name: "a"}
	b := &stubModule{name: "b"}
	orch, _ := newTestOrchestrator(t, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, outcomes, err := orch.Run(ctx, ModeApply, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Interrupted {
		t.Fatal("record not marked interrupted")
	}
	if a.applied != 0 || b.applied != 0 {
		t.Fatalf("modules ran after cancel: %d/%d", a.applied, b.applied)
	}
	for _, oc := range outcomes {
		if oc.Result != ResultSkipped {
			t.Fatalf("outcome %s = %s", oc.Module, oc.Result)
		}
	}
}

func TestRevertRunsInOrder(t *testing.T) {
	a := &stubModule{name: "a"}
	b := &stubModule{name: "b"}
	orch, _ := newTestOrchestrator(t, a, b)

	rec, _, err := orch.Run(context.Background(), ModeRevert, []string{"b"})
	if err != nil {
		t.Fatal(err)
	}
	if a.reverted != 0 || b.reverted != 1 {
		t.Fatalf("revert counts = %d/%d", a.reverted, b.reverted)
	}
	if rec.Mode != "revert" || len(rec.Succeeded) != 1 {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestHistorySinkReceivesRecord(t *testing.T) {
	reg, err := NewRegistry(&stubModule{name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	sink := &memorySink{}
	orch := NewOrchestrator(reg, Options{
		RecordPath: filepath.Join(t.TempDir(), "run.json"),
		Logger:     slog.New(slog.DiscardHandler),
		History:    sink,
	})

	if _, _, err := orch.Run(context.Background(), ModeApply, nil); err != nil {
		t.Fatal(err)
	}
	if len(sink.records) != 1 || sink.records[0].Mode != "apply" {
		t.Fatalf("sink = %+v", sink.records)
	}
}

func TestSelectUnknownModuleFailsRun(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubModule{name: "a"})
	if _, _, err := orch.Run(context.Background(), ModeApply, []string{"ghost"}); err == nil {
		t.Fatal("expected error for unknown module")
	}
}
