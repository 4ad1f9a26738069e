package main

import (
	"strings"
	"testing"
	"time"

	"github.com/nnversace/hosttune"
)

func TestPrintSummary(t *testing.T) {
	outcomes := []hosttune.Outcome{
		{Module: "network", Result: "succeeded", Duration: 120 * time.Millisecond},
		{Module: "zram", Result: "skipped", Kind: "capability_unsupported",
			Err: hosttuneErr("zram", "no package manager")},
		{Module: "dns-forwarder", Result: "failed", Kind: "activation_failed",
			Err: hosttuneErr("dns-forwarder", "restart exit 1")},
	}
	rec := &hosttune.RunRecord{
		Succeeded: []string{"network"},
		Failed:    []string{"dns-forwarder"},
	}

	var b strings.Builder
	printSummary(&b, "apply", outcomes, rec)
	out := b.String()

	for _, want := range []string{
		"apply summary:",
		"[ok]",
		"network",
		"[skipped]",
		"no package manager",
		"[FAILED]",
		"activation_failed",
		"1 succeeded, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "interrupted") {
		t.Fatal("uninterrupted run rendered as interrupted")
	}
}

func TestPrintSummaryInterrupted(t *testing.T) {
	rec := &hosttune.RunRecord{Interrupted: true, Succeeded: []string{}, Failed: []string{}}
	var b strings.Builder
	printSummary(&b, "apply", nil, rec)
	if !strings.Contains(b.String(), "run interrupted") {
		t.Fatalf("missing interrupt note in:\n%s", b.String())
	}
}

func TestPrintStatuses(t *testing.T) {
	statuses := map[string][]hosttune.ProbeResult{
		"network": {
			{Key: "tcp_congestion_control", Value: "bbr", Want: "bbr", OK: true, Matches: true},
			{Key: "default_qdisc", Value: "fq_codel", Want: "fq", OK: true},
			{Key: "mptcp_enabled", OK: false},
		},
		"zram": {
			{Key: "swap_devices", Value: "/dev/zram0", OK: true, Matches: true},
		},
	}

	var b strings.Builder
	printStatuses(&b, []string{"zram", "network"}, statuses)
	out := b.String()

	// requested order wins
	if strings.Index(out, "zram:") > strings.Index(out, "network:") {
		t.Fatalf("order wrong:\n%s", out)
	}
	for _, want := range []string{
		"tcp_congestion_control=bbr",
		"matches",
		"default_qdisc=fq_codel",
		"want fq",
		"unsupported",
		"/dev/zram0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

type fakeErr struct{ msg string }

func (e fakeErr) Error() string { return e.msg }

func hosttuneErr(module, msg string) error {
	return fakeErr{msg: module + ": " + msg}
}
