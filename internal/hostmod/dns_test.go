package hostmod

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nnversace/hosttune/internal/config"
	"github.com/nnversace/hosttune/internal/execx"
)

func dnsCfg() config.DNSConfig {
	return config.DNSConfig{
		Upstreams: []string{"1.1.1.1", "8.8.8.8"},
		Listen:    "127.0.0.1",
		CacheSize: 1000,
	}
}

// newDNSRunner scripts a healthy dnsmasq host.
func newDNSRunner() *execx.FakeRunner {
	runner := execx.NewFakeRunner()
	runner.On("systemctl is-active dnsmasq", execx.Result{ExitCode: 0, Stdout: "active\n"})
	runner.On("ss -lntu", execx.Result{ExitCode: 0, Stdout: "udp UNCONN 0 0 127.0.0.1:53 0.0.0.0:*\n"})
	return runner
}

func TestDNSApply(t *testing.T) {
	runner := newDNSRunner()
	deps, root := newTestDeps(t, runner)

	m := NewDNS(dnsCfg(), deps, root)
	if err := m.Apply(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := readFile(t, filepath.Join(root, "etc/dnsmasq.d/hosttune.conf"))
	for _, want := range []string{
		"no-resolv",
		"server=1.1.1.1",
		"server=8.8.8.8",
		"listen-address=127.0.0.1",
		"cache-size=1000",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
	if !runner.Called("dnsmasq --test") {
		t.Fatal("config not validated")
	}
	if !runner.Called("systemctl restart dnsmasq") {
		t.Fatal("dnsmasq not restarted")
	}
}

func TestDNSApplyRollsBackOnValidationFailure(t *testing.T) {
	runner := newDNSRunner()
	runner.On("dnsmasq --test", execx.Result{ExitCode: 1, Stderr: "bad option"})
	deps, root := newTestDeps(t, runner)
	seed(t, root, "etc/dnsmasq.d/hosttune.conf", "# keep\n")

	m := NewDNS(dnsCfg(), deps, root)
	err := m.Apply(context.Background())
	if KindOf(err) != KindWriteFailed {
		t.Fatalf("err = %v, want write_failed", err)
	}
	if got := readFile(t, filepath.Join(root, "etc/dnsmasq.d/hosttune.conf")); got != "# keep\n" {
		t.Fatalf("drop-in not rolled back:\n%s", got)
	}
	if runner.Called("systemctl restart dnsmasq") {
		t.Fatal("restart must not run after failed validation")
	}
}

func TestDNSStatus(t *testing.T) {
	runner := newDNSRunner()
	deps, _ := newTestDeps(t, runner)

	m := NewDNS(dnsCfg(), deps, t.TempDir())
	probes, err := m.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(probes) != 2 || !probes[0].Matches || !probes[1].Matches {
		t.Fatalf("probes = %+v", probes)
	}
}

func TestDNSRevertStopsAndDisables(t *testing.T) {
	runner := newDNSRunner()
	deps, root := newTestDeps(t, runner)

	m := NewDNS(dnsCfg(), deps, root)
	ctx := context.Background()
	if err := m.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Revert(ctx); err != nil {
		t.Fatal(err)
	}
	if !runner.Called("systemctl stop dnsmasq") || !runner.Called("systemctl disable dnsmasq") {
		t.Fatalf("forwarder not torn down, calls: %v", runner.Calls)
	}
}
