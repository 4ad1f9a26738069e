package hostmod

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nnversace/hosttune/internal/confblock"
	"github.com/nnversace/hosttune/internal/config"
	"github.com/nnversace/hosttune/internal/probe"
)

const (
	dnsMarker  = "Hosttune DNS"
	dnsService = "dnsmasq"
	dnsPackage = "dnsmasq"

	dnsReadyWait = 20 * time.Second
)

// DNSModule configures a local caching DNS forwarder on top of dnsmasq.
// The drop-in file is wholly owned by this module but still written as a
// marker block so apply stays idempotent and revert surgical.
type DNSModule struct {
	cfg      config.DNSConfig
	deps     Deps
	confPath string
}

func NewDNS(cfg config.DNSConfig, deps Deps, root string) *DNSModule {
	return &DNSModule{
		cfg:      cfg,
		deps:     deps,
		confPath: filepath.Join(root, "etc/dnsmasq.d/hosttune.conf"),
	}
}

func (m *DNSModule) Name() string { return "dns-forwarder" }

func (m *DNSModule) Description() string {
	return "local caching DNS forwarder via dnsmasq"
}

func (m *DNSModule) ManagedFiles() []string    { return []string{m.confPath} }
func (m *DNSModule) ManagedServices() []string { return []string{dnsService} }

func (m *DNSModule) Apply(ctx context.Context) error {
	if err := m.deps.Packages.EnsureInstalled(ctx, dnsPackage); err != nil {
		return E(m.Name(), KindCapabilityUnsupported, err)
	}

	if err := m.deps.Backup.Backup(m.confPath); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := confblock.WriteBlock(m.confPath, dnsMarker, m.body()); err != nil {
		return E(m.Name(), KindWriteFailed, err)
	}

	// dnsmasq validates its whole config tree; roll back on rejection
	if res, err := m.deps.Runner.Run(ctx, "dnsmasq", "--test"); err != nil || !res.Ok() {
		restoreErr := m.deps.Backup.Restore(m.confPath, backupLastRun)
		detail := res.Combined()
		if err != nil {
			detail = err.Error()
		}
		if restoreErr != nil {
			return Ef(m.Name(), KindWriteFailed, "dnsmasq --test rejected config (%s) and rollback failed: %v", detail, restoreErr)
		}
		return Ef(m.Name(), KindWriteFailed, "dnsmasq --test rejected config, rolled back: %s", detail)
	}

	if err := m.deps.Services.Restart(ctx, dnsService); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	ready := func() bool {
		v, ok := m.deps.Probe.Probe(ctx, probe.KeyDNSListener)
		return ok && v == "listening"
	}
	if err := m.deps.Services.EnsureRunning(ctx, dnsService, ready, dnsReadyWait); err != nil {
		return E(m.Name(), KindServiceUnready, err)
	}

	svc := m.deps.Probe.Check(ctx, probe.KeyServiceActive+":"+dnsService, "active")
	if !svc.Matches {
		return Ef(m.Name(), KindVerificationFailed, "dnsmasq is %s, want active", svc.Value)
	}
	return nil
}

func (m *DNSModule) Status(ctx context.Context) ([]probe.Result, error) {
	return []probe.Result{
		m.deps.Probe.Check(ctx, probe.KeyServiceActive+":"+dnsService, "active"),
		m.deps.Probe.Check(ctx, probe.KeyDNSListener, "listening"),
	}, nil
}

// Revert removes our drop-in and stops the forwarder we enabled. The
// dnsmasq package itself stays installed.
func (m *DNSModule) Revert(ctx context.Context) error {
	if err := m.deps.Backup.Restore(m.confPath, backupOriginal); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := m.deps.Services.Stop(ctx, dnsService); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	if err := m.deps.Services.Disable(ctx, dnsService); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	return nil
}

func (m *DNSModule) body() []byte {
	var b strings.Builder
	b.WriteString("no-resolv\n")
	for _, u := range m.cfg.Upstreams {
		fmt.Fprintf(&b, "server=%s\n", u)
	}
	fmt.Fprintf(&b, "listen-address=%s\n", m.cfg.Listen)
	fmt.Fprintf(&b, "cache-size=%d\n", m.cfg.CacheSize)
	return []byte(b.String())
}
