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
	zramMarker  = "Hosttune ZRAM"
	zramService = "zramswap"
	zramPackage = "zram-tools"

	zramReadyWait = 30 * time.Second
)

// ZRAMModule provisions compressed swap: installs zram-tools, writes the
// zramswap defaults block, restarts the service, and verifies a zram
// swap device is actually active.
type ZRAMModule struct {
	cfg          config.ZRAMConfig
	deps         Deps
	defaultsPath string
}

func NewZRAM(cfg config.ZRAMConfig, deps Deps, root string) *ZRAMModule {
	return &ZRAMModule{
		cfg:          cfg,
		deps:         deps,
		defaultsPath: filepath.Join(root, "etc/default/zramswap"),
	}
}

func (m *ZRAMModule) Name() string { return "zram" }

func (m *ZRAMModule) Description() string {
	return "compressed swap via zram-tools"
}

func (m *ZRAMModule) ManagedFiles() []string    { return []string{m.defaultsPath} }
func (m *ZRAMModule) ManagedServices() []string { return []string{zramService} }

func (m *ZRAMModule) Apply(ctx context.Context) error {
	// The package is a hard prerequisite; without it the host cannot
	// support the feature, and nothing has been touched yet.
	if err := m.deps.Packages.EnsureInstalled(ctx, zramPackage); err != nil {
		return E(m.Name(), KindCapabilityUnsupported, err)
	}

	if err := m.deps.Backup.Backup(m.defaultsPath); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := confblock.WriteBlock(m.defaultsPath, zramMarker, m.body()); err != nil {
		return E(m.Name(), KindWriteFailed, err)
	}

	if err := m.deps.Services.Restart(ctx, zramService); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	ready := func() bool {
		v, ok := m.deps.Probe.Probe(ctx, probe.KeyZRAMActive)
		return ok && v == "active"
	}
	if err := m.deps.Services.EnsureRunning(ctx, zramService, ready, zramReadyWait); err != nil {
		return E(m.Name(), KindServiceUnready, err)
	}

	active := m.deps.Probe.Check(ctx, probe.KeyZRAMActive, "active")
	if !active.Matches {
		return Ef(m.Name(), KindVerificationFailed, "zram_active=%s, want active", active.Value)
	}
	return nil
}

func (m *ZRAMModule) Status(ctx context.Context) ([]probe.Result, error) {
	return []probe.Result{
		m.deps.Probe.Check(ctx, probe.KeyZRAMActive, "active"),
		m.deps.Probe.Check(ctx, probe.KeyServiceActive+":"+zramService, "active"),
		m.deps.Probe.Observe(ctx, probe.KeySwapDevices),
	}, nil
}

// Revert restores the defaults file and turns the swap service off.
// The package stays installed; package removal is outside the revert
// contract.
func (m *ZRAMModule) Revert(ctx context.Context) error {
	if err := m.deps.Backup.Restore(m.defaultsPath, backupOriginal); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := m.deps.Services.Stop(ctx, zramService); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	if err := m.deps.Services.Disable(ctx, zramService); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	return nil
}

func (m *ZRAMModule) body() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "PERCENT=%d\n", m.cfg.Percent)
	fmt.Fprintf(&b, "ALGO=%s\n", m.cfg.Algorithm)
	fmt.Fprintf(&b, "PRIORITY=%d\n", m.cfg.Priority)
	return []byte(b.String())
}
