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
	timesyncMarker  = "Hosttune TimeSync"
	timesyncPackage = "chrony"

	timesyncReadyWait = 20 * time.Second
)

// TimeSyncModule keeps the clock disciplined with chrony: installs the
// package, writes the NTP pool drop-in, and makes sure the daemon runs.
type TimeSyncModule struct {
	cfg      config.TimeSyncConfig
	deps     Deps
	confPath string
}

func NewTimeSync(cfg config.TimeSyncConfig, deps Deps, root string) *TimeSyncModule {
	return &TimeSyncModule{
		cfg:      cfg,
		deps:     deps,
		confPath: filepath.Join(root, "etc/chrony/conf.d/hosttune.conf"),
	}
}

func (m *TimeSyncModule) Name() string { return "time-sync" }

func (m *TimeSyncModule) Description() string {
	return "NTP time synchronization via chrony"
}

func (m *TimeSyncModule) ManagedFiles() []string    { return []string{m.confPath} }
func (m *TimeSyncModule) ManagedServices() []string { return []string{m.cfg.Service} }

func (m *TimeSyncModule) Apply(ctx context.Context) error {
	if err := m.deps.Packages.EnsureInstalled(ctx, timesyncPackage); err != nil {
		return E(m.Name(), KindCapabilityUnsupported, err)
	}

	if err := m.deps.Backup.Backup(m.confPath); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := confblock.WriteBlock(m.confPath, timesyncMarker, m.body()); err != nil {
		return E(m.Name(), KindWriteFailed, err)
	}

	if err := m.deps.Services.Restart(ctx, m.cfg.Service); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	if err := m.deps.Services.EnsureRunning(ctx, m.cfg.Service, nil, timesyncReadyWait); err != nil {
		return E(m.Name(), KindServiceUnready, err)
	}

	svc := m.deps.Probe.Check(ctx, probe.KeyServiceActive+":"+m.cfg.Service, "active")
	if !svc.Matches {
		return Ef(m.Name(), KindVerificationFailed, "%s is %s, want active", m.cfg.Service, svc.Value)
	}
	return nil
}

func (m *TimeSyncModule) Status(ctx context.Context) ([]probe.Result, error) {
	return []probe.Result{
		m.deps.Probe.Check(ctx, probe.KeyServiceActive+":"+m.cfg.Service, "active"),
	}, nil
}

// Revert restores the drop-in and reloads chrony. The daemon is left
// enabled: it may well have predated us, and a running time daemon with
// distribution defaults is the pre-change state for most hosts.
func (m *TimeSyncModule) Revert(ctx context.Context) error {
	if err := m.deps.Backup.Restore(m.confPath, backupOriginal); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if m.deps.Services.IsActive(ctx, m.cfg.Service) {
		if err := m.deps.Services.Restart(ctx, m.cfg.Service); err != nil {
			return E(m.Name(), KindActivationFailed, err)
		}
	}
	return nil
}

func (m *TimeSyncModule) body() []byte {
	var b strings.Builder
	for _, p := range m.cfg.Pools {
		fmt.Fprintf(&b, "pool %s iburst\n", p)
	}
	b.WriteString("makestep 1.0 3\n")
	return []byte(b.String())
}
