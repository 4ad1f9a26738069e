package hostmod

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nnversace/hosttune/internal/confblock"
	"github.com/nnversace/hosttune/internal/config"
	"github.com/nnversace/hosttune/internal/probe"
)

const networkMarker = "Hosttune Network"

// NetworkModule reconciles kernel network tuning: congestion control,
// default qdisc, MPTCP, and socket buffer ceilings, written as one
// marker block in sysctl.conf and activated with sysctl -p.
type NetworkModule struct {
	cfg        config.NetworkConfig
	deps       Deps
	sysctlPath string
}

func NewNetwork(cfg config.NetworkConfig, deps Deps, root string) *NetworkModule {
	return &NetworkModule{
		cfg:        cfg,
		deps:       deps,
		sysctlPath: filepath.Join(root, "etc/sysctl.conf"),
	}
}

func (m *NetworkModule) Name() string { return "network" }

func (m *NetworkModule) Description() string {
	return "kernel network tuning: congestion control, qdisc, MPTCP, buffers"
}

func (m *NetworkModule) ManagedFiles() []string    { return []string{m.sysctlPath} }
func (m *NetworkModule) ManagedServices() []string { return nil }

func (m *NetworkModule) Apply(ctx context.Context) error {
	if m.cfg.CongestionControl == "bbr" {
		// hard capability: abort before touching anything
		avail, ok := m.deps.Probe.Probe(ctx, probe.KeyBBRAvailable)
		if !ok {
			return Ef(m.Name(), KindCapabilityUnsupported, "congestion control sysctls not present on this kernel")
		}
		if avail != "true" {
			return Ef(m.Name(), KindCapabilityUnsupported, "bbr congestion control not available")
		}
	}

	// advisory capability: silently drop MPTCP lines on kernels without it
	mptcp := false
	if m.cfg.EnableMPTCP {
		if _, ok := m.deps.Probe.Probe(ctx, probe.KeyMPTCPEnabled); ok {
			mptcp = true
		} else {
			m.deps.logger().Info("mptcp unsupported on this kernel, omitting", "module", m.Name())
		}
	}

	if err := m.deps.Backup.Backup(m.sysctlPath); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := confblock.WriteBlock(m.sysctlPath, networkMarker, m.body(mptcp)); err != nil {
		return E(m.Name(), KindWriteFailed, err)
	}

	res, err := m.deps.Runner.Run(ctx, "sysctl", "-p", m.sysctlPath)
	if err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	if !res.Ok() {
		return Ef(m.Name(), KindActivationFailed, "sysctl -p exit %d: %s", res.ExitCode, res.Combined())
	}

	for _, check := range m.checks(ctx, mptcp) {
		if !check.Matches {
			return Ef(m.Name(), KindVerificationFailed, "%s=%s, want %s", check.Key, check.Value, check.Want)
		}
	}
	return nil
}

func (m *NetworkModule) Status(ctx context.Context) ([]probe.Result, error) {
	mptcp := m.cfg.EnableMPTCP && confblock.HasBlock(m.sysctlPath, networkMarker) &&
		strings.Contains(string(confblock.ExtractBlock(m.sysctlPath, networkMarker)), "mptcp")
	return m.checks(ctx, mptcp), nil
}

func (m *NetworkModule) Revert(ctx context.Context) error {
	if err := m.deps.Backup.Restore(m.sysctlPath, backupOriginal); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	// reload whatever the restored file declares; a missing file is fine
	res, err := m.deps.Runner.Run(ctx, "sysctl", "--system")
	if err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	if !res.Ok() {
		return Ef(m.Name(), KindActivationFailed, "sysctl --system exit %d: %s", res.ExitCode, res.Combined())
	}
	return nil
}

func (m *NetworkModule) body(mptcp bool) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "net.core.default_qdisc = %s\n", m.cfg.Qdisc)
	fmt.Fprintf(&b, "net.ipv4.tcp_congestion_control = %s\n", m.cfg.CongestionControl)
	if mptcp {
		b.WriteString("net.mptcp.enabled = 1\n")
	}
	if m.cfg.RmemMax > 0 {
		fmt.Fprintf(&b, "net.core.rmem_max = %d\n", m.cfg.RmemMax)
	}
	if m.cfg.WmemMax > 0 {
		fmt.Fprintf(&b, "net.core.wmem_max = %d\n", m.cfg.WmemMax)
	}
	return []byte(b.String())
}

func (m *NetworkModule) checks(ctx context.Context, mptcp bool) []probe.Result {
	checks := []probe.Result{
		m.deps.Probe.Check(ctx, probe.KeyCongestionControl, m.cfg.CongestionControl),
		m.deps.Probe.Check(ctx, probe.KeyDefaultQdisc, m.cfg.Qdisc),
	}
	if mptcp {
		checks = append(checks, m.deps.Probe.Check(ctx, probe.KeyMPTCPEnabled, "1"))
	}
	return checks
}
