package hostmod

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nnversace/hosttune/internal/confblock"
	"github.com/nnversace/hosttune/internal/config"
	"github.com/nnversace/hosttune/internal/probe"
)

const sshMarker = "Hosttune SSH"

// SSHModule hardens sshd: port, authentication policy, and keepalives,
// written as one marker block and validated with sshd -t before the
// daemon is asked to reload.
type SSHModule struct {
	cfg        config.SSHConfig
	deps       Deps
	configPath string
}

func NewSSH(cfg config.SSHConfig, deps Deps, root string) *SSHModule {
	return &SSHModule{
		cfg:        cfg,
		deps:       deps,
		configPath: filepath.Join(root, "etc/ssh/sshd_config"),
	}
}

func (m *SSHModule) Name() string { return "ssh-security" }

func (m *SSHModule) Description() string {
	return "sshd hardening: port, auth policy, keepalives"
}

func (m *SSHModule) ManagedFiles() []string    { return []string{m.configPath} }
func (m *SSHModule) ManagedServices() []string { return []string{m.cfg.Service} }

func (m *SSHModule) Apply(ctx context.Context) error {
	if err := m.deps.Backup.Backup(m.configPath); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := confblock.WriteBlock(m.configPath, sshMarker, m.body()); err != nil {
		return E(m.Name(), KindWriteFailed, err)
	}

	// validate before activation; an invalid config must never reach a
	// reload, so roll the file back to the pre-run snapshot on failure
	if res, err := m.deps.Runner.Run(ctx, "sshd", "-t", "-f", m.configPath); err != nil || !res.Ok() {
		restoreErr := m.deps.Backup.Restore(m.configPath, backupLastRun)
		detail := res.Combined()
		if err != nil {
			detail = err.Error()
		}
		if restoreErr != nil {
			return Ef(m.Name(), KindWriteFailed, "sshd -t rejected config (%s) and rollback failed: %v", detail, restoreErr)
		}
		return Ef(m.Name(), KindWriteFailed, "sshd -t rejected config, rolled back: %s", detail)
	}

	if err := m.deps.Services.Reload(ctx, m.cfg.Service); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}

	port := m.deps.Probe.Check(ctx, probe.KeySSHPort, strconv.Itoa(m.cfg.Port))
	if !port.Matches {
		return Ef(m.Name(), KindVerificationFailed, "ssh_port=%s, want %d", port.Value, m.cfg.Port)
	}
	return nil
}

func (m *SSHModule) Status(ctx context.Context) ([]probe.Result, error) {
	return []probe.Result{
		m.deps.Probe.Check(ctx, probe.KeySSHPort, strconv.Itoa(m.cfg.Port)),
		m.deps.Probe.Check(ctx, probe.KeyServiceActive+":"+m.cfg.Service, "active"),
	}, nil
}

func (m *SSHModule) Revert(ctx context.Context) error {
	if err := m.deps.Backup.Restore(m.configPath, backupOriginal); err != nil {
		return E(m.Name(), KindBackupFailed, err)
	}
	if err := m.deps.Services.Reload(ctx, m.cfg.Service); err != nil {
		return E(m.Name(), KindActivationFailed, err)
	}
	return nil
}

func (m *SSHModule) body() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Port %d\n", m.cfg.Port)
	fmt.Fprintf(&b, "PasswordAuthentication %s\n", yesNo(m.cfg.PasswordAuth))
	fmt.Fprintf(&b, "PermitRootLogin %s\n", m.cfg.PermitRootLogin)
	fmt.Fprintf(&b, "MaxAuthTries %d\n", m.cfg.MaxAuthTries)
	fmt.Fprintf(&b, "ClientAliveInterval %d\n", m.cfg.ClientAliveInterval)
	b.WriteString("ClientAliveCountMax 3\n")
	return []byte(b.String())
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
