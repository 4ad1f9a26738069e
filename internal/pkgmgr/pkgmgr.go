// Package pkgmgr installs host packages through whichever supported
// package manager the host carries. The reconciler treats installation
// as an opaque external step; packages are never removed on revert.
package pkgmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/nnversace/hosttune/internal/execx"
)

// ErrNoManager is returned when no supported package manager is present.
var ErrNoManager = errors.New("no supported package manager found")

var candidates = []struct {
	tool        string
	installArgs []string
}{
	{"apt-get", []string{"install", "-y"}},
	{"dnf", []string{"install", "-y"}},
	{"yum", []string{"install", "-y"}},
}

type Manager struct {
	runner   execx.Runner
	detected string
}

func New(runner execx.Runner) *Manager { return &Manager{runner: runner} }

// Detect returns the first available package manager tool name.
func (m *Manager) Detect(ctx context.Context) (string, error) {
	if m.detected != "" {
		return m.detected, nil
	}
	for _, c := range candidates {
		if res, err := m.runner.Run(ctx, c.tool, "--version"); err == nil && res.Ok() {
			m.detected = c.tool
			return c.tool, nil
		}
	}
	return "", ErrNoManager
}

// EnsureInstalled installs the named packages. Package managers are
// idempotent for already-installed packages, so no presence check is
// made beforehand.
func (m *Manager) EnsureInstalled(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	tool, err := m.Detect(ctx)
	if err != nil {
		return err
	}
	var args []string
	for _, c := range candidates {
		if c.tool == tool {
			args = append(args, c.installArgs...)
		}
	}
	args = append(args, pkgs...)
	res, err := m.runner.Run(ctx, tool, args...)
	if err != nil {
		return fmt.Errorf("%s install: %w", tool, err)
	}
	if !res.Ok() {
		return fmt.Errorf("%s install %v: exit %d: %s", tool, pkgs, res.ExitCode, res.Combined())
	}
	return nil
}
