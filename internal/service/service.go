// Package service wraps the host's service manager behind a small
// start/stop/enable/reload surface with a bounded readiness wait.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nnversace/hosttune/internal/execx"
)

// DefaultPollInterval is how often EnsureRunning re-checks readiness.
const DefaultPollInterval = 2 * time.Second

// UnreadyError reports a service that failed to become ready within the
// allowed wait, carrying the last known status output for diagnostics.
type UnreadyError struct {
	Service    string
	LastStatus string
}

func (e *UnreadyError) Error() string {
	return fmt.Sprintf("service %s not ready in time: %s", e.Service, e.LastStatus)
}

// Controller drives systemctl. It is a thin, re-entrant wrapper: asking
// for a state the service is already in is a cheap no-op.
type Controller struct {
	runner   execx.Runner
	interval time.Duration
}

func NewController(runner execx.Runner) *Controller {
	return &Controller{runner: runner, interval: DefaultPollInterval}
}

// SetPollInterval overrides the readiness poll interval; tests use this
// to avoid real waits.
func (c *Controller) SetPollInterval(d time.Duration) { c.interval = d }

// IsActive reports whether the service manager considers name active.
func (c *Controller) IsActive(ctx context.Context, name string) bool {
	res, err := c.runner.Run(ctx, "systemctl", "is-active", name)
	return err == nil && res.Ok() && strings.TrimSpace(res.Stdout) == "active"
}

// EnsureRunning enables and starts name, then polls readinessProbe until
// it reports true or maxWait elapses. An already-active, already-ready
// service returns after one status query without touching the service.
func (c *Controller) EnsureRunning(ctx context.Context, name string, readinessProbe func() bool, maxWait time.Duration) error {
	if c.IsActive(ctx, name) && (readinessProbe == nil || readinessProbe()) {
		return nil
	}
	if err := c.Enable(ctx, name); err != nil {
		return err
	}
	if err := c.Start(ctx, name); err != nil {
		return err
	}
	if readinessProbe == nil {
		readinessProbe = func() bool { return c.IsActive(ctx, name) }
	}
	deadline := time.Now().Add(maxWait)
	for {
		if readinessProbe() {
			return nil
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
	status, _ := c.runner.Run(ctx, "systemctl", "status", "--no-pager", name)
	return &UnreadyError{Service: name, LastStatus: status.Combined()}
}

func (c *Controller) Start(ctx context.Context, name string) error {
	return c.run(ctx, "start", name)
}

func (c *Controller) Stop(ctx context.Context, name string) error {
	return c.run(ctx, "stop", name)
}

// Restart restarts the service unconditionally.
func (c *Controller) Restart(ctx context.Context, name string) error {
	return c.run(ctx, "restart", name)
}

// Reload asks the service to re-read its configuration without dropping
// active connections, for services that support it.
func (c *Controller) Reload(ctx context.Context, name string) error {
	return c.run(ctx, "reload", name)
}

func (c *Controller) Enable(ctx context.Context, name string) error {
	return c.run(ctx, "enable", name)
}

func (c *Controller) Disable(ctx context.Context, name string) error {
	return c.run(ctx, "disable", name)
}

func (c *Controller) run(ctx context.Context, verb, name string) error {
	res, err := c.runner.Run(ctx, "systemctl", verb, name)
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, name, err)
	}
	if !res.Ok() {
		return fmt.Errorf("systemctl %s %s: exit %d: %s", verb, name, res.ExitCode, res.Combined())
	}
	return nil
}
