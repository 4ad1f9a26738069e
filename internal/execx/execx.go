package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Result captures the outcome of one external command invocation.
// ExitCode is -1 when the command could not be started at all.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the command ran and exited zero.
func (r Result) Ok() bool { return r.ExitCode == 0 }

// Combined returns stdout and stderr joined, trimmed, for diagnostics.
func (r Result) Combined() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// Runner runs external commands. The reconciler treats every external
// collaborator (systemctl, sysctl, sshd, package managers) as an opaque
// subprocess returning an exit status plus captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type systemRunner struct{}

// System returns a Runner backed by os/exec.
func System() Runner { return systemRunner{} }

func (systemRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	// #nosec G204 -- commands and args come from the fixed module set, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// non-zero exit is a valid result, not a transport error
		res.ExitCode = ee.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, err
}
