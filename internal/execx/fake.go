package execx

import (
	"context"
	"strings"
	"sync"
)

// FakeRunner is a scripted Runner for tests. Responses are keyed by the
// space-joined command line; unmatched commands succeed with empty output
// unless FailUnmatched is set.
type FakeRunner struct {
	mu            sync.Mutex
	Responses     map[string]Result
	Errors        map[string]error
	FailUnmatched bool
	Calls         []string
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: make(map[string]Result), Errors: make(map[string]error)}
}

// On registers the result for an exact command line, e.g. "systemctl is-active ssh".
func (f *FakeRunner) On(cmdline string, res Result) { f.Responses[cmdline] = res }

// OnError makes a command line fail as unstartable.
func (f *FakeRunner) OnError(cmdline string, err error) { f.Errors[cmdline] = err }

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.Calls = append(f.Calls, line)
	f.mu.Unlock()
	if err, ok := f.Errors[line]; ok {
		return Result{ExitCode: -1}, err
	}
	if res, ok := f.Responses[line]; ok {
		return res, nil
	}
	if f.FailUnmatched {
		return Result{ExitCode: 1, Stderr: "unexpected command: " + line}, nil
	}
	return Result{ExitCode: 0}, nil
}

// Called reports whether any recorded call line has the given prefix.
func (f *FakeRunner) Called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
