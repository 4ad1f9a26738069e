package hostmod

import (
	"errors"
	"fmt"
)

// Kind classifies module failures for the run summary and exit handling.
type Kind string

const (
	// KindCapabilityUnsupported: the host cannot support the desired
	// feature. Not retried; the module is reported with a clear reason
	// and no file is touched.
	KindCapabilityUnsupported Kind = "capability_unsupported"
	// KindBackupFailed: I/O error before any mutation. The module
	// aborts with no partial state.
	KindBackupFailed Kind = "backup_failed"
	// KindWriteFailed: I/O or validation error during config
	// materialization. Prior backups remain valid for revert.
	KindWriteFailed Kind = "write_failed"
	// KindActivationFailed: the write succeeded but the reload/restart
	// command returned non-zero. File changes stay in place; revert
	// remains available.
	KindActivationFailed Kind = "activation_failed"
	// KindVerificationFailed: activation succeeded but the post-apply
	// probe does not match the expected value.
	KindVerificationFailed Kind = "verification_failed"
	// KindServiceUnready: timeout waiting for a service to report healthy.
	KindServiceUnready Kind = "service_unready"
)

// Error is the failure type every module operation returns. It carries
// the module name and failure kind so the orchestrator can fold it into
// the run summary without inspecting messages.
type Error struct {
	Module string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Module, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with module identity and kind.
func E(module string, kind Kind, err error) *Error {
	return &Error{Module: module, Kind: kind, Err: err}
}

// Ef is E with a formatted message.
func Ef(module string, kind Kind, format string, args ...any) *Error {
	return &Error{Module: module, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from err, or "" for foreign errors.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
