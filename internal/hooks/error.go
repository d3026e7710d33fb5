package hooks

import (
	"errors"
	"fmt"
)

// HookError reports a hook that exited non-zero. Hook failures are fatal to
// the allocation, and the allocation's exit status mirrors the hook's.
type HookError struct {
	Hook     Hook  // which hook failed
	ExitCode int   // the hook's exit status
	Err      error // underlying exec error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s failed with exit status %d", e.Hook, e.ExitCode)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// NewHookError creates a new HookError
func NewHookError(hook Hook, exitCode int, err error) *HookError {
	return &HookError{Hook: hook, ExitCode: exitCode, Err: err}
}

// IsHookError checks if an error is a HookError
func IsHookError(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}

// ExitStatus extracts the exit status to propagate for err: a failing
// hook's own status when available, 1 otherwise.
func ExitStatus(err error) int {
	var he *HookError
	if errors.As(err, &he) && he.ExitCode > 0 {
		return he.ExitCode
	}
	return 1
}
