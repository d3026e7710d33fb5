package status

import (
	"errors"
	"fmt"
)

// Sentinel errors for status record handling.
var (
	// ErrNotFound indicates the job directory has no status file.
	ErrNotFound = errors.New("status file not found")

	// ErrCorrupt indicates the status file exists but cannot be parsed.
	ErrCorrupt = errors.New("corrupt status record")

	// ErrIncompatibleSchema indicates the record was written by an
	// incompatible (different major) schema version.
	ErrIncompatibleSchema = errors.New("incompatible status schema version")

	// ErrUnexpectedPhase indicates the job is not in a phase from which the
	// requested operation may proceed.
	ErrUnexpectedPhase = errors.New("unexpected job phase")
)

// PhaseError reports a job found in a phase the caller cannot proceed from.
type PhaseError struct {
	Path  string // status file path
	Phase Phase  // phase found on disk
	Want  string // description of acceptable phases
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("job at %s is %q, want %s", e.Path, e.Phase, e.Want)
}

func (e *PhaseError) Unwrap() error {
	return ErrUnexpectedPhase
}

// NewPhaseError creates a PhaseError for the given status file and phase.
func NewPhaseError(path string, phase Phase, want string) *PhaseError {
	return &PhaseError{Path: path, Phase: phase, Want: want}
}

// IsUnexpectedPhase reports whether err is a phase mismatch.
func IsUnexpectedPhase(err error) bool {
	return errors.Is(err, ErrUnexpectedPhase)
}
