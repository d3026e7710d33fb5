package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrSchedulerNotFound indicates the scheduler binary was not found
	ErrSchedulerNotFound = errors.New("scheduler binary not found in PATH")

	// ErrJobIDParseFailed indicates parsing the allocation ID from scheduler
	// output failed
	ErrJobIDParseFailed = errors.New("failed to parse job ID from scheduler output")
)

// SubmissionError represents an error during job submission
type SubmissionError struct {
	Scheduler string // Scheduler name
	Script    string // Submitted script name
	Output    string // Scheduler output
	Err       error  // Underlying error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s submission failed for %s: %v\nOutput: %s",
			e.Scheduler, e.Script, e.Err, strings.TrimSpace(e.Output))
	}
	return fmt.Sprintf("%s submission failed for %s: %v",
		e.Scheduler, e.Script, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError creates a new SubmissionError
func NewSubmissionError(scheduler string, script string, output string, err error) *SubmissionError {
	return &SubmissionError{
		Scheduler: scheduler,
		Script:    script,
		Output:    output,
		Err:       err,
	}
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
