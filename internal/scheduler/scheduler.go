// Package scheduler submits generated job scripts to the cluster scheduler.
package scheduler

import (
	"os"
)

// Info holds information about the detected scheduler
type Info struct {
	Type      string // Scheduler type (e.g., "SLURM")
	Binary    string // Path to scheduler binary (e.g., "/usr/bin/sbatch")
	Version   string // Scheduler version (if available)
	InJob     bool   // Whether we're currently inside a scheduled allocation
	Available bool   // Whether scheduler is available for job submission
}

// Scheduler defines the interface for job schedulers
type Scheduler interface {
	// IsAvailable checks if the scheduler binary is present. Submission is
	// allowed from inside an allocation: resubmitting a continuation is the
	// normal way an interrupted job survives its walltime limit.
	IsAvailable() bool

	// Info returns details about the scheduler installation
	Info() *Info

	// Submit submits a batch script and returns the allocation ID the
	// scheduler assigned to it
	Submit(scriptPath string) (string, error)

	// SubmitInteractive starts an interactive allocation attached to the
	// caller's terminal and blocks until the session ends
	SubmitInteractive(scriptPath string) error
}

// InAllocation reports whether this process is running inside a scheduler
// allocation.
func InAllocation() bool {
	_, ok := os.LookupEnv("SLURM_JOB_ID")
	return ok
}

// CurrentAllocationID returns the allocation ID of the surrounding job, if
// any.
func CurrentAllocationID() (string, bool) {
	return os.LookupEnv("SLURM_JOB_ID")
}
