package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
)

// DefaultInteractiveShell is started for interactive sessions unless the
// application config overrides it.
const DefaultInteractiveShell = "bash"

// Config is the agent's view of one allocation, resolved from the
// environment contract the generated job script exports.
type Config struct {
	JobDir           string
	DatasetPath      string
	ResubmitLimit    int
	SyncMethod       archive.SyncMethod
	InteractiveShell string
}

// ConfigFromEnv reads the environment baked into job.sh at submission
// time. The agent refuses to run outside that contract: guessing a job
// directory would risk mutating state of a job it does not own.
func ConfigFromEnv() (*Config, error) {
	jobDir := os.Getenv(job.EnvJobDir)
	if jobDir == "" {
		return nil, fmt.Errorf("%s is not set; the agent must be started by a generated job script", job.EnvJobDir)
	}

	cfg := &Config{
		JobDir:           jobDir,
		DatasetPath:      os.Getenv(job.EnvDatasetPath),
		ResubmitLimit:    job.DefaultResubmitLimit,
		SyncMethod:       archive.SyncSymlink,
		InteractiveShell: DefaultInteractiveShell,
	}

	if v := os.Getenv(job.EnvResubmitLimit); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("invalid %s value %q", job.EnvResubmitLimit, v)
		}
		cfg.ResubmitLimit = limit
	}
	if v := os.Getenv(job.EnvResultsSync); v != "" {
		method, err := archive.ParseSyncMethod(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", job.EnvResultsSync, err)
		}
		cfg.SyncMethod = method
	}

	return cfg, nil
}

// ScratchArea is the per-allocation working space on the compute node's
// local filesystem. Everything under it is gone once the allocation ends;
// durable state lives in the job directory.
type ScratchArea struct {
	Root string
}

// NewScratchArea uses the scheduler-provided scratch directory when
// present and falls back to a fresh temp directory, which keeps the agent
// runnable on machines without a scheduler.
func NewScratchArea() (*ScratchArea, error) {
	if dir := os.Getenv("SLURM_TMPDIR"); dir != "" {
		return &ScratchArea{Root: dir}, nil
	}
	dir, err := os.MkdirTemp("", "easy-slurm-scratch-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch area: %w", err)
	}
	return &ScratchArea{Root: dir}, nil
}

// SrcDir is where the frozen source tree is staged and where the workload
// hooks run.
func (s *ScratchArea) SrcDir() string { return filepath.Join(s.Root, "src") }

// PIDFilePath holds the workload process id for the duration of the run.
// The interrupt handler reads it back rather than sharing memory with the
// supervisor, so the signal path has no ordering dependency on the
// supervisor's internal state.
func (s *ScratchArea) PIDFilePath() string { return filepath.Join(s.Root, "workload.pid") }

// WriteWorkloadPID persists the workload's process id.
func (s *ScratchArea) WriteWorkloadPID(pid int) error {
	return os.WriteFile(s.PIDFilePath(), []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadWorkloadPID returns the persisted workload process id.
func (s *ScratchArea) ReadWorkloadPID() (int, error) {
	data, err := os.ReadFile(s.PIDFilePath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file %s: %w", s.PIDFilePath(), err)
	}
	return pid, nil
}

// ClearWorkloadPID removes the pid file once the workload has exited.
func (s *ScratchArea) ClearWorkloadPID() {
	_ = os.Remove(s.PIDFilePath())
}
