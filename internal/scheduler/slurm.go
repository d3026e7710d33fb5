package scheduler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// SlurmScheduler implements the Scheduler interface for SLURM
type SlurmScheduler struct {
	sbatchBin string
	srunBin   string
	jobIDRe   *regexp.Regexp
}

// NewSlurmScheduler creates a new SLURM scheduler instance using binaries
// from PATH
func NewSlurmScheduler() (*SlurmScheduler, error) {
	return newSlurmScheduler("", "")
}

// NewSlurmSchedulerWithBinaries creates a SLURM scheduler using explicit
// sbatch and srun paths. Empty paths fall back to PATH lookup.
func NewSlurmSchedulerWithBinaries(sbatchBin, srunBin string) (*SlurmScheduler, error) {
	return newSlurmScheduler(sbatchBin, srunBin)
}

func newSlurmScheduler(sbatchBin, srunBin string) (*SlurmScheduler, error) {
	binPath := sbatchBin
	if binPath == "" {
		var err error
		binPath, err = exec.LookPath("sbatch")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
	} else {
		if absPath, err := filepath.Abs(binPath); err == nil {
			binPath = absPath
		}
		info, err := os.Stat(binPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrSchedulerNotFound, binPath)
		}
	}

	if srunBin == "" {
		srunBin, _ = exec.LookPath("srun")
	}

	return &SlurmScheduler{
		sbatchBin: binPath,
		srunBin:   srunBin,
		jobIDRe:   regexp.MustCompile(`Submitted batch job (\d+)`),
	}, nil
}

// IsAvailable checks if the sbatch binary is present
func (s *SlurmScheduler) IsAvailable() bool {
	return s.sbatchBin != ""
}

// Info returns information about the SLURM installation
func (s *SlurmScheduler) Info() *Info {
	info := &Info{
		Type:      "SLURM",
		Binary:    s.sbatchBin,
		InJob:     InAllocation(),
		Available: s.IsAvailable(),
	}
	if s.sbatchBin != "" {
		if version, err := s.slurmVersion(); err == nil {
			info.Version = version
		}
	}
	return info
}

// slurmVersion attempts to get the SLURM version
func (s *SlurmScheduler) slurmVersion() (string, error) {
	cmd := exec.Command(s.sbatchBin, "--version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	// Parse version from output like "slurm 23.02.6"
	versionStr := strings.TrimSpace(string(output))
	parts := strings.Fields(versionStr)
	if len(parts) >= 2 {
		return parts[1], nil
	}
	return versionStr, nil
}

// Submit submits a batch script via sbatch and returns the assigned
// allocation ID
func (s *SlurmScheduler) Submit(scriptPath string) (string, error) {
	cmd := exec.Command(s.sbatchBin, scriptPath)
	utils.PrintDebug("Executing: %s", utils.StyleCommand(strings.Join(cmd.Args, " ")))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewSubmissionError("SLURM", filepath.Base(scriptPath), string(output), err)
	}

	matches := s.jobIDRe.FindStringSubmatch(string(output))
	if len(matches) < 2 {
		return "", fmt.Errorf("%w: %s", ErrJobIDParseFailed, strings.TrimSpace(string(output)))
	}
	return matches[1], nil
}

// SubmitInteractive launches an interactive allocation on the caller's
// terminal. srun allocates a pseudo-terminal and runs bash, which sources
// the interactive job script during startup; the call blocks until the
// session ends.
func (s *SlurmScheduler) SubmitInteractive(scriptPath string) error {
	if s.srunBin == "" {
		return fmt.Errorf("%w: srun", ErrSchedulerNotFound)
	}
	cmd := exec.Command(s.srunBin, "--pty", "bash", "--init-file", scriptPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	utils.PrintDebug("Executing: %s", utils.StyleCommand(strings.Join(cmd.Args, " ")))
	if err := cmd.Run(); err != nil {
		return NewSubmissionError("SLURM", filepath.Base(scriptPath), "", err)
	}
	return nil
}
