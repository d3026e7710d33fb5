package archive

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// ResultsArchiveName is the frozen results tarball inside a job directory.
const ResultsArchiveName = "results.tar.gz"

// ResultsDirName is the working results directory inside scratch space.
const ResultsDirName = "results"

// ErrUnknownSyncMethod reports an unrecognized results_sync_method value.
var ErrUnknownSyncMethod = errors.New("unknown results sync method")

// SyncMethod selects how the scratch results directory is mirrored to the
// job directory across allocations.
type SyncMethod string

const (
	// SyncTargz archives scratch results into $JOB_DIR/results.tar.gz at
	// finalize and re-extracts it on the next allocation.
	SyncTargz SyncMethod = "targz"

	// SyncRsync mirrors the results directory with rsync -a in both
	// directions.
	SyncRsync SyncMethod = "rsync"

	// SyncSymlink points scratch results straight at $JOB_DIR/results, so
	// workload writes land on shared storage immediately.
	SyncSymlink SyncMethod = "symlink"
)

// ParseSyncMethod validates a results_sync_method string.
func ParseSyncMethod(s string) (SyncMethod, error) {
	switch m := SyncMethod(strings.TrimSpace(s)); m {
	case SyncTargz, SyncRsync, SyncSymlink:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want targz, rsync, or symlink)", ErrUnknownSyncMethod, s)
	}
}

// StageResults prepares scratchDir/results at the start of an allocation.
// Fresh jobs get an empty directory; resumed jobs get the previous run's
// results back, in whatever way the method prescribes.
func StageResults(method SyncMethod, jobDir, scratchDir string) error {
	scratchResults := filepath.Join(scratchDir, ResultsDirName)
	switch method {
	case SyncTargz:
		frozen := filepath.Join(jobDir, ResultsArchiveName)
		if utils.FileExists(frozen) {
			return Extract(frozen, scratchDir)
		}
		return utils.EnsureDir(scratchResults)
	case SyncRsync:
		if err := utils.EnsureDir(scratchResults); err != nil {
			return err
		}
		jobResults := filepath.Join(jobDir, ResultsDirName)
		if !utils.DirExists(jobResults) {
			return nil
		}
		return runRsync(jobResults, scratchDir)
	case SyncSymlink:
		jobResults := filepath.Join(jobDir, ResultsDirName)
		if err := utils.EnsureDir(jobResults); err != nil {
			return err
		}
		return os.Symlink(jobResults, scratchResults)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSyncMethod, method)
	}
}

// SaveResults mirrors scratchDir/results back into the job directory at
// finalize time.
func SaveResults(method SyncMethod, jobDir, scratchDir string) error {
	scratchResults := filepath.Join(scratchDir, ResultsDirName)
	switch method {
	case SyncTargz:
		// Write next to the final name, then rename: a continuation that
		// starts while this allocation is being killed must never see a
		// half-written tarball.
		tmp := filepath.Join(jobDir, "."+ResultsArchiveName+".tmp")
		if err := Freeze(scratchResults, tmp, ResultsDirName); err != nil {
			return err
		}
		return os.Rename(tmp, filepath.Join(jobDir, ResultsArchiveName))
	case SyncRsync:
		return runRsync(scratchResults, jobDir)
	case SyncSymlink:
		// Writes already landed in $JOB_DIR/results through the symlink.
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSyncMethod, method)
	}
}

func runRsync(src, dstDir string) error {
	cmd := exec.Command("rsync", "-a", src, dstDir)
	utils.PrintDebug("Executing: %s", utils.StyleCommand(strings.Join(cmd.Args, " ")))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rsync %s -> %s: %w\nOutput: %s", src, dstDir, err, strings.TrimSpace(string(output)))
	}
	return nil
}
