package cmd

import (
	"os"

	"github.com/YodaEmbedding/easy-slurm/internal/config"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/scheduler"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Generic error exit code
const ExitCodeError = 1

// ExitWithError prints an error and exits with ExitCodeError
func ExitWithError(format string, a ...interface{}) {
	utils.PrintError(format, a...)
	os.Exit(ExitCodeError)
}

// newScheduler builds the SLURM scheduler from the configured binaries.
// Empty configured paths fall back to PATH lookup.
func newScheduler() (scheduler.Scheduler, error) {
	sched, err := scheduler.NewSlurmSchedulerWithBinaries(config.Global.SbatchBin, config.Global.SrunBin)
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// openJobDir resolves a command-line job directory argument (which may use
// ~ or environment variables) into an opened job directory.
func openJobDir(arg string) (*job.Dir, error) {
	return job.Open(job.ExpandPath(arg))
}
