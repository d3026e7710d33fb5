package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/status"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

var resubmitInteractive bool

var resubmitCmd = &cobra.Command{
	Use:   "resubmit <job-dir>",
	Short: "Submit another allocation for an existing job directory",
	Long: `Submit an existing job directory to the scheduler again. Use this to
start a job created with --submit=false, or to continue an incomplete job
whose automatic resubmission budget ran out or whose continuation
submission failed.

Manual resubmission does not count against the automatic resubmission
limit; the counter tracks only continuations the agent submits itself.`,
	Example: `  easy-slurm resubmit ~/jobs/2026-08-23-train
  easy-slurm resubmit ~/jobs/2026-08-23-train --interactive`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openJobDir(args[0])
		if err != nil {
			return err
		}

		rec, err := d.LoadStatus()
		if err != nil {
			return err
		}
		if rec.Phase == status.PhaseCompleted {
			return fmt.Errorf("job %s is already completed", utils.StylePath(d.Path))
		}
		if !rec.Phase.IsStartable() {
			// A mid-lifecycle phase on disk means the last allocation is
			// either still running or died without finishing. The agent
			// would refuse it, so refuse here instead of burning an
			// allocation on it.
			utils.PrintHint("If the last allocation died, edit %s to status=incomplete and retry",
				utils.StylePath(d.StatusPath()))
			return fmt.Errorf("job is recorded as %s, not resubmittable", utils.StylePhase(string(rec.Phase)))
		}

		sched, err := newScheduler()
		if err != nil {
			return err
		}
		return job.Submit(d, sched, resubmitInteractive)
	},
}

func init() {
	rootCmd.AddCommand(resubmitCmd)
	resubmitCmd.Flags().BoolVar(&resubmitInteractive, "interactive", false, "Start an interactive session instead of a batch allocation")
}
