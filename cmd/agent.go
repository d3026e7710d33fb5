package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YodaEmbedding/easy-slurm/internal/config"
	"github.com/YodaEmbedding/easy-slurm/internal/driver"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/metrics"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

var agentInteractive bool

// agentCmd is invoked by the generated job scripts, never by hand. It is
// hidden so `easy-slurm --help` shows only the operator surface.
var agentCmd = &cobra.Command{
	Use:          "agent",
	Short:        "Run one allocation of a job (invoked by generated job scripts)",
	Hidden:       true,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := driver.ConfigFromEnv()
		if err != nil {
			return err
		}
		cfg.InteractiveShell = config.Global.InteractiveShell

		d, err := job.Open(cfg.JobDir)
		if err != nil {
			return err
		}

		// A missing scheduler is tolerated here: the allocation can still
		// run its workload, and a continuation submission will then fail
		// in the recovered leave-incomplete path rather than up front.
		sched, err := newScheduler()
		if err != nil {
			utils.PrintDebug("Scheduler unavailable: %v", err)
			sched = nil
		}

		drv, err := driver.New(d, cfg, sched)
		if err != nil {
			return err
		}
		drv.SetMetrics(metrics.NewRecorder(config.Global.MetricsGateway, filepath.Base(d.Path)))

		if agentInteractive {
			return drv.RunInteractive()
		}
		return drv.Run()
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().BoolVar(&agentInteractive, "interactive", false, "Run an interactive session instead of the batch lifecycle")
}
