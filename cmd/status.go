package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-dir>",
	Short: "Show the recorded state of a job directory",
	Long: `Display the persisted lifecycle record of a job directory: its phase,
resubmission count, allocation history, and the archives it carries.`,
	Example: `  easy-slurm status ~/jobs/2026-08-23-train
  easy-slurm status .`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true, // Runtime errors should not show usage
	RunE:         runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := openJobDir(args[0])
	if err != nil {
		return err
	}

	rec, err := d.LoadStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Job %s:\n", utils.StyleName(filepath.Base(d.Path)))
	fmt.Printf("Phase: %s\n", utils.StylePhase(string(rec.Phase)))
	fmt.Printf("Resubmissions: %s\n", utils.StyleNumber(rec.ResubmitCount))
	fmt.Printf("Schema: %s\n", rec.SchemaVersion)

	if info, err := os.Stat(d.StatusPath()); err == nil {
		fmt.Printf("Last update: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
	}

	ids, err := d.AllocationIDs()
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		fmt.Println("Allocations:")
		for _, id := range ids {
			fmt.Printf("  - %s\n", id)
		}
	}

	printArchiveSizes(d)
	return nil
}

// printArchiveSizes lists the frozen archives present in the job
// directory with human-readable sizes.
func printArchiveSizes(d *job.Dir) {
	archives := []string{
		d.SrcArchivePath(),
		d.AssetsArchivePath(),
		d.ResultsArchivePath(),
	}

	shown := false
	for _, path := range archives {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !shown {
			fmt.Println("Archives:")
			shown = true
		}
		fmt.Printf("  %s: %s\n", filepath.Base(path), utils.FormatBytes(info.Size()))
	}
}
