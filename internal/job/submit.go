package job

import (
	"fmt"

	"github.com/YodaEmbedding/easy-slurm/internal/scheduler"
	"github.com/YodaEmbedding/easy-slurm/internal/status"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Submit hands the job directory to the scheduler. Batch submissions
// record the assigned allocation id in the allocation log: a job that has
// never run starts a fresh log, while resubmissions append so the full
// allocation history survives. Interactive sessions block until the
// session ends and assign no id we can observe.
func Submit(d *Dir, sched scheduler.Scheduler, interactive bool) error {
	if interactive {
		utils.PrintMessage("Starting interactive session for %s", utils.StylePath(d.Path))
		return sched.SubmitInteractive(d.InteractiveScriptPath())
	}

	rec, err := d.LoadStatus()
	if err != nil {
		return err
	}

	id, err := sched.Submit(d.ScriptPath())
	if err != nil {
		return err
	}

	record := d.WriteAllocationID
	if rec.Phase != status.PhaseNew {
		record = d.AppendAllocationID
	}
	if err := record(id); err != nil {
		return fmt.Errorf("submitted job %s but failed to record its id: %w", id, err)
	}

	utils.PrintSuccess("Submitted job %s (%s)", id, utils.StylePath(d.Path))
	return nil
}
