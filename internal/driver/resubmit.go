package driver

import (
	"fmt"

	"github.com/YodaEmbedding/easy-slurm/internal/scheduler"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// resubmitContinuation decides whether an interrupted job gets another
// allocation. The comparison is strict, so a limit of zero disables
// resubmission outright. The counter increments only after the scheduler
// has accepted the continuation; a failed submission leaves it untouched
// so a manual retry starts from the same budget.
func (d *Driver) resubmitContinuation() error {
	count := d.store.Record().ResubmitCount
	if count >= d.cfg.ResubmitLimit {
		utils.PrintWarning("Resubmission limit reached (%s of %s); leaving job incomplete",
			utils.StyleNumber(count), utils.StyleNumber(d.cfg.ResubmitLimit))
		return nil
	}
	if d.sched == nil {
		return fmt.Errorf("%w: cannot submit continuation", scheduler.ErrSchedulerNotFound)
	}

	id, err := d.sched.Submit(d.dir.ScriptPath())
	if err != nil {
		return err
	}
	if err := d.dir.AppendAllocationID(id); err != nil {
		// The log is audit-only; the continuation is already queued.
		utils.PrintWarning("Failed to record allocation id %s: %v", id, err)
	}
	if err := d.store.Increment(); err != nil {
		return err
	}
	d.metrics.ContinuationSubmitted()

	utils.PrintSuccess("Submitted continuation %s (resubmission %s of %s)",
		id, utils.StyleNumber(d.store.Record().ResubmitCount), utils.StyleNumber(d.cfg.ResubmitLimit))
	return nil
}
