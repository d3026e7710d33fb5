package driver

import (
	"os"
	"os/exec"

	"github.com/YodaEmbedding/easy-slurm/internal/hooks"
	"github.com/YodaEmbedding/easy-slurm/internal/status"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// RunInteractive executes the debugging lifecycle: the scratch area is
// staged exactly as for a batch run, then the user gets a shell in it
// instead of the workload hook. Finalize is deferred, so every way the
// session can end (clean exit, error, killed shell) runs teardown and
// the terminal phase decision exactly once.
func (d *Driver) RunInteractive() (err error) {
	firstRun, err := d.begin()
	if err != nil {
		return err
	}

	lock, err := d.dir.AcquireAllocationLock()
	if err != nil {
		return err
	}
	defer lock.Close()

	d.metrics.AllocationStarted(firstRun)
	defer d.metrics.Push()

	if err := d.initialize(firstRun); err != nil {
		return err
	}
	if err := d.runHook(pick(firstRun, hooks.HookSetup, hooks.HookSetupResume), d.scratch.Root); err != nil {
		return err
	}

	if err := d.store.SetPhase(status.PhaseInteracting); err != nil {
		return err
	}
	stop := d.watchInterrupts()

	// Armed only once the session is entered; a setup failure above exits
	// without teardown, same as the batch path.
	defer func() {
		stop()
		if ferr := d.finalize(); err == nil {
			err = ferr
		}
	}()

	shell := d.cfg.InteractiveShell
	if shell == "" {
		shell = DefaultInteractiveShell
	}
	cmd := exec.Command(shell)
	cmd.Dir = d.scratch.SrcDir()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	utils.PrintMessage("Starting interactive session (%s) in %s", shell, utils.StylePath(cmd.Dir))
	utils.PrintNote("Exiting the session finalizes the job")
	if runErr := cmd.Run(); runErr != nil {
		// The session's exit status is the user's business, not a job
		// failure.
		utils.PrintDebug("Interactive session ended: %v", runErr)
	}
	return nil
}
