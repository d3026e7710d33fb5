package driver

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/YodaEmbedding/easy-slurm/internal/status"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// InterruptSignal is the scheduler's pre-kill timeout warning. The
// generated job script asks for it via #SBATCH --signal, a configured
// interval before the hard kill.
const InterruptSignal = syscall.SIGUSR1

// watchInterrupts registers the timeout-warning handler and returns a
// stop function that deregisters it. The watcher is scoped to the
// running (or interacting) phase; callers stop it before finalizing so a
// late signal cannot disturb teardown.
func (d *Driver) watchInterrupts() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, InterruptSignal)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				d.handleInterrupt()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// handleInterrupt is the signal path. It must be fast and must not
// block: write durable evidence of the interruption first, forward
// termination to the workload's process group, flip the flag. Waiting
// for the workload to die is the supervisor's job, not the handler's.
func (d *Driver) handleInterrupt() {
	utils.PrintWarning("Timeout warning received; interrupting workload")

	// Written before anything that could fail, so a hard kill racing this
	// handler still leaves proof that graceful shutdown was attempted.
	if err := d.store.SetPhase(status.PhaseInterrupting); err != nil {
		utils.PrintError("Failed to record interruption: %v", err)
	}
	d.metrics.InterruptionReceived()

	// The negative pid targets the whole process group, reaching the
	// workload's children as well as the hook shell itself.
	pid, err := d.scratch.ReadWorkloadPID()
	if err != nil {
		utils.PrintDebug("No workload pid to signal: %v", err)
	} else if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		utils.PrintError("Failed to forward termination to process group %d: %v", pid, err)
	} else {
		utils.PrintDebug("Forwarded SIGTERM to process group %d", pid)
	}

	if d.interrupted.CompareAndSwap(false, true) {
		close(d.interruptCh)
	}
}
