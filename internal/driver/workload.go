package driver

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/YodaEmbedding/easy-slurm/internal/hooks"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// superviseWorkload launches the workload hook asynchronously and blocks
// until it exits. The child leads its own process group so a forwarded
// SIGTERM reaches everything the hook spawned, and its pid is persisted
// for the interrupt handler before the supervisor starts waiting.
//
// The workload's exit status does not fail the allocation; only whether
// it was interrupted matters to the lifecycle.
func (d *Driver) superviseWorkload(hook hooks.Hook) error {
	cmd := d.runner.Command(hook, d.scratch.SrcDir())
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start workload: %w", err)
	}

	pid := cmd.Process.Pid
	if err := d.scratch.WriteWorkloadPID(pid); err != nil {
		// Unreachable by the interrupt handler means unkillable before the
		// hard deadline; better to stop now than run unsupervised.
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		_ = cmd.Wait()
		return fmt.Errorf("failed to persist workload pid: %w", err)
	}
	defer d.scratch.ClearWorkloadPID()
	utils.PrintMessage("Workload started (%s hook, pid %s)", hook, utils.StyleNumber(pid))

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// Two independent waits compose here: the interrupt channel tells us
	// shutdown has begun, the done channel tells us it finished.
	var waitErr error
	select {
	case waitErr = <-done:
	case <-d.interruptCh:
		utils.PrintMessage("Waiting for workload to shut down")
		waitErr = <-done
	}
	d.metrics.WorkloadFinished(time.Since(start))

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return fmt.Errorf("failed to wait for workload: %w", waitErr)
		}
		utils.PrintWarning("Workload exited: %v", exitErr)
	} else {
		utils.PrintDebug("Workload exited cleanly")
	}
	return nil
}
