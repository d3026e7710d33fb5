// Package driver runs one scheduler allocation of a job: it reads the
// persisted phase to decide between first-run and resume paths, stages
// the scratch area, supervises the workload under interrupt watch, and
// finalizes results before handing off to a continuation.
package driver

import (
	"fmt"
	"sync/atomic"

	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/hooks"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/metrics"
	"github.com/YodaEmbedding/easy-slurm/internal/scheduler"
	"github.com/YodaEmbedding/easy-slurm/internal/status"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Driver owns the lifecycle of a single allocation. It is not reusable;
// create one per agent invocation.
type Driver struct {
	dir     *job.Dir
	store   *status.Store
	cfg     *Config
	sched   scheduler.Scheduler
	scratch *ScratchArea
	runner  *hooks.Runner
	metrics *metrics.Recorder

	// interrupted flips once, when the scheduler's timeout warning
	// arrives. interruptCh closes at the same moment so blocked waits can
	// observe it.
	interrupted atomic.Bool
	interruptCh chan struct{}
}

// New binds a driver to an existing job directory. Opening the status
// store here means a missing, corrupt, or schema-incompatible record
// fails the allocation before any state is touched.
func New(dir *job.Dir, cfg *Config, sched scheduler.Scheduler) (*Driver, error) {
	store, err := status.Open(dir.StatusPath())
	if err != nil {
		return nil, err
	}
	scratch, err := NewScratchArea()
	if err != nil {
		return nil, err
	}
	return &Driver{
		dir:         dir,
		store:       store,
		cfg:         cfg,
		sched:       sched,
		scratch:     scratch,
		runner:      hooks.NewRunner(dir.HooksPath()),
		interruptCh: make(chan struct{}),
	}, nil
}

// SetMetrics attaches an optional lifecycle metrics recorder.
func (d *Driver) SetMetrics(rec *metrics.Recorder) { d.metrics = rec }

// Run executes the batch lifecycle:
// initializing -> running -> (interrupting) -> finalizing -> completed or
// incomplete. It returns nil on every outcome the protocol considers
// handled, including an interruption whose continuation could not be
// submitted; errors mean the allocation itself failed.
func (d *Driver) Run() error {
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

	if err := d.store.SetPhase(status.PhaseRunning); err != nil {
		return err
	}
	stop := d.watchInterrupts()
	defer stop()

	if err := d.superviseWorkload(pick(firstRun, hooks.HookOnRun, hooks.HookOnRunResume)); err != nil {
		return err
	}
	stop()

	return d.finalize()
}

// begin validates the recorded phase and reports whether this is a first
// run. Any phase other than new or incomplete means the allocation was
// started against a job that is already done or still owned by another
// allocation, and proceeding would corrupt it.
func (d *Driver) begin() (firstRun bool, err error) {
	rec := d.store.Record()
	if !rec.Phase.IsStartable() {
		return false, status.NewPhaseError(d.store.Path(), rec.Phase, "new or incomplete")
	}
	firstRun = rec.Phase == status.PhaseNew

	if id, ok := scheduler.CurrentAllocationID(); ok {
		utils.PrintMessage("Allocation %s started for %s", id, utils.StylePath(d.dir.Path))
	} else {
		utils.PrintMessage("Starting allocation for %s", utils.StylePath(d.dir.Path))
	}
	if firstRun {
		utils.PrintDebug("Fresh job; using first-run hooks")
	} else {
		utils.PrintDebug("Resuming job (resubmission %s)", utils.StyleNumber(rec.ResubmitCount))
	}
	return firstRun, nil
}

// initialize stages the scratch area: frozen archives, the dataset, and
// the previous run's results when resuming, so resume hooks see partial
// outputs.
func (d *Driver) initialize(firstRun bool) error {
	if err := d.store.SetPhase(status.PhaseInitializing); err != nil {
		return err
	}
	utils.PrintMessage("Initializing scratch area at %s", utils.StylePath(d.scratch.Root))

	if utils.FileExists(d.dir.SrcArchivePath()) {
		if err := archive.Extract(d.dir.SrcArchivePath(), d.scratch.Root); err != nil {
			return fmt.Errorf("failed to stage src: %w", err)
		}
	}
	if utils.FileExists(d.dir.AssetsArchivePath()) {
		if err := archive.Extract(d.dir.AssetsArchivePath(), d.scratch.Root); err != nil {
			return fmt.Errorf("failed to stage assets: %w", err)
		}
	}
	// Hooks run under scratch/src even when no source was frozen.
	if err := utils.EnsureDir(d.scratch.SrcDir()); err != nil {
		return err
	}

	if d.cfg.DatasetPath != "" {
		utils.PrintMessage("Extracting dataset %s", utils.StylePath(d.cfg.DatasetPath))
		if err := archive.Extract(d.cfg.DatasetPath, d.scratch.Root); err != nil {
			return fmt.Errorf("failed to stage dataset: %w", err)
		}
	}

	if err := archive.StageResults(d.cfg.SyncMethod, d.dir.Path, d.scratch.Root); err != nil {
		return fmt.Errorf("failed to stage results: %w", err)
	}
	if !firstRun {
		utils.PrintDebug("Previous results staged for resume hooks")
	}
	return nil
}

// finalize runs once the workload (or interactive session) is over:
// teardown, results save, then the terminal phase decision.
func (d *Driver) finalize() error {
	if err := d.store.SetPhase(status.PhaseFinalizing); err != nil {
		return err
	}
	if err := d.runHook(hooks.HookTeardown, d.scratch.Root); err != nil {
		return err
	}
	if err := archive.SaveResults(d.cfg.SyncMethod, d.dir.Path, d.scratch.Root); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return d.finish()
}

// finish writes the terminal phase. An uninterrupted workload means the
// job is done regardless of its exit code; an interrupted one gets a
// continuation if the budget allows, and is recorded incomplete either
// way so an operator can see it needs resubmission if the budget ran out.
func (d *Driver) finish() error {
	if !d.interrupted.Load() {
		if err := d.store.SetPhase(status.PhaseCompleted); err != nil {
			return err
		}
		utils.PrintSuccess("Job %s", utils.StylePhase(string(status.PhaseCompleted)))
		return nil
	}

	if err := d.resubmitContinuation(); err != nil {
		utils.PrintError("Failed to submit continuation: %v", err)
		utils.PrintHint("Resubmit manually with: easy-slurm resubmit %s", d.dir.Path)
	}
	if err := d.store.SetPhase(status.PhaseIncomplete); err != nil {
		return err
	}
	utils.PrintMessage("Job %s", utils.StylePhase(string(status.PhaseIncomplete)))
	return nil
}

func (d *Driver) runHook(h hooks.Hook, dir string) error {
	utils.PrintDebug("Running %s hook in %s", h, utils.StylePath(dir))
	return d.runner.Run(h, dir)
}

func pick(firstRun bool, first, resume hooks.Hook) hooks.Hook {
	if firstRun {
		return first
	}
	return resume
}
