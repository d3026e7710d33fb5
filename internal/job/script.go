package job

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Environment contract between the generated job scripts and the agent.
// The scripts bake these in at submission time; the agent reads them at
// allocation start.
const (
	EnvJobDir        = "EASY_SLURM_JOB_DIR"
	EnvDatasetPath   = "EASY_SLURM_DATASET_PATH"
	EnvResubmitLimit = "EASY_SLURM_RESUBMIT_LIMIT"
	EnvResultsSync   = "EASY_SLURM_RESULTS_SYNC"
)

// renderJobScript produces $JOB_DIR/job.sh, the batch entry point. The
// script is a thin shim: scheduler directives, the environment contract,
// and an exec into the agent. All lifecycle logic lives in the agent so
// continuations submitted by old allocations pick up fixes in the binary.
func renderJobScript(opts *Options, d *Dir, agentPath string) string {
	var b strings.Builder

	fmt.Fprintln(&b, "#!/bin/bash")
	writeSbatchDirectives(&b, opts, d)
	fmt.Fprintln(&b, "")
	writeEnvExports(&b, opts, d)
	fmt.Fprintln(&b, "")
	fmt.Fprintf(&b, "exec %s agent \"$@\"\n", shellQuote(agentPath))

	return b.String()
}

// renderInteractiveScript produces $JOB_DIR/job_interactive.sh, meant to
// be sourced by the shell that srun starts (--init-file). The exec
// replaces that shell with the agent, which opens its own interactive
// shell once the scratch area is staged.
func renderInteractiveScript(opts *Options, d *Dir, agentPath string) string {
	var b strings.Builder

	fmt.Fprintln(&b, "#!/bin/bash")
	writeSbatchDirectives(&b, opts, d)
	fmt.Fprintln(&b, "")
	writeEnvExports(&b, opts, d)
	fmt.Fprintln(&b, "")
	fmt.Fprintf(&b, "exec %s agent --interactive\n", shellQuote(agentPath))

	return b.String()
}

// writeSbatchDirectives emits the user's sbatch options in stable order,
// then the two directives the lifecycle depends on. User-supplied output
// and signal options are discarded: the log path keeps allocation logs
// collated in the job directory, and the signal timing is what makes the
// interrupt protocol work at all.
func writeSbatchDirectives(w io.Writer, opts *Options, d *Dir) {
	for _, k := range opts.sortedSbatchKeys() {
		fmt.Fprintf(w, "#SBATCH --%s=%v\n", k, opts.SbatchOptions[k])
	}
	fmt.Fprintf(w, "#SBATCH --output=%s/slurm_jobid%%j_%%x.out\n", d.Path)
	fmt.Fprintf(w, "#SBATCH --signal=B:USR1@%d\n", opts.CleanupSeconds)
}

// warnShortWalltime flags jobs whose cleanup window swallows the whole
// walltime. The scheduler delivers a signal offset at or past the
// walltime right at allocation start, so the run would be interrupted
// before the workload does any work.
func warnShortWalltime(opts *Options) {
	raw, ok := opts.SbatchOptions["time"]
	if !ok {
		return
	}
	walltime, err := utils.ParseWalltime(fmt.Sprintf("%v", raw))
	if err != nil {
		// sbatch reports malformed walltimes on its own
		return
	}
	if time.Duration(opts.CleanupSeconds)*time.Second >= walltime {
		utils.PrintWarning("cleanup_seconds=%d covers the whole walltime %v; the interrupt will fire at allocation start",
			opts.CleanupSeconds, raw)
	}
}

func writeEnvExports(w io.Writer, opts *Options, d *Dir) {
	fmt.Fprintf(w, "export %s=%s\n", EnvJobDir, shellQuote(d.Path))
	fmt.Fprintf(w, "export %s=%s\n", EnvDatasetPath, shellQuote(ExpandPath(opts.Dataset)))
	fmt.Fprintf(w, "export %s=%s\n", EnvResubmitLimit, shellQuote(fmt.Sprintf("%d", opts.ResubmitLimit)))
	fmt.Fprintf(w, "export %s=%s\n", EnvResultsSync, shellQuote(opts.ResultsSyncMethod))
}

// shellQuote wraps s in single quotes, escaping embedded single quotes
// with the '"'"' idiom so arbitrary paths survive the shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
