// Package hooks renders user-supplied shell fragments into the job
// directory's hook library and executes them at lifecycle points.
//
// Hooks are opaque text baked in at submission time. Each one becomes a bash
// function in $JOB_DIR/hooks.sh, so a hook body may call another hook by
// name: setup_resume is often just "setup". At runtime the runner's only
// responsibilities are picking the right working directory and surfacing the
// hook's exit status; hook content is never parsed or sandboxed.
package hooks

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Hook names a lifecycle hook. The value doubles as the bash function name
// inside the generated hook library.
type Hook string

const (
	HookSetup       Hook = "setup"
	HookSetupResume Hook = "setup_resume"
	HookOnRun       Hook = "on_run"
	HookOnRunResume Hook = "on_run_resume"
	HookTeardown    Hook = "teardown"
)

// All lists every hook in rendering order.
var All = []Hook{HookSetup, HookSetupResume, HookOnRun, HookOnRunResume, HookTeardown}

// FileName is the hook library's name inside a job directory.
const FileName = "hooks.sh"

// Spec carries the user's hook bodies. Empty bodies are valid and run as
// no-ops.
type Spec struct {
	Setup       string
	SetupResume string
	OnRun       string
	OnRunResume string
	Teardown    string
}

func (s Spec) body(h Hook) string {
	switch h {
	case HookSetup:
		return s.Setup
	case HookSetupResume:
		return s.SetupResume
	case HookOnRun:
		return s.OnRun
	case HookOnRunResume:
		return s.OnRunResume
	case HookTeardown:
		return s.Teardown
	default:
		return ""
	}
}

// Render produces the hook library source. Each function opens with a ":"
// no-op so empty hook bodies still parse.
func Render(spec Spec) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("# Hook library generated by easy-slurm.\n")
	b.WriteString("# Each hook is a bash function; a hook body may call another hook by name.\n")
	for _, h := range All {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s() {\n", h)
		b.WriteString("  :\n")
		if body := reindent(spec.body(h)); body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// reindent strips the body's common leading whitespace and indents it two
// spaces to sit inside its function.
func reindent(body string) string {
	body = strings.Trim(body, "\n")
	if strings.TrimSpace(body) == "" {
		return ""
	}
	lines := strings.Split(body, "\n")

	margin := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin < 0 {
		margin = 0
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = "  " + line[margin:]
	}
	return strings.Join(lines, "\n")
}

// Runner executes hooks from a rendered hook library.
type Runner struct {
	scriptPath string
}

// NewRunner binds a runner to a hook library file.
func NewRunner(scriptPath string) *Runner {
	return &Runner{scriptPath: scriptPath}
}

// Command builds the exec.Cmd for a hook without starting it. The workload
// supervisor uses this to control process-group placement; everything else
// goes through Run.
func (r *Runner) Command(hook Hook, dir string) *exec.Cmd {
	// $0 carries the library path, so hook bodies with quotes can't break
	// out of the command string.
	cmd := exec.Command("bash", "-c", fmt.Sprintf(`source "$0" && %s`, hook), r.scriptPath)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Run executes a hook synchronously in dir. A non-zero exit comes back as a
// HookError carrying the hook's exit status.
func (r *Runner) Run(hook Hook, dir string) error {
	if !known(hook) {
		return fmt.Errorf("unknown hook %q", hook)
	}
	if err := r.Command(hook, dir).Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return NewHookError(hook, exitErr.ExitCode(), err)
		}
		return NewHookError(hook, 1, err)
	}
	return nil
}

func known(h Hook) bool {
	for _, known := range All {
		if h == known {
			return true
		}
	}
	return false
}
