package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLibrary(t *testing.T, spec Spec) *Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(Render(spec)), 0o775); err != nil {
		t.Fatalf("write hook library: %v", err)
	}
	return NewRunner(path)
}

func TestRenderEmptySpecIsValidBash(t *testing.T) {
	rendered := Render(Spec{})
	for _, h := range All {
		if !strings.Contains(rendered, string(h)+"() {") {
			t.Errorf("Render() missing function for %s", h)
		}
	}
	// An empty function body would be a bash syntax error; the ":" no-op
	// keeps every function valid.
	if strings.Contains(rendered, "{\n}") {
		t.Error("Render() produced an empty function body")
	}

	// The empty hooks must actually run.
	runner := writeLibrary(t, Spec{})
	for _, h := range All {
		if err := runner.Run(h, t.TempDir()); err != nil {
			t.Errorf("Run(%s) on empty spec error: %v", h, err)
		}
	}
}

func TestRunExecutesInWorkingDirectory(t *testing.T) {
	runner := writeLibrary(t, Spec{
		Setup: "pwd > where.txt\ntouch marker",
	})
	dir := t.TempDir()
	if err := runner.Run(HookSetup, dir); err != nil {
		t.Fatalf("Run(setup) error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Errorf("marker not created in working directory: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "where.txt"))
	if err != nil {
		t.Fatalf("read where.txt: %v", err)
	}
	got := strings.TrimSpace(string(data))
	want, _ := filepath.EvalSymlinks(dir)
	if gotResolved, err := filepath.EvalSymlinks(got); err == nil {
		got = gotResolved
	}
	if got != want {
		t.Errorf("hook ran in %q; want %q", got, want)
	}
}

func TestRunPropagatesExitStatus(t *testing.T) {
	runner := writeLibrary(t, Spec{
		Teardown: "exit 3",
	})
	err := runner.Run(HookTeardown, t.TempDir())
	if err == nil {
		t.Fatal("Run(teardown) error = nil; want failure")
	}
	if !IsHookError(err) {
		t.Fatalf("Run(teardown) error = %T; want *HookError", err)
	}
	var he *HookError
	errors.As(err, &he)
	if he.ExitCode != 3 {
		t.Errorf("ExitCode = %d; want 3", he.ExitCode)
	}
	if got := ExitStatus(err); got != 3 {
		t.Errorf("ExitStatus() = %d; want 3", got)
	}
}

func TestHookMayCallAnotherHook(t *testing.T) {
	// setup_resume="setup" reuses the setup function, the documented way to
	// share logic between first runs and resumes.
	runner := writeLibrary(t, Spec{
		Setup:       "echo ran >> calls.txt",
		SetupResume: "setup",
	})
	dir := t.TempDir()
	if err := runner.Run(HookSetupResume, dir); err != nil {
		t.Fatalf("Run(setup_resume) error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "calls.txt"))
	if err != nil {
		t.Fatalf("read calls.txt: %v", err)
	}
	if strings.TrimSpace(string(data)) != "ran" {
		t.Errorf("calls.txt = %q; want \"ran\"", strings.TrimSpace(string(data)))
	}
}

func TestRenderReindentsBodies(t *testing.T) {
	spec := Spec{
		Setup: "\n    first\n      second\n    third\n",
	}
	rendered := Render(spec)
	if !strings.Contains(rendered, "\n  first\n    second\n  third\n") {
		t.Errorf("Render() did not normalize indentation:\n%s", rendered)
	}
}

func TestRunUnknownHook(t *testing.T) {
	runner := writeLibrary(t, Spec{})
	if err := runner.Run(Hook("cleanup"), t.TempDir()); err == nil {
		t.Error("Run(cleanup) error = nil; want unknown hook error")
	}
}

func TestExitStatusFallsBackToOne(t *testing.T) {
	if got := ExitStatus(errors.New("plain failure")); got != 1 {
		t.Errorf("ExitStatus(plain) = %d; want 1", got)
	}
}
