package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YodaEmbedding/easy-slurm/internal/scheduler"
	"github.com/YodaEmbedding/easy-slurm/internal/status"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	opts := NewOptions()
	opts.JobDir = filepath.Join(t.TempDir(), "{job_name}")
	opts.SbatchOptions = map[string]any{
		"job-name": "demo",
		"time":     "3:00:00",
	}
	opts.OnRun = "python main.py"
	return opts
}

func TestCreateLaysOutJobDirectory(t *testing.T) {
	opts := testOptions(t)
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "main.py"), []byte("print()\n"), 0o664); err != nil {
		t.Fatal(err)
	}
	opts.Src = srcDir

	d, err := Create(opts)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if filepath.Base(d.Path) != "demo" {
		t.Errorf("job dir = %q; want job_name template resolved to demo", d.Path)
	}

	for _, path := range []string{
		d.StatusPath(),
		d.ScriptPath(),
		d.InteractiveScriptPath(),
		d.HooksPath(),
		d.SrcArchivePath(),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", filepath.Base(path), err)
		}
	}
	if _, err := os.Stat(d.AssetsArchivePath()); err == nil {
		t.Error("assets archive created with no assets configured")
	}

	rec, err := d.LoadStatus()
	if err != nil {
		t.Fatalf("LoadStatus() error: %v", err)
	}
	if rec.Phase != status.PhaseNew {
		t.Errorf("initial phase = %v; want %v", rec.Phase, status.PhaseNew)
	}
	if rec.ResubmitCount != 0 {
		t.Errorf("initial resubmit count = %d; want 0", rec.ResubmitCount)
	}

	info, err := os.Stat(d.ScriptPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("job.sh is not executable")
	}
}

func TestCreateRefusesExistingDirectory(t *testing.T) {
	opts := testOptions(t)
	if _, err := Create(opts); err != nil {
		t.Fatalf("first Create() error: %v", err)
	}
	if _, err := Create(opts); err == nil {
		t.Error("second Create() error = nil; want collision error")
	}
}

func TestJobScriptContents(t *testing.T) {
	opts := testOptions(t)
	opts.SbatchOptions["output"] = "user-output.log"
	opts.CleanupSeconds = 90
	opts.ResubmitLimit = 7
	opts.Dataset = "/data/corpus.tar"

	d, err := Create(opts)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	data, err := os.ReadFile(d.ScriptPath())
	if err != nil {
		t.Fatal(err)
	}
	script := string(data)

	for _, want := range []string{
		"#!/bin/bash\n",
		"#SBATCH --job-name=demo\n",
		"#SBATCH --time=3:00:00\n",
		fmt.Sprintf("#SBATCH --output=%s/slurm_jobid%%j_%%x.out\n", d.Path),
		"#SBATCH --signal=B:USR1@90\n",
		fmt.Sprintf("export %s='%s'\n", EnvJobDir, d.Path),
		fmt.Sprintf("export %s='/data/corpus.tar'\n", EnvDatasetPath),
		fmt.Sprintf("export %s='7'\n", EnvResubmitLimit),
		fmt.Sprintf("export %s='symlink'\n", EnvResultsSync),
		` agent "$@"` + "\n",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("job.sh missing %q:\n%s", want, script)
		}
	}
	// The log path is forced; the user's output option must not survive.
	if strings.Contains(script, "user-output.log") {
		t.Error("job.sh kept the user-supplied output option")
	}
	if !strings.HasPrefix(script, "#!/bin/bash\n") {
		t.Error("job.sh does not start with a shebang")
	}
}

func TestInteractiveScriptContents(t *testing.T) {
	opts := testOptions(t)
	d, err := Create(opts)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	data, err := os.ReadFile(d.InteractiveScriptPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), " agent --interactive\n") {
		t.Errorf("job_interactive.sh missing agent --interactive handoff:\n%s", data)
	}
}

func TestOpenRejectsNonJobDirectories(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Open(missing) error = nil; want error")
	}
	empty := t.TempDir()
	if _, err := Open(empty); err == nil {
		t.Error("Open(no status) error = nil; want error")
	}

	opts := testOptions(t)
	d, err := Create(opts)
	if err != nil {
		t.Fatal(err)
	}
	reopened, err := Open(d.Path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if reopened.Path != d.Path {
		t.Errorf("Open().Path = %q; want %q", reopened.Path, d.Path)
	}
}

func TestAllocationLog(t *testing.T) {
	d := &Dir{Path: t.TempDir()}

	ids, err := d.AllocationIDs()
	if err != nil {
		t.Fatalf("AllocationIDs() on empty dir error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("AllocationIDs() = %v; want empty", ids)
	}

	if err := d.WriteAllocationID("100"); err != nil {
		t.Fatal(err)
	}
	if err := d.AppendAllocationID("101"); err != nil {
		t.Fatal(err)
	}
	if err := d.AppendAllocationID("102"); err != nil {
		t.Fatal(err)
	}

	ids, err = d.AllocationIDs()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"100", "101", "102"}
	if len(ids) != len(want) {
		t.Fatalf("AllocationIDs() = %v; want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("AllocationIDs()[%d] = %q; want %q", i, ids[i], want[i])
		}
	}

	// A fresh submission starts the log over.
	if err := d.WriteAllocationID("200"); err != nil {
		t.Fatal(err)
	}
	ids, err = d.AllocationIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "200" {
		t.Errorf("AllocationIDs() after rewrite = %v; want [200]", ids)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("ES_TEST_ROOT", "/srv/data")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"$ES_TEST_ROOT/set.tar", "/srv/data/set.tar"},
		{"~/jobs", filepath.Join(home, "jobs")},
	}

	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}

	if got := ExpandPath("relative/path"); !filepath.IsAbs(got) {
		t.Errorf("ExpandPath(relative) = %q; want absolute", got)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"/path with space", "'/path with space'"},
		{"it's", `'it'"'"'s'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestAllocationLockFencesSecondHolder(t *testing.T) {
	d := &Dir{Path: t.TempDir()}

	lock, err := d.AcquireAllocationLock()
	if err != nil {
		t.Fatalf("AcquireAllocationLock() error: %v", err)
	}
	if _, err := d.AcquireAllocationLock(); err == nil {
		t.Error("second AcquireAllocationLock() error = nil; want fence error")
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	relock, err := d.AcquireAllocationLock()
	if err != nil {
		t.Fatalf("AcquireAllocationLock() after release error: %v", err)
	}
	relock.Close()
}

func TestSubmitBatchRecordsAllocationID(t *testing.T) {
	opts := testOptions(t)
	opts.Submit = false
	d, err := Create(opts)
	if err != nil {
		t.Fatal(err)
	}

	sbatch := filepath.Join(t.TempDir(), "sbatch")
	script := "#!/bin/sh\necho \"Submitted batch job 4242\"\n"
	if err := os.WriteFile(sbatch, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	sched, err := scheduler.NewSlurmSchedulerWithBinaries(sbatch, "")
	if err != nil {
		t.Fatalf("NewSlurmSchedulerWithBinaries() error: %v", err)
	}

	if err := Submit(d, sched, false); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	ids, err := d.AllocationIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "4242" {
		t.Errorf("AllocationIDs() = %v; want [4242]", ids)
	}
}

func TestSubmitBatchFailureWritesNothing(t *testing.T) {
	opts := testOptions(t)
	opts.Submit = false
	d, err := Create(opts)
	if err != nil {
		t.Fatal(err)
	}

	sbatch := filepath.Join(t.TempDir(), "sbatch")
	script := "#!/bin/sh\necho \"sbatch: error: invalid partition\" >&2\nexit 1\n"
	if err := os.WriteFile(sbatch, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	sched, err := scheduler.NewSlurmSchedulerWithBinaries(sbatch, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := Submit(d, sched, false); err == nil {
		t.Fatal("Submit() error = nil; want submission failure")
	}
	ids, err := d.AllocationIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("AllocationIDs() after failed submit = %v; want empty", ids)
	}
}
