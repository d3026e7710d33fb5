package job

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/format"
	"github.com/YodaEmbedding/easy-slurm/internal/hooks"
	"github.com/YodaEmbedding/easy-slurm/internal/status"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Well-known file names inside a job directory.
const (
	ScriptName            = "job.sh"
	InteractiveScriptName = "job_interactive.sh"
	SrcArchiveName        = "src.tar.gz"
	AssetsArchiveName     = "assets.tar.gz"
	ResultsArchiveName    = "results.tar.gz"
	ResultsDirName        = "results"
	AllocationLogName     = "job_ids"
	LockName              = ".lock"
)

// Dir is a handle to one job directory, the durable root shared by all
// allocations of a logical job.
type Dir struct {
	Path string
}

func (d *Dir) StatusPath() string            { return filepath.Join(d.Path, status.FileName) }
func (d *Dir) ScriptPath() string            { return filepath.Join(d.Path, ScriptName) }
func (d *Dir) InteractiveScriptPath() string { return filepath.Join(d.Path, InteractiveScriptName) }
func (d *Dir) HooksPath() string             { return filepath.Join(d.Path, hooks.FileName) }
func (d *Dir) SrcArchivePath() string        { return filepath.Join(d.Path, SrcArchiveName) }
func (d *Dir) AssetsArchivePath() string     { return filepath.Join(d.Path, AssetsArchiveName) }
func (d *Dir) ResultsArchivePath() string    { return filepath.Join(d.Path, ResultsArchiveName) }
func (d *Dir) ResultsPath() string           { return filepath.Join(d.Path, ResultsDirName) }
func (d *Dir) AllocationLogPath() string     { return filepath.Join(d.Path, AllocationLogName) }
func (d *Dir) LockPath() string              { return filepath.Join(d.Path, LockName) }

// Open returns a handle to an existing job directory. The directory must
// contain a status record; anything else is not a job directory.
func Open(path string) (*Dir, error) {
	path = ExpandPath(path)
	if !utils.DirExists(path) {
		return nil, fmt.Errorf("job directory %s does not exist", utils.StylePath(path))
	}
	d := &Dir{Path: path}
	if !utils.FileExists(d.StatusPath()) {
		return nil, fmt.Errorf("%s is not a job directory (no status record)", utils.StylePath(path))
	}
	return d, nil
}

// Create materializes a new job directory from opts: resolves the job_dir
// template, freezes the src/assets archives, writes the initial status
// record, and renders the job scripts. The resolved directory must not
// already exist; colliding with a live job would corrupt its state.
func Create(opts *Options) (*Dir, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	warnShortWalltime(opts)

	config := map[string]any{"job_name": opts.JobName()}
	for k, v := range opts.Config {
		config[k] = v
	}
	path, err := format.Format(opts.JobDir, config)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job_dir template: %w", err)
	}
	path = ExpandPath(path)

	if utils.DirExists(path) {
		return nil, fmt.Errorf("job directory %s already exists", utils.StylePath(path))
	}
	if err := utils.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}
	d := &Dir{Path: path}

	if src := ExpandPath(opts.Src); src != "" {
		utils.PrintDebug("Freezing %s into %s", utils.StylePath(src), utils.StylePath(d.SrcArchivePath()))
		if err := archive.Freeze(src, d.SrcArchivePath(), "src"); err != nil {
			return nil, fmt.Errorf("failed to freeze src: %w", err)
		}
	}
	if assets := ExpandPath(opts.Assets); assets != "" {
		utils.PrintDebug("Freezing %s into %s", utils.StylePath(assets), utils.StylePath(d.AssetsArchivePath()))
		if err := archive.Freeze(assets, d.AssetsArchivePath(), "assets"); err != nil {
			return nil, fmt.Errorf("failed to freeze assets: %w", err)
		}
	}

	if err := status.Save(d.StatusPath(), status.NewRecord()); err != nil {
		return nil, fmt.Errorf("failed to write initial status: %w", err)
	}

	if err := writeScript(d.HooksPath(), hooks.Render(opts.HookSpec())); err != nil {
		return nil, err
	}
	agentPath, err := agentBinaryPath()
	if err != nil {
		return nil, err
	}
	if err := writeScript(d.ScriptPath(), renderJobScript(opts, d, agentPath)); err != nil {
		return nil, err
	}
	if err := writeScript(d.InteractiveScriptPath(), renderInteractiveScript(opts, d, agentPath)); err != nil {
		return nil, err
	}

	return d, nil
}

// LoadStatus reads the current status record.
func (d *Dir) LoadStatus() (status.Record, error) {
	return status.Load(d.StatusPath())
}

// WriteAllocationID starts the allocation log over with a single id.
// Used at first batch submission; continuations append instead.
func (d *Dir) WriteAllocationID(id string) error {
	return os.WriteFile(d.AllocationLogPath(), []byte(id+"\n"), utils.PermFile)
}

// AppendAllocationID adds one id to the allocation log.
func (d *Dir) AppendAllocationID(id string) error {
	f, err := os.OpenFile(d.AllocationLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, utils.PermFile)
	if err != nil {
		return fmt.Errorf("failed to open allocation log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("failed to append allocation id: %w", err)
	}
	return nil
}

// AllocationIDs returns the logged scheduler job ids, oldest first.
func (d *Dir) AllocationIDs() ([]string, error) {
	data, err := os.ReadFile(d.AllocationLogPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}

// ExpandPath resolves environment variables and makes the path absolute.
// Empty stays empty so optional paths pass through untouched.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded := os.ExpandEnv(path)
	if strings.HasPrefix(expanded, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
		}
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return expanded
	}
	return abs
}

func writeScript(path, content string) error {
	if err := os.WriteFile(path, []byte(content), utils.PermScript); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// agentBinaryPath locates the driver binary the job scripts exec. The
// absolute path is baked in so the compute node needs no PATH setup.
func agentBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate own binary: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return exe, nil
	}
	return resolved, nil
}
