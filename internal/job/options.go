package job

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/hooks"
)

// Default values applied before any job file or flag is read.
const (
	DefaultCleanupSeconds = 120
	DefaultResubmitLimit  = 64
	DefaultJobName        = "untitled"
)

// Options describes one job submission. The zero value is not usable;
// start from NewOptions so absent YAML keys keep their defaults.
type Options struct {
	// JobDir is a template for the directory that will hold all job files.
	// It may contain placeholders resolved against Config plus the built-in
	// job_name and date keys, e.g. "~/jobs/{date}-{job_name}".
	JobDir string `yaml:"job_dir"`

	// Src and Assets are directories frozen into $JOB_DIR/src.tar.gz and
	// $JOB_DIR/assets.tar.gz at submission time. Either may be empty.
	Src    string `yaml:"src"`
	Assets string `yaml:"assets"`

	// Dataset is a path to a .tar or .tar.gz archive extracted into the
	// per-allocation scratch area. It is referenced, never copied.
	Dataset string `yaml:"dataset"`

	Setup       string `yaml:"setup"`
	SetupResume string `yaml:"setup_resume"`
	OnRun       string `yaml:"on_run"`
	OnRunResume string `yaml:"on_run_resume"`
	Teardown    string `yaml:"teardown"`

	// SbatchOptions is passed through to #SBATCH directives, one per key.
	SbatchOptions map[string]any `yaml:"sbatch_options"`

	// CleanupSeconds is how long before the hard kill the scheduler should
	// deliver the interrupt warning signal.
	CleanupSeconds int `yaml:"cleanup_seconds"`

	// Submit controls whether the created job directory is submitted
	// immediately. When false the directory is created and left for a
	// later manual submission.
	Submit bool `yaml:"submit"`

	// Interactive runs the job as a blocking interactive session.
	Interactive bool `yaml:"interactive"`

	// ResubmitLimit bounds automatic continuation submissions. A limit of
	// zero disables resubmission entirely.
	ResubmitLimit int `yaml:"resubmit_limit"`

	// ResultsSyncMethod is one of "rsync", "symlink", or "targz".
	ResultsSyncMethod string `yaml:"results_sync_method"`

	// Config holds values available to JobDir template placeholders.
	Config map[string]any `yaml:"config"`
}

// NewOptions returns Options with all defaults filled in.
func NewOptions() *Options {
	return &Options{
		CleanupSeconds:    DefaultCleanupSeconds,
		Submit:            true,
		ResubmitLimit:     DefaultResubmitLimit,
		ResultsSyncMethod: string(archive.SyncSymlink),
	}
}

// LoadOptions reads a job file in YAML form. Keys absent from the file
// keep their defaults, so a minimal job file stays minimal.
func LoadOptions(path string) (*Options, error) {
	opts := NewOptions()
	if err := LoadOptionsInto(path, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// LoadOptionsInto unmarshals a job file over an existing options value.
// Callers that layer site-wide defaults under the file seed opts first.
func LoadOptionsInto(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read job file: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads a formatting config file (YAML key-value data made
// available to JobDir template placeholders).
func LoadConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// Validate checks option coherence before any filesystem work happens.
func (o *Options) Validate() error {
	if o.JobDir == "" {
		return fmt.Errorf("job_dir must not be empty")
	}
	if o.CleanupSeconds <= 0 {
		return fmt.Errorf("cleanup_seconds must be positive, got %d", o.CleanupSeconds)
	}
	if o.ResubmitLimit < 0 {
		return fmt.Errorf("resubmit_limit must not be negative, got %d", o.ResubmitLimit)
	}
	if _, err := archive.ParseSyncMethod(o.ResultsSyncMethod); err != nil {
		return err
	}
	return nil
}

// JobName returns the sbatch job name, or a placeholder when unset.
func (o *Options) JobName() string {
	if v, ok := o.SbatchOptions["job-name"]; ok {
		return fmt.Sprintf("%v", v)
	}
	return DefaultJobName
}

// HookSpec collects the five hook bodies for rendering.
func (o *Options) HookSpec() hooks.Spec {
	return hooks.Spec{
		Setup:       o.Setup,
		SetupResume: o.SetupResume,
		OnRun:       o.OnRun,
		OnRunResume: o.OnRunResume,
		Teardown:    o.Teardown,
	}
}

// sortedSbatchKeys returns the user's sbatch option names in stable order,
// excluding the directives the job script forces itself.
func (o *Options) sortedSbatchKeys() []string {
	keys := make([]string, 0, len(o.SbatchOptions))
	for k := range o.SbatchOptions {
		if k == "output" || k == "signal" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
