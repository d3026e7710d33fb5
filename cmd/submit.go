package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/YodaEmbedding/easy-slurm/internal/config"
	"github.com/YodaEmbedding/easy-slurm/internal/format"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Variables to hold flag values
var (
	submitJobFile string
	submitJobDir  string
	submitSrc     string
	submitAssets  string
	submitDataset string

	submitSetup       string
	submitSetupResume string
	submitOnRun       string
	submitOnRunResume string
	submitTeardown    string

	submitSbatchOptions string
	submitConfigValues  string
	submitConfigFile    string

	submitCleanupSeconds int
	submitDoSubmit       bool
	submitInteractive    bool
	submitResubmitLimit  int
	submitSyncMethod     string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a job directory and submit it to the scheduler",
	Long: `Create a self-contained job directory (frozen source, generated scripts,
status file) and submit it with sbatch.

Options come from three layers, highest priority last:
  1. Site defaults (config file / EASY_SLURM_* environment)
  2. The job file given with --job
  3. Command-line flags`,
	Example: `  easy-slurm submit --job job.yaml
  easy-slurm submit --job job.yaml --resubmit-limit 8
  easy-slurm submit --job-dir ~/jobs/demo --src ./src --on-run "python main.py"
  easy-slurm submit --job job.yaml --interactive`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := collectOptions(cmd)
		if err != nil {
			ExitWithError("%v", err)
		}

		d, err := job.Create(opts)
		if err != nil {
			ExitWithError("Failed to create job directory: %v", err)
		}
		utils.PrintSuccess("Created job directory %s", utils.StylePath(d.Path))

		if !opts.Submit {
			utils.PrintNote("Submission disabled; submit later with: easy-slurm resubmit %s", d.Path)
			return
		}

		sched, err := newScheduler()
		if err != nil {
			ExitWithError("%v", err)
		}
		if err := job.Submit(d, sched, opts.Interactive); err != nil {
			ExitWithError("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	// Register Flags
	f := submitCmd.Flags()
	f.StringVarP(&submitJobFile, "job", "j", "", "Job file (YAML) describing the submission")
	f.StringVar(&submitJobDir, "job-dir", "", "Job directory template, e.g. ~/jobs/{date}-{job_name}")
	f.StringVar(&submitSrc, "src", "", "Source directory frozen into the job directory")
	f.StringVar(&submitAssets, "assets", "", "Assets directory frozen into the job directory")
	f.StringVar(&submitDataset, "dataset", "", "Dataset archive (.tar or .tar.gz) staged to scratch each run")

	f.StringVar(&submitSetup, "setup", "", "Commands run once before the first workload run")
	f.StringVar(&submitSetupResume, "setup-resume", "", "Commands run before each resumed run")
	f.StringVar(&submitOnRun, "on-run", "", "The workload command for the first run")
	f.StringVar(&submitOnRunResume, "on-run-resume", "", "The workload command for resumed runs")
	f.StringVar(&submitTeardown, "teardown", "", "Commands run during finalization")

	f.StringVar(&submitSbatchOptions, "sbatch-options", "", `Extra #SBATCH directives as a mapping, e.g. '{"time": "3:00:00", "mem": 8000}'`)
	f.StringVar(&submitConfigValues, "config", "", `Values for job-dir template placeholders, e.g. '{"lr": 0.01}'`)
	f.StringVar(&submitConfigFile, "config-file", "", "YAML file with values for job-dir template placeholders")

	f.IntVar(&submitCleanupSeconds, "cleanup-seconds", job.DefaultCleanupSeconds, "Seconds between the interrupt warning and the hard kill")
	f.BoolVar(&submitDoSubmit, "submit", true, "Submit after creating the job directory")
	f.BoolVar(&submitInteractive, "interactive", false, "Run as a blocking interactive session instead of a batch job")
	f.IntVar(&submitResubmitLimit, "resubmit-limit", job.DefaultResubmitLimit, "Maximum number of automatic continuations (0 disables)")
	f.StringVar(&submitSyncMethod, "results-sync-method", "", "How results survive across runs: symlink, rsync, or targz")
}

// collectOptions builds the effective job options from site defaults, the
// job file, and flags, in that order.
func collectOptions(cmd *cobra.Command) (*job.Options, error) {
	opts := job.NewOptions()
	applySiteDefaults(opts)

	if submitJobFile != "" {
		if err := job.LoadOptionsInto(submitJobFile, opts); err != nil {
			return nil, err
		}
	}

	if err := applyFlagOverrides(cmd.Flags(), opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// applySiteDefaults seeds options with the installation-wide settings, so
// jobs that do not care inherit the site's values.
func applySiteDefaults(opts *job.Options) {
	if config.Global.CleanupSeconds > 0 {
		opts.CleanupSeconds = config.Global.CleanupSeconds
	}
	if config.Global.ResubmitLimit >= 0 {
		opts.ResubmitLimit = config.Global.ResubmitLimit
	}
	if config.Global.ResultsSyncMethod != "" {
		opts.ResultsSyncMethod = config.Global.ResultsSyncMethod
	}
}

// applyFlagOverrides copies explicitly-set flags over the loaded options.
// Only changed flags count, so flag defaults never mask job file values.
func applyFlagOverrides(flags *pflag.FlagSet, opts *job.Options) error {
	setString := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	setString("job-dir", &opts.JobDir, submitJobDir)
	setString("src", &opts.Src, submitSrc)
	setString("assets", &opts.Assets, submitAssets)
	setString("dataset", &opts.Dataset, submitDataset)
	setString("setup", &opts.Setup, submitSetup)
	setString("setup-resume", &opts.SetupResume, submitSetupResume)
	setString("on-run", &opts.OnRun, submitOnRun)
	setString("on-run-resume", &opts.OnRunResume, submitOnRunResume)
	setString("teardown", &opts.Teardown, submitTeardown)
	setString("results-sync-method", &opts.ResultsSyncMethod, submitSyncMethod)

	if flags.Changed("cleanup-seconds") {
		opts.CleanupSeconds = submitCleanupSeconds
	}
	if flags.Changed("submit") {
		opts.Submit = submitDoSubmit
	}
	if flags.Changed("interactive") {
		opts.Interactive = submitInteractive
	}
	if flags.Changed("resubmit-limit") {
		opts.ResubmitLimit = submitResubmitLimit
	}

	if flags.Changed("sbatch-options") {
		parsed, err := parseMappingFlag("sbatch-options", submitSbatchOptions)
		if err != nil {
			return err
		}
		opts.SbatchOptions = mergeMaps(opts.SbatchOptions, parsed)
	}
	if flags.Changed("config-file") {
		loaded, err := job.LoadConfig(submitConfigFile)
		if err != nil {
			return err
		}
		if opts.Config, err = applyConfigValues(opts.Config, loaded); err != nil {
			return fmt.Errorf("invalid config file %s: %w", submitConfigFile, err)
		}
	}
	if flags.Changed("config") {
		parsed, err := parseMappingFlag("config", submitConfigValues)
		if err != nil {
			return err
		}
		if opts.Config, err = applyConfigValues(opts.Config, parsed); err != nil {
			return fmt.Errorf("invalid --config value: %w", err)
		}
	}
	return nil
}

// parseMappingFlag parses a mapping-valued flag. YAML flow syntax is a
// superset of JSON, so both '{"mem": 8000}' and '{mem: 8000}' work.
func parseMappingFlag(name, value string) (map[string]any, error) {
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return parsed, nil
}

// mergeMaps overlays src onto dst key by key, preserving dst keys that src
// does not mention.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// applyConfigValues sets each value from src into dst, expanding dotted
// keys into nested mappings so "--config '{hp.lr: 0.001}'" targets the
// same slot as the template lookup {hp.lr}.
func applyConfigValues(dst, src map[string]any) (map[string]any, error) {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if err := format.Set(dst, strings.Split(k, "."), v); err != nil {
			return nil, err
		}
	}
	return dst, nil
}
