package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YodaEmbedding/easy-slurm/internal/config"
	"github.com/YodaEmbedding/easy-slurm/internal/hooks"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

var (
	debugMode bool
	quietMode bool
)

var rootCmd = &cobra.Command{
	Use:           "easy-slurm",
	Short:         "Submit auto-resuming SLURM jobs that outlive their time limit.",
	Version:       config.VERSION,
	SilenceErrors: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Step 1: Load defaults
		config.LoadDefaults()

		// Step 2: Initialize Viper (read config file, env vars)
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading config file: %v", err)
		}

		// Step 3: Auto-detect scheduler binaries if needed and save to config
		updated, err := config.AutoDetectAndSave()
		if err != nil {
			utils.PrintDebug("Failed to save config: %v", err)
		} else if updated {
			if configPath, err := config.GetUserConfigPath(); err == nil {
				utils.PrintDebug("Auto-detected binaries saved to: %s", configPath)
			}
		}

		// Step 4: Load detected values from Viper into Global config
		config.LoadFromViper()

		// Step 5: Apply command-line flags (highest priority)
		if quietMode {
			utils.QuietMode = true
		}
		if debugMode {
			utils.DebugMode = true
			config.Global.Debug = true
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("easy-slurm version: %s", utils.StyleNumber(config.VERSION))
			utils.PrintDebug("sbatch binary: %s", config.Global.SbatchBin)
			utils.PrintDebug("srun binary: %s", config.Global.SrunBin)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra's automatic error printing is silenced. Hook failures exit
		// with the hook's own status so the scheduler log and downstream
		// tooling see the workload's real exit code; everything else is a
		// plain error with exit 1.
		if hooks.IsHookError(err) {
			utils.PrintError("%v", err)
			os.Exit(hooks.ExitStatus(err))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress informational output (errors still shown)")
}
