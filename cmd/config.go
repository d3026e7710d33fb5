package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/config"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

var showPath bool

// configKeys is the list of known configuration keys for shell completion
var configKeys = []string{
	"sbatch_bin",
	"srun_bin",
	"cleanup_seconds",
	"resubmit_limit",
	"results_sync_method",
	"interactive_shell",
	"metrics_gateway",
}

// configKeysCompletion returns config keys for shell completion
func configKeysCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		// First arg: complete config keys
		return configKeys, cobra.ShellCompDirectiveNoFileComp
	}
	if len(args) == 1 {
		// Second arg: complete values based on the key
		return configValueCompletion(args[0]), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// configValueCompletion returns suggested values for a config key
func configValueCompletion(key string) []string {
	switch key {
	case "results_sync_method":
		return []string{"symlink", "rsync", "targz"}
	case "interactive_shell":
		return []string{"bash", "zsh", "fish"}
	case "cleanup_seconds":
		return []string{"60", "120", "300"}
	case "resubmit_limit":
		return []string{"0", "8", "64"}
	default:
		return nil
	}
}

// getConfigEnvVars returns the environment variable names recognized for
// config overrides, derived from configKeys.
func getConfigEnvVars() []string {
	vars := make([]string, 0, len(configKeys))
	for _, key := range configKeys {
		vars = append(vars, "EASY_SLURM_"+strings.ToUpper(key))
	}
	return vars
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage easy-slurm configuration",
	Long: `Manage easy-slurm configuration settings.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (EASY_SLURM_*)
  3. User config file (~/.config/easy-slurm/config.yaml)
  4. System config file (/etc/easy-slurm/config.yaml)
  5. Defaults`,
	// Bare `config` behaves like `config show`.
	Run: func(cmd *cobra.Command, args []string) {
		configShowCmd.Run(cmd, args)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if showPath {
			configPath, err := config.GetUserConfigPath()
			if err != nil {
				ExitWithError("Failed to get config path: %v", err)
			}
			fmt.Println(configPath)
			return
		}

		fmt.Println(utils.StyleTitle("Config File:"))
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("  %s\n", used)
		} else {
			configPath, _ := config.GetUserConfigPath()
			fmt.Printf("  %s (use 'easy-slurm config init' to create %s)\n",
				utils.StyleWarning("none found"), configPath)
		}
		fmt.Println()

		fmt.Println(utils.StyleTitle("Scheduler Binaries:"))
		printBinarySetting("sbatch_bin", config.Global.SbatchBin)
		printBinarySetting("srun_bin", config.Global.SrunBin)
		fmt.Println()

		fmt.Println(utils.StyleTitle("Job Defaults:"))
		fmt.Printf("  cleanup_seconds:      %d\n", config.Global.CleanupSeconds)
		fmt.Printf("  resubmit_limit:       %d\n", config.Global.ResubmitLimit)
		fmt.Printf("  results_sync_method:  %s\n", config.Global.ResultsSyncMethod)
		fmt.Printf("  interactive_shell:    %s\n", config.Global.InteractiveShell)
		fmt.Println()

		fmt.Println(utils.StyleTitle("Metrics:"))
		if config.Global.MetricsGateway != "" {
			fmt.Printf("  metrics_gateway:      %s\n", config.Global.MetricsGateway)
		} else {
			fmt.Printf("  metrics_gateway:      %s\n", utils.StyleNote("disabled"))
		}
		fmt.Println()

		// Show environment variable overrides
		fmt.Println(utils.StyleTitle("Environment Variable Overrides:"))
		hasEnvOverrides := false
		for _, envVar := range getConfigEnvVars() {
			if val := os.Getenv(envVar); val != "" {
				fmt.Printf("  %s=%s\n", envVar, val)
				hasEnvOverrides = true
			}
		}
		if !hasEnvOverrides {
			fmt.Printf("  %s\n", utils.StyleNote("none"))
		}
	},
}

// printBinarySetting shows a binary path with its availability.
func printBinarySetting(key, bin string) {
	if bin == "" {
		fmt.Printf("  %s:  %s\n", key, utils.StyleWarning("not found"))
		return
	}
	if config.ValidateBinary(bin) {
		fmt.Printf("  %s:  %s\n", key, bin)
	} else {
		fmt.Printf("  %s:  %s %s\n", key, bin, utils.StyleWarning("(not executable)"))
	}
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Example: `  easy-slurm config get sbatch_bin
  easy-slurm config get resubmit_limit`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: configKeysCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := viper.Get(key)
		if value == nil {
			ExitWithError("Unknown config key: %s", key)
		}
		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the user config file.

Examples:
  easy-slurm config set sbatch_bin /opt/slurm/bin/sbatch
  easy-slurm config set resubmit_limit 8
  easy-slurm config set results_sync_method rsync
  easy-slurm config set metrics_gateway http://pushgw:9091`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: configKeysCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		known := false
		for _, k := range configKeys {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			utils.PrintWarning("Warning: '%s' is not a standard config key", key)
		}

		if key == "results_sync_method" {
			if _, err := archive.ParseSyncMethod(value); err != nil {
				ExitWithError("%v", err)
			}
		}

		// Set the value
		viper.Set(key, value)

		// Save to config file
		if err := config.SaveConfig(); err != nil {
			ExitWithError("Failed to save config: %v", err)
		}

		configPath, _ := config.GetUserConfigPath()
		utils.PrintSuccess("Set %s = %s", utils.StyleName(key), value)
		utils.PrintNote("Config saved to: %s", configPath)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with defaults",
	Long: `Create the user configuration file with default values and the sbatch
and srun paths detected in the current environment.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			ExitWithError("Failed to get config path: %v", err)
		}

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			utils.PrintWarning("Config file already exists: %s", configPath)
			fmt.Print("Overwrite? [y/N]: ")
			var response string
			fmt.Scanln(&response)
			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				utils.PrintNote("Cancelled")
				return
			}
		}

		// Force re-detect binaries from current environment and save
		if _, err := config.ForceDetectAndSave(); err != nil {
			ExitWithError("Failed to save config: %v", err)
		}

		utils.PrintSuccess("Config file created")
		fmt.Printf("  Location: %s\n", utils.StylePath(configPath))

		// Show what was detected
		fmt.Println()
		fmt.Println(utils.StyleTitle("Detected settings:"))
		printBinarySetting("sbatch_bin", viper.GetString("sbatch_bin"))
		printBinarySetting("srun_bin", viper.GetString("srun_bin"))
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit config file in default editor",
	Long:  "Open the configuration file in your default text editor ($EDITOR)",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, err := config.GetUserConfigPath()
		if err != nil {
			ExitWithError("Failed to get config path: %v", err)
		}

		// Create config if it doesn't exist
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			utils.PrintNote("Config file doesn't exist, creating it first...")
			if err := config.SaveConfig(); err != nil {
				ExitWithError("Failed to create config: %v", err)
			}
		}

		// Get editor from environment
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi" // fallback to vi
		}

		// Open editor
		editorCmd := exec.Command(editor, configPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr

		if err := editorCmd.Run(); err != nil {
			ExitWithError("Failed to open editor: %v", err)
		}
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Check that the current configuration is coherent and the scheduler binaries are accessible",
	Run: func(cmd *cobra.Command, args []string) {
		valid := true

		// Scheduler binaries: missing is a warning (jobs can still be
		// created with --submit=false), not executable is an error.
		for _, check := range []struct {
			key string
			bin string
		}{
			{"sbatch_bin", viper.GetString("sbatch_bin")},
			{"srun_bin", viper.GetString("srun_bin")},
		} {
			switch {
			case check.bin == "":
				fmt.Printf("%s %s: not configured\n", utils.StyleWarning("!"), check.key)
			case config.ValidateBinary(check.bin):
				fmt.Printf("%s %s: %s\n", utils.StyleSuccess("+"), check.key, check.bin)
			default:
				fmt.Printf("%s %s: %s is not executable\n", utils.StyleError("x"), check.key, check.bin)
				valid = false
			}
		}

		if secs := viper.GetInt("cleanup_seconds"); secs > 0 {
			fmt.Printf("%s cleanup_seconds: %d\n", utils.StyleSuccess("+"), secs)
		} else {
			fmt.Printf("%s cleanup_seconds must be > 0: %d\n", utils.StyleError("x"), secs)
			valid = false
		}

		if limit := viper.GetInt("resubmit_limit"); limit >= 0 {
			fmt.Printf("%s resubmit_limit: %d\n", utils.StyleSuccess("+"), limit)
		} else {
			fmt.Printf("%s resubmit_limit must be >= 0: %d\n", utils.StyleError("x"), limit)
			valid = false
		}

		method := viper.GetString("results_sync_method")
		if _, err := archive.ParseSyncMethod(method); err == nil {
			fmt.Printf("%s results_sync_method: %s\n", utils.StyleSuccess("+"), method)
		} else {
			fmt.Printf("%s results_sync_method: %v\n", utils.StyleError("x"), err)
			valid = false
		}

		fmt.Println()
		if valid {
			utils.PrintSuccess("Configuration is valid")
		} else {
			ExitWithError("Configuration has errors")
		}
	},
}

func init() {
	// Add flags
	configShowCmd.Flags().BoolVar(&showPath, "path", false, "Show only the config file path")

	// Add subcommands
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configValidateCmd)

	// Add to root command
	rootCmd.AddCommand(configCmd)
}
