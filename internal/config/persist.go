package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (EASY_SLURM_*)
// 3. User config file (~/.config/easy-slurm/config.yaml)
// 4. System config file (/etc/easy-slurm/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	// Set config search paths (order matters)
	// User config (highest priority)
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "easy-slurm"))
	}

	// Home directory fallback
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".easy-slurm"))
	}

	// System-wide config (lower priority)
	viper.AddConfigPath("/etc/easy-slurm")

	// Environment variables
	viper.SetEnvPrefix("EASY_SLURM")
	viper.AutomaticEnv()

	// Set defaults (lowest priority)
	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; will use defaults and auto-detect
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("sbatch_bin", "")
	viper.SetDefault("srun_bin", "")
	viper.SetDefault("cleanup_seconds", job.DefaultCleanupSeconds)
	viper.SetDefault("resubmit_limit", job.DefaultResubmitLimit)
	viper.SetDefault("results_sync_method", string(archive.SyncSymlink))
	viper.SetDefault("interactive_shell", "bash")
	viper.SetDefault("metrics_gateway", "")
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".easy-slurm", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "easy-slurm", ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves current Viper config to user config file
func SaveConfig() error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateBinary checks if a binary exists and is executable
func ValidateBinary(binPath string) bool {
	if binPath == "" {
		return false
	}

	// If it's a full path, check directly
	if filepath.IsAbs(binPath) {
		info, err := os.Stat(binPath)
		if err != nil {
			return false
		}
		// Check if it's executable (unix-style check)
		return info.Mode()&0111 != 0
	}

	// Otherwise, try to find it in PATH
	_, err := exec.LookPath(binPath)
	return err == nil
}

// DetectSchedulerBins attempts to find the SLURM submission binaries.
// Returns full absolute paths, or empty strings for whatever is missing.
func DetectSchedulerBins() (sbatchBin, srunBin string) {
	if path, err := exec.LookPath("sbatch"); err == nil {
		sbatchBin = path
	}
	if path, err := exec.LookPath("srun"); err == nil {
		srunBin = path
	}
	return sbatchBin, srunBin
}

// AutoDetectAndSave auto-detects scheduler binaries and saves to config if
// the configured ones are missing or not executable.
// Returns true if config was updated
func AutoDetectAndSave() (bool, error) {
	updated := false

	sbatchBin := viper.GetString("sbatch_bin")
	srunBin := viper.GetString("srun_bin")
	detectedSbatch, detectedSrun := DetectSchedulerBins()

	if !ValidateBinary(sbatchBin) && detectedSbatch != "" {
		viper.Set("sbatch_bin", detectedSbatch)
		updated = true
	}
	if !ValidateBinary(srunBin) && detectedSrun != "" {
		viper.Set("srun_bin", detectedSrun)
		updated = true
	}

	// Save if anything was updated
	if updated {
		if err := SaveConfig(); err != nil {
			return false, err
		}
	}

	return updated, nil
}

// ForceDetectAndSave always re-detects binaries from the current
// environment and saves, capturing the exact paths from the current PATH.
// Used by `config init`.
// Returns true if config was updated
func ForceDetectAndSave() (bool, error) {
	updated := false

	detectedSbatch, detectedSrun := DetectSchedulerBins()
	if detectedSbatch != "" && viper.GetString("sbatch_bin") != detectedSbatch {
		viper.Set("sbatch_bin", detectedSbatch)
		updated = true
	}
	if detectedSrun != "" && viper.GetString("srun_bin") != detectedSrun {
		viper.Set("srun_bin", detectedSrun)
		updated = true
	}

	// Always save (even if nothing changed, to create the file)
	if err := SaveConfig(); err != nil {
		return false, err
	}

	return updated, nil
}

// LoadFromViper loads config from Viper into the Global struct. Values
// that fail validation keep their defaults rather than aborting: a stale
// config file should degrade, not brick the CLI.
func LoadFromViper() {
	if bin := viper.GetString("sbatch_bin"); bin != "" {
		Global.SbatchBin = bin
	}
	if bin := viper.GetString("srun_bin"); bin != "" {
		Global.SrunBin = bin
	}

	if secs := viper.GetInt("cleanup_seconds"); secs > 0 {
		Global.CleanupSeconds = secs
	}
	if limit := viper.GetInt("resubmit_limit"); limit >= 0 {
		Global.ResubmitLimit = limit
	}

	if method := viper.GetString("results_sync_method"); method != "" {
		if _, err := archive.ParseSyncMethod(method); err != nil {
			utils.PrintWarning("Ignoring configured results_sync_method: %v", err)
		} else {
			Global.ResultsSyncMethod = method
		}
	}

	if shell := viper.GetString("interactive_shell"); shell != "" {
		Global.InteractiveShell = shell
	}

	Global.MetricsGateway = viper.GetString("metrics_gateway")
}
