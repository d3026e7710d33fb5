package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// isolate points every config search path at a throwaway home so tests
// never read or write the developer's real config.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestInitViperDefaults(t *testing.T) {
	isolate(t)

	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}

	if got := viper.GetInt("cleanup_seconds"); got != 120 {
		t.Errorf("cleanup_seconds = %d; want 120", got)
	}
	if got := viper.GetInt("resubmit_limit"); got != 64 {
		t.Errorf("resubmit_limit = %d; want 64", got)
	}
	if got := viper.GetString("results_sync_method"); got != "symlink" {
		t.Errorf("results_sync_method = %q; want %q", got, "symlink")
	}
	if got := viper.GetString("interactive_shell"); got != "bash" {
		t.Errorf("interactive_shell = %q; want %q", got, "bash")
	}
	if got := viper.GetString("metrics_gateway"); got != "" {
		t.Errorf("metrics_gateway = %q; want empty", got)
	}
}

func TestInitViperEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("EASY_SLURM_RESUBMIT_LIMIT", "7")
	t.Setenv("EASY_SLURM_INTERACTIVE_SHELL", "zsh")

	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}

	if got := viper.GetInt("resubmit_limit"); got != 7 {
		t.Errorf("resubmit_limit = %d; want 7", got)
	}
	if got := viper.GetString("interactive_shell"); got != "zsh" {
		t.Errorf("interactive_shell = %q; want %q", got, "zsh")
	}
}

func TestInitViperReadsUserConfigFile(t *testing.T) {
	isolate(t)

	configDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "easy-slurm")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := "cleanup_seconds: 300\nmetrics_gateway: http://pushgw:9091\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}

	if got := viper.GetInt("cleanup_seconds"); got != 300 {
		t.Errorf("cleanup_seconds = %d; want 300", got)
	}
	if got := viper.GetString("metrics_gateway"); got != "http://pushgw:9091" {
		t.Errorf("metrics_gateway = %q; want the configured gateway", got)
	}
	// Keys absent from the file keep their defaults.
	if got := viper.GetInt("resubmit_limit"); got != 64 {
		t.Errorf("resubmit_limit = %d; want 64", got)
	}
}

func TestSaveConfigCreatesFile(t *testing.T) {
	isolate(t)

	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	viper.Set("sbatch_bin", "/opt/slurm/bin/sbatch")

	if err := SaveConfig(); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	path, err := GetUserConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}

	// A fresh viper must see the persisted value.
	viper.Reset()
	if err := InitViper(); err != nil {
		t.Fatalf("InitViper reload failed: %v", err)
	}
	if got := viper.GetString("sbatch_bin"); got != "/opt/slurm/bin/sbatch" {
		t.Errorf("sbatch_bin = %q after reload; want persisted value", got)
	}
}

func TestValidateBinary(t *testing.T) {
	dir := t.TempDir()

	executable := filepath.Join(dir, "runnable")
	if err := os.WriteFile(executable, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{"empty", "", false},
		{"absolute executable", executable, true},
		{"absolute non-executable", plain, false},
		{"absolute missing", filepath.Join(dir, "nope"), false},
		{"relative on PATH", "sh", true},
		{"relative not on PATH", "definitely-not-a-binary-xyz", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateBinary(tc.path); got != tc.want {
				t.Errorf("ValidateBinary(%q) = %v; want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestLoadFromViperValidation(t *testing.T) {
	isolate(t)
	if err := InitViper(); err != nil {
		t.Fatalf("InitViper failed: %v", err)
	}
	LoadDefaults()

	viper.Set("cleanup_seconds", -5)
	viper.Set("results_sync_method", "carrier-pigeon")
	viper.Set("resubmit_limit", 3)
	viper.Set("metrics_gateway", "http://pushgw:9091")
	LoadFromViper()

	if Global.CleanupSeconds != 120 {
		t.Errorf("CleanupSeconds = %d; invalid value should keep default", Global.CleanupSeconds)
	}
	if Global.ResultsSyncMethod != "symlink" {
		t.Errorf("ResultsSyncMethod = %q; invalid value should keep default", Global.ResultsSyncMethod)
	}
	if Global.ResubmitLimit != 3 {
		t.Errorf("ResubmitLimit = %d; want 3", Global.ResubmitLimit)
	}
	if Global.MetricsGateway != "http://pushgw:9091" {
		t.Errorf("MetricsGateway = %q; want configured gateway", Global.MetricsGateway)
	}
}
