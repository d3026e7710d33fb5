package cmd

import (
	"strings"
	"testing"
)

func TestConfigValueCompletion(t *testing.T) {
	methods := configValueCompletion("results_sync_method")
	for _, want := range []string{"symlink", "rsync", "targz"} {
		found := false
		for _, m := range methods {
			if m == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected completion option %q not present", want)
		}
	}

	if opts := configValueCompletion("sbatch_bin"); opts != nil {
		t.Errorf("expected no suggestions for sbatch_bin, got %v", opts)
	}
}

func TestGetConfigEnvVars(t *testing.T) {
	vars := getConfigEnvVars()
	if len(vars) != len(configKeys) {
		t.Fatalf("got %d vars, expected %d", len(vars), len(configKeys))
	}
	for i, key := range configKeys {
		want := "EASY_SLURM_" + strings.ToUpper(key)
		if vars[i] != want {
			t.Errorf("env var[%d] = %q, want %q", i, vars[i], want)
		}
	}
}
