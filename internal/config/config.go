package config

import (
	"github.com/YodaEmbedding/easy-slurm/internal/archive"
	"github.com/YodaEmbedding/easy-slurm/internal/job"
)

const VERSION = "0.3.1"

// Config holds global application settings. Per-job settings live in the
// job options file; everything here applies to the installation as a
// whole (which binaries to call, site-wide defaults for new jobs).
type Config struct {
	Debug   bool
	Version string

	// Scheduler binaries. Empty means "look them up in PATH".
	SbatchBin string
	SrunBin   string

	// Site-wide defaults applied to jobs that do not set their own.
	CleanupSeconds    int
	ResubmitLimit     int
	ResultsSyncMethod string
	InteractiveShell  string

	// MetricsGateway is a Prometheus Pushgateway base URL. Empty disables
	// metrics entirely.
	MetricsGateway string
}

// Global holds the singleton configuration instance
var Global Config

// LoadDefaults resets Global to built-in defaults. InitViper and
// LoadFromViper layer config file and environment values on top.
func LoadDefaults() {
	Global = Config{
		Debug:             false,
		Version:           VERSION,
		SbatchBin:         "",
		SrunBin:           "",
		CleanupSeconds:    job.DefaultCleanupSeconds,
		ResubmitLimit:     job.DefaultResubmitLimit,
		ResultsSyncMethod: string(archive.SyncSymlink),
		InteractiveShell:  "bash",
		MetricsGateway:    "",
	}
}
