// Package status persists the lifecycle record of a job directory.
//
// The record lives at $JOB_DIR/status as plain key=value text so that shell
// tooling (and humans) can read it with grep/cut. The format is machine-owned:
// unknown keys, missing keys, or unparseable values are treated as corruption
// rather than silently tolerated.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// SchemaVersion is the record schema written by this build. Records whose
// major version differs fail to load.
const SchemaVersion = "v1.0.0"

// FileName is the status file's name inside a job directory.
const FileName = "status"

// Phase is a job lifecycle phase.
type Phase string

const (
	PhaseNew          Phase = "new"
	PhaseInitializing Phase = "initializing"
	PhaseRunning      Phase = "running"
	PhaseInterrupting Phase = "interrupting"
	PhaseFinalizing   Phase = "finalizing"
	PhaseInteracting  Phase = "interacting"
	PhaseCompleted    Phase = "completed"
	PhaseIncomplete   Phase = "incomplete"
)

// validPhases guards against garbage in hand-edited files.
var validPhases = map[Phase]bool{
	PhaseNew:          true,
	PhaseInitializing: true,
	PhaseRunning:      true,
	PhaseInterrupting: true,
	PhaseFinalizing:   true,
	PhaseInteracting:  true,
	PhaseCompleted:    true,
	PhaseIncomplete:   true,
}

// IsValid reports whether p is a known lifecycle phase.
func (p Phase) IsValid() bool { return validPhases[p] }

// IsStartable reports whether an allocation may begin from this phase.
// Only fresh jobs and interrupted (resumable) jobs qualify.
func (p Phase) IsStartable() bool {
	return p == PhaseNew || p == PhaseIncomplete
}

// IsTerminal reports whether the phase ends the lifecycle of the current run.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseIncomplete
}

// Record is the persisted state of a job directory.
type Record struct {
	Phase         Phase
	ResubmitCount int
	SchemaVersion string
}

// NewRecord returns the record written at job creation time.
func NewRecord() Record {
	return Record{
		Phase:         PhaseNew,
		ResubmitCount: 0,
		SchemaVersion: SchemaVersion,
	}
}

// Resumed reports whether this record belongs to a previously interrupted job.
func (r Record) Resumed() bool { return r.Phase == PhaseIncomplete }

// Encode renders the record in its on-disk key=value form.
func (r Record) Encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "status=%s\n", r.Phase)
	fmt.Fprintf(&b, "schema_version=%s\n", r.SchemaVersion)
	fmt.Fprintf(&b, "resubmit_count=%d\n", r.ResubmitCount)
	return []byte(b.String())
}

// Load reads and validates the record at path.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read status %s: %w", path, err)
	}
	rec, err := parse(string(data))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if !semver.IsValid(rec.SchemaVersion) {
		return Record{}, fmt.Errorf("%w: %s: schema_version %q is not semver",
			ErrCorrupt, path, rec.SchemaVersion)
	}
	if semver.Major(rec.SchemaVersion) != semver.Major(SchemaVersion) {
		return Record{}, fmt.Errorf("%w: record is %s, this build writes %s",
			ErrIncompatibleSchema, rec.SchemaVersion, SchemaVersion)
	}
	return rec, nil
}

func parse(text string) (Record, error) {
	var rec Record
	seen := map[string]bool{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return rec, fmt.Errorf("line %d: no '=' separator", i+1)
		}
		if seen[key] {
			return rec, fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
		switch key {
		case "status":
			phase := Phase(value)
			if !phase.IsValid() {
				return rec, fmt.Errorf("unknown phase %q", value)
			}
			rec.Phase = phase
		case "schema_version":
			rec.SchemaVersion = value
		case "resubmit_count":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return rec, fmt.Errorf("bad resubmit_count %q", value)
			}
			rec.ResubmitCount = n
		default:
			return rec, fmt.Errorf("unknown key %q", key)
		}
	}
	for _, key := range []string{"status", "schema_version", "resubmit_count"} {
		if !seen[key] {
			return rec, fmt.Errorf("missing key %q", key)
		}
	}
	return rec, nil
}

// Save atomically writes the record: temp file in the same directory, then
// rename over the target. Readers never observe a half-written record.
func Save(path string, rec Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(rec.Encode()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close status: %w", err)
	}
	if err := os.Chmod(tmpPath, utils.PermFile); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod status: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace status %s: %w", path, err)
	}
	return nil
}
