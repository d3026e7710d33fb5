package status

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeStatus(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(contents), 0o664); err != nil {
		t.Fatalf("write status fixture: %v", err)
	}
	return path
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	want := Record{Phase: PhaseIncomplete, ResubmitCount: 3, SchemaVersion: SchemaVersion}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v; want %+v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  error
	}{
		{
			name:     "missing separator",
			contents: "status new\nschema_version=v1.0.0\nresubmit_count=0\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "unknown phase",
			contents: "status=launching\nschema_version=v1.0.0\nresubmit_count=0\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "unknown key",
			contents: "status=new\nschema_version=v1.0.0\nresubmit_count=0\nowner=me\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "duplicate key",
			contents: "status=new\nstatus=running\nschema_version=v1.0.0\nresubmit_count=0\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "negative count",
			contents: "status=new\nschema_version=v1.0.0\nresubmit_count=-2\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "missing count",
			contents: "status=new\nschema_version=v1.0.0\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "schema not semver",
			contents: "status=new\nschema_version=1.0\nresubmit_count=0\n",
			wantErr:  ErrCorrupt,
		},
		{
			name:     "schema major mismatch",
			contents: "status=new\nschema_version=v2.0.0\nresubmit_count=0\n",
			wantErr:  ErrIncompatibleSchema,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeStatus(t, tt.contents)
			_, err := Load(path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v; want %v", err, ErrNotFound)
	}
}

func TestLoadMinorVersionCompatible(t *testing.T) {
	path := writeStatus(t, "status=new\nschema_version=v1.4.2\nresubmit_count=0\n")
	rec, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if rec.SchemaVersion != "v1.4.2" {
		t.Errorf("SchemaVersion = %q; want v1.4.2", rec.SchemaVersion)
	}
}

func TestPhaseClassification(t *testing.T) {
	tests := []struct {
		phase     Phase
		startable bool
		terminal  bool
	}{
		{PhaseNew, true, false},
		{PhaseIncomplete, true, true},
		{PhaseInitializing, false, false},
		{PhaseRunning, false, false},
		{PhaseInterrupting, false, false},
		{PhaseFinalizing, false, false},
		{PhaseInteracting, false, false},
		{PhaseCompleted, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			if got := tt.phase.IsStartable(); got != tt.startable {
				t.Errorf("IsStartable() = %v; want %v", got, tt.startable)
			}
			if got := tt.phase.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v; want %v", got, tt.terminal)
			}
		})
	}
}

func TestStoreSetPhase(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Save(path, NewRecord()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if err := store.SetPhase(PhaseInitializing); err != nil {
		t.Fatalf("SetPhase(initializing) error: %v", err)
	}
	rec, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if rec.Phase != PhaseInitializing {
		t.Errorf("persisted phase = %q; want %q", rec.Phase, PhaseInitializing)
	}
}

func TestStoreInterruptingIsAuthoritative(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Save(path, NewRecord()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	// Interrupt lands before the driver finishes entering the running phase.
	if err := store.SetPhase(PhaseInterrupting); err != nil {
		t.Fatalf("SetPhase(interrupting) error: %v", err)
	}
	if err := store.SetPhase(PhaseRunning); err != nil {
		t.Fatalf("SetPhase(running) error: %v", err)
	}

	if got := store.Phase(); got != PhaseInterrupting {
		t.Errorf("in-memory phase = %q; want %q", got, PhaseInterrupting)
	}
	rec, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if rec.Phase != PhaseInterrupting {
		t.Errorf("persisted phase = %q; want %q", rec.Phase, PhaseInterrupting)
	}

	// Finalizing is still allowed to follow.
	if err := store.SetPhase(PhaseFinalizing); err != nil {
		t.Fatalf("SetPhase(finalizing) error: %v", err)
	}
	if got := store.Phase(); got != PhaseFinalizing {
		t.Errorf("phase after finalize = %q; want %q", got, PhaseFinalizing)
	}
}

func TestStoreIncrement(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Save(path, NewRecord()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := store.Increment(); err != nil {
			t.Fatalf("Increment() error: %v", err)
		}
		if got := store.Record().ResubmitCount; got != i {
			t.Errorf("ResubmitCount = %d; want %d", got, i)
		}
	}
	rec, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if rec.ResubmitCount != 3 {
		t.Errorf("persisted ResubmitCount = %d; want 3", rec.ResubmitCount)
	}
}
