package status

import (
	"sync"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// Store serializes status writes for one job directory.
//
// The interrupt handler and the main driver goroutine both write phases; the
// store's lock decides their order, and SetPhase enforces the one ordering
// rule that matters: once "interrupting" has been recorded, a late "running"
// write is dropped instead of rolling the record backwards.
type Store struct {
	mu   sync.Mutex
	path string
	rec  Record
}

// Open loads the record at path and binds a store to it.
func Open(path string) (*Store, error) {
	rec, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, rec: rec}, nil
}

// Path returns the status file path.
func (s *Store) Path() string { return s.path }

// Record returns a copy of the current record.
func (s *Store) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// Phase returns the current phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Phase
}

// SetPhase persists a phase change. A transition to PhaseRunning is ignored
// when the record already says PhaseInterrupting: the interrupt fired while
// the driver was still entering the running phase, and the interrupt wins.
func (s *Store) SetPhase(phase Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if phase == PhaseRunning && s.rec.Phase == PhaseInterrupting {
		utils.PrintDebug("Dropping stale transition to %q: job is already %q",
			PhaseRunning, PhaseInterrupting)
		return nil
	}
	prev := s.rec.Phase
	s.rec.Phase = phase
	if err := Save(s.path, s.rec); err != nil {
		s.rec.Phase = prev
		return err
	}
	return nil
}

// Increment bumps the resubmission counter by one and persists the record.
// Callers invoke this only after a continuation has been accepted by the
// scheduler, so the counter never runs ahead of reality.
func (s *Store) Increment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.ResubmitCount++
	if err := Save(s.path, s.rec); err != nil {
		s.rec.ResubmitCount--
		return err
	}
	return nil
}
