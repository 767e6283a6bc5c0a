package migration

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction of a run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// State of a run.
type State string

const (
	StatePending    State = "pending"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateRolledBack State = "rolled_back"
)

// Open reports whether the run has not reached a terminal state yet.
func (s State) Open() bool {
	return s == StatePending || s == StateRunning
}

// Run is one application attempt of one version to one tenant. Runs are
// appended and never rewritten after they finish.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	Version    int64      `json:"version"`
	Name       string     `json:"name,omitempty"`
	Direction  Direction  `json:"direction"`
	State      State      `json:"state"`
	Baseline   bool       `json:"baseline,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Clone returns a deep copy.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	if r.FinishedAt != nil {
		at := *r.FinishedAt
		c.FinishedAt = &at
	}
	return &c
}

// RunStore persists migration history.
type RunStore interface {
	// Create appends a run. It fails with ErrRunInProgress when the tenant
	// already has an open run for the same version.
	Create(ctx context.Context, run *Run) error
	// Update stores a new state for an open run. Finished runs are immutable
	// and yield ErrRunFinalized.
	Update(ctx context.Context, run *Run) error
	// ListByTenant returns a tenant's runs in creation order.
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*Run, error)
	// FailOpen marks every open run of a tenant and version as failed and
	// returns the runs it closed.
	FailOpen(ctx context.Context, tenantID uuid.UUID, version int64, reason string, at time.Time) ([]*Run, error)
}

// AppliedVersions folds a tenant history into the set of applied versions.
// Failed runs change nothing; a completed up run applies a version and a
// rolled back down run removes it.
func AppliedVersions(history []*Run) map[int64]bool {
	applied := make(map[int64]bool)
	for _, r := range history {
		switch {
		case r.Direction == Up && r.State == StateCompleted:
			applied[r.Version] = true
		case r.Direction == Down && r.State == StateRolledBack:
			delete(applied, r.Version)
		}
	}
	return applied
}

// SortedVersions returns the keys of an applied set in ascending order.
func SortedVersions(applied map[int64]bool) []int64 {
	out := make([]int64, 0, len(applied))
	for v := range applied {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// MemoryRunStore implements RunStore in memory.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs []*Run
	byID map[uuid.UUID]int
}

// NewMemoryRunStore creates an empty store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{byID: make(map[uuid.UUID]int)}
}

func (s *MemoryRunStore) Create(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.State.Open() {
		for _, r := range s.runs {
			if r.TenantID == run.TenantID && r.Version == run.Version && r.State.Open() {
				return ErrRunInProgress
			}
		}
	}

	s.byID[run.ID] = len(s.runs)
	s.runs = append(s.runs, run.Clone())
	return nil
}

func (s *MemoryRunStore) Update(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	if !s.runs[i].State.Open() {
		return ErrRunFinalized
	}
	s.runs[i] = run.Clone()
	return nil
}

func (s *MemoryRunStore) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Run
	for _, r := range s.runs {
		if r.TenantID == tenantID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *MemoryRunStore) FailOpen(_ context.Context, tenantID uuid.UUID, version int64, reason string, at time.Time) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed []*Run
	for i, r := range s.runs {
		if r.TenantID != tenantID || r.Version != version || !r.State.Open() {
			continue
		}
		finished := at
		r = r.Clone()
		r.State = StateFailed
		r.FinishedAt = &finished
		r.Error = reason
		s.runs[i] = r
		closed = append(closed, r.Clone())
	}
	return closed, nil
}
