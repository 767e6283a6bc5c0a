package tenant

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry implements Registry for tests and local development.
type MemoryRegistry struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Tenant
	bySlug  map[string]uuid.UUID
	byNS    map[string]uuid.UUID
	ordered []uuid.UUID
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byID:   make(map[uuid.UUID]*Tenant),
		bySlug: make(map[string]uuid.UUID),
		byNS:   make(map[string]uuid.UUID),
	}
}

func (m *MemoryRegistry) Create(ctx context.Context, t *Tenant) error {
	if t == nil {
		return errors.New("tenant cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[t.ID]; exists {
		return ErrSlugTaken
	}
	if _, exists := m.bySlug[t.Slug]; exists {
		return ErrSlugTaken
	}
	if _, exists := m.byNS[t.Namespace]; exists {
		return ErrSlugTaken
	}

	m.byID[t.ID] = t.Clone()
	m.bySlug[t.Slug] = t.ID
	m.byNS[t.Namespace] = t.ID
	m.ordered = append(m.ordered, t.ID)
	return nil
}

func (m *MemoryRegistry) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.byID[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryRegistry) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySlug[slug]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *MemoryRegistry) List(ctx context.Context, statuses ...Status) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tenant, 0, len(m.ordered))
	for _, id := range m.ordered {
		t := m.byID[id]
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

func (m *MemoryRegistry) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[id]
	if !ok {
		return nil, ErrTenantNotFound
	}

	// Copy-on-write: readers holding the old pointer never see a partial update.
	next := current.Clone()
	next.Status = status
	next.UpdatedAt = at
	if status == StatusDeleted {
		deletedAt := at
		next.DeletedAt = &deletedAt
	} else {
		next.DeletedAt = nil
	}
	m.byID[id] = next

	return next.Clone(), nil
}

func (m *MemoryRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return ErrTenantNotFound
	}

	delete(m.byID, id)
	delete(m.bySlug, t.Slug)
	delete(m.byNS, t.Namespace)
	m.ordered = slices.DeleteFunc(m.ordered, func(v uuid.UUID) bool { return v == id })
	return nil
}
