package migration

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrymomot/boundary/pkg/schema"
)

// Migration is one versioned schema change applied inside a tenant namespace.
// Up and Down receive a connection already bound to that namespace.
type Migration[C schema.Conn] struct {
	Version int64
	Name    string
	Up      func(ctx context.Context, conn C) error
	Down    func(ctx context.Context, conn C) error
}

// Set is an ordered, validated collection of migrations.
type Set[C schema.Conn] struct {
	migrations []Migration[C]
}

// NewSet validates versions and sorts migrations in ascending order.
func NewSet[C schema.Conn](migrations ...Migration[C]) (*Set[C], error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration[C]) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})

	for i, m := range sorted {
		if m.Version <= 0 {
			return nil, fmt.Errorf("%w: version %d must be positive", ErrInvalidSet, m.Version)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("%w: version %d has no up step", ErrInvalidSet, m.Version)
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, fmt.Errorf("%w: duplicate version %d", ErrInvalidSet, m.Version)
		}
	}
	return &Set[C]{migrations: sorted}, nil
}

// Migrations returns the migrations in version order.
func (s *Set[C]) Migrations() []Migration[C] {
	return slices.Clone(s.migrations)
}

// Latest returns the highest version, or 0 for an empty set.
func (s *Set[C]) Latest() int64 {
	if len(s.migrations) == 0 {
		return 0
	}
	return s.migrations[len(s.migrations)-1].Version
}

// Get returns the migration with the given version.
func (s *Set[C]) Get(version int64) (Migration[C], bool) {
	i, ok := slices.BinarySearchFunc(s.migrations, version, func(m Migration[C], v int64) int {
		switch {
		case m.Version < v:
			return -1
		case m.Version > v:
			return 1
		}
		return 0
	})
	if !ok {
		return Migration[C]{}, false
	}
	return s.migrations[i], true
}

// pending returns migrations up to target that are not applied, in order.
func (s *Set[C]) pending(applied map[int64]bool, target int64) []Migration[C] {
	if target <= 0 {
		target = s.Latest()
	}
	var out []Migration[C]
	for _, m := range s.migrations {
		if m.Version > target {
			break
		}
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}
