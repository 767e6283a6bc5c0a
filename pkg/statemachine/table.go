package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Table is a transition table that does not hold a current state. Callers
// pass the state they loaded from storage and persist the state it returns,
// so one Table serves every record of a kind.
type Table[S, E comparable] struct {
	mu          sync.RWMutex
	transitions map[S]map[E][]Transition[S, E]
}

// New builds a table from the given options.
func New[S, E comparable](opts ...Option[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{transitions: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New that panics on error. Meant for package-level tables.
func MustNew[S, E comparable](opts ...Option[S, E]) *Table[S, E] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// Add registers a transition. Several transitions may share a from/event
// pair; the first one whose guards pass wins.
func (t *Table[S, E]) Add(tr Transition[S, E]) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.transitions[tr.From]; !ok {
		t.transitions[tr.From] = make(map[E][]Transition[S, E])
	}
	for _, existing := range t.transitions[tr.From][tr.Event] {
		if existing.To == tr.To && len(existing.Guards) == 0 && len(tr.Guards) == 0 {
			return NewErrDuplicateTransition(fmt.Sprint(tr.From), fmt.Sprint(tr.Event))
		}
	}
	t.transitions[tr.From][tr.Event] = append(t.transitions[tr.From][tr.Event], tr)
	return nil
}

// Fire resolves event from the given state, runs the transition's actions and
// returns the target state. On any error the returned state is from.
func (t *Table[S, E]) Fire(ctx context.Context, from S, event E, data any) (S, error) {
	tr, err := t.resolve(ctx, from, event, data)
	if err != nil {
		return from, err
	}

	for _, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return from, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// CanFire reports whether event would be accepted from the given state.
// Actions are not run.
func (t *Table[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	_, err := t.resolve(ctx, from, event, data)
	return err == nil
}

// Events lists the events that have at least one transition out of from.
func (t *Table[S, E]) Events(from S) []E {
	t.mu.RLock()
	defer t.mu.RUnlock()

	events := make([]E, 0, len(t.transitions[from]))
	for ev, trs := range t.transitions[from] {
		if len(trs) > 0 {
			events = append(events, ev)
		}
	}
	return events
}

func (t *Table[S, E]) resolve(ctx context.Context, from S, event E, data any) (Transition[S, E], error) {
	t.mu.RLock()
	candidates := t.transitions[from][event]
	t.mu.RUnlock()

	if len(candidates) == 0 {
		return Transition[S, E]{}, NewErrNoTransitionAvailable(fmt.Sprint(from), fmt.Sprint(event))
	}

	for _, tr := range candidates {
		if guardsPass(ctx, tr, from, event, data) {
			return tr, nil
		}
	}
	return Transition[S, E]{}, NewErrTransitionRejected(fmt.Sprint(from), fmt.Sprint(event))
}

func guardsPass[S, E comparable](ctx context.Context, tr Transition[S, E], from S, event E, data any) bool {
	for _, guard := range tr.Guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
