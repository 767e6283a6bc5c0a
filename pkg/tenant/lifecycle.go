package tenant

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/boundary/pkg/statemachine"
)

// Event triggers a lifecycle transition.
type Event string

const (
	EventActivate Event = "activate"
	EventSuspend  Event = "suspend"
	EventDelete   Event = "delete"
)

var lifecycle = statemachine.MustNew(
	statemachine.WithTransition(StatusProvisioning, StatusActive, EventActivate),
	statemachine.WithTransition(StatusActive, StatusSuspended, EventSuspend),
	statemachine.WithTransition(StatusActive, StatusDeleted, EventDelete),
	statemachine.WithTransition(StatusSuspended, StatusActive, EventActivate),
	statemachine.WithTransition(StatusSuspended, StatusDeleted, EventDelete),
)

// TransitionError reports an event that is not allowed from a status.
type TransitionError struct {
	From  Status
	Event Event
	err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from status '%s' for event '%s'", e.From, e.Event)
}

func (e *TransitionError) Unwrap() []error {
	return []error{ErrInvalidTransition, e.err}
}

// Transition returns the status reached by firing ev from from.
// The lifecycle has no guards or actions, so this is a pure lookup.
func Transition(from Status, ev Event) (Status, error) {
	to, err := lifecycle.Fire(context.Background(), from, ev, nil)
	if err != nil {
		return from, &TransitionError{From: from, Event: ev, err: err}
	}
	return to, nil
}

// CanTransition reports whether ev is allowed from from.
func CanTransition(from Status, ev Event) bool {
	return lifecycle.CanFire(context.Background(), from, ev, nil)
}

// Events lists the events allowed from a status.
func Events(from Status) []Event {
	return lifecycle.Events(from)
}
