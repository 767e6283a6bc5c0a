// Package statemachine provides a transition table for finite state machines
// whose current state lives outside the process, typically in a database row.
//
// A Table maps (state, event) pairs to target states. Transitions may carry
// guards, evaluated at fire time, and actions that run before the new state
// is returned. The first transition whose guards all pass wins, which allows
// priority ordering among several transitions for the same pair.
//
//	lifecycle := statemachine.MustNew(
//		statemachine.WithTransition(Active, Suspended, Suspend),
//		statemachine.WithTransition(Suspended, Active, Activate),
//	)
//	next, err := lifecycle.Fire(ctx, row.Status, Suspend, nil)
//
// Fire never mutates the table; callers persist the returned state.
package statemachine
