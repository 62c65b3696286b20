// Package workflow models the status lifecycle of a leave request as a small
// guarded state machine.
package workflow

import "context"

// StateMachine tracks the status of one request. It is not safe for
// concurrent use; build one per invocation.
type StateMachine interface {
	// State returns the current status
	State() State

	// CanFire reports whether any transition is configured for the trigger.
	// Guards are not evaluated.
	CanFire(trigger Trigger) bool

	// Fire moves to the first candidate whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the configured triggers of the current status in no particular order
	PermittedTriggers() []Trigger
}
