package workflow

import (
	"context"
	"fmt"
)

// LeaveLifecycle configures the leave request status machine. Submitting
// requires a positive number of days.
func LeaveLifecycle(days float64) StateMachineBuilder {
	positiveDays := func(context.Context) bool { return days > 0 }

	b := NewBuilder()
	b.Configure(StateDraft).
		PermitIf(TriggerSubmit, StatePending, positiveDays)
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerWithdraw, StateDraft)
	return b
}

// Transition fires the trigger that leads to the target state
func Transition(ctx context.Context, m StateMachine, to State) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, to)
	}
	trigger, _ := TriggerFor(to)
	if err := m.Fire(ctx, trigger); err != nil {
		return err
	}
	if m.State() != to {
		return fmt.Errorf("%w: %s led to %s, not %s", ErrInvalidTransition, trigger, m.State(), to)
	}
	return nil
}
