package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerWithdraw Trigger = "WITHDRAW"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor returns the trigger that moves a request into the target status
func TriggerFor(to State) (Trigger, bool) {
	switch to {
	case StatePending:
		return TriggerSubmit, true
	case StateDraft:
		return TriggerWithdraw, true
	case StateApproved:
		return TriggerApprove, true
	case StateRejected:
		return TriggerReject, true
	}
	return "", false
}
