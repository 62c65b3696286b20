package workflow

import "github.com/garyjia/record-pipeline/internal/domain/entity"

// State is a leave request status
type State string

const (
	StateDraft    State = State(entity.LeaveStatusDraft)
	StatePending  State = State(entity.LeaveStatusPending)
	StateApproved State = State(entity.LeaveStatusApproved)
	StateRejected State = State(entity.LeaveStatusRejected)
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known status
func (s State) IsValid() bool {
	return validStates[s]
}
