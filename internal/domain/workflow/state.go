package workflow

import "github.com/garyjia/workflow-approval/internal/domain/entity"

// State represents a request state in the approval lifecycle
type State string

const (
	StatePending  State = State(entity.RequestStatusPending)
	StateApproved State = State(entity.RequestStatusApproved)
	StateRejected State = State(entity.RequestStatusRejected)
	StateArchived State = State(entity.RequestStatusArchived)
)

var validStates = map[State]bool{
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
	StateArchived: true,
}

// Approved and Rejected are final for step decisions; Archived is final for everything
var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
	StateArchived: true,
}

// IsTerminal returns true if no step decision can move the request out of this state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid request state
func (s State) IsValid() bool {
	return validStates[s]
}

// Status converts the state back to the entity request status
func (s State) Status() entity.RequestStatus {
	return entity.RequestStatus(s)
}
