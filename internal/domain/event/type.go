package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestCreated      Type = "request.created"
	TypeRequestUpdated      Type = "request.updated"
	TypeRequestStepApproved Type = "request.step_approved"
	TypeRequestStepRejected Type = "request.step_rejected"
	TypeRequestApproved     Type = "request.approved"
	TypeRequestRejected     Type = "request.rejected"
	TypeRequestArchived     Type = "request.archived"
	TypeRequestStepOverdue  Type = "request.step_overdue"
)

// AllTypes returns every defined event type
func AllTypes() []Type {
	return []Type{
		TypeRequestCreated,
		TypeRequestUpdated,
		TypeRequestStepApproved,
		TypeRequestStepRejected,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestArchived,
		TypeRequestStepOverdue,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestCreated,
		TypeRequestUpdated,
		TypeRequestStepApproved,
		TypeRequestStepRejected,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestArchived,
		TypeRequestStepOverdue:
		return true
	default:
		return false
	}
}

// Payload keys shared by producers and handlers
const (
	PayloadInitiatorID     = "initiator_id"
	PayloadActorID         = "actor_id"
	PayloadStepID          = "step_id"
	PayloadStepName        = "step_name"
	PayloadResponsibleRole = "responsible_role"
	PayloadStatus          = "status"
	PayloadComments        = "comments"
	PayloadTitle           = "title"
)
