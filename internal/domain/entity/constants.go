package entity

// RequestType classifies what a request is asking for
type RequestType string

const (
	RequestTypeLeave         RequestType = "LEAVE"
	RequestTypeExpense       RequestType = "EXPENSE"
	RequestTypeTraining      RequestType = "TRAINING"
	RequestTypeITSupport     RequestType = "IT_SUPPORT"
	RequestTypeProfileUpdate RequestType = "PROFILE_UPDATE"
)

// IsValid returns true if the type is one of the defined request types
func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeLeave,
		RequestTypeExpense,
		RequestTypeTraining,
		RequestTypeITSupport,
		RequestTypeProfileUpdate:
		return true
	default:
		return false
	}
}

// RequestStatus is the overall status of a request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
	RequestStatusArchived RequestStatus = "ARCHIVED"
)

// IsValid returns true if the status is one of the defined request statuses
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending,
		RequestStatusApproved,
		RequestStatusRejected,
		RequestStatusArchived:
		return true
	default:
		return false
	}
}

// StepStatus is the decision state of a single request step
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
)

// IsValid returns true if the status is one of the defined step statuses
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending, StepStatusApproved, StepStatusRejected:
		return true
	default:
		return false
	}
}

// History action constants
const (
	ActionCreate      = "CREATE"
	ActionUpdate      = "UPDATE"
	ActionApproveStep = "APPROVE_STEP"
	ActionRejectStep  = "REJECT_STEP"
	ActionArchive     = "ARCHIVE"
)

// Notification type constants
const (
	NotificationTypeRequestSubmitted = "REQUEST_SUBMITTED"
	NotificationTypeStepDecided      = "STEP_DECIDED"
	NotificationTypeRequestApproved  = "REQUEST_APPROVED"
	NotificationTypeRequestRejected  = "REQUEST_REJECTED"
	NotificationTypeRequestArchived  = "REQUEST_ARCHIVED"
	NotificationTypeStepOverdue      = "STEP_OVERDUE"
)
