package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApproveStep Trigger = "APPROVE_STEP"
	TriggerRejectStep  Trigger = "REJECT_STEP"
	TriggerArchive     Trigger = "ARCHIVE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
