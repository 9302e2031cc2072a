package entity

import "time"

// Request is the aggregate root of an approval: the request and its ordered steps.
// Steps are created together with the request and the set never changes afterwards.
type Request struct {
	ID          string        `json:"id"`
	WorkflowID  string        `json:"workflow_id"`
	Type        RequestType   `json:"type"`
	InitiatorID string        `json:"initiator_id"`
	Status      RequestStatus `json:"status"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Steps       []RequestStep `json:"steps,omitempty"`

	// Version is the optimistic concurrency token, bumped on every save
	Version int `json:"version"`

	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestStep is the per-request instance of a workflow step.
// StepName, StepOrder, ResponsibleRole and DueInHours are copied from the
// workflow step when the request is created.
type RequestStep struct {
	ID              string     `json:"id"`
	RequestID       string     `json:"request_id"`
	WorkflowStepID  string     `json:"workflow_step_id"`
	StepName        string     `json:"step_name"`
	StepOrder       int        `json:"step_order"`
	ResponsibleRole string     `json:"responsible_role"`
	DueInHours      *int       `json:"due_in_hours,omitempty"`
	Status          StepStatus `json:"status"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	ValidatorID     *string    `json:"validator_id,omitempty"`
	Comments        *string    `json:"comments,omitempty"`
	RemindedAt      *time.Time `json:"reminded_at,omitempty"`
	IsDeleted       bool       `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FindStep returns the step with the given ID, or nil
func (r *Request) FindStep(stepID string) *RequestStep {
	for i := range r.Steps {
		if r.Steps[i].ID == stepID {
			return &r.Steps[i]
		}
	}
	return nil
}

// StepStatuses returns the status of every step in order
func (r *Request) StepStatuses() []StepStatus {
	statuses := make([]StepStatus, len(r.Steps))
	for i, step := range r.Steps {
		statuses[i] = step.Status
	}
	return statuses
}

// IsOverdue reports whether a pending step has passed its due time
func (s *RequestStep) IsOverdue(now time.Time) bool {
	if s.Status != StepStatusPending || s.DueInHours == nil {
		return false
	}
	return now.After(s.CreatedAt.Add(time.Duration(*s.DueInHours) * time.Hour))
}
