package entity

import (
	"sort"
	"time"
)

// Workflow is a reusable, ordered template of approval steps
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Version     int            `json:"version"`
	IsActive    bool           `json:"is_active"`
	Steps       []WorkflowStep `json:"steps,omitempty"`
	IsDeleted   bool           `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is one ordered stage of a workflow, bound to a responsible role
type WorkflowStep struct {
	ID              string    `json:"id"`
	WorkflowID      string    `json:"workflow_id"`
	StepName        string    `json:"step_name"`
	Order           int       `json:"order"`
	ResponsibleRole string    `json:"responsible_role"`
	DueInHours      *int      `json:"due_in_hours,omitempty"`
	IsDeleted       bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OrderedSteps returns a copy of the steps sorted ascending by Order
func (w *Workflow) OrderedSteps() []WorkflowStep {
	steps := make([]WorkflowStep, len(w.Steps))
	copy(steps, w.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}
