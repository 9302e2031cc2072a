package entity

import "time"

// RequestHistory is one entry of a request's audit trail
type RequestHistory struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	StepID     string    `json:"step_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
