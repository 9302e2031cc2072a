package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/workflow-approval/internal/domain/entity"
)

// ErrStaleAggregate is returned when a save loses an optimistic concurrency race
var ErrStaleAggregate = errors.New("aggregate was modified concurrently")

// WorkflowRepository defines persistence operations for Workflow and its steps.
// Get methods return (nil, nil) when the record does not exist.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *entity.Workflow) error
	GetByID(ctx context.Context, id string) (*entity.Workflow, error)
	GetWithSteps(ctx context.Context, id string) (*entity.Workflow, error)
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]*entity.Workflow, int, error)
	Update(ctx context.Context, workflow *entity.Workflow) error
	Delete(ctx context.Context, id string) error

	// ReplaceSteps soft-deletes the current steps and inserts the given ones
	ReplaceSteps(ctx context.Context, workflowID string, steps []entity.WorkflowStep) error
	CountRequests(ctx context.Context, workflowID string) (int, error)
}

// RequestFilter narrows request listings; zero values match everything
type RequestFilter struct {
	InitiatorID string
	Status      entity.RequestStatus
	Type        entity.RequestType
	WorkflowID  string

	// PendingStepRoles keeps requests with a pending step owned by one of these roles (case-insensitive)
	PendingStepRoles []string
}

// RequestRepository persists the Request aggregate including its steps
type RequestRepository interface {
	// Create inserts the request and all of its steps
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id string) (*entity.Request, error)
	GetWithSteps(ctx context.Context, id string) (*entity.Request, error)
	List(ctx context.Context, filter RequestFilter, offset, limit int) ([]*entity.Request, int, error)

	// Save writes the request header and every step when req.Version still matches
	// the stored version, then bumps req.Version. Returns ErrStaleAggregate otherwise.
	Save(ctx context.Context, req *entity.Request) error
	Delete(ctx context.Context, id string) error

	// ListPendingSteps returns pending steps of pending requests that carry a due time
	ListPendingSteps(ctx context.Context) ([]*entity.RequestStep, error)
	MarkStepReminded(ctx context.Context, stepID string, at time.Time) error
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	List(ctx context.Context, offset, limit int) ([]*entity.Notification, int, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*entity.Notification, int, error)
	Update(ctx context.Context, n *entity.Notification) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// HistoryRepository records the audit trail of a request
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.RequestHistory) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.RequestHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
