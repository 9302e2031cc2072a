package port

import (
	"context"

	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/domain/event"
)

// NotificationChannel delivers a stored notification outside the application
type NotificationChannel interface {
	Name() string
	Deliver(ctx context.Context, n *entity.Notification) error
}

// EventPublisher forwards domain events to an external broker
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}

// RequestExporter renders requests with their steps into a spreadsheet
type RequestExporter interface {
	Export(ctx context.Context, requests []*entity.Request) ([]byte, error)
}
