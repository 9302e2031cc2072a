package handler

import (
	"context"
	"fmt"

	"github.com/garyjia/workflow-approval/internal/application/dispatcher"
	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/application/service"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationHandler turns request events into notifications for the initiator
type NotificationHandler struct {
	notifications service.NotificationService
	logger        Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications service.NotificationService, logger Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

var notificationTypes = map[event.Type]string{
	event.TypeRequestCreated:      entity.NotificationTypeRequestSubmitted,
	event.TypeRequestStepApproved: entity.NotificationTypeStepDecided,
	event.TypeRequestStepRejected: entity.NotificationTypeStepDecided,
	event.TypeRequestApproved:     entity.NotificationTypeRequestApproved,
	event.TypeRequestRejected:     entity.NotificationTypeRequestRejected,
	event.TypeRequestArchived:     entity.NotificationTypeRequestArchived,
	event.TypeRequestStepOverdue:  entity.NotificationTypeStepOverdue,
}

// Register subscribes the handler to every event that notifies the initiator
func (h *NotificationHandler) Register(d dispatcher.Dispatcher) {
	for eventType := range notificationTypes {
		d.SubscribeNamed(eventType, "notify-initiator", "notify the request initiator", h.Handle)
	}
}

// Handle stores one notification for the initiator named in the event payload
func (h *NotificationHandler) Handle(ctx context.Context, evt *event.Event) error {
	kind, ok := notificationTypes[evt.Type]
	if !ok {
		return nil
	}

	userID := evt.GetPayloadString(event.PayloadInitiatorID)
	if userID == "" {
		h.logger.Error("Event has no initiator, skipping notification", "event_type", evt.Type, "request_id", evt.RequestID)
		return nil
	}

	actionURL := fmt.Sprintf("/requests/%s", evt.RequestID)
	_, err := h.notifications.CreateNotification(ctx, service.CreateNotificationInput{
		UserID:    userID,
		Message:   Message(evt),
		Type:      &kind,
		ActionURL: &actionURL,
	})
	if err != nil {
		return fmt.Errorf("notify initiator: %w", err)
	}
	return nil
}

// Message renders the user-facing text for a request event
func Message(evt *event.Event) string {
	subject := evt.GetPayloadString(event.PayloadTitle)
	if subject == "" {
		subject = evt.RequestID
	}
	step := evt.GetPayloadString(event.PayloadStepName)
	actor := evt.GetPayloadString(event.PayloadActorID)

	switch evt.Type {
	case event.TypeRequestCreated:
		return fmt.Sprintf("Your request %q was submitted and is awaiting approval.", subject)
	case event.TypeRequestStepApproved:
		return fmt.Sprintf("Step %q of your request %q was approved by %s.", step, subject, actor)
	case event.TypeRequestStepRejected:
		msg := fmt.Sprintf("Step %q of your request %q was rejected by %s.", step, subject, actor)
		if comments := evt.GetPayloadString(event.PayloadComments); comments != "" {
			msg += " Comments: " + comments
		}
		return msg
	case event.TypeRequestApproved:
		return fmt.Sprintf("Your request %q has been approved.", subject)
	case event.TypeRequestRejected:
		return fmt.Sprintf("Your request %q has been rejected.", subject)
	case event.TypeRequestArchived:
		return fmt.Sprintf("Your request %q has been archived.", subject)
	case event.TypeRequestStepOverdue:
		return fmt.Sprintf("Step %q of your request %q is overdue and still waiting on %s.",
			step, subject, evt.GetPayloadString(event.PayloadResponsibleRole))
	default:
		return fmt.Sprintf("Your request %q was updated.", subject)
	}
}

// EventForwarder publishes every request event to an external broker
type EventForwarder struct {
	publisher port.EventPublisher
	logger    Logger
}

// NewEventForwarder creates a new EventForwarder
func NewEventForwarder(publisher port.EventPublisher, logger Logger) *EventForwarder {
	return &EventForwarder{publisher: publisher, logger: logger}
}

// Register subscribes the forwarder to all request event types
func (f *EventForwarder) Register(d dispatcher.Dispatcher) {
	for _, t := range event.AllTypes() {
		d.SubscribeNamed(t, "forward-to-bus", "publish to the event bus", f.Handle)
	}
}

// Handle publishes one event
func (f *EventForwarder) Handle(ctx context.Context, evt *event.Event) error {
	if err := f.publisher.Publish(ctx, evt); err != nil {
		return fmt.Errorf("forward event: %w", err)
	}
	return nil
}
