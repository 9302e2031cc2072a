package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
)

// NotificationService manages user notifications and their delivery
type NotificationService interface {
	CreateNotification(ctx context.Context, input CreateNotificationInput) (*entity.Notification, error)
	GetNotification(ctx context.Context, id string) (*entity.Notification, error)
	ListNotifications(ctx context.Context, page Page) (*PagedResult[*entity.Notification], error)
	ListUserNotifications(ctx context.Context, userID string, page Page) (*PagedResult[*entity.Notification], error)
	ListUnread(ctx context.Context, userID string, page Page) (*PagedResult[*entity.Notification], error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	UpdateNotification(ctx context.Context, id string, input UpdateNotificationInput) (*entity.Notification, error)
	MarkAsRead(ctx context.Context, id string) (*entity.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, id string) error
}

// CreateNotificationInput holds the fields of a new notification
type CreateNotificationInput struct {
	UserID    string  `json:"user_id"`
	Message   string  `json:"message"`
	Type      *string `json:"type,omitempty"`
	ActionURL *string `json:"action_url,omitempty"`
}

// UpdateNotificationInput replaces the mutable fields of a notification
type UpdateNotificationInput struct {
	Message   string  `json:"message"`
	IsRead    bool    `json:"is_read"`
	Type      *string `json:"type,omitempty"`
	ActionURL *string `json:"action_url,omitempty"`
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	channels         []port.NotificationChannel
	logger           Logger
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService.
// Every created notification is offered to each channel after it is stored.
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	channels []port.NotificationChannel,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		channels:         channels,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *notificationServiceImpl) CreateNotification(ctx context.Context, input CreateNotificationInput) (*entity.Notification, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, validationError("user id is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, validationError("message is required")
	}

	now := s.now()
	n := &entity.Notification{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Message:   input.Message,
		Type:      input.Type,
		ActionURL: input.ActionURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to create notification", "user_id", input.UserID, "error", err)
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.deliver(ctx, n)
	return n, nil
}

// deliver is best-effort; a failing channel never fails the caller
func (s *notificationServiceImpl) deliver(ctx context.Context, n *entity.Notification) {
	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			s.logger.Error("Notification delivery failed",
				"channel", ch.Name(),
				"notification_id", n.ID,
				"user_id", n.UserID,
				"error", err,
			)
			continue
		}
		s.logger.Info("Notification delivered", "channel", ch.Name(), "notification_id", n.ID)
	}
}

func (s *notificationServiceImpl) GetNotification(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, notFound("notification", id)
	}
	return n, nil
}

func (s *notificationServiceImpl) ListNotifications(ctx context.Context, page Page) (*PagedResult[*entity.Notification], error) {
	page = page.Normalize()
	items, total, err := s.notificationRepo.List(ctx, page.Offset(), page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return newPagedResult(items, total, page), nil
}

func (s *notificationServiceImpl) ListUserNotifications(ctx context.Context, userID string, page Page) (*PagedResult[*entity.Notification], error) {
	return s.listByUser(ctx, userID, false, page)
}

func (s *notificationServiceImpl) ListUnread(ctx context.Context, userID string, page Page) (*PagedResult[*entity.Notification], error) {
	return s.listByUser(ctx, userID, true, page)
}

func (s *notificationServiceImpl) listByUser(ctx context.Context, userID string, unreadOnly bool, page Page) (*PagedResult[*entity.Notification], error) {
	if userID == "" {
		return nil, validationError("user id is required")
	}
	page = page.Normalize()
	items, total, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, page.Offset(), page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list user notifications: %w", err)
	}
	return newPagedResult(items, total, page), nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, validationError("user id is required")
	}
	count, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *notificationServiceImpl) UpdateNotification(ctx context.Context, id string, input UpdateNotificationInput) (*entity.Notification, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, validationError("message is required")
	}

	n, err := s.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}

	n.Message = input.Message
	n.IsRead = input.IsRead
	n.Type = input.Type
	n.ActionURL = input.ActionURL
	n.UpdatedAt = s.now()

	if err := s.notificationRepo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	return n, nil
}

func (s *notificationServiceImpl) MarkAsRead(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := s.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	n.IsRead = true
	n.UpdatedAt = s.now()
	if err := s.notificationRepo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *notificationServiceImpl) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, validationError("user id is required")
	}
	count, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	s.logger.Info("Notifications marked read", "user_id", userID, "count", count)
	return count, nil
}

func (s *notificationServiceImpl) DeleteNotification(ctx context.Context, id string) error {
	if _, err := s.GetNotification(ctx, id); err != nil {
		return err
	}
	if err := s.notificationRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
