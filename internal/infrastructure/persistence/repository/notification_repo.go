package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/sqldb"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

const notificationColumns = `id, user_id, message, is_read, notification_type, action_url, created_at, updated_at`

// Create inserts a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (` + placeholders(8) + `)`

	_, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Message,
		n.IsRead,
		nullString(n.Type),
		nullString(n.ActionURL),
		sqldb.Time(n.CreatedAt),
		sqldb.Time(n.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ? AND is_deleted = 0`

	n, err := scanNotification(sqldb.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// List returns all notifications, newest first
func (r *NotificationRepository) List(ctx context.Context, offset, limit int) ([]*entity.Notification, int, error) {
	return r.list(ctx, `WHERE is_deleted = 0`, nil, offset, limit)
}

// ListByUser returns notifications addressed to a user, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*entity.Notification, int, error) {
	where := `WHERE is_deleted = 0 AND user_id = ?`
	if unreadOnly {
		where += ` AND is_read = 0`
	}
	return r.list(ctx, where, []interface{}{userID}, offset, limit)
}

func (r *NotificationRepository) list(ctx context.Context, where string, args []interface{}, offset, limit int) ([]*entity.Notification, int, error) {
	exec := sqldb.GetExecutor(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := exec.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

// Update writes the mutable notification fields
func (r *NotificationRepository) Update(ctx context.Context, n *entity.Notification) error {
	query := `
		UPDATE notifications
		SET message = ?, is_read = ?, notification_type = ?, action_url = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0
	`

	_, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		n.Message,
		n.IsRead,
		nullString(n.Type),
		nullString(n.ActionURL),
		sqldb.Time(n.UpdatedAt),
		n.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update notification", zap.String("id", n.ID), zap.Error(err))
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

// MarkAllRead flags every unread notification of the user as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	result, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0 AND is_deleted = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// CountUnread counts the user's unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := sqldb.GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0 AND is_deleted = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Delete soft-deletes a notification
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	_, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func scanNotification(s scanner) (*entity.Notification, error) {
	var n entity.Notification
	var notificationType, actionURL sql.NullString
	if err := s.Scan(
		&n.ID,
		&n.UserID,
		&n.Message,
		&n.IsRead,
		&notificationType,
		&actionURL,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.Type = stringPtr(notificationType)
	n.ActionURL = stringPtr(actionURL)
	return &n, nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
