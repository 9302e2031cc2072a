package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/sqldb"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry and sets its ID
func (r *HistoryRepository) Create(ctx context.Context, h *entity.RequestHistory) error {
	query := `
		INSERT INTO request_history (
			request_id, step_id, actor_id, action, from_status, to_status, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		h.RequestID,
		emptyAsNull(h.StepID),
		h.ActorID,
		h.Action,
		emptyAsNull(h.FromStatus),
		emptyAsNull(h.ToStatus),
		emptyAsNull(h.Comment),
		sqldb.Time(h.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create request history",
			zap.String("request_id", h.RequestID),
			zap.String("action", h.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create request history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history id: %w", err)
	}
	h.ID = id
	return nil
}

// GetByRequestID returns the audit trail oldest first
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.RequestHistory, error) {
	query := `
		SELECT id, request_id, step_id, actor_id, action, from_status, to_status, comment, created_at
		FROM request_history
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqldb.GetExecutor(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to query request history", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to query request history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.RequestHistory
	for rows.Next() {
		var h entity.RequestHistory
		var stepID, fromStatus, toStatus, comment sql.NullString
		if err := rows.Scan(
			&h.ID,
			&h.RequestID,
			&stepID,
			&h.ActorID,
			&h.Action,
			&fromStatus,
			&toStatus,
			&comment,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request history: %w", err)
		}
		h.StepID = stepID.String
		h.FromStatus = fromStatus.String
		h.ToStatus = toStatus.String
		h.Comment = comment.String
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}

func emptyAsNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
