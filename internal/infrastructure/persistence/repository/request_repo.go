package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/sqldb"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `id, workflow_id, request_type, initiator_id, status, title, description, version, created_at, updated_at`

const stepColumns = `id, request_id, workflow_step_id, step_name, step_order, responsible_role, due_in_hours,
	status, validated_at, validator_id, comments, reminded_at, created_at, updated_at`

// Create inserts the request header and all of its steps
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	exec := sqldb.GetExecutor(ctx, r.db)

	query := `
		INSERT INTO requests (
			id, workflow_id, request_type, initiator_id, status, title, description,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := exec.ExecContext(ctx, query,
		req.ID,
		req.WorkflowID,
		string(req.Type),
		req.InitiatorID,
		string(req.Status),
		nullString(req.Title),
		nullString(req.Description),
		req.Version,
		sqldb.Time(req.CreatedAt),
		sqldb.Time(req.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	stepQuery := `INSERT INTO request_steps (` + stepColumns + `) VALUES (` + placeholders(14) + `)`
	for i := range req.Steps {
		step := &req.Steps[i]
		if _, err := exec.ExecContext(ctx, stepQuery,
			step.ID,
			req.ID,
			step.WorkflowStepID,
			step.StepName,
			step.StepOrder,
			step.ResponsibleRole,
			nullInt(step.DueInHours),
			string(step.Status),
			sqldb.NullTime(step.ValidatedAt),
			nullString(step.ValidatorID),
			nullString(step.Comments),
			sqldb.NullTime(step.RemindedAt),
			sqldb.Time(step.CreatedAt),
			sqldb.Time(step.UpdatedAt),
		); err != nil {
			r.logger.Error("Failed to create request step",
				zap.String("request_id", req.ID),
				zap.String("step", step.StepName),
				zap.Error(err))
			return fmt.Errorf("failed to create request step: %w", err)
		}
	}
	return nil
}

// GetByID retrieves the request header only
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ? AND is_deleted = 0`

	req, err := scanRequest(sqldb.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetWithSteps retrieves the full aggregate, steps ascending by order
func (r *RequestRepository) GetWithSteps(ctx context.Context, id string) (*entity.Request, error) {
	req, err := r.GetByID(ctx, id)
	if err != nil || req == nil {
		return req, err
	}

	query := `SELECT ` + stepColumns + ` FROM request_steps WHERE request_id = ? AND is_deleted = 0 ORDER BY step_order ASC`
	rows, err := sqldb.GetExecutor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query request steps: %w", err)
	}
	defer rows.Close()

	req.Steps = []entity.RequestStep{}
	for rows.Next() {
		step, err := scanRequestStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request step: %w", err)
		}
		req.Steps = append(req.Steps, *step)
	}
	return req, rows.Err()
}

// List returns request headers matching the filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter, offset, limit int) ([]*entity.Request, int, error) {
	where, args := buildRequestFilter(filter)
	exec := sqldb.GetExecutor(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests r `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `SELECT ` + prefixColumns("r", requestColumns) + ` FROM requests r ` + where +
		` ORDER BY r.created_at DESC, r.id ASC LIMIT ? OFFSET ?`
	rows, err := exec.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

// Save writes the header and every step guarded by the version column
func (r *RequestRepository) Save(ctx context.Context, req *entity.Request) error {
	exec := sqldb.GetExecutor(ctx, r.db)

	query := `
		UPDATE requests
		SET request_type = ?, status = ?, title = ?, description = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND is_deleted = 0
	`
	result, err := exec.ExecContext(ctx, query,
		string(req.Type),
		string(req.Status),
		nullString(req.Title),
		nullString(req.Description),
		sqldb.Time(req.UpdatedAt),
		req.ID,
		req.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to save request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Info("Stale request save rejected",
			zap.String("id", req.ID),
			zap.Int("version", req.Version))
		return port.ErrStaleAggregate
	}

	// reminded_at is owned by MarkStepReminded and never rewritten from a loaded copy
	stepQuery := `
		UPDATE request_steps
		SET status = ?, validated_at = ?, validator_id = ?, comments = ?, updated_at = ?
		WHERE id = ? AND request_id = ?
	`
	for i := range req.Steps {
		step := &req.Steps[i]
		if _, err := exec.ExecContext(ctx, stepQuery,
			string(step.Status),
			sqldb.NullTime(step.ValidatedAt),
			nullString(step.ValidatorID),
			nullString(step.Comments),
			sqldb.Time(step.UpdatedAt),
			step.ID,
			req.ID,
		); err != nil {
			return fmt.Errorf("failed to save request step: %w", err)
		}
	}

	req.Version++
	return nil
}

// Delete marks the request and its steps deleted
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	exec := sqldb.GetExecutor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, `UPDATE requests SET is_deleted = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `UPDATE request_steps SET is_deleted = 1 WHERE request_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete request steps: %w", err)
	}
	return nil
}

// ListPendingSteps returns reminder candidates: pending steps with a due time
// that belong to pending requests and have not been reminded yet
func (r *RequestRepository) ListPendingSteps(ctx context.Context) ([]*entity.RequestStep, error) {
	query := `
		SELECT ` + prefixColumns("s", stepColumns) + `
		FROM request_steps s
		JOIN requests r ON r.id = s.request_id
		WHERE s.is_deleted = 0 AND r.is_deleted = 0
		  AND s.status = ? AND r.status = ?
		  AND s.due_in_hours IS NOT NULL
		  AND s.reminded_at IS NULL
		ORDER BY s.created_at ASC
	`

	rows, err := sqldb.GetExecutor(ctx, r.db).QueryContext(ctx, query,
		string(entity.StepStatusPending), string(entity.RequestStatusPending))
	if err != nil {
		r.logger.Error("Failed to list pending steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.RequestStep
	for rows.Next() {
		step, err := scanRequestStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// MarkStepReminded records when an overdue reminder went out
func (r *RequestRepository) MarkStepReminded(ctx context.Context, stepID string, at time.Time) error {
	_, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE request_steps SET reminded_at = ? WHERE id = ?`, sqldb.Time(at), stepID)
	if err != nil {
		return fmt.Errorf("failed to mark step reminded: %w", err)
	}
	return nil
}

func buildRequestFilter(f port.RequestFilter) (string, []interface{}) {
	conds := []string{"r.is_deleted = 0"}
	var args []interface{}

	if f.InitiatorID != "" {
		conds = append(conds, "r.initiator_id = ?")
		args = append(args, f.InitiatorID)
	}
	if f.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "r.request_type = ?")
		args = append(args, string(f.Type))
	}
	if f.WorkflowID != "" {
		conds = append(conds, "r.workflow_id = ?")
		args = append(args, f.WorkflowID)
	}
	if len(f.PendingStepRoles) > 0 {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM request_steps s
			WHERE s.request_id = r.id AND s.is_deleted = 0 AND s.status = ?
			  AND LOWER(s.responsible_role) IN (`+placeholders(len(f.PendingStepRoles))+`))`)
		args = append(args, string(entity.StepStatusPending))
		for _, role := range f.PendingStepRoles {
			args = append(args, strings.ToLower(role))
		}
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanRequest(s scanner) (*entity.Request, error) {
	var req entity.Request
	var reqType, status string
	var title, description sql.NullString
	if err := s.Scan(
		&req.ID,
		&req.WorkflowID,
		&reqType,
		&req.InitiatorID,
		&status,
		&title,
		&description,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.Type = entity.RequestType(reqType)
	req.Status = entity.RequestStatus(status)
	req.Title = stringPtr(title)
	req.Description = stringPtr(description)
	return &req, nil
}

func scanRequestStep(s scanner) (*entity.RequestStep, error) {
	var step entity.RequestStep
	var status string
	var due sql.NullInt64
	var validatedAt, remindedAt sql.NullTime
	var validatorID, comments sql.NullString
	if err := s.Scan(
		&step.ID,
		&step.RequestID,
		&step.WorkflowStepID,
		&step.StepName,
		&step.StepOrder,
		&step.ResponsibleRole,
		&due,
		&status,
		&validatedAt,
		&validatorID,
		&comments,
		&remindedAt,
		&step.CreatedAt,
		&step.UpdatedAt,
	); err != nil {
		return nil, err
	}
	step.Status = entity.StepStatus(status)
	step.DueInHours = intPtr(due)
	step.ValidatorID = stringPtr(validatorID)
	step.Comments = stringPtr(comments)
	if validatedAt.Valid {
		t := validatedAt.Time
		step.ValidatedAt = &t
	}
	if remindedAt.Valid {
		t := remindedAt.Time
		step.RemindedAt = &t
	}
	return &step, nil
}

var _ port.RequestRepository = (*RequestRepository)(nil)
