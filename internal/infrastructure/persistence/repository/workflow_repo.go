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

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

const workflowColumns = `id, name, description, version, is_active, created_at, updated_at`

// Create inserts the workflow header; steps are written with ReplaceSteps
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	query := `
		INSERT INTO workflows (id, name, description, version, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		wf.ID,
		wf.Name,
		nullString(wf.Description),
		wf.Version,
		wf.IsActive,
		sqldb.Time(wf.CreatedAt),
		sqldb.Time(wf.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.String("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow without its steps
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ? AND is_deleted = 0`

	wf, err := scanWorkflow(sqldb.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// GetWithSteps retrieves a workflow with its live steps ascending by order
func (r *WorkflowRepository) GetWithSteps(ctx context.Context, id string) (*entity.Workflow, error) {
	wf, err := r.GetByID(ctx, id)
	if err != nil || wf == nil {
		return wf, err
	}

	query := `
		SELECT id, workflow_id, step_name, step_order, responsible_role, due_in_hours, created_at, updated_at
		FROM workflow_steps
		WHERE workflow_id = ? AND is_deleted = 0
		ORDER BY step_order ASC
	`

	rows, err := sqldb.GetExecutor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}
	defer rows.Close()

	wf.Steps = []entity.WorkflowStep{}
	for rows.Next() {
		var step entity.WorkflowStep
		var due sql.NullInt64
		if err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.StepName,
			&step.Order,
			&step.ResponsibleRole,
			&due,
			&step.CreatedAt,
			&step.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		step.DueInHours = intPtr(due)
		wf.Steps = append(wf.Steps, step)
	}
	return wf, rows.Err()
}

// List returns workflows ordered by name together with the total count
func (r *WorkflowRepository) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*entity.Workflow, int, error) {
	where := `WHERE is_deleted = 0`
	if activeOnly {
		where += ` AND is_active = 1`
	}

	exec := sqldb.GetExecutor(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows ` + where + ` ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := exec.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, total, rows.Err()
}

// Update writes the workflow header
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.Workflow) error {
	query := `
		UPDATE workflows
		SET name = ?, description = ?, version = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0
	`

	_, err := sqldb.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		wf.Name,
		nullString(wf.Description),
		wf.Version,
		wf.IsActive,
		sqldb.Time(wf.UpdatedAt),
		wf.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.String("id", wf.ID), zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return nil
}

// Delete marks the workflow and its steps deleted
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	exec := sqldb.GetExecutor(ctx, r.db)
	if _, err := exec.ExecContext(ctx, `UPDATE workflows SET is_deleted = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `UPDATE workflow_steps SET is_deleted = 1 WHERE workflow_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete workflow steps: %w", err)
	}
	return nil
}

// ReplaceSteps marks the current steps deleted and inserts the given ones
func (r *WorkflowRepository) ReplaceSteps(ctx context.Context, workflowID string, steps []entity.WorkflowStep) error {
	exec := sqldb.GetExecutor(ctx, r.db)

	if _, err := exec.ExecContext(ctx,
		`UPDATE workflow_steps SET is_deleted = 1 WHERE workflow_id = ? AND is_deleted = 0`, workflowID); err != nil {
		return fmt.Errorf("failed to retire workflow steps: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (
			id, workflow_id, step_name, step_order, responsible_role, due_in_hours, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, step := range steps {
		if _, err := exec.ExecContext(ctx, query,
			step.ID,
			workflowID,
			step.StepName,
			step.Order,
			step.ResponsibleRole,
			nullInt(step.DueInHours),
			sqldb.Time(step.CreatedAt),
			sqldb.Time(step.UpdatedAt),
		); err != nil {
			r.logger.Error("Failed to insert workflow step",
				zap.String("workflow_id", workflowID),
				zap.String("step", step.StepName),
				zap.Error(err))
			return fmt.Errorf("failed to insert workflow step: %w", err)
		}
	}
	return nil
}

// CountRequests counts live requests created from the workflow
func (r *WorkflowRepository) CountRequests(ctx context.Context, workflowID string) (int, error) {
	var count int
	err := sqldb.GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE workflow_id = ? AND is_deleted = 0`, workflowID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

func scanWorkflow(s scanner) (*entity.Workflow, error) {
	var wf entity.Workflow
	var description sql.NullString
	if err := s.Scan(
		&wf.ID,
		&wf.Name,
		&description,
		&wf.Version,
		&wf.IsActive,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	); err != nil {
		return nil, err
	}
	wf.Description = stringPtr(description)
	return &wf, nil
}

var _ port.WorkflowRepository = (*WorkflowRepository)(nil)
