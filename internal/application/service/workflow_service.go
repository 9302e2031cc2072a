package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/pkg/utils"
)

// WorkflowService manages workflow templates
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*entity.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*entity.Workflow, error)
	GetWorkflowWithSteps(ctx context.Context, id string) (*entity.Workflow, error)
	ListWorkflows(ctx context.Context, page Page) (*PagedResult[*entity.Workflow], error)
	ListActiveWorkflows(ctx context.Context, page Page) (*PagedResult[*entity.Workflow], error)
	UpdateWorkflow(ctx context.Context, id string, input UpdateWorkflowInput) (*entity.Workflow, error)
	ReplaceWorkflowSteps(ctx context.Context, id string, steps []StepInput) (*entity.Workflow, error)
	ActivateWorkflow(ctx context.Context, id string) (*entity.Workflow, error)
	DeactivateWorkflow(ctx context.Context, id string) (*entity.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// StepInput describes one step of a workflow being created or replaced
type StepInput struct {
	StepName        string `json:"step_name"`
	Order           int    `json:"order"`
	ResponsibleRole string `json:"responsible_role"`
	DueInHours      *int   `json:"due_in_hours,omitempty"`
}

// CreateWorkflowInput holds the fields of a new workflow
type CreateWorkflowInput struct {
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Version     int         `json:"version"`
	IsActive    *bool       `json:"is_active,omitempty"`
	Steps       []StepInput `json:"steps"`
}

// UpdateWorkflowInput holds the editable header fields of a workflow
type UpdateWorkflowInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Version     int     `json:"version"`
	IsActive    bool    `json:"is_active"`
}

type workflowServiceImpl struct {
	workflowRepo port.WorkflowRepository
	txManager    port.TransactionManager
	logger       Logger
	now          func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	workflowRepo port.WorkflowRepository,
	txManager port.TransactionManager,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		workflowRepo: workflowRepo,
		txManager:    txManager,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateWorkflow stores a workflow and its steps in one transaction
func (s *workflowServiceImpl) CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*entity.Workflow, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("workflow name is required")
	}

	now := s.now()
	wf := &entity.Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: input.Description,
		Version:     input.Version,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if wf.Version < 1 {
		wf.Version = 1
	}
	if input.IsActive != nil {
		wf.IsActive = *input.IsActive
	}

	steps, err := s.buildSteps(wf.ID, input.Steps, now)
	if err != nil {
		return nil, err
	}
	wf.Steps = steps

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.workflowRepo.Create(txCtx, wf); err != nil {
			return fmt.Errorf("create workflow: %w", err)
		}
		return s.workflowRepo.ReplaceSteps(txCtx, wf.ID, wf.Steps)
	})
	if err != nil {
		s.logger.Error("Failed to create workflow", "name", name, "error", err)
		return nil, err
	}

	s.logger.Info("Workflow created", "workflow_id", wf.ID, "name", wf.Name, "steps", len(wf.Steps))
	return wf, nil
}

// buildSteps numbers steps by position when no order is given; otherwise orders must be positive and unique
func (s *workflowServiceImpl) buildSteps(workflowID string, inputs []StepInput, now time.Time) ([]entity.WorkflowStep, error) {
	explicit := false
	for _, in := range inputs {
		if in.Order != 0 {
			explicit = true
			break
		}
	}

	seen := make(map[int]bool, len(inputs))
	steps := make([]entity.WorkflowStep, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.StepName) == "" {
			return nil, validationError("step %d: step name is required", i+1)
		}
		if strings.TrimSpace(in.ResponsibleRole) == "" {
			return nil, validationError("step %q: responsible role is required", in.StepName)
		}
		if err := utils.ValidateRole(strings.TrimSpace(in.ResponsibleRole)); err != nil {
			return nil, validationError("step %q: %v", in.StepName, err)
		}
		if in.DueInHours != nil && *in.DueInHours <= 0 {
			return nil, validationError("step %q: due in hours must be positive", in.StepName)
		}

		order := i + 1
		if explicit {
			order = in.Order
			if order <= 0 {
				return nil, validationError("step %q: order must be positive", in.StepName)
			}
			if seen[order] {
				return nil, validationError("duplicate step order %d", order)
			}
			seen[order] = true
		}

		steps = append(steps, entity.WorkflowStep{
			ID:              uuid.New().String(),
			WorkflowID:      workflowID,
			StepName:        strings.TrimSpace(in.StepName),
			Order:           order,
			ResponsibleRole: strings.TrimSpace(in.ResponsibleRole),
			DueInHours:      in.DueInHours,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps, nil
}

func (s *workflowServiceImpl) GetWorkflow(ctx context.Context, id string) (*entity.Workflow, error) {
	wf, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, notFound("workflow", id)
	}
	return wf, nil
}

func (s *workflowServiceImpl) GetWorkflowWithSteps(ctx context.Context, id string) (*entity.Workflow, error) {
	wf, err := s.workflowRepo.GetWithSteps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get workflow with steps: %w", err)
	}
	if wf == nil {
		return nil, notFound("workflow", id)
	}
	return wf, nil
}

// ListWorkflows returns workflows ordered by name
func (s *workflowServiceImpl) ListWorkflows(ctx context.Context, page Page) (*PagedResult[*entity.Workflow], error) {
	return s.list(ctx, false, page)
}

// ListActiveWorkflows returns the active workflows ordered by name
func (s *workflowServiceImpl) ListActiveWorkflows(ctx context.Context, page Page) (*PagedResult[*entity.Workflow], error) {
	return s.list(ctx, true, page)
}

func (s *workflowServiceImpl) list(ctx context.Context, activeOnly bool, page Page) (*PagedResult[*entity.Workflow], error) {
	page = page.Normalize()
	items, total, err := s.workflowRepo.List(ctx, activeOnly, page.Offset(), page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return newPagedResult(items, total, page), nil
}

func (s *workflowServiceImpl) UpdateWorkflow(ctx context.Context, id string, input UpdateWorkflowInput) (*entity.Workflow, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("workflow name is required")
	}

	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	wf.Name = name
	wf.Description = input.Description
	if input.Version > 0 {
		wf.Version = input.Version
	}
	wf.IsActive = input.IsActive
	wf.UpdatedAt = s.now()

	if err := s.workflowRepo.Update(ctx, wf); err != nil {
		s.logger.Error("Failed to update workflow", "workflow_id", id, "error", err)
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	return wf, nil
}

// ReplaceWorkflowSteps swaps the step list of a workflow no request has used yet
func (s *workflowServiceImpl) ReplaceWorkflowSteps(ctx context.Context, id string, inputs []StepInput) (*entity.Workflow, error) {
	var result *entity.Workflow

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		wf, err := s.workflowRepo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get workflow: %w", err)
		}
		if wf == nil {
			return notFound("workflow", id)
		}

		count, err := s.workflowRepo.CountRequests(txCtx, id)
		if err != nil {
			return fmt.Errorf("count requests: %w", err)
		}
		if count > 0 {
			return invalidState("workflow %s is used by %d request(s); create a new workflow instead", id, count)
		}

		now := s.now()
		steps, err := s.buildSteps(id, inputs, now)
		if err != nil {
			return err
		}
		if err := s.workflowRepo.ReplaceSteps(txCtx, id, steps); err != nil {
			return fmt.Errorf("replace steps: %w", err)
		}

		wf.Steps = steps
		wf.UpdatedAt = now
		if err := s.workflowRepo.Update(txCtx, wf); err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}
		result = wf
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow steps replaced", "workflow_id", id, "steps", len(result.Steps))
	return result, nil
}

func (s *workflowServiceImpl) ActivateWorkflow(ctx context.Context, id string) (*entity.Workflow, error) {
	return s.setActive(ctx, id, true)
}

func (s *workflowServiceImpl) DeactivateWorkflow(ctx context.Context, id string) (*entity.Workflow, error) {
	return s.setActive(ctx, id, false)
}

func (s *workflowServiceImpl) setActive(ctx context.Context, id string, active bool) (*entity.Workflow, error) {
	wf, err := s.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.IsActive == active {
		return wf, nil
	}

	wf.IsActive = active
	wf.UpdatedAt = s.now()
	if err := s.workflowRepo.Update(ctx, wf); err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}

	s.logger.Info("Workflow activation changed", "workflow_id", id, "is_active", active)
	return wf, nil
}

func (s *workflowServiceImpl) DeleteWorkflow(ctx context.Context, id string) error {
	if _, err := s.GetWorkflow(ctx, id); err != nil {
		return err
	}
	if err := s.workflowRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	s.logger.Info("Workflow deleted", "workflow_id", id)
	return nil
}
