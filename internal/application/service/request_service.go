package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/domain/event"
	"github.com/garyjia/workflow-approval/internal/domain/workflow"
)

// RequestService instantiates requests from workflows and records step decisions
type RequestService interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.Request, error)
	ApproveStep(ctx context.Context, requestID, stepID string, validator Actor, comments *string) (*entity.Request, error)
	RejectStep(ctx context.Context, requestID, stepID string, validator Actor, comments *string) (*entity.Request, error)

	GetRequest(ctx context.Context, id string) (*entity.Request, error)
	GetRequestWithSteps(ctx context.Context, id string) (*entity.Request, error)
	ListRequests(ctx context.Context, filter port.RequestFilter, page Page) (*PagedResult[*entity.Request], error)
	ListRequestsByUser(ctx context.Context, userID string, page Page) (*PagedResult[*entity.Request], error)
	ListRequestsByStatus(ctx context.Context, status entity.RequestStatus, page Page) (*PagedResult[*entity.Request], error)
	ListPendingApprovals(ctx context.Context, actor Actor, page Page) (*PagedResult[*entity.Request], error)
	GetRequestHistory(ctx context.Context, id string) ([]*entity.RequestHistory, error)

	UpdateRequest(ctx context.Context, id string, actor Actor, input UpdateRequestInput) (*entity.Request, error)
	ArchiveRequest(ctx context.Context, id string, actor Actor) (*entity.Request, error)
	DeleteRequest(ctx context.Context, id string) error

	ExportRequests(ctx context.Context, filter port.RequestFilter) (*ExportResult, error)
	RemindOverdueSteps(ctx context.Context) (int, error)
}

// CreateRequestInput holds the fields of a new request
type CreateRequestInput struct {
	WorkflowID  string             `json:"workflow_id"`
	InitiatorID string             `json:"-"`
	Type        entity.RequestType `json:"type"`
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
}

// UpdateRequestInput holds the editable fields of a pending request; nil fields are left unchanged
type UpdateRequestInput struct {
	Type        *entity.RequestType `json:"type,omitempty"`
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
}

const maxExportRows = 1000

// ExportResult is a rendered workbook; Total exceeds Exported when the row cap cut the listing short
type ExportResult struct {
	Data     []byte
	Exported int
	Total    int
}

// Truncated reports whether matching requests were left out of the workbook
func (r *ExportResult) Truncated() bool {
	return r.Total > r.Exported
}

// RequestServiceOption configures the request service
type RequestServiceOption func(*requestServiceImpl)

// WithRoleEnforcement toggles the responsible-role check on step decisions and archiving
func WithRoleEnforcement(enabled bool) RequestServiceOption {
	return func(s *requestServiceImpl) {
		s.enforceRoles = enabled
	}
}

// WithSequentialSteps requires every earlier step to be approved before a step can be decided
func WithSequentialSteps(enabled bool) RequestServiceOption {
	return func(s *requestServiceImpl) {
		s.sequentialSteps = enabled
	}
}

// WithEventDispatcher sets where committed domain events are sent
func WithEventDispatcher(d EventDispatcher) RequestServiceOption {
	return func(s *requestServiceImpl) {
		s.dispatcher = d
	}
}

// WithExporter sets the spreadsheet exporter and optional storage for saved exports
func WithExporter(exporter port.RequestExporter, storage port.FileStorage) RequestServiceOption {
	return func(s *requestServiceImpl) {
		s.exporter = exporter
		s.exportStorage = storage
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) RequestServiceOption {
	return func(s *requestServiceImpl) {
		s.now = now
	}
}

type requestServiceImpl struct {
	requestRepo  port.RequestRepository
	workflowRepo port.WorkflowRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	logger       Logger

	dispatcher    EventDispatcher
	exporter      port.RequestExporter
	exportStorage port.FileStorage

	enforceRoles    bool
	sequentialSteps bool
	exportLimit     int
	now             func() time.Time
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo port.RequestRepository,
	workflowRepo port.WorkflowRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...RequestServiceOption,
) RequestService {
	s := &requestServiceImpl{
		requestRepo:  requestRepo,
		workflowRepo: workflowRepo,
		historyRepo:  historyRepo,
		txManager:    txManager,
		logger:       logger,
		enforceRoles: true,
		exportLimit:  maxExportRows,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest instantiates a pending request with one pending step per workflow step
func (s *requestServiceImpl) CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.Request, error) {
	if strings.TrimSpace(input.InitiatorID) == "" {
		return nil, validationError("initiator is required")
	}
	if !input.Type.IsValid() {
		return nil, validationError("unknown request type %q", input.Type)
	}
	if strings.TrimSpace(input.WorkflowID) == "" {
		return nil, validationError("workflow id is required")
	}

	var req *entity.Request
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		wf, err := s.workflowRepo.GetWithSteps(txCtx, input.WorkflowID)
		if err != nil {
			return fmt.Errorf("get workflow: %w", err)
		}
		if wf == nil {
			return notFound("workflow", input.WorkflowID)
		}
		if !wf.IsActive {
			return validationError("workflow %s is not active", wf.ID)
		}

		now := s.now()
		req = &entity.Request{
			ID:          uuid.New().String(),
			WorkflowID:  wf.ID,
			Type:        input.Type,
			InitiatorID: input.InitiatorID,
			Status:      entity.RequestStatusPending,
			Title:       input.Title,
			Description: input.Description,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ordered := wf.OrderedSteps()
		req.Steps = make([]entity.RequestStep, 0, len(ordered))
		for _, ws := range ordered {
			req.Steps = append(req.Steps, entity.RequestStep{
				ID:              uuid.New().String(),
				RequestID:       req.ID,
				WorkflowStepID:  ws.ID,
				StepName:        ws.StepName,
				StepOrder:       ws.Order,
				ResponsibleRole: ws.ResponsibleRole,
				DueInHours:      ws.DueInHours,
				Status:          entity.StepStatusPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}

		if err := s.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		return s.recordHistory(txCtx, req.ID, "", input.InitiatorID, entity.ActionCreate, "", req.Status, "")
	})
	if err != nil {
		s.logger.Error("Failed to create request", "workflow_id", input.WorkflowID, "initiator_id", input.InitiatorID, "error", err)
		return nil, err
	}

	s.logger.Info("Request created", "request_id", req.ID, "workflow_id", req.WorkflowID, "steps", len(req.Steps))

	dispatchAll(ctx, s.dispatcher, s.logger, []*event.Event{
		event.NewEvent(event.TypeRequestCreated, req.ID, map[string]interface{}{
			event.PayloadInitiatorID: req.InitiatorID,
			event.PayloadStatus:      string(req.Status),
			event.PayloadTitle:       stringValue(req.Title),
		}),
	})
	return req, nil
}

// ApproveStep approves one pending step; the request becomes approved once every step is
func (s *requestServiceImpl) ApproveStep(ctx context.Context, requestID, stepID string, validator Actor, comments *string) (*entity.Request, error) {
	return s.decide(ctx, requestID, stepID, validator, comments, true)
}

// RejectStep rejects one pending step, which rejects the whole request
func (s *requestServiceImpl) RejectStep(ctx context.Context, requestID, stepID string, validator Actor, comments *string) (*entity.Request, error) {
	return s.decide(ctx, requestID, stepID, validator, comments, false)
}

func (s *requestServiceImpl) decide(ctx context.Context, requestID, stepID string, validator Actor, comments *string, approve bool) (*entity.Request, error) {
	if strings.TrimSpace(validator.ID) == "" {
		return nil, validationError("validator is required")
	}

	stepStatus, trigger, action := entity.StepStatusRejected, workflow.TriggerRejectStep, entity.ActionRejectStep
	if approve {
		stepStatus, trigger, action = entity.StepStatusApproved, workflow.TriggerApproveStep, entity.ActionApproveStep
	}

	var (
		req    *entity.Request
		from   entity.RequestStatus
		events []*event.Event
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.requestRepo.GetWithSteps(txCtx, requestID)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if req == nil {
			return notFound("request", requestID)
		}

		step := req.FindStep(stepID)
		if step == nil {
			return notFound("step", stepID)
		}
		if step.Status != entity.StepStatusPending {
			return invalidState("only pending steps can be decided; step %s is %s", stepID, step.Status)
		}
		if workflow.State(req.Status).IsTerminal() {
			return invalidState("request %s is %s and accepts no further decisions", requestID, req.Status)
		}
		if s.enforceRoles && !validator.HasRole(step.ResponsibleRole) {
			return forbidden("step %q requires role %q", step.StepName, step.ResponsibleRole)
		}
		if s.sequentialSteps {
			for _, other := range req.Steps {
				if other.StepOrder < step.StepOrder && other.Status != entity.StepStatusApproved {
					return invalidState("step %q must be approved first", other.StepName)
				}
			}
		}

		now := s.now()
		validatorID := validator.ID
		step.Status = stepStatus
		step.ValidatedAt = &now
		step.ValidatorID = &validatorID
		step.Comments = comments
		step.UpdatedAt = now

		from = req.Status
		machine := workflow.NewRequestMachine(workflow.State(req.Status), workflow.AllApproved(req))
		if err := machine.Fire(txCtx, trigger); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		req.Status = machine.State().Status()
		req.UpdatedAt = now

		if err := s.requestRepo.Save(txCtx, req); err != nil {
			if errors.Is(err, port.ErrStaleAggregate) {
				return fmt.Errorf("%w: request %s was changed by another decision", ErrConflict, requestID)
			}
			return fmt.Errorf("save request: %w", err)
		}

		if err := s.recordHistory(txCtx, req.ID, step.ID, validator.ID, action, from, req.Status, stringValue(comments)); err != nil {
			return err
		}

		events = s.decisionEvents(req, step, from, approve)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to decide step", "request_id", requestID, "step_id", stepID, "approve", approve, "error", err)
		return nil, err
	}

	s.logger.Info("Step decided",
		"request_id", requestID,
		"step_id", stepID,
		"step_status", stepStatus,
		"request_status", req.Status,
		"validator_id", validator.ID,
	)

	dispatchAll(ctx, s.dispatcher, s.logger, events)
	return req, nil
}

func (s *requestServiceImpl) decisionEvents(req *entity.Request, step *entity.RequestStep, from entity.RequestStatus, approve bool) []*event.Event {
	stepType := event.TypeRequestStepRejected
	if approve {
		stepType = event.TypeRequestStepApproved
	}

	payload := map[string]interface{}{
		event.PayloadInitiatorID:     req.InitiatorID,
		event.PayloadActorID:         stringValue(step.ValidatorID),
		event.PayloadStepID:          step.ID,
		event.PayloadStepName:        step.StepName,
		event.PayloadResponsibleRole: step.ResponsibleRole,
		event.PayloadStatus:          string(req.Status),
		event.PayloadComments:        stringValue(step.Comments),
		event.PayloadTitle:           stringValue(req.Title),
	}

	first := event.NewEvent(stepType, req.ID, payload)
	events := []*event.Event{first}

	if req.Status != from {
		var requestType event.Type
		switch req.Status {
		case entity.RequestStatusApproved:
			requestType = event.TypeRequestApproved
		case entity.RequestStatusRejected:
			requestType = event.TypeRequestRejected
		}
		if requestType != "" {
			events = append(events, event.NewEventWithCorrelation(requestType, req.ID, payload, first.CorrelationID))
		}
	}
	return events
}

func (s *requestServiceImpl) GetRequest(ctx context.Context, id string) (*entity.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, notFound("request", id)
	}
	return req, nil
}

func (s *requestServiceImpl) GetRequestWithSteps(ctx context.Context, id string) (*entity.Request, error) {
	req, err := s.requestRepo.GetWithSteps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, notFound("request", id)
	}
	return req, nil
}

// ListRequests returns requests newest first
func (s *requestServiceImpl) ListRequests(ctx context.Context, filter port.RequestFilter, page Page) (*PagedResult[*entity.Request], error) {
	page = page.Normalize()
	items, total, err := s.requestRepo.List(ctx, filter, page.Offset(), page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return newPagedResult(items, total, page), nil
}

func (s *requestServiceImpl) ListRequestsByUser(ctx context.Context, userID string, page Page) (*PagedResult[*entity.Request], error) {
	if userID == "" {
		return nil, validationError("user id is required")
	}
	return s.ListRequests(ctx, port.RequestFilter{InitiatorID: userID}, page)
}

func (s *requestServiceImpl) ListRequestsByStatus(ctx context.Context, status entity.RequestStatus, page Page) (*PagedResult[*entity.Request], error) {
	if !status.IsValid() {
		return nil, validationError("unknown request status %q", status)
	}
	return s.ListRequests(ctx, port.RequestFilter{Status: status}, page)
}

// ListPendingApprovals returns pending requests with a pending step the actor is responsible for
func (s *requestServiceImpl) ListPendingApprovals(ctx context.Context, actor Actor, page Page) (*PagedResult[*entity.Request], error) {
	if len(actor.Roles) == 0 {
		return newPagedResult[*entity.Request](nil, 0, page), nil
	}
	return s.ListRequests(ctx, port.RequestFilter{
		Status:           entity.RequestStatusPending,
		PendingStepRoles: actor.Roles,
	}, page)
}

func (s *requestServiceImpl) GetRequestHistory(ctx context.Context, id string) ([]*entity.RequestHistory, error) {
	if _, err := s.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.historyRepo.GetByRequestID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return history, nil
}

// UpdateRequest edits the descriptive fields of a pending request; only the initiator may do so
func (s *requestServiceImpl) UpdateRequest(ctx context.Context, id string, actor Actor, input UpdateRequestInput) (*entity.Request, error) {
	if input.Type != nil && !input.Type.IsValid() {
		return nil, validationError("unknown request type %q", *input.Type)
	}

	var req *entity.Request
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.requestRepo.GetWithSteps(txCtx, id)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if req == nil {
			return notFound("request", id)
		}
		if req.InitiatorID != actor.ID {
			return forbidden("only the initiator can edit request %s", id)
		}
		if req.Status != entity.RequestStatusPending {
			return invalidState("request %s is %s and can no longer be edited", id, req.Status)
		}

		if input.Type != nil {
			req.Type = *input.Type
		}
		if input.Title != nil {
			req.Title = input.Title
		}
		if input.Description != nil {
			req.Description = input.Description
		}
		req.UpdatedAt = s.now()

		if err := s.requestRepo.Save(txCtx, req); err != nil {
			if errors.Is(err, port.ErrStaleAggregate) {
				return fmt.Errorf("%w: request %s was changed concurrently", ErrConflict, id)
			}
			return fmt.Errorf("save request: %w", err)
		}
		return s.recordHistory(txCtx, req.ID, "", actor.ID, entity.ActionUpdate, req.Status, req.Status, "")
	})
	if err != nil {
		return nil, err
	}

	dispatchAll(ctx, s.dispatcher, s.logger, []*event.Event{
		event.NewEvent(event.TypeRequestUpdated, req.ID, map[string]interface{}{
			event.PayloadInitiatorID: req.InitiatorID,
			event.PayloadActorID:     actor.ID,
			event.PayloadStatus:      string(req.Status),
		}),
	})
	return req, nil
}

// ArchiveRequest moves a decided request to Archived
func (s *requestServiceImpl) ArchiveRequest(ctx context.Context, id string, actor Actor) (*entity.Request, error) {
	if s.enforceRoles && !actor.HasRole(RoleAdmin) {
		return nil, forbidden("archiving requires role %q", RoleAdmin)
	}

	var (
		req  *entity.Request
		from entity.RequestStatus
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = s.requestRepo.GetWithSteps(txCtx, id)
		if err != nil {
			return fmt.Errorf("get request: %w", err)
		}
		if req == nil {
			return notFound("request", id)
		}

		from = req.Status
		machine := workflow.NewRequestMachine(workflow.State(req.Status), workflow.AllApproved(req))
		if !machine.CanFire(workflow.TriggerArchive) {
			return invalidState("request %s is %s and cannot be archived", id, req.Status)
		}
		if err := machine.Fire(txCtx, workflow.TriggerArchive); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		req.Status = machine.State().Status()
		req.UpdatedAt = s.now()

		if err := s.requestRepo.Save(txCtx, req); err != nil {
			if errors.Is(err, port.ErrStaleAggregate) {
				return fmt.Errorf("%w: request %s was changed concurrently", ErrConflict, id)
			}
			return fmt.Errorf("save request: %w", err)
		}
		return s.recordHistory(txCtx, req.ID, "", actor.ID, entity.ActionArchive, from, req.Status, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request archived", "request_id", id, "from_status", from, "actor_id", actor.ID)

	dispatchAll(ctx, s.dispatcher, s.logger, []*event.Event{
		event.NewEvent(event.TypeRequestArchived, req.ID, map[string]interface{}{
			event.PayloadInitiatorID: req.InitiatorID,
			event.PayloadActorID:     actor.ID,
			event.PayloadStatus:      string(req.Status),
			event.PayloadTitle:       stringValue(req.Title),
		}),
	})
	return req, nil
}

func (s *requestServiceImpl) DeleteRequest(ctx context.Context, id string) error {
	if _, err := s.GetRequest(ctx, id); err != nil {
		return err
	}
	if err := s.requestRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	s.logger.Info("Request deleted", "request_id", id)
	return nil
}

// ExportRequests renders matching requests with their steps as a spreadsheet.
// At most maxExportRows requests are exported, newest first.
func (s *requestServiceImpl) ExportRequests(ctx context.Context, filter port.RequestFilter) (*ExportResult, error) {
	if s.exporter == nil {
		return nil, errors.New("request export is not configured")
	}

	var (
		requests []*entity.Request
		total    int
	)
	// one transaction so headers and steps come from the same snapshot
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		headers, count, err := s.requestRepo.List(txCtx, filter, 0, s.exportLimit)
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		total = count

		requests = make([]*entity.Request, 0, len(headers))
		for _, h := range headers {
			full, err := s.requestRepo.GetWithSteps(txCtx, h.ID)
			if err != nil {
				return fmt.Errorf("get request %s: %w", h.ID, err)
			}
			if full != nil {
				requests = append(requests, full)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if total > len(requests) {
		s.logger.Info("Export truncated", "exported", len(requests), "total", total, "limit", s.exportLimit)
	}

	data, err := s.exporter.Export(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("export requests: %w", err)
	}

	if s.exportStorage != nil {
		name := fmt.Sprintf("exports/requests_%s.xlsx", s.now().Format("20060102_150405"))
		if err := s.exportStorage.Save(ctx, name, data); err != nil {
			s.logger.Error("Failed to store export", "path", name, "error", err)
		} else {
			s.logger.Info("Export stored", "path", s.exportStorage.GetFullPath(name), "requests", len(requests))
		}
	}
	return &ExportResult{Data: data, Exported: len(requests), Total: total}, nil
}

// RemindOverdueSteps raises one overdue event per pending step past its due time
func (s *requestServiceImpl) RemindOverdueSteps(ctx context.Context) (int, error) {
	steps, err := s.requestRepo.ListPendingSteps(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending steps: %w", err)
	}

	now := s.now()
	reminded := 0
	for _, step := range steps {
		if step.RemindedAt != nil || !step.IsOverdue(now) {
			continue
		}

		req, err := s.requestRepo.GetByID(ctx, step.RequestID)
		if err != nil {
			s.logger.Error("Failed to load request for reminder", "request_id", step.RequestID, "error", err)
			continue
		}
		if req == nil || req.Status != entity.RequestStatusPending {
			continue
		}

		if err := s.requestRepo.MarkStepReminded(ctx, step.ID, now); err != nil {
			s.logger.Error("Failed to mark step reminded", "step_id", step.ID, "error", err)
			continue
		}
		reminded++

		if s.dispatcher == nil {
			continue
		}
		// the sweep deadline must not cut off deliveries still in flight
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx),
			event.NewEvent(event.TypeRequestStepOverdue, req.ID, map[string]interface{}{
				event.PayloadInitiatorID:     req.InitiatorID,
				event.PayloadStepID:          step.ID,
				event.PayloadStepName:        step.StepName,
				event.PayloadResponsibleRole: step.ResponsibleRole,
				event.PayloadStatus:          string(req.Status),
				event.PayloadTitle:           stringValue(req.Title),
			}))
	}

	if reminded > 0 {
		s.logger.Info("Overdue steps reminded", "count", reminded)
	}
	return reminded, nil
}

func (s *requestServiceImpl) recordHistory(ctx context.Context, requestID, stepID, actorID, action string, from, to entity.RequestStatus, comment string) error {
	h := &entity.RequestHistory{
		RequestID:  requestID,
		StepID:     stepID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: string(from),
		ToStatus:   string(to),
		Comment:    comment,
		CreatedAt:  s.now(),
	}
	if err := s.historyRepo.Create(ctx, h); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
