package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// memWorkflowRepo keeps workflows in memory
type memWorkflowRepo struct {
	mu        sync.Mutex
	workflows map[string]*entity.Workflow
	requests  map[string]int
	getErr    error
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{
		workflows: make(map[string]*entity.Workflow),
		requests:  make(map[string]int),
	}
}

func (r *memWorkflowRepo) Create(ctx context.Context, wf *entity.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *wf
	cp.Steps = nil
	r.workflows[wf.ID] = &cp
	return nil
}

func (r *memWorkflowRepo) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	wf, ok := r.workflows[id]
	if !ok || wf.IsDeleted {
		return nil, nil
	}
	cp := *wf
	cp.Steps = nil
	return &cp, nil
}

func (r *memWorkflowRepo) GetWithSteps(ctx context.Context, id string) (*entity.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	wf, ok := r.workflows[id]
	if !ok || wf.IsDeleted {
		return nil, nil
	}
	cp := *wf
	cp.Steps = append([]entity.WorkflowStep{}, wf.Steps...)
	sort.Slice(cp.Steps, func(i, j int) bool { return cp.Steps[i].Order < cp.Steps[j].Order })
	return &cp, nil
}

func (r *memWorkflowRepo) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*entity.Workflow, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.Workflow
	for _, wf := range r.workflows {
		if wf.IsDeleted || (activeOnly && !wf.IsActive) {
			continue
		}
		cp := *wf
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return pageOf(all, offset, limit), len(all), nil
}

func (r *memWorkflowRepo) Update(ctx context.Context, wf *entity.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.workflows[wf.ID]
	cp := *wf
	cp.Steps = existing.Steps
	r.workflows[wf.ID] = &cp
	return nil
}

func (r *memWorkflowRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wf, ok := r.workflows[id]; ok {
		wf.IsDeleted = true
	}
	return nil
}

func (r *memWorkflowRepo) ReplaceSteps(ctx context.Context, workflowID string, steps []entity.WorkflowStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[workflowID].Steps = append([]entity.WorkflowStep{}, steps...)
	return nil
}

func (r *memWorkflowRepo) CountRequests(ctx context.Context, workflowID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[workflowID], nil
}

// memRequestRepo stores copies so callers never share state with the store
type memRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.Request
	order    []string
	saves    int

	// beforeSave runs inside Save before the version check
	beforeSave func(stored *entity.Request)
	workflows  *memWorkflowRepo
}

func newMemRequestRepo(workflows *memWorkflowRepo) *memRequestRepo {
	return &memRequestRepo{
		requests:  make(map[string]*entity.Request),
		workflows: workflows,
	}
}

func copyRequest(req *entity.Request) *entity.Request {
	cp := *req
	cp.Steps = append([]entity.RequestStep{}, req.Steps...)
	return &cp
}

func (r *memRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = copyRequest(req)
	r.order = append(r.order, req.ID)
	if r.workflows != nil {
		r.workflows.mu.Lock()
		r.workflows.requests[req.WorkflowID]++
		r.workflows.mu.Unlock()
	}
	return nil
}

func (r *memRequestRepo) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	req, err := r.GetWithSteps(ctx, id)
	if req != nil {
		req.Steps = nil
	}
	return req, err
}

func (r *memRequestRepo) GetWithSteps(ctx context.Context, id string) (*entity.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.IsDeleted {
		return nil, nil
	}
	return copyRequest(req), nil
}

func (r *memRequestRepo) List(ctx context.Context, filter port.RequestFilter, offset, limit int) ([]*entity.Request, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.Request
	for i := len(r.order) - 1; i >= 0; i-- {
		req := r.requests[r.order[i]]
		if req.IsDeleted || !matches(req, filter) {
			continue
		}
		cp := copyRequest(req)
		cp.Steps = nil
		all = append(all, cp)
	}
	return pageOf(all, offset, limit), len(all), nil
}

func matches(req *entity.Request, f port.RequestFilter) bool {
	if f.InitiatorID != "" && req.InitiatorID != f.InitiatorID {
		return false
	}
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.Type != "" && req.Type != f.Type {
		return false
	}
	if f.WorkflowID != "" && req.WorkflowID != f.WorkflowID {
		return false
	}
	if len(f.PendingStepRoles) > 0 {
		for _, step := range req.Steps {
			if step.Status != entity.StepStatusPending {
				continue
			}
			for _, role := range f.PendingStepRoles {
				if strings.EqualFold(step.ResponsibleRole, role) {
					return true
				}
			}
		}
		return false
	}
	return true
}

func (r *memRequestRepo) Save(ctx context.Context, req *entity.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[req.ID]
	if !ok {
		return port.ErrStaleAggregate
	}
	if r.beforeSave != nil {
		r.beforeSave(stored)
	}
	if stored.Version != req.Version {
		return port.ErrStaleAggregate
	}
	req.Version++
	saved := copyRequest(req)
	// reminder marks stay as stored, like the SQL repository
	reminded := make(map[string]*time.Time, len(stored.Steps))
	for _, s := range stored.Steps {
		reminded[s.ID] = s.RemindedAt
	}
	for i := range saved.Steps {
		saved.Steps[i].RemindedAt = reminded[saved.Steps[i].ID]
	}
	r.requests[req.ID] = saved
	r.saves++
	return nil
}

func (r *memRequestRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.requests[id]; ok {
		req.IsDeleted = true
	}
	return nil
}

func (r *memRequestRepo) ListPendingSteps(ctx context.Context) ([]*entity.RequestStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var steps []*entity.RequestStep
	for _, id := range r.order {
		req := r.requests[id]
		if req.IsDeleted || req.Status != entity.RequestStatusPending {
			continue
		}
		for i := range req.Steps {
			if req.Steps[i].Status == entity.StepStatusPending && req.Steps[i].DueInHours != nil {
				step := req.Steps[i]
				steps = append(steps, &step)
			}
		}
	}
	return steps, nil
}

func (r *memRequestRepo) MarkStepReminded(ctx context.Context, stepID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		for i := range req.Steps {
			if req.Steps[i].ID == stepID {
				req.Steps[i].RemindedAt = &at
			}
		}
	}
	return nil
}

func (r *memRequestRepo) stored(id string) *entity.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyRequest(r.requests[id])
}

type memHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.RequestHistory
}

func (r *memHistoryRepo) Create(ctx context.Context, h *entity.RequestHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, h)
	return nil
}

func (r *memHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.RequestHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.RequestHistory
	for _, h := range r.entries {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memNotificationRepo struct {
	mu    sync.Mutex
	items []*entity.Notification
}

func (r *memNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *memNotificationRepo) find(id string) *entity.Notification {
	for _, n := range r.items {
		if n.ID == id && !n.IsDeleted {
			return n
		}
	}
	return nil
}

func (r *memNotificationRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.find(id); n != nil {
		cp := *n
		return &cp, nil
	}
	return nil, nil
}

func (r *memNotificationRepo) List(ctx context.Context, offset, limit int) ([]*entity.Notification, int, error) {
	return r.filter(func(n *entity.Notification) bool { return true }, offset, limit)
}

func (r *memNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*entity.Notification, int, error) {
	return r.filter(func(n *entity.Notification) bool {
		return n.UserID == userID && (!unreadOnly || !n.IsRead)
	}, offset, limit)
}

func (r *memNotificationRepo) filter(keep func(*entity.Notification) bool, offset, limit int) ([]*entity.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		n := r.items[i]
		if !n.IsDeleted && keep(n) {
			cp := *n
			all = append(all, &cp)
		}
	}
	return pageOf(all, offset, limit), len(all), nil
}

func (r *memNotificationRepo) Update(ctx context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.items {
		if existing.ID == n.ID {
			cp := *n
			r.items[i] = &cp
		}
	}
	return nil
}

func (r *memNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead && !n.IsDeleted {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead && !n.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.find(id); n != nil {
		n.IsDeleted = true
	}
	return nil
}

// recordingDispatcher remembers every event in order
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return d.err
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = d.Dispatch(ctx, evt)
}

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]event.Type, len(d.events))
	for i, e := range d.events {
		types[i] = e.Type
	}
	return types
}

func pageOf[T any](all []T, offset, limit int) []T {
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
