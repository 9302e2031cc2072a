package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/workflow-approval/internal/domain/entity"
)

func newWorkflowFixture() (*memWorkflowRepo, WorkflowService) {
	repo := newMemWorkflowRepo()
	return repo, NewWorkflowService(repo, &mockTxManager{}, &mockLogger{})
}

func TestWorkflowService_CreateWorkflow_StepOrdering(t *testing.T) {
	tests := []struct {
		name      string
		steps     []StepInput
		wantNames []string
		wantOrder []int
		wantErr   error
	}{
		{
			name: "orders assigned by position",
			steps: []StepInput{
				{StepName: "Manager", ResponsibleRole: "Manager"},
				{StepName: "HR", ResponsibleRole: "HR"},
			},
			wantNames: []string{"Manager", "HR"},
			wantOrder: []int{1, 2},
		},
		{
			name: "explicit orders sorted",
			steps: []StepInput{
				{StepName: "HR", Order: 20, ResponsibleRole: "HR"},
				{StepName: "Manager", Order: 10, ResponsibleRole: "Manager"},
			},
			wantNames: []string{"Manager", "HR"},
			wantOrder: []int{10, 20},
		},
		{
			name: "duplicate order",
			steps: []StepInput{
				{StepName: "A", Order: 1, ResponsibleRole: "R"},
				{StepName: "B", Order: 1, ResponsibleRole: "R"},
			},
			wantErr: ErrValidation,
		},
		{
			name: "mixed zero and explicit order",
			steps: []StepInput{
				{StepName: "A", Order: 1, ResponsibleRole: "R"},
				{StepName: "B", ResponsibleRole: "R"},
			},
			wantErr: ErrValidation,
		},
		{
			name:    "missing role",
			steps:   []StepInput{{StepName: "A"}},
			wantErr: ErrValidation,
		},
		{
			name:    "role with spaces",
			steps:   []StepInput{{StepName: "A", ResponsibleRole: "team lead"}},
			wantErr: ErrValidation,
		},
		{
			name:    "non-positive due",
			steps:   []StepInput{{StepName: "A", ResponsibleRole: "R", DueInHours: new(int)}},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, svc := newWorkflowFixture()

			wf, err := svc.CreateWorkflow(context.Background(), CreateWorkflowInput{Name: "Leave", Steps: tt.steps})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.workflows)
				return
			}
			require.NoError(t, err)
			assert.True(t, wf.IsActive)
			assert.Equal(t, 1, wf.Version)

			stored, err := svc.GetWorkflowWithSteps(context.Background(), wf.ID)
			require.NoError(t, err)
			require.Len(t, stored.Steps, len(tt.wantNames))
			for i := range tt.wantNames {
				assert.Equal(t, tt.wantNames[i], stored.Steps[i].StepName)
				assert.Equal(t, tt.wantOrder[i], stored.Steps[i].Order)
				assert.Equal(t, wf.ID, stored.Steps[i].WorkflowID)
			}
		})
	}
}

func TestWorkflowService_CreateWorkflow_RequiresName(t *testing.T) {
	_, svc := newWorkflowFixture()
	_, err := svc.CreateWorkflow(context.Background(), CreateWorkflowInput{Name: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWorkflowService_ListWorkflows(t *testing.T) {
	ctx := context.Background()
	_, svc := newWorkflowFixture()
	inactive := false

	for _, name := range []string{"Training", "Expense", "Leave"} {
		_, err := svc.CreateWorkflow(ctx, CreateWorkflowInput{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.CreateWorkflow(ctx, CreateWorkflowInput{Name: "Archived", IsActive: &inactive})
	require.NoError(t, err)

	all, err := svc.ListWorkflows(ctx, Page{PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalCount)
	assert.Equal(t, 50, all.PageSize, "page size is clamped")
	assert.Equal(t, "Archived", all.Items[0].Name)

	active, err := svc.ListActiveWorkflows(ctx, Page{})
	require.NoError(t, err)
	require.Equal(t, 3, active.TotalCount)
	assert.Equal(t, []string{"Expense", "Leave", "Training"}, []string{active.Items[0].Name, active.Items[1].Name, active.Items[2].Name})
}

func TestWorkflowService_ActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	_, svc := newWorkflowFixture()

	wf, err := svc.CreateWorkflow(ctx, CreateWorkflowInput{Name: "Leave"})
	require.NoError(t, err)

	got, err := svc.DeactivateWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = svc.ActivateWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = svc.ActivateWorkflow(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowService_UpdateWorkflow(t *testing.T) {
	ctx := context.Background()
	_, svc := newWorkflowFixture()
	wf, err := svc.CreateWorkflow(ctx, CreateWorkflowInput{Name: "Leave", Steps: []StepInput{{StepName: "Manager", ResponsibleRole: "Manager"}}})
	require.NoError(t, err)

	updated, err := svc.UpdateWorkflow(ctx, wf.ID, UpdateWorkflowInput{Name: "Annual Leave", Version: 2, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Annual Leave", updated.Name)
	assert.Equal(t, 2, updated.Version)

	stored, err := svc.GetWorkflowWithSteps(ctx, wf.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Steps, 1, "header update keeps steps")

	_, err = svc.UpdateWorkflow(ctx, wf.ID, UpdateWorkflowInput{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWorkflowService_ReplaceWorkflowSteps(t *testing.T) {
	ctx := context.Background()
	repo, svc := newWorkflowFixture()
	wf, err := svc.CreateWorkflow(ctx, CreateWorkflowInput{Name: "Leave", Steps: []StepInput{{StepName: "Manager", ResponsibleRole: "Manager"}}})
	require.NoError(t, err)

	replaced, err := svc.ReplaceWorkflowSteps(ctx, wf.ID, []StepInput{
		{StepName: "Lead", ResponsibleRole: "Lead"},
		{StepName: "HR", ResponsibleRole: "HR"},
	})
	require.NoError(t, err)
	require.Len(t, replaced.Steps, 2)
	assert.Equal(t, "Lead", replaced.Steps[0].StepName)

	repo.requests[wf.ID] = 1
	_, err = svc.ReplaceWorkflowSteps(ctx, wf.ID, []StepInput{{StepName: "X", ResponsibleRole: "X"}})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.ReplaceWorkflowSteps(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowService_DeleteWorkflow(t *testing.T) {
	ctx := context.Background()
	_, svc := newWorkflowFixture()
	wf, err := svc.CreateWorkflow(ctx, CreateWorkflowInput{Name: "Leave"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteWorkflow(ctx, wf.ID))
	_, err = svc.GetWorkflow(ctx, wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.ListWorkflows(ctx, Page{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		in         Page
		wantNumber int
		wantSize   int
		wantOffset int
	}{
		{Page{}, 1, 10, 0},
		{Page{PageNumber: 3, PageSize: 20}, 3, 20, 40},
		{Page{PageNumber: -1, PageSize: 500}, 1, 50, 0},
		{Page{PageNumber: 2}, 2, 10, 10},
		{Page{PageNumber: math.MaxInt, PageSize: 50}, maxPageNumber, 50, (maxPageNumber - 1) * 50},
	}

	for _, tt := range tests {
		got := tt.in.Normalize()
		assert.Equal(t, tt.wantNumber, got.PageNumber)
		assert.Equal(t, tt.wantSize, got.PageSize)
		assert.Equal(t, tt.wantOffset, tt.in.Offset())
	}
}

func TestWorkflow_OrderedSteps(t *testing.T) {
	wf := &entity.Workflow{Steps: []entity.WorkflowStep{{StepName: "b", Order: 2}, {StepName: "a", Order: 1}}}
	ordered := wf.OrderedSteps()
	assert.Equal(t, "a", ordered[0].StepName)
	assert.Equal(t, "b", wf.Steps[0].StepName, "original untouched")
}
