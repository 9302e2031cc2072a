package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
	"github.com/garyjia/workflow-approval/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/workflow-approval/pkg/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "approval.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations("../../../../migrations/sqlite"))
	return db.DB
}

func intp(i int) *int { return &i }

func strp(s string) *string { return &s }

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedWorkflow(t *testing.T, repo port.WorkflowRepository, id, name string) *entity.Workflow {
	t.Helper()
	ctx := context.Background()
	wf := &entity.Workflow{
		ID:        id,
		Name:      name,
		Version:   1,
		IsActive:  true,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	require.NoError(t, repo.Create(ctx, wf))
	require.NoError(t, repo.ReplaceSteps(ctx, id, []entity.WorkflowStep{
		{ID: id + "-s1", StepName: "Manager", Order: 1, ResponsibleRole: "manager", DueInHours: intp(24), CreatedAt: baseTime, UpdatedAt: baseTime},
		{ID: id + "-s2", StepName: "HR", Order: 2, ResponsibleRole: "hr", CreatedAt: baseTime, UpdatedAt: baseTime},
	}))
	return wf
}

func newRequest(id, workflowID, initiator string, created time.Time) *entity.Request {
	return &entity.Request{
		ID:          id,
		WorkflowID:  workflowID,
		Type:        entity.RequestTypeLeave,
		InitiatorID: initiator,
		Status:      entity.RequestStatusPending,
		Title:       strp("Vacation"),
		Version:     1,
		CreatedAt:   created,
		UpdatedAt:   created,
		Steps: []entity.RequestStep{
			{ID: id + "-rs1", RequestID: id, WorkflowStepID: workflowID + "-s1", StepName: "Manager", StepOrder: 1,
				ResponsibleRole: "manager", DueInHours: intp(24), Status: entity.StepStatusPending, CreatedAt: created, UpdatedAt: created},
			{ID: id + "-rs2", RequestID: id, WorkflowStepID: workflowID + "-s2", StepName: "HR", StepOrder: 2,
				ResponsibleRole: "hr", Status: entity.StepStatusPending, CreatedAt: created, UpdatedAt: created},
		},
	}
}

func TestWorkflowRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewWorkflowRepository(db, zap.NewNop())
	ctx := context.Background()

	seedWorkflow(t, repo, "wf-leave", "Leave")
	seedWorkflow(t, repo, "wf-expense", "Expense")

	t.Run("get with steps ordered", func(t *testing.T) {
		wf, err := repo.GetWithSteps(ctx, "wf-leave")
		require.NoError(t, err)
		require.NotNil(t, wf)
		require.Len(t, wf.Steps, 2)
		assert.Equal(t, "Manager", wf.Steps[0].StepName)
		assert.Equal(t, 24, *wf.Steps[0].DueInHours)
		assert.Nil(t, wf.Steps[1].DueInHours)
		assert.True(t, wf.CreatedAt.Equal(baseTime))
	})

	t.Run("missing workflow returns nil", func(t *testing.T) {
		wf, err := repo.GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, wf)
	})

	t.Run("list ordered by name and filtered by active", func(t *testing.T) {
		items, total, err := repo.List(ctx, false, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 2)
		assert.Equal(t, "Expense", items[0].Name)

		wf, err := repo.GetByID(ctx, "wf-expense")
		require.NoError(t, err)
		wf.IsActive = false
		wf.Description = strp("retired")
		require.NoError(t, repo.Update(ctx, wf))

		items, total, err = repo.List(ctx, true, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Leave", items[0].Name)
	})

	t.Run("replace steps retires old ones", func(t *testing.T) {
		require.NoError(t, repo.ReplaceSteps(ctx, "wf-expense", []entity.WorkflowStep{
			{ID: "wf-expense-new", StepName: "Finance", Order: 1, ResponsibleRole: "finance", CreatedAt: baseTime, UpdatedAt: baseTime},
		}))
		wf, err := repo.GetWithSteps(ctx, "wf-expense")
		require.NoError(t, err)
		require.Len(t, wf.Steps, 1)
		assert.Equal(t, "Finance", wf.Steps[0].StepName)
	})

	t.Run("delete hides workflow", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "wf-expense"))
		wf, err := repo.GetByID(ctx, "wf-expense")
		require.NoError(t, err)
		assert.Nil(t, wf)
	})
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	workflows := NewWorkflowRepository(db, zap.NewNop())
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	seedWorkflow(t, workflows, "wf-1", "Leave")
	require.NoError(t, repo.Create(ctx, newRequest("req-1", "wf-1", "alice", baseTime)))

	req, err := repo.GetWithSteps(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, entity.RequestStatusPending, req.Status)
	assert.Equal(t, "Vacation", *req.Title)
	assert.Nil(t, req.Description)
	require.Len(t, req.Steps, 2)
	assert.Equal(t, 1, req.Steps[0].StepOrder)
	assert.Nil(t, req.Steps[0].ValidatedAt)

	count, err := workflows.CountRequests(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	missing, err := repo.GetWithSteps(ctx, "req-x")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRequestRepository_SaveIsVersionChecked(t *testing.T) {
	db := setupDB(t)
	seedWorkflow(t, NewWorkflowRepository(db, zap.NewNop()), "wf-1", "Leave")
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newRequest("req-1", "wf-1", "alice", baseTime)))

	first, err := repo.GetWithSteps(ctx, "req-1")
	require.NoError(t, err)
	second, err := repo.GetWithSteps(ctx, "req-1")
	require.NoError(t, err)

	decided := baseTime.Add(time.Hour)
	first.Steps[0].Status = entity.StepStatusRejected
	first.Steps[0].ValidatorID = strp("mgr-1")
	first.Steps[0].ValidatedAt = &decided
	first.Steps[0].Comments = strp("busy season")
	first.Status = entity.RequestStatusRejected
	first.UpdatedAt = decided
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Steps[0].Status = entity.StepStatusApproved
	assert.ErrorIs(t, repo.Save(ctx, second), port.ErrStaleAggregate)

	stored, err := repo.GetWithSteps(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusRejected, stored.Status)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, entity.StepStatusRejected, stored.Steps[0].Status)
	assert.Equal(t, "mgr-1", *stored.Steps[0].ValidatorID)
	assert.Equal(t, "busy season", *stored.Steps[0].Comments)
	require.NotNil(t, stored.Steps[0].ValidatedAt)
	assert.True(t, stored.Steps[0].ValidatedAt.Equal(decided))
	assert.Equal(t, entity.StepStatusPending, stored.Steps[1].Status)
}

func TestRequestRepository_List(t *testing.T) {
	db := setupDB(t)
	seedWorkflow(t, NewWorkflowRepository(db, zap.NewNop()), "wf-1", "Leave")
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	for i, seed := range []struct{ id, initiator string }{
		{"req-a", "alice"}, {"req-b", "bob"}, {"req-c", "alice"},
	} {
		require.NoError(t, repo.Create(ctx, newRequest(seed.id, "wf-1", seed.initiator, baseTime.Add(time.Duration(i)*time.Minute))))
	}

	// req-c is approved at the manager step, leaving only HR pending
	req, err := repo.GetWithSteps(ctx, "req-c")
	require.NoError(t, err)
	req.Steps[0].Status = entity.StepStatusApproved
	require.NoError(t, repo.Save(ctx, req))

	tests := []struct {
		name     string
		filter   port.RequestFilter
		expected []string
	}{
		{"all newest first", port.RequestFilter{}, []string{"req-c", "req-b", "req-a"}},
		{"by initiator", port.RequestFilter{InitiatorID: "alice"}, []string{"req-c", "req-a"}},
		{"by status", port.RequestFilter{Status: entity.RequestStatusApproved}, nil},
		{"pending manager steps", port.RequestFilter{PendingStepRoles: []string{"manager"}}, []string{"req-b", "req-a"}},
		{"pending for either role", port.RequestFilter{PendingStepRoles: []string{"manager", "hr"}}, []string{"req-c", "req-b", "req-a"}},
		{"role match ignores case", port.RequestFilter{PendingStepRoles: []string{"HR"}}, []string{"req-c", "req-b", "req-a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.List(ctx, tt.filter, 0, 10)
			require.NoError(t, err)
			assert.Equal(t, len(tt.expected), total)
			var ids []string
			for _, item := range items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}

	t.Run("paging", func(t *testing.T) {
		items, total, err := repo.List(ctx, port.RequestFilter{}, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 1)
		assert.Equal(t, "req-b", items[0].ID)
	})

	t.Run("deleted requests are hidden", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "req-b"))
		_, total, err := repo.List(ctx, port.RequestFilter{}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})
}

func TestRequestRepository_PendingSteps(t *testing.T) {
	db := setupDB(t)
	seedWorkflow(t, NewWorkflowRepository(db, zap.NewNop()), "wf-1", "Leave")
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newRequest("req-1", "wf-1", "alice", baseTime)))

	steps, err := repo.ListPendingSteps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 1, "only steps with a due time are candidates")
	assert.Equal(t, "req-1-rs1", steps[0].ID)

	require.NoError(t, repo.MarkStepReminded(ctx, "req-1-rs1", baseTime.Add(25*time.Hour)))
	steps, err = repo.ListPendingSteps(ctx)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestRequestRepository_SaveKeepsReminderMark(t *testing.T) {
	db := setupDB(t)
	seedWorkflow(t, NewWorkflowRepository(db, zap.NewNop()), "wf-1", "Leave")
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newRequest("req-1", "wf-1", "alice", baseTime)))

	// a decision loaded before the reminder worker ran
	loaded, err := repo.GetWithSteps(ctx, "req-1")
	require.NoError(t, err)
	require.Nil(t, loaded.Steps[0].RemindedAt)

	remindedAt := baseTime.Add(25 * time.Hour)
	require.NoError(t, repo.MarkStepReminded(ctx, "req-1-rs1", remindedAt))

	loaded.Steps[1].Status = entity.StepStatusApproved
	loaded.Steps[1].ValidatorID = strp("hr-1")
	require.NoError(t, repo.Save(ctx, loaded))

	stored, err := repo.GetWithSteps(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Steps[0].RemindedAt)
	assert.True(t, stored.Steps[0].RemindedAt.Equal(remindedAt))
	assert.Equal(t, entity.StepStatusApproved, stored.Steps[1].Status)

	steps, err := repo.ListPendingSteps(ctx)
	require.NoError(t, err)
	assert.Empty(t, steps, "a reminded step is not picked up again")
}

func TestRequestRepository_CreateRollsBackInTransaction(t *testing.T) {
	db := setupDB(t)
	seedWorkflow(t, NewWorkflowRepository(db, zap.NewNop()), "wf-1", "Leave")
	repo := NewRequestRepository(db, zap.NewNop())
	tx := sqldb.NewDB(db, zap.NewNop())
	ctx := context.Background()

	req := newRequest("req-1", "wf-1", "alice", baseTime)
	req.Steps[1].ID = req.Steps[0].ID // primary key clash on the second step

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return repo.Create(txCtx, req)
	})
	require.Error(t, err)

	stored, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, stored, "header must roll back with the failed step")
}

func TestNotificationRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()

	for i, id := range []string{"n-1", "n-2", "n-3"} {
		user := "alice"
		if id == "n-3" {
			user = "bob"
		}
		at := baseTime.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, &entity.Notification{
			ID: id, UserID: user, Message: "msg " + id, Type: strp(entity.NotificationTypeStepDecided),
			CreatedAt: at, UpdatedAt: at,
		}))
	}

	n, err := repo.GetByID(ctx, "n-1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, entity.NotificationTypeStepDecided, *n.Type)
	assert.Nil(t, n.ActionURL)

	unread, err := repo.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n.IsRead = true
	require.NoError(t, repo.Update(ctx, n))

	items, total, err := repo.ListByUser(ctx, "alice", true, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "n-2", items[0].ID)

	marked, err := repo.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	require.NoError(t, repo.Delete(ctx, "n-3"))
	_, total, err = repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestHistoryRepository(t *testing.T) {
	db := setupDB(t)
	seedWorkflow(t, NewWorkflowRepository(db, zap.NewNop()), "wf-1", "Leave")
	require.NoError(t, NewRequestRepository(db, zap.NewNop()).Create(context.Background(), newRequest("req-1", "wf-1", "alice", baseTime)))
	repo := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()

	created := &entity.RequestHistory{
		RequestID: "req-1", ActorID: "alice", Action: entity.ActionCreate,
		ToStatus: string(entity.RequestStatusPending), CreatedAt: baseTime,
	}
	require.NoError(t, repo.Create(ctx, created))
	assert.NotZero(t, created.ID)

	require.NoError(t, repo.Create(ctx, &entity.RequestHistory{
		RequestID: "req-1", StepID: "req-1-rs1", ActorID: "mgr-1", Action: entity.ActionRejectStep,
		FromStatus: string(entity.RequestStatusPending), ToStatus: string(entity.RequestStatusRejected),
		Comment: "busy season", CreatedAt: baseTime.Add(time.Hour),
	}))

	entries, err := repo.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.ActionCreate, entries[0].Action)
	assert.Empty(t, entries[0].StepID)
	assert.Equal(t, "busy season", entries[1].Comment)
}
