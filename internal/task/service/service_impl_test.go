package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/posadahq/posada/internal/clock"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type taskFixture struct {
	svc        taskdomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	ctx        context.Context
	tenantID   snowflake.ID
	propertyID snowflake.ID
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&taskdomain.Task{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake})

	f := &taskFixture{
		svc:        svc,
		db:         db,
		node:       node,
		clock:      fake,
		tenantID:   node.Generate(),
		propertyID: node.Generate(),
	}
	f.ctx = tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Actor:      "front-desk",
	})
	return f
}

func TestCreateTask_AppliesDefaults(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "  Replace towels  "})
	require.NoError(t, err)

	assert.Equal(t, "Replace towels", task.Title)
	assert.Equal(t, taskdomain.TypeGeneral, task.Type)
	assert.Equal(t, taskdomain.PriorityMedium, task.Priority)
	assert.Equal(t, taskdomain.StatusPending, task.Status)
	assert.Equal(t, "front-desk", task.CreatedBy)
}

func TestCreateTask_RequiresTitle(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "   "})
	assert.ErrorIs(t, err, taskdomain.ErrMissingTitle)
}

func TestChangeStatus_WalksLifecycle(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{
		Title:    "Fix shower in 305",
		Type:     taskdomain.TypeMaintenance,
		Priority: taskdomain.PriorityUrgent,
	})
	require.NoError(t, err)

	task, err = f.svc.ChangeStatus(f.ctx, task.ID, taskdomain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, taskdomain.StatusInProgress, task.Status)
	assert.Nil(t, task.CompletedAt)

	task, err = f.svc.ChangeStatus(f.ctx, task.ID, taskdomain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, taskdomain.StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	// Completed is terminal.
	_, err = f.svc.ChangeStatus(f.ctx, task.ID, taskdomain.StatusInProgress)
	assert.ErrorIs(t, err, taskdomain.ErrInvalidTransition)
	_, err = f.svc.ChangeStatus(f.ctx, task.ID, taskdomain.StatusPending)
	assert.ErrorIs(t, err, taskdomain.ErrInvalidTransition)
}

func TestChangeStatus_PendingStraightToCompleted(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "Restock minibar"})
	require.NoError(t, err)

	task, err = f.svc.ChangeStatus(f.ctx, task.ID, taskdomain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, taskdomain.StatusCompleted, task.Status)
}

func TestChangeStatus_UnknownStatus(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "Restock minibar"})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, task.ID, "abandoned")
	assert.ErrorIs(t, err, taskdomain.ErrUnknownStatus)
}

func TestListTasks_Filters(t *testing.T) {
	f := newTaskFixture(t)
	roomID := f.node.Generate()

	_, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "Clean 204", RoomID: &roomID})
	require.NoError(t, err)
	done, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "Inspect 305"})
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(f.ctx, done.ID, taskdomain.StatusCompleted)
	require.NoError(t, err)

	all, err := f.svc.List(f.ctx, taskdomain.ListTasksRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := taskdomain.StatusPending
	open, err := f.svc.List(f.ctx, taskdomain.ListTasksRequest{Status: &pending})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Clean 204", open[0].Title)

	byRoom, err := f.svc.List(f.ctx, taskdomain.ListTasksRequest{RoomID: &roomID})
	require.NoError(t, err)
	require.Len(t, byRoom, 1)
	assert.Equal(t, "Clean 204", byRoom[0].Title)
}

func TestGetByID_ScopedToTenant(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Create(f.ctx, taskdomain.CreateTaskRequest{Title: "Clean 204"})
	require.NoError(t, err)

	otherCtx := tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   f.node.Generate(),
		PropertyID: f.propertyID,
		Actor:      "test",
	})
	_, err = f.svc.GetByID(otherCtx, task.ID)
	assert.ErrorIs(t, err, taskdomain.ErrNotFound)
}
