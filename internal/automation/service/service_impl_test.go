package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ruleFixture struct {
	svc        automationdomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	ctx        context.Context
	tenantID   snowflake.ID
	propertyID snowflake.ID
}

func newRuleFixture(t *testing.T) *ruleFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&automationdomain.AutomationRule{},
		&automationdomain.AutomationLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake})

	f := &ruleFixture{
		svc:        svc,
		db:         db,
		node:       node,
		tenantID:   node.Generate(),
		propertyID: node.Generate(),
	}
	f.ctx = tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Actor:      "test",
	})
	return f
}

func validSaveRequest() automationdomain.SaveRuleRequest {
	return automationdomain.SaveRuleRequest{
		Name:     "housekeeping on dirty",
		Trigger:  events.RoomStatusChanged,
		Actions:  datatypes.JSON(`[{"kind": "create_task", "title": "Clean room {{number}}", "task_type": "cleaning"}]`),
		Priority: 5,
		IsActive: true,
	}
}

func TestCreateRule_Valid(t *testing.T) {
	f := newRuleFixture(t)

	rule, err := f.svc.Create(f.ctx, validSaveRequest())
	require.NoError(t, err)
	assert.NotZero(t, rule.ID)
	assert.Equal(t, f.tenantID, rule.TenantID)
	assert.True(t, rule.IsActive)
	assert.False(t, rule.IsSystem)
}

func TestCreateRule_RejectsBadInput(t *testing.T) {
	f := newRuleFixture(t)

	req := validSaveRequest()
	req.Trigger = "room.exploded"
	_, err := f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, automationdomain.ErrInvalidTrigger)

	req = validSaveRequest()
	req.Conditions = datatypes.JSON(`[{"kind": "bogus"}]`)
	_, err = f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, automationdomain.ErrUnknownConditionKind)

	req = validSaveRequest()
	req.Actions = datatypes.JSON(`[]`)
	_, err = f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, automationdomain.ErrInvalidActions)

	req = validSaveRequest()
	req.Actions = datatypes.JSON(`[{"kind": "create_task"}]`)
	_, err = f.svc.Create(f.ctx, req)
	assert.ErrorIs(t, err, automationdomain.ErrInvalidActions)
}

func TestUpdateRule(t *testing.T) {
	f := newRuleFixture(t)

	rule, err := f.svc.Create(f.ctx, validSaveRequest())
	require.NoError(t, err)

	req := validSaveRequest()
	req.Name = "renamed"
	req.Priority = 9
	updated, err := f.svc.Update(f.ctx, rule.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 9, updated.Priority)

	_, err = f.svc.Update(f.ctx, f.node.Generate(), validSaveRequest())
	assert.ErrorIs(t, err, automationdomain.ErrNotFound)
}

func TestUpdateRule_DeactivationPersists(t *testing.T) {
	f := newRuleFixture(t)

	rule, err := f.svc.Create(f.ctx, validSaveRequest())
	require.NoError(t, err)

	req := validSaveRequest()
	req.IsActive = false
	req.Priority = 0
	_, err = f.svc.Update(f.ctx, rule.ID, req)
	require.NoError(t, err)

	got, err := f.svc.GetByID(f.ctx, rule.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Zero(t, got.Priority)
}

func TestSystemRule_CannotBeDeactivatedOrDeleted(t *testing.T) {
	f := newRuleFixture(t)

	rule, err := f.svc.Create(f.ctx, validSaveRequest())
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&automationdomain.AutomationRule{}).
		Where("id = ?", rule.ID).
		Update("is_system", true).Error)

	req := validSaveRequest()
	req.IsActive = false
	_, err = f.svc.Update(f.ctx, rule.ID, req)
	assert.ErrorIs(t, err, automationdomain.ErrSystemRule)

	// Other edits to a system rule are allowed.
	req.IsActive = true
	req.Priority = 20
	updated, err := f.svc.Update(f.ctx, rule.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Priority)
	assert.True(t, updated.IsSystem)

	err = f.svc.Delete(f.ctx, rule.ID)
	assert.ErrorIs(t, err, automationdomain.ErrSystemRule)
}

func TestDeleteRule(t *testing.T) {
	f := newRuleFixture(t)

	rule, err := f.svc.Create(f.ctx, validSaveRequest())
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(f.ctx, rule.ID))

	_, err = f.svc.GetByID(f.ctx, rule.ID)
	assert.ErrorIs(t, err, automationdomain.ErrNotFound)

	err = f.svc.Delete(f.ctx, rule.ID)
	assert.ErrorIs(t, err, automationdomain.ErrNotFound)
}

func TestListRules_ScopedAndOrdered(t *testing.T) {
	f := newRuleFixture(t)

	low := validSaveRequest()
	low.Name = "low"
	low.Priority = 1
	_, err := f.svc.Create(f.ctx, low)
	require.NoError(t, err)

	high := validSaveRequest()
	high.Name = "high"
	high.Priority = 10
	_, err = f.svc.Create(f.ctx, high)
	require.NoError(t, err)

	otherCtx := tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   f.node.Generate(),
		PropertyID: f.node.Generate(),
		Actor:      "test",
	})
	_, err = f.svc.Create(otherCtx, validSaveRequest())
	require.NoError(t, err)

	rules, err := f.svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].Name)
	assert.Equal(t, "low", rules[1].Name)
}
