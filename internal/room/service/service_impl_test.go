package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type roomFixture struct {
	svc   roomdomain.Service
	db    *gorm.DB
	bus   *events.Bus
	node  *snowflake.Node
	clock *clock.FakeClock
	ctx   context.Context
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&roomdomain.Room{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	bus := events.NewBus(zap.NewNop())
	fake := clock.NewFakeClock(time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Bus:   bus,
	})

	ctx := tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   node.Generate(),
		PropertyID: node.Generate(),
		Actor:      "reception",
	})

	return &roomFixture{svc: svc, db: db, bus: bus, node: node, clock: fake, ctx: ctx}
}

func TestChangeStatus_WalksHousekeepingCycle(t *testing.T) {
	f := newRoomFixture(t)

	room, err := f.svc.Create(f.ctx, roomdomain.CreateRoomRequest{
		RoomTypeID: f.node.Generate(),
		Number:     "101",
	})
	require.NoError(t, err)
	assert.Equal(t, roomdomain.StatusAvailable, room.Status)

	for _, target := range []roomdomain.RoomStatus{
		roomdomain.StatusOccupied,
		roomdomain.StatusDirty,
		roomdomain.StatusCleaning,
		roomdomain.StatusInspection,
		roomdomain.StatusAvailable,
	} {
		room, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: target})
		require.NoError(t, err)
		assert.Equal(t, target, room.Status)
	}
}

func TestChangeStatus_RefusesIllegalEdge(t *testing.T) {
	f := newRoomFixture(t)

	room, err := f.svc.Create(f.ctx, roomdomain.CreateRoomRequest{
		RoomTypeID: f.node.Generate(),
		Number:     "102",
	})
	require.NoError(t, err)

	room, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: roomdomain.StatusOccupied})
	require.NoError(t, err)
	room, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: roomdomain.StatusDirty})
	require.NoError(t, err)
	room, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: roomdomain.StatusCleaning})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: roomdomain.StatusOccupied})
	assert.ErrorIs(t, err, roomdomain.ErrInvalidTransition)

	// state unchanged after the refused edge
	current, err := f.svc.GetByID(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, roomdomain.StatusCleaning, current.Status)
}

func TestChangeStatus_UnknownStatus(t *testing.T) {
	f := newRoomFixture(t)

	room, err := f.svc.Create(f.ctx, roomdomain.CreateRoomRequest{
		RoomTypeID: f.node.Generate(),
		Number:     "103",
	})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: "flooded"})
	assert.ErrorIs(t, err, roomdomain.ErrUnknownStatus)
}

func TestChangeStatus_PublishesEvent(t *testing.T) {
	f := newRoomFixture(t)

	var got []events.Event
	f.bus.Subscribe(func(ctx context.Context, evt events.Event) {
		got = append(got, evt)
	})

	room, err := f.svc.Create(f.ctx, roomdomain.CreateRoomRequest{
		RoomTypeID: f.node.Generate(),
		Number:     "104",
	})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(f.ctx, room.ID, roomdomain.ChangeStatusRequest{Status: roomdomain.StatusMaintenance, Note: "leaking faucet"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, events.RoomStatusChanged, got[0].Name)
	assert.Equal(t, "maintenance", got[0].Payload["status"])
	assert.Equal(t, "104", got[0].Payload["number"])
}

func TestCreate_PersistsExtraTypes(t *testing.T) {
	f := newRoomFixture(t)

	primary := f.node.Generate()
	extra := f.node.Generate()

	room, err := f.svc.Create(f.ctx, roomdomain.CreateRoomRequest{
		RoomTypeID: primary,
		ExtraTypes: []snowflake.ID{extra},
		Number:     "105",
	})
	require.NoError(t, err)
	assert.True(t, room.CreatedAt.Equal(f.clock.Now()))

	stored, err := f.svc.GetByID(f.ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, stored.CanHost(primary))
	assert.True(t, stored.CanHost(extra))
	assert.False(t, stored.CanHost(f.node.Generate()))
}
