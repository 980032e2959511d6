package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	availabilityservice "github.com/posadahq/posada/internal/availability/service"
	"github.com/posadahq/posada/internal/clock"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	pricingservice "github.com/posadahq/posada/internal/pricing/service"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	searchdomain "github.com/posadahq/posada/internal/search/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type searchFixture struct {
	svc        searchdomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	ctx        context.Context
	tenantID   snowflake.ID
	propertyID snowflake.ID
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&roomtypedomain.RoomType{},
		&roomdomain.Room{},
		&reservationdomain.Reservation{},
		&pricingdomain.Season{},
		&pricingdomain.DayOfWeekPricing{},
		&pricingdomain.RatePlan{},
		&pricingdomain.Promotion{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC))

	availability := availabilityservice.NewService(availabilityservice.ServiceParam{DB: db, Log: log})
	pricing := pricingservice.NewService(pricingservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: fake})

	svc := NewService(ServiceParam{
		DB:           db,
		Log:          log,
		Availability: availability,
		Pricing:      pricing,
	})

	f := &searchFixture{
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

func (f *searchFixture) addRoomType(t *testing.T, name string, maxAdults, maxChildren, stock int, price int64) snowflake.ID {
	t.Helper()

	roomTypeID := f.node.Generate()
	require.NoError(t, f.db.Create(&roomtypedomain.RoomType{
		ID:          roomTypeID,
		TenantID:    f.tenantID,
		PropertyID:  f.propertyID,
		Name:        name,
		MaxAdults:   maxAdults,
		MaxChildren: maxChildren,
		BasePrice:   decimal.NewFromInt(price),
		Currency:    "PEN",
		Active:      true,
	}).Error)

	for i := 0; i < stock; i++ {
		require.NoError(t, f.db.Create(&roomdomain.Room{
			ID:         f.node.Generate(),
			TenantID:   f.tenantID,
			PropertyID: f.propertyID,
			RoomTypeID: roomTypeID,
			Number:     fmt.Sprintf("%s-%d", name, i+1),
			Status:     roomdomain.StatusAvailable,
			Active:     true,
		}).Error)
	}

	return roomTypeID
}

func TestSearch_MultiRoomCombinationForLargeParty(t *testing.T) {
	f := newSearchFixture(t)
	f.addRoomType(t, "Doble", 2, 1, 3, 100)

	checkIn := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	combos, err := f.svc.Search(f.ctx, searchdomain.SearchRequest{
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 1),
		Adults:   5,
	})
	require.NoError(t, err)
	require.Len(t, combos, 1)

	combo := combos[0]
	assert.Equal(t, 3, combo.RoomCount)
	require.Len(t, combo.Rooms, 1)
	assert.Equal(t, 3, combo.Rooms[0].Quantity)
	assert.Equal(t, "300", combo.Total.String())
}

func TestSearch_SubtotalsSumToTotal(t *testing.T) {
	f := newSearchFixture(t)
	f.addRoomType(t, "Doble", 2, 1, 2, 100)
	f.addRoomType(t, "Triple", 3, 2, 2, 140)

	checkIn := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	combos, err := f.svc.Search(f.ctx, searchdomain.SearchRequest{
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 2),
		Adults:   5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, combos)

	for _, combo := range combos {
		sum := decimal.Zero
		rooms := 0
		for _, comp := range combo.Rooms {
			sum = sum.Add(comp.Subtotal)
			rooms += comp.Quantity
		}
		assert.True(t, sum.Equal(combo.Total), "subtotals %s != total %s", sum, combo.Total)
		assert.Equal(t, combo.RoomCount, rooms)
	}
}

func TestSearch_PrefersFewerRoomsThenPrice(t *testing.T) {
	f := newSearchFixture(t)
	f.addRoomType(t, "Doble", 2, 1, 4, 100)
	f.addRoomType(t, "Suite", 4, 2, 1, 150)

	checkIn := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	combos, err := f.svc.Search(f.ctx, searchdomain.SearchRequest{
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 1),
		Adults:   4,
	})
	require.NoError(t, err)
	require.NotEmpty(t, combos)

	// one suite beats two dobles on room count even though both fit
	assert.Equal(t, 1, combos[0].RoomCount)
	for i := 1; i < len(combos); i++ {
		prev, cur := combos[i-1], combos[i]
		if prev.RoomCount == cur.RoomCount {
			assert.True(t, prev.Total.LessThanOrEqual(cur.Total))
		} else {
			assert.Less(t, prev.RoomCount, cur.RoomCount)
		}
	}
}

func TestSearch_NoInventoryYieldsNoCombinations(t *testing.T) {
	f := newSearchFixture(t)
	f.addRoomType(t, "Doble", 2, 1, 1, 100)

	checkIn := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	combos, err := f.svc.Search(f.ctx, searchdomain.SearchRequest{
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 1),
		Adults:   8,
	})
	require.NoError(t, err)
	assert.Empty(t, combos)
}

func TestSearch_RejectsInvalidInput(t *testing.T) {
	f := newSearchFixture(t)

	checkIn := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Search(f.ctx, searchdomain.SearchRequest{
		CheckIn:  checkIn,
		CheckOut: checkIn,
		Adults:   2,
	})
	assert.ErrorIs(t, err, searchdomain.ErrInvalidDateRange)

	_, err = f.svc.Search(f.ctx, searchdomain.SearchRequest{
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 1),
		Adults:   0,
	})
	assert.ErrorIs(t, err, searchdomain.ErrInvalidParty)
}
