package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/posadahq/posada/internal/clock"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pricingFixture struct {
	svc        pricingdomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	ctx        context.Context
	tenantID   snowflake.ID
	propertyID snowflake.ID
	roomTypeID snowflake.ID
}

func newPricingFixture(t *testing.T) *pricingFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&roomtypedomain.RoomType{},
		&pricingdomain.Season{},
		&pricingdomain.DayOfWeekPricing{},
		&pricingdomain.RatePlan{},
		&pricingdomain.Promotion{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})

	f := &pricingFixture{
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
		Actor:      "test",
	})

	roomTypeID := node.Generate()
	require.NoError(t, db.Create(&roomtypedomain.RoomType{
		ID:         roomTypeID,
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Name:       "Doble Estandar",
		MaxAdults:  2,
		BasePrice:  decimal.NewFromInt(100),
		Currency:   "PEN",
		Active:     true,
	}).Error)
	f.roomTypeID = roomTypeID

	return f
}

func (f *pricingFixture) seedSummerSeason(t *testing.T) {
	t.Helper()
	require.NoError(t, f.db.Create(&pricingdomain.Season{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		PropertyID:    f.propertyID,
		Name:          "Verano",
		StartMonth:    1,
		StartDay:      1,
		EndMonth:      3,
		EndDay:        31,
		ModifierType:  pricingdomain.ModifierPercentage,
		ModifierValue: decimal.NewFromFloat(1.3),
		Active:        true,
	}).Error)
}

func (f *pricingFixture) seedSaturdayUplift(t *testing.T) {
	t.Helper()
	require.NoError(t, f.db.Create(&pricingdomain.DayOfWeekPricing{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		PropertyID:    f.propertyID,
		Weekday:       int(time.Saturday),
		ModifierType:  pricingdomain.ModifierPercentage,
		ModifierValue: decimal.NewFromFloat(1.1),
		Active:        true,
	}).Error)
}

func TestQuote_StacksSeasonThenWeekday(t *testing.T) {
	f := newPricingFixture(t)
	f.seedSummerSeason(t)
	f.seedSaturdayUplift(t)

	// 2026-01-10 is a Saturday inside the season window.
	saturday := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	quote, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID: f.roomTypeID,
		CheckIn:    saturday,
		CheckOut:   saturday.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	// 100 * 1.3 * 1.1 = 143.00
	assert.Equal(t, "143", quote.FinalTotal.String())
	assert.Equal(t, 1, quote.Nights)
	require.Len(t, quote.DailyBreakdown, 1)
	assert.Equal(t, []string{"season:Verano", "weekday:Saturday"}, quote.DailyBreakdown[0].Modifiers)
}

func TestQuote_SeasonWrapsYearEnd(t *testing.T) {
	f := newPricingFixture(t)
	require.NoError(t, f.db.Create(&pricingdomain.Season{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		PropertyID:    f.propertyID,
		Name:          "Fiestas",
		StartMonth:    12,
		StartDay:      15,
		EndMonth:      3,
		EndDay:        15,
		ModifierType:  pricingdomain.ModifierPercentage,
		ModifierValue: decimal.NewFromFloat(1.2),
		Active:        true,
	}).Error)

	// Dec 30 – Jan 2 stays inside the wrapped window on both sides of
	// the year boundary.
	quote, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID: f.roomTypeID,
		CheckIn:    time.Date(2026, time.December, 30, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2027, time.January, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, quote.Nights)
	assert.Equal(t, "360", quote.FinalTotal.String())
	for _, day := range quote.DailyBreakdown {
		assert.Equal(t, []string{"season:Fiestas"}, day.Modifiers)
	}

	// A November night sits outside the window.
	off, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID: f.roomTypeID,
		CheckIn:    time.Date(2026, time.November, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2026, time.November, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "100", off.FinalTotal.String())
	require.Len(t, off.DailyBreakdown, 1)
	assert.Empty(t, off.DailyBreakdown[0].Modifiers)
}

func TestQuote_Deterministic(t *testing.T) {
	f := newPricingFixture(t)
	f.seedSummerSeason(t)
	f.seedSaturdayUplift(t)

	req := pricingdomain.QuoteRequest{
		RoomTypeID: f.roomTypeID,
		CheckIn:    time.Date(2026, time.January, 8, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
	}

	first, err := f.svc.Quote(f.ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Quote(f.ctx, req)
	require.NoError(t, err)

	assert.True(t, first.FinalTotal.Equal(second.FinalTotal))
	assert.Equal(t, first.ModifiersApplied, second.ModifiersApplied)
}

func TestQuote_InvalidDateRange(t *testing.T) {
	f := newPricingFixture(t)

	day := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID: f.roomTypeID,
		CheckIn:    day,
		CheckOut:   day,
	})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidDateRange)

	_, err = f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID: f.roomTypeID,
		CheckIn:    day,
		CheckOut:   day.AddDate(0, 0, -2),
	})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidDateRange)
}

func TestQuote_PromotionNeverGoesNegative(t *testing.T) {
	f := newPricingFixture(t)

	require.NoError(t, f.db.Create(&pricingdomain.Promotion{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		PropertyID:    f.propertyID,
		Code:          "GRAN-DESCUENTO",
		DiscountType:  pricingdomain.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10000),
		Active:        true,
	}).Error)

	checkIn := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	quote, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID:    f.roomTypeID,
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, 2),
		PromotionCode: "GRAN-DESCUENTO",
	})
	require.NoError(t, err)

	assert.True(t, quote.FinalTotal.IsZero(), "total clamps at zero, got %s", quote.FinalTotal)
}

func TestQuote_PromotionPercentOffTotal(t *testing.T) {
	f := newPricingFixture(t)

	require.NoError(t, f.db.Create(&pricingdomain.Promotion{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		PropertyID:    f.propertyID,
		Code:          "VERANO10",
		DiscountType:  pricingdomain.DiscountPercent,
		DiscountValue: decimal.NewFromInt(10),
		MinNights:     2,
		Active:        true,
	}).Error)

	checkIn := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	// one night is below min_nights
	_, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID:    f.roomTypeID,
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, 1),
		PromotionCode: "VERANO10",
	})
	assert.ErrorIs(t, err, pricingdomain.ErrPromotionNotFound)

	quote, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID:    f.roomTypeID,
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, 2),
		PromotionCode: "VERANO10",
	})
	require.NoError(t, err)
	assert.Equal(t, "180", quote.FinalTotal.String())
	assert.Equal(t, "20", quote.PromotionDiscount.String())
}

func TestQuote_UnknownPromotionCode(t *testing.T) {
	f := newPricingFixture(t)

	checkIn := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.Quote(f.ctx, pricingdomain.QuoteRequest{
		RoomTypeID:    f.roomTypeID,
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, 1),
		PromotionCode: "NO-EXISTE",
	})
	assert.ErrorIs(t, err, pricingdomain.ErrPromotionNotFound)
}
