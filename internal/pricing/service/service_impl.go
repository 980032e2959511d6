package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/posadahq/posada/internal/clock"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxQuoteNights bounds a single quote; longer stays are operator errors.
const maxQuoteNights = 365

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	clock        clock.Clock
	roomtyperepo repository.Repository[roomtypedomain.RoomType]
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("pricing.service"),
		genID: p.GenID,
		clock: p.Clock,

		roomtyperepo: repository.ProvideStore[roomtypedomain.RoomType](p.DB),
	}
}

func (s *Service) Price(ctx context.Context, roomTypeID snowflake.ID, date time.Time) (decimal.Decimal, error) {
	date = truncateDate(date)
	quote, err := s.Quote(ctx, pricingdomain.QuoteRequest{
		RoomTypeID: roomTypeID,
		CheckIn:    date,
		CheckOut:   date.AddDate(0, 0, 1),
	})
	if err != nil {
		return decimal.Zero, err
	}
	return quote.FinalTotal, nil
}

func (s *Service) Quote(ctx context.Context, req pricingdomain.QuoteRequest) (pricingdomain.Quote, error) {
	checkIn := truncateDate(req.CheckIn)
	checkOut := truncateDate(req.CheckOut)

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights <= 0 || nights > maxQuoteNights {
		return pricingdomain.Quote{}, pricingdomain.ErrInvalidDateRange
	}

	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return pricingdomain.Quote{}, roomtypedomain.ErrNotFound
	}

	roomType, err := s.roomtyperepo.FindOne(ctx, &roomtypedomain.RoomType{ID: req.RoomTypeID, TenantID: scope.TenantID})
	if err != nil {
		return pricingdomain.Quote{}, err
	}
	if roomType == nil {
		return pricingdomain.Quote{}, roomtypedomain.ErrNotFound
	}

	mods, err := s.loadModifiers(ctx, scope, roomType.ID)
	if err != nil {
		return pricingdomain.Quote{}, err
	}

	advanceDays := int(checkIn.Sub(truncateDate(s.clock.Now())).Hours() / 24)
	ratePlan := selectRatePlan(mods.ratePlans, nights, advanceDays)

	applied := map[string]bool{}
	var breakdown []pricingdomain.NightPrice
	baseTotal := decimal.Zero
	total := decimal.Zero

	for date := checkIn; date.Before(checkOut); date = date.AddDate(0, 0, 1) {
		nightly := roomType.BasePrice
		var nightMods []string

		if season := matchSeason(mods.seasons, date); season != nil {
			nightly = season.ModifierType.Apply(nightly, season.ModifierValue)
			nightMods = append(nightMods, "season:"+season.Name)
			applied["season:"+season.Name] = true
		}
		if dow := matchWeekday(mods.weekdays, date); dow != nil {
			nightly = dow.ModifierType.Apply(nightly, dow.ModifierValue)
			label := "weekday:" + time.Weekday(dow.Weekday).String()
			nightMods = append(nightMods, label)
			applied[label] = true
		}
		if ratePlan != nil {
			nightly = ratePlan.ModifierType.Apply(nightly, ratePlan.ModifierValue)
			nightMods = append(nightMods, "rate_plan:"+ratePlan.Name)
			applied["rate_plan:"+ratePlan.Name] = true
		}

		breakdown = append(breakdown, pricingdomain.NightPrice{
			Date:      date,
			Base:      roomType.BasePrice,
			Final:     nightly,
			Modifiers: nightMods,
		})
		baseTotal = baseTotal.Add(roomType.BasePrice)
		total = total.Add(nightly)
	}

	discount := decimal.Zero
	if code := strings.TrimSpace(req.PromotionCode); code != "" {
		promo, err := s.findPromotion(ctx, scope, code, nights)
		if err != nil {
			return pricingdomain.Quote{}, err
		}
		discount = promoDiscount(promo, total)
		applied["promotion:"+promo.Code] = true
	}

	final := total.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return pricingdomain.Quote{
		RoomTypeID:        roomType.ID,
		Currency:          roomType.Currency,
		Nights:            nights,
		DailyBreakdown:    breakdown,
		BaseTotal:         baseTotal,
		PromotionDiscount: discount,
		// rounding happens exactly once, here
		FinalTotal:       final.Round(2),
		ModifiersApplied: sortedKeys(applied),
	}, nil
}

type modifierSet struct {
	seasons   []pricingdomain.Season
	weekdays  []pricingdomain.DayOfWeekPricing
	ratePlans []pricingdomain.RatePlan
}

func (s *Service) loadModifiers(ctx context.Context, scope tenantctx.Scope, roomTypeID snowflake.ID) (modifierSet, error) {
	var mods modifierSet

	scoped := func(q *gorm.DB) *gorm.DB {
		return q.Where(
			"tenant_id = ? AND property_id = ? AND active = ? AND (room_type_id = 0 OR room_type_id = ?)",
			scope.TenantID, scope.PropertyID, true, roomTypeID,
		)
	}

	if err := scoped(s.db.WithContext(ctx)).
		Order("sort_order ASC, id ASC").
		Find(&mods.seasons).Error; err != nil {
		return mods, err
	}
	if err := scoped(s.db.WithContext(ctx)).
		Order("id ASC").
		Find(&mods.weekdays).Error; err != nil {
		return mods, err
	}
	if err := scoped(s.db.WithContext(ctx)).
		Order("id ASC").
		Find(&mods.ratePlans).Error; err != nil {
		return mods, err
	}

	return mods, nil
}

func (s *Service) findPromotion(ctx context.Context, scope tenantctx.Scope, code string, nights int) (*pricingdomain.Promotion, error) {
	var promo pricingdomain.Promotion
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND property_id = ? AND code = ? AND active = ?",
			scope.TenantID, scope.PropertyID, code, true).
		Order("id ASC").
		First(&promo).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pricingdomain.ErrPromotionNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		return nil, pricingdomain.ErrPromotionNotFound
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return nil, pricingdomain.ErrPromotionNotFound
	}
	if nights < promo.MinNights {
		return nil, pricingdomain.ErrPromotionNotFound
	}
	return &promo, nil
}

// matchSeason returns the first declared season containing the date.
func matchSeason(seasons []pricingdomain.Season, date time.Time) *pricingdomain.Season {
	for i := range seasons {
		if seasons[i].Contains(date) {
			return &seasons[i]
		}
	}
	return nil
}

func matchWeekday(weekdays []pricingdomain.DayOfWeekPricing, date time.Time) *pricingdomain.DayOfWeekPricing {
	for i := range weekdays {
		if weekdays[i].Weekday == int(date.Weekday()) {
			return &weekdays[i]
		}
	}
	return nil
}

func selectRatePlan(plans []pricingdomain.RatePlan, nights, advanceDays int) *pricingdomain.RatePlan {
	for i := range plans {
		if nights >= plans[i].MinNights && advanceDays >= plans[i].MinAdvanceDays {
			return &plans[i]
		}
	}
	return nil
}

func promoDiscount(promo *pricingdomain.Promotion, total decimal.Decimal) decimal.Decimal {
	switch promo.DiscountType {
	case pricingdomain.DiscountPercent:
		return total.Mul(promo.DiscountValue).Div(decimal.NewFromInt(100))
	case pricingdomain.DiscountFixed:
		return promo.DiscountValue
	default:
		return decimal.Zero
	}
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
