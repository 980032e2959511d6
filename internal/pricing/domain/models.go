// Package domain contains the pricing modifier models. A modifier adjusts
// the room type base price for one night; the stacking order is fixed:
// season, then day-of-week, then rate plan, with a promotion applied once
// to the aggregated total.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ModifierType distinguishes multiplicative percentage modifiers from
// additive fixed-amount modifiers.
type ModifierType string

const (
	// ModifierPercentage multiplies the nightly price (1.30 = +30%).
	ModifierPercentage ModifierType = "percentage"
	// ModifierFixed adds a fixed amount to the nightly price.
	ModifierFixed ModifierType = "fixed"
)

// Apply returns the nightly price with the modifier applied.
func (t ModifierType) Apply(price, value decimal.Decimal) decimal.Decimal {
	switch t {
	case ModifierPercentage:
		return price.Mul(value)
	case ModifierFixed:
		return price.Add(value)
	default:
		return price
	}
}

// Season raises or lowers prices inside a yearly month/day window. The
// window may wrap the year end (Dec 15 – Mar 15). Seasons of one room type
// should not overlap; when they do, the first by (sort_order, id) wins.
type Season struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	PropertyID    snowflake.ID    `gorm:"not null;index" json:"property_id"`
	RoomTypeID    snowflake.ID    `gorm:"index" json:"room_type_id,omitempty"` // 0 = all room types
	Name          string          `gorm:"type:text;not null" json:"name"`
	StartMonth    int             `gorm:"not null" json:"start_month"`
	StartDay      int             `gorm:"not null" json:"start_day"`
	EndMonth      int             `gorm:"not null" json:"end_month"`
	EndDay        int             `gorm:"not null" json:"end_day"`
	ModifierType  ModifierType    `gorm:"type:text;not null" json:"modifier_type"`
	ModifierValue decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"modifier_value"`
	SortOrder     int             `gorm:"not null;default:0" json:"sort_order"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Season) TableName() string { return "pricing_seasons" }

// Contains reports whether the month/day of date falls inside the window.
func (s Season) Contains(date time.Time) bool {
	month, day := int(date.Month()), date.Day()
	start := s.StartMonth*100 + s.StartDay
	end := s.EndMonth*100 + s.EndDay
	point := month*100 + day
	if start <= end {
		return point >= start && point <= end
	}
	// window wraps the year end
	return point >= start || point <= end
}

// DayOfWeekPricing adjusts prices on one weekday.
type DayOfWeekPricing struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	PropertyID    snowflake.ID    `gorm:"not null;index" json:"property_id"`
	RoomTypeID    snowflake.ID    `gorm:"index" json:"room_type_id,omitempty"`
	Weekday       int             `gorm:"not null" json:"weekday"` // time.Weekday: 0 = Sunday
	ModifierType  ModifierType    `gorm:"type:text;not null" json:"modifier_type"`
	ModifierValue decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"modifier_value"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DayOfWeekPricing) TableName() string { return "pricing_weekdays" }

// RatePlan applies when the stay satisfies its length/advance constraints.
type RatePlan struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	PropertyID     snowflake.ID    `gorm:"not null;index" json:"property_id"`
	RoomTypeID     snowflake.ID    `gorm:"index" json:"room_type_id,omitempty"`
	Name           string          `gorm:"type:text;not null" json:"name"`
	MinNights      int             `gorm:"not null;default:0" json:"min_nights"`
	MinAdvanceDays int             `gorm:"not null;default:0" json:"min_advance_days"`
	ModifierType   ModifierType    `gorm:"type:text;not null" json:"modifier_type"`
	ModifierValue  decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"modifier_value"`
	Active         bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RatePlan) TableName() string { return "pricing_rate_plans" }

// DiscountType distinguishes percent-off from fixed-off promotions.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent" // value 10 = 10% off the total
	DiscountFixed   DiscountType = "fixed"   // value taken off the total
)

// Promotion is a code-gated discount applied once to the quote total.
type Promotion struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	PropertyID    snowflake.ID    `gorm:"not null;index" json:"property_id"`
	Code          string          `gorm:"type:text;not null;index" json:"code"`
	Name          string          `gorm:"type:text" json:"name"`
	DiscountType  DiscountType    `gorm:"type:text;not null" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"discount_value"`
	MinNights     int             `gorm:"not null;default:0" json:"min_nights"`
	ValidFrom     *time.Time      `json:"valid_from,omitempty"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Promotion) TableName() string { return "pricing_promotions" }
