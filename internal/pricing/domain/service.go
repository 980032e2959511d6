package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// NightPrice is the price of one night with the modifiers that shaped it.
type NightPrice struct {
	Date      time.Time       `json:"date"`
	Base      decimal.Decimal `json:"base"`
	Final     decimal.Decimal `json:"final"`
	Modifiers []string        `json:"modifiers,omitempty"`
}

// Quote is a fully priced stay. FinalTotal carries the only rounding step.
type Quote struct {
	RoomTypeID        snowflake.ID    `json:"room_type_id,string"`
	Currency          string          `json:"currency"`
	Nights            int             `json:"nights"`
	DailyBreakdown    []NightPrice    `json:"daily_breakdown"`
	BaseTotal         decimal.Decimal `json:"base_total"`
	PromotionDiscount decimal.Decimal `json:"promotion_discount"`
	FinalTotal        decimal.Decimal `json:"final_total"`
	ModifiersApplied  []string        `json:"modifiers_applied,omitempty"`
}

type QuoteRequest struct {
	RoomTypeID    snowflake.ID
	CheckIn       time.Time
	CheckOut      time.Time
	PromotionCode string
}

// Service is the pricing calculator.
type Service interface {
	// Price computes one night for a room type on a date.
	Price(ctx context.Context, roomTypeID snowflake.ID, date time.Time) (decimal.Decimal, error)
	// Quote prices [check_in, check_out) and applies at most one
	// promotion to the total. Identical inputs always yield identical
	// totals, and the total is never negative.
	Quote(ctx context.Context, req QuoteRequest) (Quote, error)
}

var (
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrPromotionNotFound = errors.New("promotion_not_found")
)
