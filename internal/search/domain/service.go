package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrInvalidParty     = errors.New("invalid_party")
)

// Component is one room-type slice of a combination: Quantity identical
// rooms of the same type with the party members assigned to them.
type Component struct {
	RoomTypeID      snowflake.ID    `json:"room_type_id"`
	RoomTypeName    string          `json:"room_type_name"`
	Quantity        int             `json:"quantity"`
	AdultsPerRoom   int             `json:"adults_per_room"`
	ChildrenPerRoom int             `json:"children_per_room"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// Combination is a multiset of components whose joint capacity covers the
// party. The sum of component subtotals always equals Total.
type Combination struct {
	Rooms     []Component     `json:"rooms"`
	RoomCount int             `json:"room_count"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}

type SearchRequest struct {
	CheckIn    time.Time
	CheckOut   time.Time
	Adults     int
	Children   int
	MaxResults int
}

type Service interface {
	Search(ctx context.Context, req SearchRequest) ([]Combination, error)
}
