package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CreateRoomTypeRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	MaxAdults   int             `json:"max_adults" binding:"required"`
	MaxChildren int             `json:"max_children"`
	BasePrice   decimal.Decimal `json:"base_price" binding:"required"`
	Currency    string          `json:"currency"`
	Beds        datatypes.JSON  `json:"beds"`
}

type UpdateRoomTypeRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	MaxAdults   *int             `json:"max_adults"`
	MaxChildren *int             `json:"max_children"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	Active      *bool            `json:"active"`
}

type Service interface {
	Create(ctx context.Context, req CreateRoomTypeRequest) (RoomType, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRoomTypeRequest) (RoomType, error)
	GetByID(ctx context.Context, id snowflake.ID) (RoomType, error)
	List(ctx context.Context) ([]RoomType, error)
}

var (
	ErrNotFound        = errors.New("room_type_not_found")
	ErrInvalidCapacity = errors.New("invalid_capacity")
	ErrInvalidPrice    = errors.New("invalid_price")
)
