package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateRoomRequest struct {
	RoomTypeID snowflake.ID   `json:"room_type_id,string" binding:"required"`
	ExtraTypes []snowflake.ID `json:"extra_type_ids,omitempty"`
	Number     string         `json:"number" binding:"required"`
	Floor      string         `json:"floor"`
}

type ChangeStatusRequest struct {
	Status RoomStatus `json:"status" binding:"required"`
	Note   string     `json:"note"`
}

type Service interface {
	Create(ctx context.Context, req CreateRoomRequest) (Room, error)
	GetByID(ctx context.Context, id snowflake.ID) (Room, error)
	List(ctx context.Context) ([]Room, error)
	// ChangeStatus moves the room along one edge of the housekeeping
	// transition table; any other edge is refused and the state is
	// unchanged.
	ChangeStatus(ctx context.Context, id snowflake.ID, req ChangeStatusRequest) (Room, error)
	// TransitionWithin applies one edge inside the caller's transaction
	// with the room row locked. Check-in/check-out drive rooms through
	// this path.
	TransitionWithin(ctx context.Context, tx *gorm.DB, id snowflake.ID, target RoomStatus) error
}

var (
	ErrNotFound          = errors.New("room_not_found")
	ErrInvalidTransition = errors.New("invalid_room_transition")
	ErrUnknownStatus     = errors.New("unknown_room_status")
)
