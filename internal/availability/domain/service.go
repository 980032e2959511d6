// Package domain defines the inventory availability contract. Inventory is
// derived, not stored: free rooms of a type on a range are the active rooms
// of that type minus reservations overlapping the range in a blocking
// status. The hold backing a booking is the reservation row itself.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// AvailableRooms answers how many rooms of the type are free over
	// [checkIn, checkOut). Read-only, no locks: combination search reads
	// a snapshot through this.
	AvailableRooms(ctx context.Context, roomTypeID snowflake.ID, checkIn, checkOut time.Time) (int, error)

	// ReserveWithin serializes against concurrent bookings by locking
	// the room type row inside the caller's transaction, then verifies
	// the range still has capacity for quantity more rooms. The caller
	// inserts the reservation row in the same transaction, so either the
	// whole hold commits or none of it does.
	ReserveWithin(ctx context.Context, tx *gorm.DB, roomTypeID snowflake.ID, checkIn, checkOut time.Time, quantity int) error
}

var (
	ErrUnavailable      = errors.New("unavailable")
	ErrRoomTypeNotFound = errors.New("room_type_not_found")
)

// BlockingStatuses are the reservation states that consume inventory.
var BlockingStatuses = []string{"pending", "confirmed", "check_in"}
