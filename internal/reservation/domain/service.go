package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/posadahq/posada/pkg/db/pagination"
)

type CreateReservationRequest struct {
	GuestID         snowflake.ID `json:"guest_id,string"`
	RoomTypeID      snowflake.ID `json:"room_type_id,string" binding:"required"`
	CheckIn         time.Time    `json:"check_in" binding:"required"`
	CheckOut        time.Time    `json:"check_out" binding:"required"`
	Adults          int          `json:"adults" binding:"required"`
	Children        int          `json:"children"`
	OriginType      OriginType   `json:"origin_type"`
	PromotionCode   string       `json:"promotion_code"`
	PaymentDeadline *time.Time   `json:"payment_deadline"`
	Notes           string       `json:"notes"`
}

type AddPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency"`
	Method   string          `json:"method" binding:"required"`
}

type RefundPaymentRequest struct {
	PaymentID snowflake.ID    `json:"payment_id,string" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reason    string          `json:"reason"`
}

type ListReservationsRequest struct {
	Status     *OperationalStatus
	GuestID    *snowflake.ID
	RoomTypeID *snowflake.ID
	From       *time.Time
	To         *time.Time
	Pagination pagination.Pagination
}

// Service owns the reservation state machine and its payment ledger.
// Every successful transition publishes a reservation.* event.
type Service interface {
	// Create prices the stay, snapshots the total, and reserves
	// inventory in the same transaction. A request without a guest
	// produces an incomplete reservation that holds no inventory.
	Create(ctx context.Context, req CreateReservationRequest) (Reservation, error)
	// Complete attaches a guest to an incomplete reservation and moves
	// it to pending, taking the inventory hold.
	Complete(ctx context.Context, id, guestID snowflake.ID) (Reservation, error)
	Confirm(ctx context.Context, id snowflake.ID) (Reservation, error)
	// CheckIn assigns roomID when given, otherwise auto-assigns an
	// available room of the reservation's type.
	CheckIn(ctx context.Context, id snowflake.ID, roomID *snowflake.ID) (Reservation, error)
	CheckOut(ctx context.Context, id snowflake.ID) (Reservation, error)
	Cancel(ctx context.Context, id snowflake.ID, reason string) (Reservation, error)
	NoShow(ctx context.Context, id snowflake.ID) (Reservation, error)

	AddPayment(ctx context.Context, id snowflake.ID, req AddPaymentRequest) (Payment, error)
	RefundPayment(ctx context.Context, id snowflake.ID, req RefundPaymentRequest) (Payment, error)

	GetByID(ctx context.Context, id snowflake.ID) (Reservation, error)
	ListPayments(ctx context.Context, id snowflake.ID) ([]Payment, error)
	// List pages newest-first; the returned PageInfo carries the cursor
	// for the next page.
	List(ctx context.Context, req ListReservationsRequest) ([]Reservation, *pagination.PageInfo, error)
}

var (
	ErrNotFound          = errors.New("reservation_not_found")
	ErrInvalidTransition = errors.New("invalid_reservation_transition")
	ErrNoRoomAvailable   = errors.New("no_room_available")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrInvalidParty      = errors.New("invalid_party")
	ErrPaymentNotFound   = errors.New("payment_not_found")
)
