// Package domain contains the reservation lifecycle models. A reservation
// carries two independent status axes: the operational status tracks the
// stay lifecycle, the financial status is derived from the payment ledger
// and never set directly.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OperationalStatus is the reservation's position in its stay lifecycle.
type OperationalStatus string

const (
	StatusIncomplete OperationalStatus = "incomplete"
	StatusPending    OperationalStatus = "pending"
	StatusConfirmed  OperationalStatus = "confirmed"
	StatusCheckIn    OperationalStatus = "check_in"
	StatusCheckOut   OperationalStatus = "check_out"
	StatusCancelled  OperationalStatus = "cancelled"
	StatusNoShow     OperationalStatus = "no_show"
)

// operationalTransitions is the only set of legal edges. check_out,
// cancelled and no_show are terminal.
var operationalTransitions = map[OperationalStatus][]OperationalStatus{
	StatusIncomplete: {StatusPending, StatusCancelled},
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusCheckIn, StatusCancelled, StatusNoShow},
	StatusCheckIn:    {StatusCheckOut},
	StatusCheckOut:   {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// CanTransition reports whether the edge from→to is legal.
func CanTransition(from, to OperationalStatus) bool {
	for _, allowed := range operationalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Blocking reports whether the status consumes room type inventory.
func (s OperationalStatus) Blocking() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckIn:
		return true
	default:
		return false
	}
}

// FinancialStatus is the reservation's settlement position, a pure
// function of the payment ledger against the snapshotted total.
type FinancialStatus string

const (
	FinancialPendingPayment FinancialStatus = "pending_payment"
	FinancialPartial        FinancialStatus = "partial"
	FinancialPaid           FinancialStatus = "paid"
	FinancialPartialRefund  FinancialStatus = "partial_refund"
	FinancialRefunded       FinancialStatus = "refunded"
)

// OriginType records which channel created the reservation.
type OriginType string

const (
	OriginFrontDesk OriginType = "front_desk"
	OriginWebsite   OriginType = "website"
	OriginChannel   OriginType = "channel"
)

// Reservation is one booking of one room type for one guest. TotalAmount
// is snapshotted from the pricing quote at creation time; later price
// edits never rewrite it.
type Reservation struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID          snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	PropertyID        snowflake.ID      `gorm:"not null;index" json:"property_id"`
	GuestID           snowflake.ID      `gorm:"index" json:"guest_id,omitempty"`
	RoomTypeID        snowflake.ID      `gorm:"not null;index" json:"room_type_id"`
	RoomID            *snowflake.ID     `gorm:"index" json:"room_id,omitempty"`
	CheckInDate       time.Time         `gorm:"not null;index" json:"check_in_date"`
	CheckOutDate      time.Time         `gorm:"not null;index" json:"check_out_date"`
	Adults            int               `gorm:"not null" json:"adults"`
	Children          int               `gorm:"not null;default:0" json:"children"`
	TotalAmount       decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency          string            `gorm:"type:text;not null" json:"currency"`
	OperationalStatus OperationalStatus `gorm:"type:text;not null;index" json:"operational_status"`
	FinancialStatus   FinancialStatus   `gorm:"type:text;not null;default:'pending_payment'" json:"financial_status"`
	OriginType        OriginType        `gorm:"type:text;not null;default:'front_desk'" json:"origin_type"`
	PromotionCode     string            `gorm:"type:text" json:"promotion_code,omitempty"`
	PaymentDeadline   *time.Time        `json:"payment_deadline,omitempty"`
	VoucherURL        string            `gorm:"type:text" json:"voucher_url,omitempty"`
	Notes             string            `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Reservation) TableName() string { return "reservations" }

// Nights is the number of nights booked.
func (r Reservation) Nights() int {
	return int(r.CheckOutDate.Sub(r.CheckInDate).Hours() / 24)
}

// PaymentStatus is the state of one ledger entry.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one ledger entry against a reservation. A refund decrements
// RefundedAmount on the payment it reverses; the ledger never holds
// negative-amount rows.
type Payment struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	ReservationID  snowflake.ID    `gorm:"not null;index" json:"reservation_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	RefundedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"refunded_amount"`
	Currency       string          `gorm:"type:text;not null" json:"currency"`
	Method         string          `gorm:"type:text;not null" json:"method"`
	Status         PaymentStatus   `gorm:"type:text;not null" json:"status"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// Net is the payment amount still standing after refunds.
func (p Payment) Net() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// DeriveFinancialStatus recomputes the settlement position from the
// ledger. It is the single source of truth for financial_status.
func DeriveFinancialStatus(total decimal.Decimal, payments []Payment) FinancialStatus {
	paidGross := decimal.Zero
	refunded := decimal.Zero
	for _, p := range payments {
		if p.Status != PaymentCompleted && p.Status != PaymentRefunded {
			continue
		}
		paidGross = paidGross.Add(p.Amount)
		refunded = refunded.Add(p.RefundedAmount)
	}
	net := paidGross.Sub(refunded)

	switch {
	case paidGross.IsZero():
		return FinancialPendingPayment
	case refunded.IsZero():
		if net.GreaterThanOrEqual(total) && total.IsPositive() {
			return FinancialPaid
		}
		return FinancialPartial
	case net.IsZero():
		return FinancialRefunded
	default:
		return FinancialPartialRefund
	}
}
