package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type DocumentType string

const (
	DocumentBoleta  DocumentType = "boleta"
	DocumentFactura DocumentType = "factura"
)

func ValidDocumentType(d DocumentType) bool {
	return d == DocumentBoleta || d == DocumentFactura
}

type InvoiceStatus string

const (
	StatusDraft    InvoiceStatus = "draft"
	StatusPending  InvoiceStatus = "pending"
	StatusAccepted InvoiceStatus = "accepted"
	StatusRejected InvoiceStatus = "rejected"
	StatusError    InvoiceStatus = "error"
	StatusVoided   InvoiceStatus = "voided"
)

// invoiceTransitions holds the legal edges. Accepted and voided are
// terminal except that accepted can still be voided.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:    {StatusPending, StatusVoided},
	StatusPending:  {StatusAccepted, StatusRejected, StatusError},
	StatusAccepted: {StatusVoided},
	StatusRejected: {StatusPending, StatusVoided},
	StatusError:    {StatusPending, StatusVoided},
	StatusVoided:   {},
}

func CanTransition(from, to InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Emittable reports whether emit is legal from the status.
func Emittable(s InvoiceStatus) bool {
	return s == StatusDraft || s == StatusError || s == StatusRejected
}

// Voidable reports whether void is legal from the status.
func Voidable(s InvoiceStatus) bool {
	return s == StatusDraft || s == StatusAccepted || s == StatusRejected || s == StatusError
}

// Invoice is the billing snapshot of one reservation plus the record of
// its provider round trips. Totals follow the local tax breakdown: the
// taxable base, the 18 percent sales tax extracted from it, and the
// exempt and untaxed buckets.
type Invoice struct {
	ID            snowflake.ID `json:"id,string" gorm:"primaryKey"`
	TenantID      snowflake.ID `json:"tenant_id,string" gorm:"index:idx_invoices_tenant"`
	PropertyID    snowflake.ID `json:"property_id,string" gorm:"index:idx_invoices_tenant"`
	ReservationID snowflake.ID `json:"reservation_id,string" gorm:"index"`

	DocumentType DocumentType  `json:"document_type" gorm:"size:16"`
	Series       string        `json:"series" gorm:"size:8"`
	Number       int64         `json:"number"`
	Status       InvoiceStatus `json:"status" gorm:"size:16;default:draft;index"`

	CustomerName           string `json:"customer_name" gorm:"size:255"`
	CustomerDocumentType   string `json:"customer_document_type" gorm:"size:16"`
	CustomerDocumentNumber string `json:"customer_document_number" gorm:"size:32"`

	Currency    string          `json:"currency" gorm:"size:8"`
	OpGravado   decimal.Decimal `json:"op_gravado" gorm:"type:decimal(12,2)"`
	IGV         decimal.Decimal `json:"igv" gorm:"type:decimal(12,2)"`
	OpExonerado decimal.Decimal `json:"op_exonerado" gorm:"type:decimal(12,2)"`
	OpInafecto  decimal.Decimal `json:"op_inafecto" gorm:"type:decimal(12,2)"`
	Descuentos  decimal.Decimal `json:"descuentos" gorm:"type:decimal(12,2)"`
	Total       decimal.Decimal `json:"total" gorm:"type:decimal(12,2)"`

	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"`
	// LastAttemptAt is stamped from the injected clock on every provider
	// round trip; the retry sweep gates its backoff on it. UpdatedAt is
	// gorm-managed wall time and must not be used for that.
	LastAttemptAt      *time.Time `json:"last_attempt_at,omitempty"`
	ProviderHTTPStatus int        `json:"provider_http_status,omitempty"`
	ProviderLatencyMs  int64      `json:"provider_latency_ms,omitempty"`
	ProviderDocumentID string     `json:"provider_document_id,omitempty" gorm:"size:64"`

	EmittedAt *time.Time `json:"emitted_at,omitempty"`
	VoidedAt  *time.Time `json:"voided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// IGVRate is the sales tax rate invoices are broken down with. Totals are
// tax-inclusive, so the taxable base is extracted by division.
var IGVRate = decimal.NewFromFloat(0.18)

// ExtractIGV splits a tax-inclusive total into taxable base and tax,
// rounding the base to 2 decimals and deriving the tax by subtraction so
// the two always sum back exactly.
func ExtractIGV(total decimal.Decimal) (gravado, igv decimal.Decimal) {
	divisor := decimal.NewFromInt(1).Add(IGVRate)
	gravado = total.Div(divisor).Round(2)
	igv = total.Sub(gravado)
	return gravado, igv
}
