package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/posadahq/posada/pkg/db/pagination"
)

var (
	ErrNotFound            = errors.New("invoice_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrInvalidDocumentType = errors.New("invalid_document_type")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrEmitInProgress      = errors.New("emit_in_progress")
	ErrRetriesExhausted    = errors.New("retries_exhausted")
	ErrProviderError       = errors.New("provider_error")
)

type CreateInvoiceRequest struct {
	ReservationID          snowflake.ID
	DocumentType           DocumentType
	CustomerName           string
	CustomerDocumentType   string
	CustomerDocumentNumber string
}

type ListInvoicesRequest struct {
	Status        *InvoiceStatus
	ReservationID *snowflake.ID
	Pagination    pagination.Pagination
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	// Emit sends the invoice to the external provider. Legal only from
	// draft, error and rejected; idempotent per invoice id.
	Emit(ctx context.Context, id snowflake.ID) (Invoice, error)
	// Void cancels the document. Legal from draft, accepted, rejected
	// and error; irreversible.
	Void(ctx context.Context, id snowflake.ID) (Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, *pagination.PageInfo, error)
	// RenderPDF produces the printable document for an invoice.
	RenderPDF(ctx context.Context, id snowflake.ID) ([]byte, error)
}
