package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/config"
	"github.com/posadahq/posada/internal/events"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	"github.com/posadahq/posada/internal/locks"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	"github.com/posadahq/posada/pkg/db/option"
	"github.com/posadahq/posada/pkg/db/pagination"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const emitLockTTL = 30 * time.Second

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Bus      *events.Bus
	Locker   *locks.Locker
	Holder   *config.InvoicingConfigHolder
	Provider invoicedomain.Provider
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	bus      *events.Bus
	locker   *locks.Locker
	holder   *config.InvoicingConfigHolder
	provider invoicedomain.Provider

	invoicerepo repository.Repository[invoicedomain.Invoice]
	guestrepo   repository.Repository[propertydomain.Guest]
}

func NewService(p ServiceParam) invoicedomain.Service {
	s := &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		bus:         p.Bus,
		locker:      p.Locker,
		holder:      p.Holder,
		provider:    p.Provider,
		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
		guestrepo:   repository.ProvideStore[propertydomain.Guest](p.DB),
	}
	p.Bus.Subscribe(s.onReservationEvent)
	return s
}

// onReservationEvent drafts a boleta automatically when a stay closes, so
// front desk only has to review and emit it.
func (s *Service) onReservationEvent(ctx context.Context, evt events.Event) {
	if evt.Name != events.ReservationCheckOut {
		return
	}
	reservationID, ok := payloadID(evt.Payload, "reservation_id")
	if !ok {
		return
	}

	scoped := tenantctx.WithScope(ctx, tenantctx.Scope{
		TenantID:   evt.TenantID,
		PropertyID: evt.PropertyID,
		Actor:      "automation",
	})

	existing, err := s.invoicerepo.FindOne(scoped, &invoicedomain.Invoice{
		TenantID:      evt.TenantID,
		ReservationID: reservationID,
	})
	if err != nil || existing != nil {
		return
	}

	if _, err := s.Create(scoped, invoicedomain.CreateInvoiceRequest{
		ReservationID: reservationID,
		DocumentType:  invoicedomain.DocumentBoleta,
	}); err != nil {
		s.log.Warn("auto-drafting invoice failed",
			zap.String("reservation_id", reservationID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	if !invoicedomain.ValidDocumentType(req.DocumentType) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDocumentType
	}

	var reservation reservationdomain.Reservation
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", req.ReservationID, scope.TenantID).
		First(&reservation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.Invoice{}, invoicedomain.ErrReservationNotFound
		}
		return invoicedomain.Invoice{}, err
	}

	customerName := strings.TrimSpace(req.CustomerName)
	customerDocType := strings.TrimSpace(req.CustomerDocumentType)
	customerDocNumber := strings.TrimSpace(req.CustomerDocumentNumber)
	if customerName == "" && reservation.GuestID != 0 {
		guest, err := s.guestrepo.FindOne(ctx, &propertydomain.Guest{
			ID:       reservation.GuestID,
			TenantID: scope.TenantID,
		})
		if err == nil && guest != nil {
			customerName = guest.FullName
			customerDocType = string(guest.DocumentType)
			customerDocNumber = guest.DocumentNumber
		}
	}
	// facturas are issued against a tax id, not a personal document
	if req.DocumentType == invoicedomain.DocumentFactura && !strings.EqualFold(customerDocType, "ruc") {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDocumentType
	}

	gravado, igv := invoicedomain.ExtractIGV(reservation.TotalAmount)
	series := seriesFor(req.DocumentType)
	now := s.clock.Now()

	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		TenantID:      scope.TenantID,
		PropertyID:    scope.PropertyID,
		ReservationID: reservation.ID,
		DocumentType:  req.DocumentType,
		Series:        series,
		Status:        invoicedomain.StatusDraft,

		CustomerName:           customerName,
		CustomerDocumentType:   customerDocType,
		CustomerDocumentNumber: customerDocNumber,

		Currency:    reservation.Currency,
		OpGravado:   gravado,
		IGV:         igv,
		OpExonerado: decimal.Zero,
		OpInafecto:  decimal.Zero,
		Descuentos:  decimal.Zero,
		Total:       reservation.TotalAmount,

		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := s.nextNumber(ctx, tx, scope.TenantID, scope.PropertyID, series)
		if err != nil {
			return err
		}
		invoice.Number = next
		return tx.WithContext(ctx).Create(&invoice).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

// nextNumber assigns the next correlative in the series. The row lock on
// the current maximum serializes concurrent creates on real databases.
func (s *Service) nextNumber(ctx context.Context, tx *gorm.DB, tenantID, propertyID snowflake.ID, series string) (int64, error) {
	query := `SELECT COALESCE(MAX(number), 0) FROM invoices WHERE tenant_id = ? AND property_id = ? AND series = ?`
	if tx.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	var current int64
	if err := tx.WithContext(ctx).Raw(query, tenantID, propertyID, series).Scan(&current).Error; err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (s *Service) Emit(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	lockKey := fmt.Sprintf("invoice:emit:%s", id)
	token, acquired, err := s.locker.TryLock(ctx, lockKey, emitLockTTL)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !acquired {
		return invoicedomain.Invoice{}, invoicedomain.ErrEmitInProgress
	}
	defer func() {
		if token != "" {
			_ = s.locker.Release(context.WithoutCancel(ctx), lockKey, token)
		}
	}()

	// move to pending first so the in-flight attempt is visible
	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadForUpdate(ctx, tx, scope.TenantID, id)
		if err != nil {
			return err
		}
		// a retried emit against an already accepted invoice is a no-op
		if loaded.Status == invoicedomain.StatusAccepted {
			invoice = *loaded
			return nil
		}
		if loaded.Status == invoicedomain.StatusPending {
			return invoicedomain.ErrEmitInProgress
		}
		if !invoicedomain.Emittable(loaded.Status) {
			return invoicedomain.ErrInvalidTransition
		}
		if loaded.Status == invoicedomain.StatusError {
			billing := s.holder.Resolve(loaded.TenantID.String(), loaded.PropertyID.String())
			if billing.Exhausted(loaded.RetryCount) {
				return invoicedomain.ErrRetriesExhausted
			}
		}

		loaded.Status = invoicedomain.StatusPending
		loaded.UpdatedAt = s.clock.Now()
		if err := tx.WithContext(ctx).Save(loaded).Error; err != nil {
			return err
		}
		invoice = *loaded
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.Status == invoicedomain.StatusAccepted {
		return invoice, nil
	}

	billing := s.holder.Resolve(invoice.TenantID.String(), invoice.PropertyID.String())
	result, emitErr := s.provider.Emit(ctx, billing.ProviderEndpoint, billing.ProviderToken, invoice)

	return s.recordOutcome(ctx, invoice.ID, scope.TenantID, result, emitErr)
}

// recordOutcome moves the invoice out of pending based on the provider
// round trip and publishes the matching lifecycle event.
func (s *Service) recordOutcome(ctx context.Context, id, tenantID snowflake.ID, result invoicedomain.EmissionResult, emitErr error) (invoicedomain.Invoice, error) {
	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		invoice.ProviderHTTPStatus = result.HTTPStatus
		invoice.ProviderLatencyMs = result.LatencyMs
		invoice.LastAttemptAt = &now
		invoice.UpdatedAt = now

		switch {
		case emitErr != nil:
			invoice.Status = invoicedomain.StatusError
			invoice.RetryCount++
			invoice.LastError = emitErr.Error()
		case result.Accepted:
			invoice.Status = invoicedomain.StatusAccepted
			invoice.ProviderDocumentID = result.DocumentID
			invoice.LastError = ""
			invoice.EmittedAt = &now
		default:
			invoice.Status = invoicedomain.StatusRejected
			invoice.LastError = result.Message
		}

		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	switch updated.Status {
	case invoicedomain.StatusAccepted:
		s.publish(ctx, events.InvoiceAccepted, updated)
	case invoicedomain.StatusRejected:
		s.publish(ctx, events.InvoiceRejected, updated)
	}
	// the outcome is recorded either way; the error tells the caller the
	// provider round trip itself failed and the emit should be retried
	if emitErr != nil {
		return invoicedomain.Invoice{}, fmt.Errorf("%w: %v", invoicedomain.ErrProviderError, emitErr)
	}
	return updated, nil
}

func (s *Service) Void(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, scope.TenantID, id)
		if err != nil {
			return err
		}
		if !invoicedomain.Voidable(invoice.Status) {
			return invoicedomain.ErrInvalidTransition
		}

		// accepted documents must be cancelled with the provider too
		if invoice.Status == invoicedomain.StatusAccepted && invoice.ProviderDocumentID != "" {
			billing := s.holder.Resolve(invoice.TenantID.String(), invoice.PropertyID.String())
			if err := s.provider.Void(ctx, billing.ProviderEndpoint, billing.ProviderToken, *invoice); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		invoice.Status = invoicedomain.StatusVoided
		invoice.VoidedAt = &now
		invoice.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(invoice).Error; err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	invoice, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: id, TenantID: scope.TenantID})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) ([]invoicedomain.Invoice, *pagination.PageInfo, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, nil, invoicedomain.ErrNotFound
	}

	filter := &invoicedomain.Invoice{TenantID: scope.TenantID, PropertyID: scope.PropertyID}
	if req.Status != nil {
		filter.Status = *req.Status
	}
	if req.ReservationID != nil {
		filter.ReservationID = *req.ReservationID
	}

	limit := req.Pagination.Limit()
	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"id": true}, Field: "id", Desc: true}),
		option.WithLimit(limit + 1),
	}
	if token := strings.TrimSpace(req.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, nil, pagination.ErrInvalidPageToken
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, pagination.ErrInvalidPageToken
		}
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.LT,
			Value:    cursorID,
		}))
	}

	items, err := s.invoicerepo.Find(ctx, filter, options...)
	if err != nil {
		return nil, nil, err
	}
	pageInfo, items := pagination.BuildCursorPageInfo(items, limit, func(inv *invoicedomain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: inv.ID.String()})
		return token
	})
	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoices, pageInfo, nil
}

func (s *Service) RenderPDF(ctx context.Context, id snowflake.ID) ([]byte, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return renderPDF(invoice)
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*invoicedomain.Invoice, error) {
	query := `SELECT * FROM invoices WHERE id = ? AND tenant_id = ?`
	if tx.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	var invoice invoicedomain.Invoice
	if err := tx.WithContext(ctx).Raw(query, id, tenantID).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, invoicedomain.ErrNotFound
	}
	return &invoice, nil
}

func (s *Service) publish(ctx context.Context, name string, invoice invoicedomain.Invoice) {
	s.bus.Publish(ctx, events.Event{
		Name:       name,
		TenantID:   invoice.TenantID,
		PropertyID: invoice.PropertyID,
		Actor:      tenantctx.Actor(ctx),
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"invoice_id":       invoice.ID.String(),
			"reservation_id":   invoice.ReservationID.String(),
			"document_type":    string(invoice.DocumentType),
			"series":           invoice.Series,
			"number":           invoice.Number,
			"status":           string(invoice.Status),
			"total":            invoice.Total.String(),
			"currency":         invoice.Currency,
			"retry_count":      invoice.RetryCount,
			"provider_status":  invoice.ProviderHTTPStatus,
			"provider_latency": invoice.ProviderLatencyMs,
		},
	})
}

func seriesFor(docType invoicedomain.DocumentType) string {
	if docType == invoicedomain.DocumentFactura {
		return "F001"
	}
	return "B001"
}

func payloadID(payload map[string]any, key string) (snowflake.ID, bool) {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
