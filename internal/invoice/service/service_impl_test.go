package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/config"
	"github.com/posadahq/posada/internal/events"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeProvider scripts the next provider round trip.
type fakeProvider struct {
	result      invoicedomain.EmissionResult
	err         error
	voidErr     error
	emitCalls   int
	voidCalls   int
	lastInvoice invoicedomain.Invoice
}

func (p *fakeProvider) Emit(ctx context.Context, endpoint, token string, inv invoicedomain.Invoice) (invoicedomain.EmissionResult, error) {
	p.emitCalls++
	p.lastInvoice = inv
	return p.result, p.err
}

func (p *fakeProvider) Void(ctx context.Context, endpoint, token string, inv invoicedomain.Invoice) error {
	p.voidCalls++
	return p.voidErr
}

type invoiceFixture struct {
	svc        invoicedomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	bus        *events.Bus
	clock      *clock.FakeClock
	provider   *fakeProvider
	ctx        context.Context
	tenantID   snowflake.ID
	propertyID snowflake.ID
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&reservationdomain.Reservation{},
		&propertydomain.Guest{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC))
	bus := events.NewBus(log)
	provider := &fakeProvider{}

	holder, err := config.NewInvoicingConfigHolder(config.Config{})
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Bus:      bus,
		Locker:   nil,
		Holder:   holder,
		Provider: provider,
	})

	f := &invoiceFixture{
		svc:        svc,
		db:         db,
		node:       node,
		bus:        bus,
		clock:      fake,
		provider:   provider,
		tenantID:   node.Generate(),
		propertyID: node.Generate(),
	}
	f.ctx = tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Actor:      "test",
	})
	return f
}

func (f *invoiceFixture) seedGuest(t *testing.T, docType propertydomain.DocumentType, docNumber string) propertydomain.Guest {
	t.Helper()
	guest := propertydomain.Guest{
		ID:             f.node.Generate(),
		TenantID:       f.tenantID,
		DocumentType:   docType,
		DocumentNumber: docNumber,
		FullName:       "Maria Quispe",
	}
	require.NoError(t, f.db.Create(&guest).Error)
	return guest
}

func (f *invoiceFixture) seedReservation(t *testing.T, guestID snowflake.ID, total string) reservationdomain.Reservation {
	t.Helper()
	res := reservationdomain.Reservation{
		ID:                f.node.Generate(),
		TenantID:          f.tenantID,
		PropertyID:        f.propertyID,
		GuestID:           guestID,
		RoomTypeID:        f.node.Generate(),
		CheckInDate:       time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
		CheckOutDate:      time.Date(2026, time.February, 12, 0, 0, 0, 0, time.UTC),
		Adults:            2,
		TotalAmount:       decimal.RequireFromString(total),
		Currency:          "PEN",
		OperationalStatus: reservationdomain.StatusCheckOut,
		FinancialStatus:   reservationdomain.FinancialPaid,
	}
	require.NoError(t, f.db.Create(&res).Error)
	return res
}

func TestCreate_BoletaFromGuestSnapshot(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "236")

	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.StatusDraft, inv.Status)
	assert.Equal(t, "B001", inv.Series)
	assert.Equal(t, int64(1), inv.Number)
	assert.Equal(t, "Maria Quispe", inv.CustomerName)
	assert.Equal(t, "dni", inv.CustomerDocumentType)
	assert.Equal(t, "200", inv.OpGravado.String())
	assert.Equal(t, "36", inv.IGV.String())
	assert.Equal(t, "236", inv.Total.String())
	assert.Equal(t, "PEN", inv.Currency)
}

func TestCreate_CorrelativesPerSeries(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentRUC, "20123456789")

	first, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: f.seedReservation(t, guest.ID, "118").ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)
	second, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: f.seedReservation(t, guest.ID, "118").ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)
	factura, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: f.seedReservation(t, guest.ID, "118").ID,
		DocumentType:  invoicedomain.DocumentFactura,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, int64(2), second.Number)

	// The factura series numbers independently.
	assert.Equal(t, "F001", factura.Series)
	assert.Equal(t, int64(1), factura.Number)
}

func TestCreate_FacturaRequiresRUC(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "118")

	_, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentFactura,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidDocumentType)

	// Overriding the customer with a RUC holder makes it valid.
	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID:          res.ID,
		DocumentType:           invoicedomain.DocumentFactura,
		CustomerName:           "Hotel Andino SAC",
		CustomerDocumentType:   "RUC",
		CustomerDocumentNumber: "20123456789",
	})
	require.NoError(t, err)
	assert.Equal(t, "F001", inv.Series)
}

func TestCreate_UnknownReservation(t *testing.T) {
	f := newInvoiceFixture(t)

	_, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: f.node.Generate(),
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrReservationNotFound)
}

func TestEmit_AcceptedPublishesEvent(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "118")

	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)

	var seen []string
	f.bus.Subscribe(func(ctx context.Context, evt events.Event) {
		seen = append(seen, evt.Name)
	})

	f.provider.result = invoicedomain.EmissionResult{
		Accepted:   true,
		DocumentID: "sunat-001",
		HTTPStatus: 200,
		LatencyMs:  45,
	}

	emitted, err := f.svc.Emit(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusAccepted, emitted.Status)
	assert.Equal(t, "sunat-001", emitted.ProviderDocumentID)
	assert.Equal(t, 200, emitted.ProviderHTTPStatus)
	require.NotNil(t, emitted.EmittedAt)
	assert.Equal(t, []string{events.InvoiceAccepted}, seen)

	// The provider saw the pending snapshot of the same invoice.
	assert.Equal(t, inv.ID, f.provider.lastInvoice.ID)
	assert.Equal(t, invoicedomain.StatusPending, f.provider.lastInvoice.Status)

	// Emitting again is a no-op, not a second provider call.
	again, err := f.svc.Emit(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusAccepted, again.Status)
	assert.Equal(t, 1, f.provider.emitCalls)
}

func TestEmit_ProviderFailureMarksError(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "118")

	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)

	f.provider.err = errors.New("connection reset")

	_, err = f.svc.Emit(f.ctx, inv.ID)
	require.ErrorIs(t, err, invoicedomain.ErrProviderError)

	got, err := f.svc.GetByID(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusError, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "connection reset", got.LastError)
	require.NotNil(t, got.LastAttemptAt)
	assert.True(t, got.LastAttemptAt.Equal(f.clock.Now()))

	// An errored invoice can be retried.
	f.provider.err = nil
	f.provider.result = invoicedomain.EmissionResult{Accepted: true, DocumentID: "sunat-002", HTTPStatus: 200}
	got, err = f.svc.Emit(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusAccepted, got.Status)
	assert.Empty(t, got.LastError)
}

func TestEmit_RejectedByProvider(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "118")

	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)

	var seen []string
	f.bus.Subscribe(func(ctx context.Context, evt events.Event) {
		seen = append(seen, evt.Name)
	})

	f.provider.result = invoicedomain.EmissionResult{
		Accepted:   false,
		Message:    "customer document is invalid",
		HTTPStatus: 422,
	}

	got, err := f.svc.Emit(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusRejected, got.Status)
	assert.Equal(t, "customer document is invalid", got.LastError)
	assert.Equal(t, []string{events.InvoiceRejected}, seen)
}

func TestVoid_AcceptedCancelsWithProvider(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "118")

	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)

	f.provider.result = invoicedomain.EmissionResult{Accepted: true, DocumentID: "sunat-003", HTTPStatus: 200}
	_, err = f.svc.Emit(f.ctx, inv.ID)
	require.NoError(t, err)

	voided, err := f.svc.Void(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	assert.Equal(t, 1, f.provider.voidCalls)

	// Voided is terminal.
	_, err = f.svc.Emit(f.ctx, inv.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)
	_, err = f.svc.Void(f.ctx, inv.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTransition)
}

func TestVoid_DraftSkipsProvider(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "118")

	inv, err := f.svc.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
	})
	require.NoError(t, err)

	voided, err := f.svc.Void(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusVoided, voided.Status)
	assert.Zero(t, f.provider.voidCalls)
}

func TestCheckOutEvent_AutoDraftsBoleta(t *testing.T) {
	f := newInvoiceFixture(t)
	guest := f.seedGuest(t, propertydomain.DocumentDNI, "45678901")
	res := f.seedReservation(t, guest.ID, "354")

	f.bus.Publish(context.Background(), events.Event{
		Name:       events.ReservationCheckOut,
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Actor:      "test",
		OccurredAt: f.clock.Now(),
		Payload:    map[string]any{"reservation_id": res.ID.String()},
	})

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Where("reservation_id = ?", res.ID).Find(&invoices).Error)
	require.Len(t, invoices, 1)
	assert.Equal(t, invoicedomain.DocumentBoleta, invoices[0].DocumentType)
	assert.Equal(t, invoicedomain.StatusDraft, invoices[0].Status)
	assert.Equal(t, "Maria Quispe", invoices[0].CustomerName)

	// A second check-out event for the same stay does not draft twice.
	f.bus.Publish(context.Background(), events.Event{
		Name:       events.ReservationCheckOut,
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Payload:    map[string]any{"reservation_id": res.ID.String()},
	})
	require.NoError(t, f.db.Where("reservation_id = ?", res.ID).Find(&invoices).Error)
	assert.Len(t, invoices, 1)
}
