package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	availabilityservice "github.com/posadahq/posada/internal/availability/service"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/config"
	"github.com/posadahq/posada/internal/events"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	invoiceservice "github.com/posadahq/posada/internal/invoice/service"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	pricingservice "github.com/posadahq/posada/internal/pricing/service"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	reservationservice "github.com/posadahq/posada/internal/reservation/service"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	roomservice "github.com/posadahq/posada/internal/room/service"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type scriptedProvider struct {
	result    invoicedomain.EmissionResult
	err       error
	emitCalls int
}

func (p *scriptedProvider) Emit(ctx context.Context, endpoint, token string, inv invoicedomain.Invoice) (invoicedomain.EmissionResult, error) {
	p.emitCalls++
	return p.result, p.err
}

func (p *scriptedProvider) Void(ctx context.Context, endpoint, token string, inv invoicedomain.Invoice) error {
	return nil
}

type schedulerFixture struct {
	scheduler    *Scheduler
	reservations reservationdomain.Service
	invoices     invoicedomain.Service
	db           *gorm.DB
	node         *snowflake.Node
	clock        *clock.FakeClock
	provider     *scriptedProvider
	ctx          context.Context
	tenantID     snowflake.ID
	propertyID   snowflake.ID
	roomTypeID   snowflake.ID
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&roomtypedomain.RoomType{},
		&roomdomain.Room{},
		&reservationdomain.Reservation{},
		&reservationdomain.Payment{},
		&pricingdomain.Season{},
		&pricingdomain.DayOfWeekPricing{},
		&pricingdomain.RatePlan{},
		&pricingdomain.Promotion{},
		&invoicedomain.Invoice{},
		&propertydomain.Guest{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC))
	bus := events.NewBus(log)
	provider := &scriptedProvider{}

	holder, err := config.NewInvoicingConfigHolder(config.Config{})
	require.NoError(t, err)

	availability := availabilityservice.NewService(availabilityservice.ServiceParam{DB: db, Log: log})
	pricing := pricingservice.NewService(pricingservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: fake})
	rooms := roomservice.NewService(roomservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: fake, Bus: bus})
	reservations := reservationservice.NewService(reservationservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Bus: bus,
		Availability: availability, Pricing: pricing, Rooms: rooms,
	})
	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Bus: bus,
		Locker: nil, Holder: holder, Provider: provider,
	})

	sched := New(SchedulerParam{
		Config:       config.Config{SchedulerInterval: time.Minute},
		DB:           db,
		Log:          log,
		Clock:        fake,
		Locker:       nil,
		Holder:       holder,
		Reservations: reservations,
		Invoices:     invoices,
	})

	f := &schedulerFixture{
		scheduler:    sched,
		reservations: reservations,
		invoices:     invoices,
		db:           db,
		node:         node,
		clock:        fake,
		provider:     provider,
		tenantID:     node.Generate(),
		propertyID:   node.Generate(),
	}
	f.ctx = tenantctx.WithScope(context.Background(), tenantctx.Scope{
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Actor:      "test",
	})

	roomType := roomtypedomain.RoomType{
		ID:         node.Generate(),
		TenantID:   f.tenantID,
		PropertyID: f.propertyID,
		Name:       "Doble Estandar",
		MaxAdults:  2,
		BasePrice:  decimal.NewFromInt(100),
		Currency:   "PEN",
		Active:     true,
	}
	require.NoError(t, db.Create(&roomType).Error)
	f.roomTypeID = roomType.ID

	for _, number := range []string{"101", "102"} {
		require.NoError(t, db.Create(&roomdomain.Room{
			ID:         node.Generate(),
			TenantID:   f.tenantID,
			PropertyID: f.propertyID,
			RoomTypeID: roomType.ID,
			Number:     number,
			Status:     roomdomain.StatusAvailable,
			Active:     true,
		}).Error)
	}

	return f
}

func (f *schedulerFixture) createReservation(t *testing.T, deadline *time.Time) reservationdomain.Reservation {
	t.Helper()
	res, err := f.reservations.Create(f.ctx, reservationdomain.CreateReservationRequest{
		GuestID:         f.node.Generate(),
		RoomTypeID:      f.roomTypeID,
		CheckIn:         time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2026, time.February, 11, 0, 0, 0, 0, time.UTC),
		Adults:          2,
		PaymentDeadline: deadline,
	})
	require.NoError(t, err)
	return res
}

func (f *schedulerFixture) erroredInvoice(t *testing.T) invoicedomain.Invoice {
	t.Helper()
	res := f.createReservation(t, nil)

	inv, err := f.invoices.Create(f.ctx, invoicedomain.CreateInvoiceRequest{
		ReservationID: res.ID,
		DocumentType:  invoicedomain.DocumentBoleta,
		CustomerName:  "Maria Quispe",
	})
	require.NoError(t, err)

	f.provider.err = errors.New("connection reset")
	_, err = f.invoices.Emit(f.ctx, inv.ID)
	require.ErrorIs(t, err, invoicedomain.ErrProviderError)
	got, err := f.invoices.GetByID(f.ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, invoicedomain.StatusError, got.Status)
	f.provider.err = nil
	f.provider.emitCalls = 0
	return got
}

func TestSweep_ExpiresUnpaidReservations(t *testing.T) {
	f := newSchedulerFixture(t)

	deadline := f.clock.Now().Add(24 * time.Hour)
	expiring := f.createReservation(t, &deadline)
	open := f.createReservation(t, nil)

	// Not yet due.
	f.scheduler.Sweep(context.Background())
	got, err := f.reservations.GetByID(f.ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusPending, got.OperationalStatus)

	f.clock.Advance(25 * time.Hour)
	f.scheduler.Sweep(context.Background())

	got, err = f.reservations.GetByID(f.ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusCancelled, got.OperationalStatus)

	// No deadline means no expiry.
	got, err = f.reservations.GetByID(f.ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusPending, got.OperationalStatus)
}

func TestSweep_LeavesConfirmedReservationsAlone(t *testing.T) {
	f := newSchedulerFixture(t)

	deadline := f.clock.Now().Add(time.Hour)
	res := f.createReservation(t, &deadline)
	_, err := f.reservations.Confirm(f.ctx, res.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	f.scheduler.Sweep(context.Background())

	got, err := f.reservations.GetByID(f.ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservationdomain.StatusConfirmed, got.OperationalStatus)
}

func TestSweep_RetriesFailedInvoiceAfterBackoff(t *testing.T) {
	f := newSchedulerFixture(t)

	inv := f.erroredInvoice(t)
	f.provider.result = invoicedomain.EmissionResult{Accepted: true, DocumentID: "sunat-100", HTTPStatus: 200}

	// Inside the backoff window the invoice is left alone.
	f.scheduler.Sweep(context.Background())
	assert.Zero(t, f.provider.emitCalls)

	f.clock.Advance(time.Minute)
	f.scheduler.Sweep(context.Background())
	assert.Equal(t, 1, f.provider.emitCalls)

	got, err := f.invoices.GetByID(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusAccepted, got.Status)

	// Accepted invoices are not swept again.
	f.clock.Advance(time.Hour)
	f.scheduler.Sweep(context.Background())
	assert.Equal(t, 1, f.provider.emitCalls)
}

func TestSweep_SkipsExhaustedInvoices(t *testing.T) {
	f := newSchedulerFixture(t)

	inv := f.erroredInvoice(t)
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", inv.ID).
		Update("retry_count", 8).Error)

	f.clock.Advance(48 * time.Hour)
	f.scheduler.Sweep(context.Background())
	assert.Zero(t, f.provider.emitCalls)

	got, err := f.invoices.GetByID(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusError, got.Status)

	// Manual re-emission is refused too.
	_, err = f.invoices.Emit(f.ctx, inv.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrRetriesExhausted)
}
