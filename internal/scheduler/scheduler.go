// Package scheduler runs the periodic sweeps: expiring unpaid
// reservations past their payment deadline and retrying failed invoice
// emissions with backoff.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/config"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	"github.com/posadahq/posada/internal/locks"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	"github.com/posadahq/posada/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sweepLockKey = "scheduler:sweep"
	sweepLockTTL = 5 * time.Minute
	sweepBatch   = 100
)

type SchedulerParam struct {
	fx.In

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Locker       *locks.Locker
	Holder       *config.InvoicingConfigHolder
	Reservations reservationdomain.Service
	Invoices     invoicedomain.Service
}

type Scheduler struct {
	interval time.Duration
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	locker   *locks.Locker
	holder   *config.InvoicingConfigHolder

	reservations reservationdomain.Service
	invoices     invoicedomain.Service

	cancel context.CancelFunc
	done   chan struct{}
}

func New(p SchedulerParam) *Scheduler {
	interval := p.Config.SchedulerInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval:     interval,
		db:           p.DB,
		log:          p.Log.Named("scheduler"),
		clock:        p.Clock,
		locker:       p.Locker,
		holder:       p.Holder,
		reservations: p.Reservations,
		invoices:     p.Invoices,
		done:         make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.Sweep(runCtx)
			}
		}
	}()
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

// Sweep runs one pass of both sweeps. Only one instance sweeps at a time
// when multiple processes share the redis lock.
func (s *Scheduler) Sweep(ctx context.Context) {
	token, acquired, err := s.locker.TryLock(ctx, sweepLockKey, sweepLockTTL)
	if err != nil {
		s.log.Error("acquiring sweep lock failed", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if token != "" {
			_ = s.locker.Release(context.WithoutCancel(ctx), sweepLockKey, token)
		}
	}()

	s.expireUnpaidReservations(ctx)
	s.retryFailedInvoices(ctx)
}

// expireUnpaidReservations cancels reservations whose payment deadline
// passed while they were still waiting for payment.
func (s *Scheduler) expireUnpaidReservations(ctx context.Context) {
	now := s.clock.Now()

	var expired []reservationdomain.Reservation
	err := s.db.WithContext(ctx).
		Where("operational_status IN ? AND payment_deadline IS NOT NULL AND payment_deadline < ?",
			[]string{string(reservationdomain.StatusIncomplete), string(reservationdomain.StatusPending)}, now).
		Limit(sweepBatch).
		Find(&expired).Error
	if err != nil {
		s.log.Error("loading expired reservations failed", zap.Error(err))
		return
	}

	for _, res := range expired {
		scoped := tenantctx.WithScope(ctx, tenantctx.Scope{
			TenantID:   res.TenantID,
			PropertyID: res.PropertyID,
			Actor:      "scheduler",
		})
		if _, err := s.reservations.Cancel(scoped, res.ID, "payment deadline expired"); err != nil {
			// a race with a concurrent confirm is expected, not an error
			if errors.Is(err, reservationdomain.ErrInvalidTransition) {
				continue
			}
			s.log.Warn("expiring reservation failed",
				zap.String("reservation_id", res.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.log.Info("reservation expired",
			zap.String("reservation_id", res.ID.String()),
		)
	}
}

// retryFailedInvoices re-emits errored invoices once their backoff window
// has elapsed, until the configured attempt cap is reached.
func (s *Scheduler) retryFailedInvoices(ctx context.Context) {
	now := s.clock.Now()

	var failed []invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where("status = ?", invoicedomain.StatusError).
		Limit(sweepBatch).
		Find(&failed).Error
	if err != nil {
		s.log.Error("loading failed invoices failed", zap.Error(err))
		return
	}

	for _, inv := range failed {
		billing := s.holder.Resolve(inv.TenantID.String(), inv.PropertyID.String())
		if billing.Exhausted(inv.RetryCount) {
			continue
		}
		if inv.LastAttemptAt != nil && inv.LastAttemptAt.Add(billing.Backoff(inv.RetryCount)).After(now) {
			continue
		}

		scoped := tenantctx.WithScope(ctx, tenantctx.Scope{
			TenantID:   inv.TenantID,
			PropertyID: inv.PropertyID,
			Actor:      "scheduler",
		})
		if _, err := s.invoices.Emit(scoped, inv.ID); err != nil {
			if errors.Is(err, invoicedomain.ErrEmitInProgress) {
				continue
			}
			// a provider failure is already recorded on the invoice;
			// the next sweep picks it up after its backoff
			s.log.Warn("invoice retry failed",
				zap.String("invoice_id", inv.ID.String()),
				zap.Int("retry_count", inv.RetryCount),
				zap.Error(err),
			)
		}
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
	}),
)
