package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	availabilitydomain "github.com/posadahq/posada/internal/availability/domain"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	"github.com/posadahq/posada/pkg/db/option"
	"github.com/posadahq/posada/pkg/db/pagination"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Bus          events.Publisher
	Availability availabilitydomain.Service
	Pricing      pricingdomain.Service
	Rooms        roomdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	clock        clock.Clock
	bus          events.Publisher
	availability availabilitydomain.Service
	pricing      pricingdomain.Service
	rooms        roomdomain.Service

	roomtyperepo repository.Repository[roomtypedomain.RoomType]
	paymentrepo  repository.Repository[reservationdomain.Payment]
}

func NewService(p ServiceParam) reservationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reservation.service"),
		genID: p.GenID,
		clock: p.Clock,

		bus:          p.Bus,
		availability: p.Availability,
		pricing:      p.Pricing,
		rooms:        p.Rooms,

		roomtyperepo: repository.ProvideStore[roomtypedomain.RoomType](p.DB),
		paymentrepo:  repository.ProvideStore[reservationdomain.Payment](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req reservationdomain.CreateReservationRequest) (reservationdomain.Reservation, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return reservationdomain.Reservation{}, reservationdomain.ErrNotFound
	}

	checkIn := truncateDate(req.CheckIn)
	checkOut := truncateDate(req.CheckOut)
	if !checkOut.After(checkIn) {
		return reservationdomain.Reservation{}, reservationdomain.ErrInvalidDateRange
	}
	if req.Adults <= 0 || req.Children < 0 {
		return reservationdomain.Reservation{}, reservationdomain.ErrInvalidParty
	}

	roomType, err := s.roomtyperepo.FindOne(ctx, &roomtypedomain.RoomType{ID: req.RoomTypeID, TenantID: scope.TenantID})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	if roomType == nil || !roomType.Active {
		return reservationdomain.Reservation{}, roomtypedomain.ErrNotFound
	}
	if req.Adults > roomType.MaxAdults || req.Children > roomType.MaxChildren {
		return reservationdomain.Reservation{}, reservationdomain.ErrInvalidParty
	}

	quote, err := s.pricing.Quote(ctx, pricingdomain.QuoteRequest{
		RoomTypeID:    roomType.ID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}

	status := reservationdomain.StatusPending
	if req.GuestID == 0 {
		status = reservationdomain.StatusIncomplete
	}

	originType := req.OriginType
	if originType == "" {
		originType = reservationdomain.OriginFrontDesk
	}

	now := s.clock.Now()
	reservation := reservationdomain.Reservation{
		ID:                s.genID.Generate(),
		TenantID:          scope.TenantID,
		PropertyID:        scope.PropertyID,
		GuestID:           req.GuestID,
		RoomTypeID:        roomType.ID,
		CheckInDate:       checkIn,
		CheckOutDate:      checkOut,
		Adults:            req.Adults,
		Children:          req.Children,
		TotalAmount:       quote.FinalTotal,
		Currency:          quote.Currency,
		OperationalStatus: status,
		FinancialStatus:   reservationdomain.FinancialPendingPayment,
		OriginType:        originType,
		PromotionCode:     strings.TrimSpace(req.PromotionCode),
		PaymentDeadline:   req.PaymentDeadline,
		Notes:             strings.TrimSpace(req.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status.Blocking() {
			if err := s.availability.ReserveWithin(ctx, tx, roomType.ID, checkIn, checkOut, 1); err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Create(&reservation).Error
	})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}

	if status == reservationdomain.StatusPending {
		s.publish(ctx, events.ReservationPending, reservation, nil)
	}
	return reservation, nil
}

func (s *Service) Complete(ctx context.Context, id, guestID snowflake.ID) (reservationdomain.Reservation, error) {
	if guestID == 0 {
		return reservationdomain.Reservation{}, reservationdomain.ErrInvalidParty
	}
	updated, err := s.transition(ctx, id, reservationdomain.StatusPending, func(tx *gorm.DB, res *reservationdomain.Reservation) error {
		// the hold starts now: incomplete reservations consume nothing
		if err := s.availability.ReserveWithin(ctx, tx, res.RoomTypeID, res.CheckInDate, res.CheckOutDate, 1); err != nil {
			return err
		}
		res.GuestID = guestID
		return nil
	})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	s.publish(ctx, events.ReservationPending, updated, nil)
	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID) (reservationdomain.Reservation, error) {
	updated, err := s.transition(ctx, id, reservationdomain.StatusConfirmed, nil)
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	s.publish(ctx, events.ReservationConfirmed, updated, nil)
	return updated, nil
}

func (s *Service) CheckIn(ctx context.Context, id snowflake.ID, roomID *snowflake.ID) (reservationdomain.Reservation, error) {
	updated, err := s.transition(ctx, id, reservationdomain.StatusCheckIn, func(tx *gorm.DB, res *reservationdomain.Reservation) error {
		assigned, err := s.resolveRoom(ctx, tx, res, roomID)
		if err != nil {
			return err
		}
		if err := s.rooms.TransitionWithin(ctx, tx, assigned, roomdomain.StatusOccupied); err != nil {
			return err
		}
		res.RoomID = &assigned
		return nil
	})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	s.publish(ctx, events.ReservationCheckIn, updated, nil)
	return updated, nil
}

func (s *Service) CheckOut(ctx context.Context, id snowflake.ID) (reservationdomain.Reservation, error) {
	updated, err := s.transition(ctx, id, reservationdomain.StatusCheckOut, func(tx *gorm.DB, res *reservationdomain.Reservation) error {
		if res.RoomID == nil {
			return reservationdomain.ErrNoRoomAvailable
		}
		return s.rooms.TransitionWithin(ctx, tx, *res.RoomID, roomdomain.StatusDirty)
	})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	s.publish(ctx, events.ReservationCheckOut, updated, nil)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, reason string) (reservationdomain.Reservation, error) {
	updated, err := s.transition(ctx, id, reservationdomain.StatusCancelled, nil)
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	extra := map[string]any{}
	if reason = strings.TrimSpace(reason); reason != "" {
		extra["reason"] = reason
	}
	s.publish(ctx, events.ReservationCancelled, updated, extra)
	return updated, nil
}

func (s *Service) NoShow(ctx context.Context, id snowflake.ID) (reservationdomain.Reservation, error) {
	updated, err := s.transition(ctx, id, reservationdomain.StatusNoShow, nil)
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	s.publish(ctx, events.ReservationNoShow, updated, nil)
	return updated, nil
}

// transition applies one edge of the operational state machine. The row is
// locked, the edge checked, side effects run, and everything commits or
// rolls back as a unit. Cancelling and no_show release the inventory hold
// implicitly: the row leaves the blocking status set.
func (s *Service) transition(
	ctx context.Context,
	id snowflake.ID,
	target reservationdomain.OperationalStatus,
	sideEffect func(tx *gorm.DB, res *reservationdomain.Reservation) error,
) (reservationdomain.Reservation, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return reservationdomain.Reservation{}, reservationdomain.ErrNotFound
	}

	var updated reservationdomain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.loadForUpdate(ctx, tx, scope.TenantID, id)
		if err != nil {
			return err
		}

		if !reservationdomain.CanTransition(res.OperationalStatus, target) {
			return reservationdomain.ErrInvalidTransition
		}

		res.OperationalStatus = target
		if sideEffect != nil {
			if err := sideEffect(tx, res); err != nil {
				return err
			}
		}
		res.UpdatedAt = s.clock.Now()

		if err := tx.WithContext(ctx).Save(res).Error; err != nil {
			return err
		}
		updated = *res
		return nil
	})
	if err != nil {
		return reservationdomain.Reservation{}, err
	}
	return updated, nil
}

// resolveRoom validates an explicit room or auto-assigns the first
// available room that can fulfill the reservation's type.
func (s *Service) resolveRoom(ctx context.Context, tx *gorm.DB, res *reservationdomain.Reservation, roomID *snowflake.ID) (snowflake.ID, error) {
	if roomID != nil && *roomID != 0 {
		var room roomdomain.Room
		err := tx.WithContext(ctx).
			Where("id = ? AND tenant_id = ?", *roomID, res.TenantID).
			First(&room).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, roomdomain.ErrNotFound
			}
			return 0, err
		}
		if !room.CanHost(res.RoomTypeID) || room.Status != roomdomain.StatusAvailable || !room.Active {
			return 0, reservationdomain.ErrNoRoomAvailable
		}
		return room.ID, nil
	}

	var room roomdomain.Room
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND property_id = ? AND room_type_id = ? AND status = ? AND active = ?",
			res.TenantID, res.PropertyID, res.RoomTypeID, roomdomain.StatusAvailable, true).
		Order("number ASC").
		First(&room).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, reservationdomain.ErrNoRoomAvailable
		}
		return 0, err
	}
	return room.ID, nil
}

func (s *Service) AddPayment(ctx context.Context, id snowflake.ID, req reservationdomain.AddPaymentRequest) (reservationdomain.Payment, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return reservationdomain.Payment{}, reservationdomain.ErrNotFound
	}
	if !req.Amount.IsPositive() {
		return reservationdomain.Payment{}, reservationdomain.ErrInvalidAmount
	}

	var payment reservationdomain.Payment
	var reservation reservationdomain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.loadForUpdate(ctx, tx, scope.TenantID, id)
		if err != nil {
			return err
		}

		payments, err := s.loadPayments(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		outstanding := res.TotalAmount.Sub(netPaid(payments))
		if req.Amount.GreaterThan(outstanding) {
			return reservationdomain.ErrInvalidAmount
		}

		now := s.clock.Now()
		payment = reservationdomain.Payment{
			ID:            s.genID.Generate(),
			TenantID:      res.TenantID,
			ReservationID: res.ID,
			Amount:        req.Amount,
			Currency:      currencyOr(req.Currency, res.Currency),
			Method:        strings.TrimSpace(req.Method),
			Status:        reservationdomain.PaymentCompleted,
			ProcessedAt:   &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		payments = append(payments, payment)
		res.FinancialStatus = reservationdomain.DeriveFinancialStatus(res.TotalAmount, payments)
		res.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(res).Error; err != nil {
			return err
		}
		reservation = *res
		return nil
	})
	if err != nil {
		return reservationdomain.Payment{}, err
	}

	s.publish(ctx, events.ReservationPaymentAdded, reservation, map[string]any{
		"payment_id": payment.ID.String(),
		"amount":     payment.Amount.String(),
		"method":     payment.Method,
	})
	return payment, nil
}

func (s *Service) RefundPayment(ctx context.Context, id snowflake.ID, req reservationdomain.RefundPaymentRequest) (reservationdomain.Payment, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return reservationdomain.Payment{}, reservationdomain.ErrNotFound
	}
	if !req.Amount.IsPositive() {
		return reservationdomain.Payment{}, reservationdomain.ErrInvalidAmount
	}

	var refunded reservationdomain.Payment
	var reservation reservationdomain.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.loadForUpdate(ctx, tx, scope.TenantID, id)
		if err != nil {
			return err
		}

		payments, err := s.loadPayments(ctx, tx, res.ID)
		if err != nil {
			return err
		}

		var target *reservationdomain.Payment
		for i := range payments {
			if payments[i].ID == req.PaymentID {
				target = &payments[i]
				break
			}
		}
		if target == nil {
			return reservationdomain.ErrPaymentNotFound
		}
		if target.Status != reservationdomain.PaymentCompleted && target.Status != reservationdomain.PaymentRefunded {
			return reservationdomain.ErrInvalidAmount
		}
		if req.Amount.GreaterThan(target.Net()) {
			return reservationdomain.ErrInvalidAmount
		}

		now := s.clock.Now()
		target.RefundedAmount = target.RefundedAmount.Add(req.Amount)
		if target.Net().IsZero() {
			target.Status = reservationdomain.PaymentRefunded
		}
		target.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(target).Error; err != nil {
			return err
		}

		res.FinancialStatus = reservationdomain.DeriveFinancialStatus(res.TotalAmount, payments)
		res.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(res).Error; err != nil {
			return err
		}

		refunded = *target
		reservation = *res
		return nil
	})
	if err != nil {
		return reservationdomain.Payment{}, err
	}

	s.publish(ctx, events.ReservationPaymentRefunded, reservation, map[string]any{
		"payment_id": refunded.ID.String(),
		"amount":     req.Amount.String(),
		"reason":     strings.TrimSpace(req.Reason),
	})
	return refunded, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (reservationdomain.Reservation, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return reservationdomain.Reservation{}, reservationdomain.ErrNotFound
	}

	var res reservationdomain.Reservation
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, scope.TenantID).
		First(&res).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return reservationdomain.Reservation{}, reservationdomain.ErrNotFound
		}
		return reservationdomain.Reservation{}, err
	}
	return res, nil
}

func (s *Service) ListPayments(ctx context.Context, id snowflake.ID) ([]reservationdomain.Payment, error) {
	res, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.loadPayments(ctx, s.db, res.ID)
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Service) List(ctx context.Context, req reservationdomain.ListReservationsRequest) ([]reservationdomain.Reservation, *pagination.PageInfo, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, nil, reservationdomain.ErrNotFound
	}

	filter := &reservationdomain.Reservation{TenantID: scope.TenantID, PropertyID: scope.PropertyID}
	if req.Status != nil {
		filter.OperationalStatus = *req.Status
	}
	if req.GuestID != nil {
		filter.GuestID = *req.GuestID
	}
	if req.RoomTypeID != nil {
		filter.RoomTypeID = *req.RoomTypeID
	}

	// Snowflake ids are time-ordered, so the cursor pages newest-first
	// on id alone.
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
	if req.From != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "check_out_date",
			Operator: option.GT,
			Value:    *req.From,
		}))
	}
	if req.To != nil {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "check_in_date",
			Operator: option.LT,
			Value:    *req.To,
		}))
	}

	repo := repository.ProvideStore[reservationdomain.Reservation](s.db)
	items, err := repo.Find(ctx, filter, options...)
	if err != nil {
		return nil, nil, err
	}
	pageInfo, items := pagination.BuildCursorPageInfo(items, limit, func(r *reservationdomain.Reservation) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: r.ID.String()})
		return token
	})
	reservations := make([]reservationdomain.Reservation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reservations = append(reservations, *item)
	}
	return reservations, pageInfo, nil
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*reservationdomain.Reservation, error) {
	query := `SELECT * FROM reservations WHERE id = ? AND tenant_id = ?`
	if tx.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	var res reservationdomain.Reservation
	if err := tx.WithContext(ctx).Raw(query, id, tenantID).Scan(&res).Error; err != nil {
		return nil, err
	}
	if res.ID == 0 {
		return nil, reservationdomain.ErrNotFound
	}
	return &res, nil
}

func (s *Service) loadPayments(ctx context.Context, tx *gorm.DB, reservationID snowflake.ID) ([]reservationdomain.Payment, error) {
	var payments []reservationdomain.Payment
	err := tx.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

func (s *Service) publish(ctx context.Context, name string, res reservationdomain.Reservation, extra map[string]any) {
	payload := map[string]any{
		"reservation_id":     res.ID.String(),
		"guest_id":           res.GuestID.String(),
		"room_type_id":       res.RoomTypeID.String(),
		"check_in_date":      res.CheckInDate.Format("2006-01-02"),
		"check_out_date":     res.CheckOutDate.Format("2006-01-02"),
		"nights":             res.Nights(),
		"adults":             res.Adults,
		"children":           res.Children,
		"total_amount":       res.TotalAmount.String(),
		"currency":           res.Currency,
		"operational_status": string(res.OperationalStatus),
		"financial_status":   string(res.FinancialStatus),
		"origin_type":        string(res.OriginType),
	}
	if res.RoomID != nil {
		payload["room_id"] = res.RoomID.String()
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	s.bus.Publish(ctx, events.Event{
		Name:       name,
		TenantID:   res.TenantID,
		PropertyID: res.PropertyID,
		Actor:      tenantctx.Actor(ctx),
		OccurredAt: s.clock.Now(),
		Payload:    payload,
	})
}

func netPaid(payments []reservationdomain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status != reservationdomain.PaymentCompleted && p.Status != reservationdomain.PaymentRefunded {
			continue
		}
		total = total.Add(p.Net())
	}
	return total
}

func currencyOr(value, def string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
