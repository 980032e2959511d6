package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	availabilitydomain "github.com/posadahq/posada/internal/availability/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p ServiceParam) availabilitydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("availability.service"),
	}
}

func (s *Service) AvailableRooms(ctx context.Context, roomTypeID snowflake.ID, checkIn, checkOut time.Time) (int, error) {
	return s.countAvailable(ctx, s.db, roomTypeID, checkIn, checkOut, false)
}

func (s *Service) ReserveWithin(ctx context.Context, tx *gorm.DB, roomTypeID snowflake.ID, checkIn, checkOut time.Time, quantity int) error {
	if quantity <= 0 {
		return availabilitydomain.ErrUnavailable
	}

	free, err := s.countAvailable(ctx, tx, roomTypeID, checkIn, checkOut, true)
	if err != nil {
		return err
	}
	if free < quantity {
		return availabilitydomain.ErrUnavailable
	}
	return nil
}

// countAvailable computes total rooms minus blocking overlaps. With lock
// set, the room type row is taken FOR UPDATE first so concurrent bookings
// of the same type serialize on it.
func (s *Service) countAvailable(ctx context.Context, tx *gorm.DB, roomTypeID snowflake.ID, checkIn, checkOut time.Time, lock bool) (int, error) {
	if !checkOut.After(checkIn) {
		return 0, availabilitydomain.ErrUnavailable
	}

	if lock {
		// sqlite serializes writers on its own and rejects FOR UPDATE
		query := `SELECT id FROM room_types WHERE id = ?`
		if tx.Dialector.Name() != "sqlite" {
			query += ` FOR UPDATE`
		}
		var lockedID snowflake.ID
		if err := tx.WithContext(ctx).Raw(query, roomTypeID).Scan(&lockedID).Error; err != nil {
			return 0, err
		}
		if lockedID == 0 {
			return 0, availabilitydomain.ErrRoomTypeNotFound
		}
	}

	var total int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM rooms WHERE room_type_id = ? AND active = ?`,
		roomTypeID, true,
	).Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	var held int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM reservations
		 WHERE room_type_id = ?
		   AND operational_status IN ?
		   AND check_in_date < ?
		   AND check_out_date > ?`,
		roomTypeID, availabilitydomain.BlockingStatuses, checkOut, checkIn,
	).Scan(&held).Error; err != nil {
		return 0, err
	}

	free := int(total - held)
	if free < 0 {
		free = 0
	}
	return free, nil
}
