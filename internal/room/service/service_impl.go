package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Bus   events.Publisher
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	roomrepo repository.Repository[roomdomain.Room]
	bus      events.Publisher
}

func NewService(p ServiceParam) roomdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("room.service"),
		genID: p.GenID,
		clock: p.Clock,

		roomrepo: repository.ProvideStore[roomdomain.Room](p.DB),
		bus:      p.Bus,
	}
}

func (s *Service) Create(ctx context.Context, req roomdomain.CreateRoomRequest) (roomdomain.Room, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return roomdomain.Room{}, roomdomain.ErrNotFound
	}

	now := s.clock.Now()
	room := roomdomain.Room{
		ID:         s.genID.Generate(),
		TenantID:   scope.TenantID,
		PropertyID: scope.PropertyID,
		RoomTypeID: req.RoomTypeID,
		Number:     strings.TrimSpace(req.Number),
		Floor:      strings.TrimSpace(req.Floor),
		Status:     roomdomain.StatusAvailable,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(req.ExtraTypes) > 0 {
		raw, err := json.Marshal(req.ExtraTypes)
		if err != nil {
			return roomdomain.Room{}, err
		}
		room.ExtraTypes = raw
	}
	if err := s.roomrepo.Create(ctx, &room); err != nil {
		return roomdomain.Room{}, err
	}
	return room, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (roomdomain.Room, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return roomdomain.Room{}, roomdomain.ErrNotFound
	}

	item, err := s.roomrepo.FindOne(ctx, &roomdomain.Room{ID: id, TenantID: scope.TenantID})
	if err != nil {
		return roomdomain.Room{}, err
	}
	if item == nil {
		return roomdomain.Room{}, roomdomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]roomdomain.Room, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, roomdomain.ErrNotFound
	}

	items, err := s.roomrepo.Find(ctx, &roomdomain.Room{
		TenantID:   scope.TenantID,
		PropertyID: scope.PropertyID,
	})
	if err != nil {
		return nil, err
	}
	rooms := make([]roomdomain.Room, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		rooms = append(rooms, *item)
	}
	return rooms, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id snowflake.ID, req roomdomain.ChangeStatusRequest) (roomdomain.Room, error) {
	if !roomdomain.ValidStatus(req.Status) {
		return roomdomain.Room{}, roomdomain.ErrUnknownStatus
	}

	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return roomdomain.Room{}, roomdomain.ErrNotFound
	}

	var updated roomdomain.Room
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room roomdomain.Room
		if err := lockForUpdate(tx).WithContext(ctx).
			Where("id = ? AND tenant_id = ?", id, scope.TenantID).
			First(&room).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return roomdomain.ErrNotFound
			}
			return err
		}

		if !roomdomain.CanTransition(room.Status, req.Status) {
			return roomdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Model(&roomdomain.Room{}).
			Where("id = ?", room.ID).
			Updates(map[string]any{
				"status":      req.Status,
				"status_note": strings.TrimSpace(req.Note),
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}

		room.Status = req.Status
		room.StatusNote = strings.TrimSpace(req.Note)
		room.UpdatedAt = now
		updated = room
		return nil
	})
	if err != nil {
		return roomdomain.Room{}, err
	}

	s.bus.Publish(ctx, events.Event{
		Name:       events.RoomStatusChanged,
		TenantID:   updated.TenantID,
		PropertyID: updated.PropertyID,
		Actor:      tenantctx.Actor(ctx),
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"room_id": updated.ID.String(),
			"number":  updated.Number,
			"status":  string(updated.Status),
		},
	})

	return updated, nil
}

// TransitionWithin is the check-in/check-out side-effect path. The caller
// owns the transaction; the room row is locked before the edge is checked.
func (s *Service) TransitionWithin(ctx context.Context, tx *gorm.DB, id snowflake.ID, target roomdomain.RoomStatus) error {
	var room roomdomain.Room
	if err := lockForUpdate(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&room).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return roomdomain.ErrNotFound
		}
		return err
	}

	if !roomdomain.CanTransition(room.Status, target) {
		return roomdomain.ErrInvalidTransition
	}

	return tx.WithContext(ctx).Model(&roomdomain.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]any{
			"status":     target,
			"updated_at": s.clock.Now(),
		}).Error
}

// lockForUpdate row-locks on engines that support it; sqlite serializes
// writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
