package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	roomtyperepo repository.Repository[roomtypedomain.RoomType]
}

func NewService(p ServiceParam) roomtypedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("roomtype.service"),
		genID: p.GenID,

		roomtyperepo: repository.ProvideStore[roomtypedomain.RoomType](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req roomtypedomain.CreateRoomTypeRequest) (roomtypedomain.RoomType, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return roomtypedomain.RoomType{}, roomtypedomain.ErrNotFound
	}

	if req.MaxAdults <= 0 || req.MaxChildren < 0 {
		return roomtypedomain.RoomType{}, roomtypedomain.ErrInvalidCapacity
	}
	if req.BasePrice.IsNegative() || req.BasePrice.IsZero() {
		return roomtypedomain.RoomType{}, roomtypedomain.ErrInvalidPrice
	}

	now := time.Now().UTC()
	roomType := roomtypedomain.RoomType{
		ID:          s.genID.Generate(),
		TenantID:    scope.TenantID,
		PropertyID:  scope.PropertyID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		MaxAdults:   req.MaxAdults,
		MaxChildren: req.MaxChildren,
		BasePrice:   req.BasePrice,
		Currency:    currencyOr(req.Currency, "PEN"),
		Beds:        req.Beds,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roomtyperepo.Create(ctx, &roomType); err != nil {
		return roomtypedomain.RoomType{}, err
	}
	return roomType, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req roomtypedomain.UpdateRoomTypeRequest) (roomtypedomain.RoomType, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return roomtypedomain.RoomType{}, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.MaxAdults != nil {
		if *req.MaxAdults <= 0 {
			return roomtypedomain.RoomType{}, roomtypedomain.ErrInvalidCapacity
		}
		updates["max_adults"] = *req.MaxAdults
	}
	if req.MaxChildren != nil {
		if *req.MaxChildren < 0 {
			return roomtypedomain.RoomType{}, roomtypedomain.ErrInvalidCapacity
		}
		updates["max_children"] = *req.MaxChildren
	}
	if req.BasePrice != nil {
		if req.BasePrice.Cmp(decimal.Zero) <= 0 {
			return roomtypedomain.RoomType{}, roomtypedomain.ErrInvalidPrice
		}
		// forward-only: historical reservations keep their snapshot
		updates["base_price"] = *req.BasePrice
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := s.roomtyperepo.Update(ctx, current.ID.String(), updates); err != nil {
		return roomtypedomain.RoomType{}, err
	}
	return s.GetByID(ctx, id)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (roomtypedomain.RoomType, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return roomtypedomain.RoomType{}, roomtypedomain.ErrNotFound
	}

	item, err := s.roomtyperepo.FindOne(ctx, &roomtypedomain.RoomType{ID: id, TenantID: scope.TenantID})
	if err != nil {
		return roomtypedomain.RoomType{}, err
	}
	if item == nil {
		return roomtypedomain.RoomType{}, roomtypedomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context) ([]roomtypedomain.RoomType, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, roomtypedomain.ErrNotFound
	}

	items, err := s.roomtyperepo.Find(ctx, &roomtypedomain.RoomType{
		TenantID:   scope.TenantID,
		PropertyID: scope.PropertyID,
	})
	if err != nil {
		return nil, err
	}
	roomTypes := make([]roomtypedomain.RoomType, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		roomTypes = append(roomTypes, *item)
	}
	return roomTypes, nil
}

func currencyOr(value, def string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}
