package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Lookup propertydomain.IdentityLookup `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	propertyrepo repository.Repository[propertydomain.Property]
	guestrepo    repository.Repository[propertydomain.Guest]
	lookup       propertydomain.IdentityLookup
}

func NewService(p ServiceParam) propertydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("property.service"),
		genID: p.GenID,

		propertyrepo: repository.ProvideStore[propertydomain.Property](p.DB),
		guestrepo:    repository.ProvideStore[propertydomain.Guest](p.DB),
		lookup:       p.Lookup,
	}
}

func (s *Service) CreateProperty(ctx context.Context, req propertydomain.CreatePropertyRequest) (propertydomain.Property, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return propertydomain.Property{}, propertydomain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return propertydomain.Property{}, propertydomain.ErrPropertyNotFound
	}

	now := time.Now().UTC()
	property := propertydomain.Property{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      name,
		Slug:      slug.Make(name),
		Timezone:  defaulted(req.Timezone, "America/Lima"),
		Currency:  defaulted(req.Currency, "PEN"),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.propertyrepo.Create(ctx, &property); err != nil {
		return propertydomain.Property{}, err
	}
	return property, nil
}

func (s *Service) GetProperty(ctx context.Context, id snowflake.ID) (propertydomain.Property, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return propertydomain.Property{}, propertydomain.ErrInvalidTenant
	}

	item, err := s.propertyrepo.FindOne(ctx, &propertydomain.Property{ID: id, TenantID: tenantID})
	if err != nil {
		return propertydomain.Property{}, err
	}
	if item == nil {
		return propertydomain.Property{}, propertydomain.ErrPropertyNotFound
	}
	return *item, nil
}

func (s *Service) ListProperties(ctx context.Context) ([]propertydomain.Property, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, propertydomain.ErrInvalidTenant
	}

	items, err := s.propertyrepo.Find(ctx, &propertydomain.Property{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	properties := make([]propertydomain.Property, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		properties = append(properties, *item)
	}
	return properties, nil
}

func (s *Service) CreateGuest(ctx context.Context, req propertydomain.CreateGuestRequest) (propertydomain.Guest, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return propertydomain.Guest{}, propertydomain.ErrInvalidTenant
	}

	docNumber := strings.TrimSpace(req.DocumentNumber)
	if docNumber == "" {
		return propertydomain.Guest{}, propertydomain.ErrInvalidDocument
	}

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" && s.lookup != nil {
		record, err := s.lookup.Lookup(ctx, req.DocumentType, docNumber)
		if err != nil {
			s.log.Warn("identity lookup failed",
				zap.String("document_number", docNumber),
				zap.Error(err),
			)
		} else {
			fullName = record.FullName
		}
	}
	if fullName == "" {
		return propertydomain.Guest{}, propertydomain.ErrInvalidDocument
	}

	now := time.Now().UTC()
	guest := propertydomain.Guest{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		DocumentType:   req.DocumentType,
		DocumentNumber: docNumber,
		FullName:       fullName,
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Nationality:    strings.TrimSpace(req.Nationality),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.guestrepo.Create(ctx, &guest); err != nil {
		return propertydomain.Guest{}, err
	}
	return guest, nil
}

func (s *Service) GetGuest(ctx context.Context, id snowflake.ID) (propertydomain.Guest, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return propertydomain.Guest{}, propertydomain.ErrInvalidTenant
	}

	item, err := s.guestrepo.FindOne(ctx, &propertydomain.Guest{ID: id, TenantID: tenantID})
	if err != nil {
		return propertydomain.Guest{}, err
	}
	if item == nil {
		return propertydomain.Guest{}, propertydomain.ErrGuestNotFound
	}
	return *item, nil
}

func defaulted(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	return value
}
