// Package seed installs the built-in automation rules every property
// ships with. Seeding is idempotent: existing system rules are left
// untouched, missing ones are inserted on startup.
package seed

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type systemRule struct {
	Name       string
	Trigger    string
	Conditions []automationdomain.Condition
	Actions    []automationdomain.Action
	Priority   int
}

// systemRules are the rules every property gets. Staff can tune their
// conditions but cannot delete or deactivate them.
var systemRules = []systemRule{
	{
		Name:    "Housekeeping after check-out",
		Trigger: events.ReservationCheckOut,
		Actions: []automationdomain.Action{{
			Kind:     automationdomain.ActionCreateTask,
			Title:    "Limpieza de habitacion",
			TaskType: "cleaning",
			Priority: "high",
		}},
		Priority: 100,
	},
	{
		Name:    "Inspection after maintenance block",
		Trigger: events.RoomStatusChanged,
		Conditions: []automationdomain.Condition{{
			Kind:  automationdomain.CondFieldEquals,
			Field: "status",
			Value: "maintenance",
		}},
		Actions: []automationdomain.Action{{
			Kind:     automationdomain.ActionCreateTask,
			Title:    "Revision de mantenimiento",
			TaskType: "maintenance",
			Priority: "medium",
		}},
		Priority: 50,
	},
}

type SeederParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Seeder struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewSeeder(p SeederParam) *Seeder {
	return &Seeder{
		db:    p.DB,
		log:   p.Log.Named("seed"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Run ensures every property carries the system rules.
func (s *Seeder) Run(ctx context.Context) error {
	var properties []propertydomain.Property
	if err := s.db.WithContext(ctx).Find(&properties).Error; err != nil {
		return err
	}
	for _, property := range properties {
		if err := s.EnsureSystemRules(ctx, property.TenantID, property.ID); err != nil {
			s.log.Warn("seeding system rules failed",
				zap.String("property_id", property.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// EnsureSystemRules inserts missing system rules for one property.
func (s *Seeder) EnsureSystemRules(ctx context.Context, tenantID, propertyID snowflake.ID) error {
	for _, def := range systemRules {
		var count int64
		err := s.db.WithContext(ctx).
			Model(&automationdomain.AutomationRule{}).
			Where("tenant_id = ? AND property_id = ? AND name = ? AND is_system = ?",
				tenantID, propertyID, def.Name, true).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		conditions, err := json.Marshal(def.Conditions)
		if err != nil {
			return err
		}
		actions, err := json.Marshal(def.Actions)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		rule := automationdomain.AutomationRule{
			ID:         s.genID.Generate(),
			TenantID:   tenantID,
			PropertyID: propertyID,
			Name:       def.Name,
			Trigger:    def.Trigger,
			Conditions: conditions,
			Actions:    actions,
			Priority:   def.Priority,
			IsActive:   true,
			IsSystem:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(&rule).Error; err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("seed",
	fx.Provide(NewSeeder),
	fx.Invoke(func(lc fx.Lifecycle, s *Seeder) {
		lc.Append(fx.Hook{OnStart: s.Run})
	}),
)
