package migration

import (
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/internal/config"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		return conn.AutoMigrate(
			&propertydomain.Property{},
			&propertydomain.Guest{},
			&roomtypedomain.RoomType{},
			&roomdomain.Room{},
			&pricingdomain.Season{},
			&pricingdomain.DayOfWeekPricing{},
			&pricingdomain.RatePlan{},
			&pricingdomain.Promotion{},
			&reservationdomain.Reservation{},
			&reservationdomain.Payment{},
			&taskdomain.Task{},
			&invoicedomain.Invoice{},
			&automationdomain.AutomationRule{},
			&automationdomain.AutomationLog{},
		)
	}),
)
