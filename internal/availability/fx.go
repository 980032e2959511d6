package availability

import (
	"github.com/posadahq/posada/internal/availability/service"
	"go.uber.org/fx"
)

var Module = fx.Module("availability.service",
	fx.Provide(service.NewService),
)
