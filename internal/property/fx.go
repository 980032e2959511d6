package property

import (
	"github.com/posadahq/posada/internal/property/service"
	"go.uber.org/fx"
)

var Module = fx.Module("property.service",
	fx.Provide(service.NewIdentityLookup),
	fx.Provide(service.NewService),
)
