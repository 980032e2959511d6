package roomtype

import (
	"github.com/posadahq/posada/internal/roomtype/service"
	"go.uber.org/fx"
)

var Module = fx.Module("roomtype.service",
	fx.Provide(service.NewService),
)
