package invoice

import (
	"github.com/posadahq/posada/internal/invoice/provider"
	"github.com/posadahq/posada/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(
		provider.NewClient,
		service.NewService,
	),
)
