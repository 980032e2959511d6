package task

import (
	"github.com/posadahq/posada/internal/task/service"
	"go.uber.org/fx"
)

var Module = fx.Module("task",
	fx.Provide(service.NewService),
)
