package automation

import (
	"github.com/posadahq/posada/internal/automation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("automation",
	fx.Provide(
		service.NewService,
		service.NewEngine,
	),
	// the engine subscribes to the bus in its constructor; invoking it
	// here forces construction even though nothing else depends on it
	fx.Invoke(func(*service.Engine) {}),
)
