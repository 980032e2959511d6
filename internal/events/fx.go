package events

import "go.uber.org/fx"

// Module wires the lifecycle event bus.
var Module = fx.Module("events",
	fx.Provide(
		NewBus,
		func(b *Bus) Publisher { return b },
	),
)
