package distribution

import "go.uber.org/fx"

// Module exposes the distribution engine via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
