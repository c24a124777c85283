package reconcile

import "go.uber.org/fx"

// Module exposes the balance reconciler via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
