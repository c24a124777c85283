package accrual

import "go.uber.org/fx"

// Module exposes the accrual calculator via Fx.
var Module = fx.Options(
	fx.Provide(NewCalculator),
)
