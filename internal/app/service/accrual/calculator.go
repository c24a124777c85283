package accrual

import (
	"github.com/shopspring/decimal"

	"github.com/ticglobal/tokenledger/pkg/config"
)

// storedScale is the number of fractional digits written to the ledger.
// Rounding happens exactly once, at persistence, so two independent
// computations of the same daily amount always store the same value.
const storedScale = 4

var daysPerYear = decimal.NewFromInt(365)

// Calculator maps a plan to its exact daily token accrual.
type Calculator struct {
	cfg *config.Config
}

func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// DailyAmount returns yearlyTokens/365 at full decimal precision.
// Unknown plans and plans without a token allocation yield zero, which
// the engine treats as "not token-accruing", never as an error.
func (c *Calculator) DailyAmount(planID string) decimal.Decimal {
	plan := c.cfg.GetPlanByID(planID)
	if plan == nil || plan.YearlyTokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(plan.YearlyTokens).Div(daysPerYear)
}

// StoredDailyAmount is the value the engine persists: the exact daily
// amount rounded to the stored scale.
func (c *Calculator) StoredDailyAmount(planID string) decimal.Decimal {
	return c.DailyAmount(planID).Round(storedScale)
}
