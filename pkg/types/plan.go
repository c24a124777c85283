package types

// TokenSymbol identifies which wallet balance a ledger entry touches.
// An empty symbol means the USD total balance.
type TokenSymbol string

const (
	TokenTIC TokenSymbol = "TIC"
	TokenGIC TokenSymbol = "GIC"
)

// PlanAllocation maps a subscription plan to its yearly token grant.
// Plans with a zero allocation never accrue tokens.
type PlanAllocation struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	YearlyTokens int64  `json:"yearly_tokens" mapstructure:"yearly_tokens"`
	DurationDays int64  `json:"duration_days" mapstructure:"duration_days"`
}
