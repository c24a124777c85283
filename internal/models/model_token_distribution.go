package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ticglobal/tokenledger/pkg/types"
)

// TokenDistribution is one daily accrual event for one subscription.
// The unique index on (subscription_id, distribution_date) is the
// idempotency guard: concurrent triggers racing on the same day have
// exactly one insert succeed, the rest observe a duplicate-key error.
type TokenDistribution struct {
	ID             string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string `gorm:"column:user_id;type:varchar(64);not null;index:idx_distribution_user_id" json:"user_id"`
	SubscriptionID string `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_subscription_distribution_date,priority:1" json:"subscription_id"`
	PlanID         string `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	PlanName       string `gorm:"column:plan_name;type:varchar(128);not null" json:"plan_name"`
	// TokenAmount is the daily accrual rounded to 4 decimal places at
	// persistence; identical inputs always persist identical values.
	TokenAmount decimal.Decimal `gorm:"column:token_amount;type:numeric(20,8);not null" json:"token_amount"`
	// DistributionDate is a calendar date (YYYY-MM-DD) in the reference
	// timezone, not a timestamp.
	DistributionDate string                   `gorm:"column:distribution_date;type:varchar(10);not null;uniqueIndex:idx_subscription_distribution_date,priority:2;index:idx_distribution_date" json:"distribution_date"`
	Status           types.DistributionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is managed by GORM and records the update time.
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenDistribution) TableName() string {
	return "token_distribution"
}
