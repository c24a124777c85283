package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceCorrection is the audit trail of the reconciler: one row per
// wallet field it overwrote, with the value it replaced.
type BalanceCorrection struct {
	ID          string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string          `gorm:"column:user_id;type:varchar(64);not null;index:idx_balance_correction_user_id" json:"user_id"`
	Field       string          `gorm:"column:field;type:varchar(64);not null" json:"field"`
	Previous    decimal.Decimal `gorm:"column:previous;type:numeric(20,8);not null" json:"previous"`
	Recomputed  decimal.Decimal `gorm:"column:recomputed;type:numeric(20,8);not null" json:"recomputed"`
	TriggeredBy string          `gorm:"column:triggered_by;type:varchar(128);not null" json:"triggered_by"`
	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
}

func (BalanceCorrection) TableName() string {
	return "balance_correction"
}
