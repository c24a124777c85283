package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ticglobal/tokenledger/pkg/types"
)

// UserWallet caches the per-user balances derived from the ledger.
// It is never the ground truth: at any quiescent point each balance
// must equal the signed sum of ledger rows, and the reconciler exists
// to detect and correct drift.
type UserWallet struct {
	UserID       string          `gorm:"column:user_id;type:varchar(64);primary_key" json:"user_id"`
	TicBalance   decimal.Decimal `gorm:"column:tic_balance;type:numeric(20,8);not null;default:0" json:"tic_balance"`
	GicBalance   decimal.Decimal `gorm:"column:gic_balance;type:numeric(20,8);not null;default:0" json:"gic_balance"`
	TotalBalance decimal.Decimal `gorm:"column:total_balance;type:numeric(20,8);not null;default:0" json:"total_balance"`
	// UpdatedAt is managed by GORM and records the update time.
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserWallet) TableName() string {
	return "user_wallet"
}

// Balance returns the cached balance for a token symbol; the empty
// symbol means the USD total balance.
func (w *UserWallet) Balance(token types.TokenSymbol) decimal.Decimal {
	if w == nil {
		return decimal.Zero
	}
	switch token {
	case types.TokenTIC:
		return w.TicBalance
	case types.TokenGIC:
		return w.GicBalance
	default:
		return w.TotalBalance
	}
}
