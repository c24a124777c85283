package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ticglobal/tokenledger/pkg/types"
)

// WalletTransaction is one append-only ledger entry against a user's
// wallet. Amount is stored positive; Type.Sign() gives the direction.
//
// Engine-originated credits use a transaction id derived from
// (plan, date, subscription), so a retried credit hits the primary key
// and becomes a no-op instead of a double credit.
type WalletTransaction struct {
	ID     string                `gorm:"column:id;type:varchar(128);primary_key" json:"id"`
	UserID string                `gorm:"column:user_id;type:varchar(64);not null;index:idx_wallet_txn_user_id" json:"user_id"`
	Type   types.TransactionType `gorm:"column:type;type:varchar(64);not null" json:"type"`
	// Token selects the balance the entry applies to; empty means the
	// USD total balance.
	Token  types.TokenSymbol `gorm:"column:token;type:varchar(16)" json:"token"`
	Amount decimal.Decimal   `gorm:"column:amount;type:numeric(20,8);not null" json:"amount"`
	// FeeAmount is the processing fee already deducted from Amount on
	// withdrawals; zero elsewhere.
	FeeAmount decimal.Decimal         `gorm:"column:fee_amount;type:numeric(20,8);not null;default:0" json:"fee_amount"`
	Currency  string                  `gorm:"column:currency;type:varchar(16)" json:"currency"`
	Status    types.TransactionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	// RelatedEntityID links back to the originating row, e.g. the
	// token_distribution id for distribution credits.
	RelatedEntityID string `gorm:"column:related_entity_id;type:varchar(128)" json:"related_entity_id"`
	Description     string `gorm:"column:description;type:text" json:"description"`
	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}

// SignedAmount is the amount with its balance direction applied.
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type.Sign() < 0 {
		return t.Amount.Neg()
	}
	return t.Amount
}
