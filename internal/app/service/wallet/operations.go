package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ticglobal/tokenledger/pkg/logctx"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

// Deposit credits a completed USD deposit to the total balance.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal, currency string) (string, error) {
	txnID := tool.GenerateUUIDV7()
	err := s.Credit(ctx, &CreditRequest{
		UserID:        userID,
		Amount:        amount,
		TransactionID: txnID,
		Type:          types.TransactionTypeDeposit,
		Currency:      currency,
		Description:   fmt.Sprintf("Deposit (%s %s)", amount.StringFixed(2), currency),
	})
	if err != nil {
		return "", err
	}
	return txnID, nil
}

// WithdrawResult reports what a withdrawal debited and what the user
// receives after the processing fee.
type WithdrawResult struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}

// Withdraw debits the total balance by the gross amount. The processing
// fee rate comes from the payment-method configuration; the balance
// check rejects overdrafts before anything is written.
func (s *Service) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, currency string) (*WithdrawResult, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	feeRate := decimal.NewFromFloat(s.cfg.WithdrawalFeeRate)
	fee := amount.Mul(feeRate).Round(2)
	net := amount.Sub(fee)

	txnID := tool.GenerateUUIDV7()
	err := s.Debit(ctx, &DebitRequest{
		UserID:        userID,
		Amount:        amount,
		FeeAmount:     fee,
		TransactionID: txnID,
		Type:          types.TransactionTypeWithdrawal,
		Currency:      currency,
		Description:   fmt.Sprintf("Withdrawal (%s %s, fee %s)", amount.StringFixed(2), currency, fee.StringFixed(2)),
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("withdrawal completed",
		"user_id", userID, "amount", amount.String(), "fee", fee.String(), "net", net.String())
	return &WithdrawResult{TransactionID: txnID, Amount: amount, Fee: fee, NetAmount: net}, nil
}

// RankBonus credits a rank achievement bonus split evenly between TIC
// and GIC. The transaction ids derive from (rank, month, user), so a
// re-triggered distribution for the same month is a no-op.
func (s *Service) RankBonus(ctx context.Context, userID, rank string, total decimal.Decimal, month time.Time) error {
	if !total.IsPositive() {
		return ErrNonPositiveAmount
	}
	half := total.Div(decimal.NewFromInt(2)).Round(4)
	monthKey := month.Format("2006-01")
	base := fmt.Sprintf("rank_bonus_%s_%s_%s", strings.ToLower(rank), monthKey, userID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, part := range []struct {
			token types.TokenSymbol
			id    string
		}{
			{types.TokenTIC, base + "_tic"},
			{types.TokenGIC, base + "_gic"},
		} {
			err := s.CreditTx(ctx, tx, &CreditRequest{
				UserID:        userID,
				Token:         part.token,
				Amount:        half,
				TransactionID: part.id,
				Type:          types.TransactionTypeRankBonus,
				Description:   fmt.Sprintf("%s rank bonus for %s (%s %s)", rank, monthKey, half.String(), part.token),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
