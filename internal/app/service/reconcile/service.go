package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/logctx"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

// Service recomputes wallet balances from ledger truth and corrects
// drift in the cached user_wallet row. It exclusively owns corrective
// wallet rewrites; every correction leaves an audit row.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// FieldResult is one wallet field the reconciler inspected.
type FieldResult struct {
	Field      string          `json:"field"`
	Previous   decimal.Decimal `json:"previous"`
	Recomputed decimal.Decimal `json:"recomputed"`
	Corrected  bool            `json:"corrected"`
}

type Result struct {
	UserID    string         `json:"user_id"`
	Corrected bool           `json:"corrected"`
	Fields    []*FieldResult `json:"fields"`
}

// Reconcile recomputes one user's balances from ledger truth:
//
//	tic   = completed distributions + signed TIC ledger entries
//	gic   = signed GIC ledger entries
//	total = signed USD ledger entries
//
// Distribution credits appear in both tables; their ledger rows are
// excluded from the TIC sum to avoid double counting.
//
// The wallet row is read before the sums and the corrective write is
// guarded on the values read, so a credit committing anywhere in
// between fails the guard instead of being erased. A failed guard
// defers the correction to the next pass.
func (s *Service) Reconcile(ctx context.Context, userID, triggeredBy string) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("reconcile: user id required")
	}

	result := &Result{UserID: userID}
	deferred := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.UserWallet
		err := tx.Where("user_id = ?", userID).First(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load wallet: %w", err)
		}
		cached := map[string]decimal.Decimal{
			"tic_balance":   current.TicBalance,
			"gic_balance":   current.GicBalance,
			"total_balance": current.TotalBalance,
		}

		var distSum decimal.Decimal
		row := tx.Model(&models.TokenDistribution{}).
			Select("COALESCE(SUM(token_amount), 0)").
			Where("user_id = ?", userID).
			Where("status = ?", types.DistributionStatusCompleted).
			Row()
		if err := row.Scan(&distSum); err != nil {
			return fmt.Errorf("failed to sum distributions: %w", err)
		}

		sums, err := sumLedger(tx, userID)
		if err != nil {
			return err
		}

		recomputed := map[string]decimal.Decimal{
			"tic_balance":   distSum.Add(sums[types.TokenTIC]),
			"gic_balance":   sums[types.TokenGIC],
			"total_balance": sums[""],
		}

		updates := map[string]any{}
		for _, field := range []string{"tic_balance", "gic_balance", "total_balance"} {
			fr := &FieldResult{Field: field, Previous: cached[field], Recomputed: recomputed[field]}
			if !cached[field].Equal(recomputed[field]) {
				fr.Corrected = true
				result.Corrected = true
				updates[field] = recomputed[field]
			}
			result.Fields = append(result.Fields, fr)
		}

		if !result.Corrected {
			return nil
		}

		if current.UserID == "" {
			w := &models.UserWallet{
				UserID:       userID,
				TicBalance:   recomputed["tic_balance"],
				GicBalance:   recomputed["gic_balance"],
				TotalBalance: recomputed["total_balance"],
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(w)
			if res.Error != nil {
				return fmt.Errorf("failed to create corrected wallet: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				deferred = true
			}
		} else {
			updates["updated_at"] = time.Now()
			ok, err := correctIfUnchanged(tx, userID, cached, updates)
			if err != nil {
				return err
			}
			if !ok {
				deferred = true
			}
		}

		if deferred {
			result.Corrected = false
			for _, fr := range result.Fields {
				fr.Corrected = false
			}
			return nil
		}

		for _, fr := range result.Fields {
			if !fr.Corrected {
				continue
			}
			corr := &models.BalanceCorrection{
				ID:          tool.GenerateUUIDV7(),
				UserID:      userID,
				Field:       fr.Field,
				Previous:    fr.Previous,
				Recomputed:  fr.Recomputed,
				TriggeredBy: triggeredBy,
			}
			if err := tx.Create(corr).Error; err != nil {
				return fmt.Errorf("failed to record correction: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if deferred {
		logctx.FromCtx(ctx, s.log).Warnw("wallet changed during reconcile, correction deferred",
			"user_id", userID, "triggered_by", triggeredBy)
	} else if result.Corrected {
		logctx.FromCtx(ctx, s.log).Warnw("balance drift corrected",
			"user_id", userID, "triggered_by", triggeredBy)
	}
	return result, nil
}

// correctIfUnchanged rewrites the wallet only if it still holds the
// balances read at the start of the pass. The predicate is what keeps
// the reconciler from overwriting a credit that committed after the
// read under READ COMMITTED.
func correctIfUnchanged(tx *gorm.DB, userID string, cached map[string]decimal.Decimal, updates map[string]any) (bool, error) {
	res := tx.Model(&models.UserWallet{}).
		Where("user_id = ?", userID).
		Where("tic_balance = ?", cached["tic_balance"]).
		Where("gic_balance = ?", cached["gic_balance"]).
		Where("total_balance = ?", cached["total_balance"]).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to correct wallet: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// sumLedger aggregates completed wallet transactions per token with
// the sign of each transaction type applied. Distribution rows are
// excluded; their amounts come from the distribution table.
func sumLedger(tx *gorm.DB, userID string) (map[types.TokenSymbol]decimal.Decimal, error) {
	var rows []struct {
		Token types.TokenSymbol
		Type  types.TransactionType
		Total decimal.Decimal
	}
	err := tx.Model(&models.WalletTransaction{}).
		Select("token, type, COALESCE(SUM(amount), 0) as total").
		Where("user_id = ?", userID).
		Where("status = ?", types.TransactionStatusCompleted).
		Where("type != ?", types.TransactionTypeDistribution).
		Group("token").Group("type").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger transactions: %w", err)
	}

	sums := map[types.TokenSymbol]decimal.Decimal{
		types.TokenTIC: decimal.Zero,
		types.TokenGIC: decimal.Zero,
		"":             decimal.Zero,
	}
	for _, r := range rows {
		signed := r.Total
		if r.Type.Sign() < 0 {
			signed = signed.Neg()
		}
		sums[r.Token] = sums[r.Token].Add(signed)
	}
	return sums, nil
}

// BatchUserError captures one user's failure inside a batch run.
type BatchUserError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type BatchResult struct {
	Processed int               `json:"processed"`
	Corrected int               `json:"corrected"`
	Failed    int               `json:"failed"`
	Errors    []*BatchUserError `json:"errors,omitempty"`
}

// ReconcileAll reconciles every user that appears in either the wallet
// cache or the distribution ledger. One user's failure never aborts
// the batch.
func (s *Service) ReconcileAll(ctx context.Context, triggeredBy string) (*BatchResult, error) {
	var userIDs []string
	err := s.db.WithContext(ctx).Raw(`
SELECT user_id FROM user_wallet
UNION
SELECT user_id FROM token_distribution
`).Scan(&userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	batch := &BatchResult{}
	for _, uid := range userIDs {
		if err := ctx.Err(); err != nil {
			break
		}
		res, err := s.Reconcile(ctx, uid, triggeredBy)
		batch.Processed++
		if err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, &BatchUserError{UserID: uid, Error: err.Error()})
			continue
		}
		if res.Corrected {
			batch.Corrected++
		}
	}
	return batch, nil
}
