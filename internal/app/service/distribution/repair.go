package distribution

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/logctx"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

// RepairRequest scopes a delete-and-recreate of distribution rows for
// one calendar day. Date is YYYY-MM-DD, empty meaning today; OperatorID
// identifies who ordered the repair.
type RepairRequest struct {
	Date       string
	Scope      *subsvc.Scope
	OperatorID string
}

type RepairResult struct {
	Date      string     `json:"date"`
	Removed   int        `json:"removed"`
	RunResult *RunResult `json:"run_result"`
}

// Repair is the only sanctioned corrective path for distribution rows.
// It removes the day's records for the scope together with their wallet
// credits, logs what it removed, and re-runs the engine for the same
// day. TokenAmount is never mutated in place.
func (s *Service) Repair(ctx context.Context, req *RepairRequest) (*RepairResult, error) {
	if req == nil || req.OperatorID == "" {
		return nil, fmt.Errorf("repair: operator id required")
	}
	dateKey, _, _, err := s.day(req.Date)
	if err != nil {
		return nil, err
	}

	var removed []*models.TokenDistribution
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := scopeDay(tx, dateKey, req.Scope)
		if err := q.Find(&removed).Error; err != nil {
			return fmt.Errorf("failed to load distributions: %w", err)
		}
		if len(removed) == 0 {
			return nil
		}

		for _, dist := range removed {
			if dist.Status != types.DistributionStatusCompleted {
				continue
			}
			// Reverse the credit so the recreate starts from a clean
			// ledger: drop the ledger row and decrement the balance.
			creditID := CreditTransactionID(dist.PlanID, dist.DistributionDate, dist.SubscriptionID)
			res := tx.Where("id = ?", creditID).Delete(&models.WalletTransaction{})
			if res.Error != nil {
				return fmt.Errorf("failed to remove ledger entry %s: %w", creditID, res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			err := tx.Model(&models.UserWallet{}).
				Where("user_id = ?", dist.UserID).
				Updates(map[string]any{
					"tic_balance": gorm.Expr("tic_balance - ?", dist.TokenAmount),
					"updated_at":  time.Now(),
				}).Error
			if err != nil {
				return fmt.Errorf("failed to reverse credit for %s: %w", dist.ID, err)
			}
		}

		ids := make([]string, 0, len(removed))
		for _, dist := range removed {
			ids = append(ids, dist.ID)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.TokenDistribution{}).Error; err != nil {
			return fmt.Errorf("failed to delete distributions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repair aborted: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("repair removed distributions",
		"date", dateKey, "removed", len(removed), "operator_id", req.OperatorID)

	runResult, err := s.Run(ctx, &RunRequest{Date: dateKey, Scope: req.Scope})
	if err != nil {
		return nil, err
	}

	var recreated []*models.TokenDistribution
	if err := scopeDay(s.db.WithContext(ctx), dateKey, req.Scope).Find(&recreated).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to load recreated distributions", "err", err)
	}

	repairLog := &models.DistributionRepairLog{
		ID:               tool.GenerateUUIDV7(),
		DistributionDate: dateKey,
		OperatorID:       req.OperatorID,
		Removed:          datatypes.NewJSONType(removed),
		Recreated:        datatypes.NewJSONType(recreated),
		Extra: datatypes.JSONMap{
			"recreated": runResult.Created,
			"skipped":   runResult.SkippedExisting + runResult.SkippedZeroAmount,
			"failed":    runResult.Failed,
		},
	}
	if req.Scope != nil {
		repairLog.UserID = req.Scope.UserID
		repairLog.SubscriptionID = req.Scope.SubscriptionID
	}
	if err := s.db.WithContext(ctx).Create(repairLog).Error; err != nil {
		// The repair itself succeeded; a lost audit row is worth a loud
		// log line but not a failed response.
		logctx.FromCtx(ctx, s.log).Errorw("failed to save repair log", "err", err)
	}

	return &RepairResult{Date: dateKey, Removed: len(removed), RunResult: runResult}, nil
}

// scopeDay narrows a distribution query to one day and an optional
// user/subscription scope.
func scopeDay(q *gorm.DB, dateKey string, scope *subsvc.Scope) *gorm.DB {
	q = q.Model(&models.TokenDistribution{}).Where("distribution_date = ?", dateKey)
	if scope != nil {
		if scope.UserID != "" {
			q = q.Where("user_id = ?", scope.UserID)
		}
		if scope.SubscriptionID != "" {
			q = q.Where("subscription_id = ?", scope.SubscriptionID)
		}
	}
	return q
}
