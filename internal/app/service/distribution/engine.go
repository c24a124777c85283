package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticglobal/tokenledger/internal/app/service/accrual"
	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/app/service/wallet"
	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/logctx"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

// Service is the distribution engine. It owns creation of
// token_distribution rows; correctness under overlapping triggers is
// enforced entirely at the store via the (subscription_id,
// distribution_date) unique index and idempotent wallet credits.
type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	log    *zap.SugaredLogger
	calc   *accrual.Calculator
	subs   *subsvc.Service
	wallet *wallet.Service
	loc    *time.Location
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, calc *accrual.Calculator, subs *subsvc.Service, w *wallet.Service) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, db: db, log: log, calc: calc, subs: subs, wallet: w, loc: loc}, nil
}

type RunDetailStatus string

const (
	RunDetailCreated           RunDetailStatus = "created"
	RunDetailSkippedExisting   RunDetailStatus = "skipped_existing"
	RunDetailSkippedZeroAmount RunDetailStatus = "skipped_zero_amount"
	RunDetailFailed            RunDetailStatus = "failed"
)

type RunDetail struct {
	SubscriptionID string          `json:"subscription_id"`
	UserID         string          `json:"user_id"`
	PlanID         string          `json:"plan_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         RunDetailStatus `json:"status"`
	Reason         string          `json:"reason,omitempty"`
}

type RunRequest struct {
	// Date selects the calendar day as YYYY-MM-DD, interpreted in the
	// reference timezone; empty means "today".
	Date  string
	Scope *subsvc.Scope
}

type RunResult struct {
	Date                        string          `json:"date"`
	TotalSubscriptionsConsidered int            `json:"total_subscriptions_considered"`
	Created                     int             `json:"created"`
	SkippedExisting             int             `json:"skipped_existing"`
	SkippedZeroAmount           int             `json:"skipped_zero_amount"`
	Failed                      int             `json:"failed"`
	TokensDistributed           decimal.Decimal `json:"tokens_distributed"`
	Details                     []*RunDetail    `json:"details"`
}

// day resolves a YYYY-MM-DD key to its calendar day in the reference
// timezone. An explicit key names the day verbatim; it is never shifted
// through another zone.
func (s *Service) day(date string) (dateKey string, dayStart, dayEnd time.Time, err error) {
	if date == "" {
		now := time.Now().In(s.loc)
		dayStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	} else {
		dayStart, err = time.ParseInLocation(time.DateOnly, date, s.loc)
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
	}
	return dayStart.Format(time.DateOnly), dayStart, dayStart.Add(24 * time.Hour), nil
}

// Run distributes the daily accrual to every active subscription for
// the requested day. Re-running for the same day is always safe: each
// (subscription, day) tuple yields at most one distribution and one
// credit, and one subscription's failure never blocks the rest. Only a
// systemic store failure aborts the run.
func (s *Service) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	if req == nil {
		req = &RunRequest{}
	}
	dateKey, dayStart, dayEnd, err := s.day(req.Date)
	if err != nil {
		return nil, err
	}

	subs, err := s.subs.ActiveOn(ctx, dayStart, dayEnd, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("distribution run aborted: %w", err)
	}

	result := &RunResult{
		Date:                        dateKey,
		TotalSubscriptionsConsidered: len(subs),
		TokensDistributed:           decimal.Zero,
	}

	log := logctx.FromCtx(ctx, s.log)
	log.Infow("distribution run started", "date", dateKey, "subscriptions", len(subs))

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			// Stop scheduling further subscriptions; committed work
			// stays valid and a retry will skip it.
			log.Warnw("distribution run interrupted", "date", dateKey, "processed", len(result.Details))
			break
		}
		detail := s.distributeOne(ctx, sub, dateKey)
		result.Details = append(result.Details, detail)
		switch detail.Status {
		case RunDetailCreated:
			result.Created++
			result.TokensDistributed = result.TokensDistributed.Add(detail.Amount)
		case RunDetailSkippedExisting:
			result.SkippedExisting++
		case RunDetailSkippedZeroAmount:
			result.SkippedZeroAmount++
		case RunDetailFailed:
			result.Failed++
		}
	}

	log.Infow("distribution run finished",
		"date", dateKey,
		"created", result.Created,
		"skipped_existing", result.SkippedExisting,
		"skipped_zero_amount", result.SkippedZeroAmount,
		"failed", result.Failed,
		"tokens", result.TokensDistributed.String(),
	)
	return result, nil
}

// distributeOne processes a single (subscription, day) tuple. The
// pending insert is the atomic idempotency gate; the credit and the
// completed flip share one transaction, and the credit itself is
// replay-safe through its deterministic transaction id.
func (s *Service) distributeOne(ctx context.Context, sub *models.Subscription, dateKey string) *RunDetail {
	detail := &RunDetail{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Amount:         decimal.Zero,
	}

	amount := s.calc.StoredDailyAmount(sub.PlanID)
	if !amount.IsPositive() {
		detail.Status = RunDetailSkippedZeroAmount
		detail.Reason = fmt.Sprintf("no token allocation for plan %s", sub.PlanID)
		return detail
	}
	detail.Amount = amount

	dist := &models.TokenDistribution{
		ID:               tool.GenerateUUIDV7(),
		UserID:           sub.UserID,
		SubscriptionID:   sub.ID,
		PlanID:           sub.PlanID,
		PlanName:         sub.PlanName,
		TokenAmount:      amount,
		DistributionDate: dateKey,
		Status:           types.DistributionStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(dist).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			detail.Status = RunDetailSkippedExisting
			detail.Reason = "already distributed for this day"
			return detail
		}
		detail.Status = RunDetailFailed
		detail.Reason = fmt.Sprintf("failed to create distribution record: %v", err)
		return detail
	}

	creditID := CreditTransactionID(sub.PlanID, dateKey, sub.ID)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.wallet.CreditTx(ctx, tx, &wallet.CreditRequest{
			UserID:          sub.UserID,
			Token:           types.TokenTIC,
			Amount:          amount,
			TransactionID:   creditID,
			Type:            types.TransactionTypeDistribution,
			Description:     fmt.Sprintf("Daily TIC distribution - %s (%s TIC)", sub.PlanName, amount.String()),
			RelatedEntityID: dist.ID,
		})
		if err != nil {
			return err
		}
		return tx.Model(&models.TokenDistribution{}).
			Where("id = ?", dist.ID).
			Update("status", types.DistributionStatusCompleted).Error
	})
	if err != nil {
		// Keep the record for audit; repair is the only corrective path.
		if uerr := s.db.WithContext(ctx).Model(&models.TokenDistribution{}).
			Where("id = ?", dist.ID).
			Update("status", types.DistributionStatusFailed).Error; uerr != nil {
			logctx.FromCtx(ctx, s.log).Errorw("failed to mark distribution failed",
				"distribution_id", dist.ID, "err", uerr)
		}
		detail.Status = RunDetailFailed
		detail.Reason = fmt.Sprintf("wallet credit failed: %v", err)
		return detail
	}

	detail.Status = RunDetailCreated
	return detail
}

// CreditTransactionID is the deterministic ledger id for a daily
// distribution credit. Deriving it from (plan, date, subscription)
// makes the credit side idempotent under retries.
func CreditTransactionID(planID, dateKey, subscriptionID string) string {
	return fmt.Sprintf("daily_tic_%s_%s_%s", planID, dateKey, subscriptionID)
}
