package distribution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/types"
)

// StatusResult reports distribution coverage for one calendar day, used
// by dashboards to show how much of the active base has been credited.
type StatusResult struct {
	Date                     string          `json:"date"`
	ActiveSubscriptions      int64           `json:"active_subscriptions"`
	DistributedSubscriptions int64           `json:"distributed_subscriptions"`
	FailedDistributions      int64           `json:"failed_distributions"`
	CoveragePercent          float64         `json:"coverage_percent"`
	TokensDistributed        decimal.Decimal `json:"tokens_distributed"`
}

// Status compares active subscriptions against existing completed
// distributions for a day.
func (s *Service) Status(ctx context.Context, date string) (*StatusResult, error) {
	dateKey, dayStart, dayEnd, err := s.day(date)
	if err != nil {
		return nil, err
	}

	active, err := s.subs.CountActiveOn(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var distributed int64
	if err := s.db.WithContext(ctx).Model(&models.TokenDistribution{}).
		Where("distribution_date = ?", dateKey).
		Where("status = ?", types.DistributionStatusCompleted).
		Count(&distributed).Error; err != nil {
		return nil, fmt.Errorf("failed to count distributions: %w", err)
	}

	var failed int64
	if err := s.db.WithContext(ctx).Model(&models.TokenDistribution{}).
		Where("distribution_date = ?", dateKey).
		Where("status = ?", types.DistributionStatusFailed).
		Count(&failed).Error; err != nil {
		return nil, fmt.Errorf("failed to count failed distributions: %w", err)
	}

	var tokens decimal.Decimal
	row := s.db.WithContext(ctx).Model(&models.TokenDistribution{}).
		Select("COALESCE(SUM(token_amount), 0)").
		Where("distribution_date = ?", dateKey).
		Where("status = ?", types.DistributionStatusCompleted).
		Row()
	if err := row.Scan(&tokens); err != nil {
		return nil, fmt.Errorf("failed to sum distributed tokens: %w", err)
	}

	coverage := 0.0
	if active > 0 {
		coverage = float64(distributed) / float64(active) * 100
	}

	return &StatusResult{
		Date:                     dateKey,
		ActiveSubscriptions:      active,
		DistributedSubscriptions: distributed,
		FailedDistributions:      failed,
		CoveragePercent:          coverage,
		TokensDistributed:        tokens,
	}, nil
}
