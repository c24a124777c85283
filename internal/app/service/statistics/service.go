package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/types"
)

type StatisticType string

const (
	// Distribution metrics
	StatisticTypeDailyDistributionCount StatisticType = "daily_distribution_count"
	StatisticTypeDailyTokensDistributed StatisticType = "daily_tokens_distributed"
	StatisticTypeFailedDistributions    StatisticType = "failed_distributions"

	// Wallet flow metrics
	StatisticTypeDailyDepositVolume    StatisticType = "daily_deposit_volume"
	StatisticTypeDailyWithdrawalVolume StatisticType = "daily_withdrawal_volume"

	// Subscription metrics
	StatisticTypeActiveSubscriptionCount   StatisticType = "active_subscription_count"
	StatisticTypeDailyNewSubscriptionCount StatisticType = "daily_new_subscription_count"
)

// Filter fields supported by certain statistic types
type LedgerStatisticFilterType string

const (
	LedgerStatisticFilterTypePlanID LedgerStatisticFilterType = "plan_id"
	LedgerStatisticFilterTypeToken  LedgerStatisticFilterType = "token"
)

var filterTypes = []LedgerStatisticFilterType{
	LedgerStatisticFilterTypePlanID,
	LedgerStatisticFilterTypeToken,
}

var validFilters = map[LedgerStatisticFilterType][]StatisticType{
	LedgerStatisticFilterTypePlanID: {
		StatisticTypeDailyDistributionCount,
		StatisticTypeDailyTokensDistributed,
		StatisticTypeFailedDistributions,
		StatisticTypeActiveSubscriptionCount,
		StatisticTypeDailyNewSubscriptionCount,
	},
	LedgerStatisticFilterTypeToken: {
		StatisticTypeDailyDepositVolume,
		StatisticTypeDailyWithdrawalVolume,
	},
}

type LedgerStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type LedgerStatisticRequest struct {
	Filters   []*types.CommonFilter      `json:"filters"`
	DataItems []*LedgerStatisticDataItem `json:"data_items"`
}

func (f *LedgerStatisticRequest) GetFilters(statisticType StatisticType) *LedgerStatisticRequest {
	if f == nil || len(f.Filters) == 0 {
		return f
	}
	var result LedgerStatisticRequest
	for _, filter := range f.Filters {
		if statisticTypes, ok := validFilters[LedgerStatisticFilterType(filter.Field)]; ok {
			if lo.Contains(statisticTypes, statisticType) {
				result.Filters = append(result.Filters, filter)
			}
		} else {
			result.Filters = append(result.Filters, filter)
		}
	}
	return &result
}

// Build composes a WHERE clause from the applicable filters.
func (f *LedgerStatisticRequest) Build(builder clause.Builder) {
	if f == nil || len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type LedgerStatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

type LedgerStatisticResponse struct {
	DataItems map[StatisticType][]LedgerStatisticResponseDataItem `json:"data_items"`
}

// Service aggregates ledger metrics for the admin dashboard.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) getDailyDistributionCount(ctx context.Context, request *LedgerStatisticRequest) ([]LedgerStatisticResponseDataItem, error) {
	var results []LedgerStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.TokenDistribution{}).TableName()).
		Select("distribution_date as date, CAST(count(*) AS TEXT) as value").
		Where("status = ?", types.DistributionStatusCompleted).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyDistributionCount)}}).
		Group("distribution_date").
		Order("distribution_date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyTokensDistributed(ctx context.Context, request *LedgerStatisticRequest) ([]LedgerStatisticResponseDataItem, error) {
	var results []LedgerStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.TokenDistribution{}).TableName()).
		Select("distribution_date as date, plan_id AS label, CAST(COALESCE(SUM(token_amount), 0) AS TEXT) as value").
		Where("status = ?", types.DistributionStatusCompleted).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyTokensDistributed)}}).
		Group("distribution_date").
		Group("plan_id").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getFailedDistributions(ctx context.Context, request *LedgerStatisticRequest) ([]LedgerStatisticResponseDataItem, error) {
	var results []LedgerStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.TokenDistribution{}).TableName()).
		Select("distribution_date as date, CAST(count(*) AS TEXT) as value").
		Where("status = ?", types.DistributionStatusFailed).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeFailedDistributions)}}).
		Group("distribution_date").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyFlowVolume(ctx context.Context, request *LedgerStatisticRequest, statType StatisticType, txType types.TransactionType) ([]LedgerStatisticResponseDataItem, error) {
	var results []LedgerStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.WalletTransaction{}).TableName()).
		Select("DATE(created_at) as date, token AS label, CAST(COALESCE(SUM(amount), 0) AS TEXT) as value").
		Where("type = ?", txType).
		Where("status = ?", types.TransactionStatusCompleted).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(statType)}}).
		Group("DATE(created_at)").
		Group("token").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getActiveSubscriptionCount(ctx context.Context, request *LedgerStatisticRequest) ([]LedgerStatisticResponseDataItem, error) {
	var results []LedgerStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("CAST(count(*) AS TEXT) as value").
		Where("status = ?", types.SubscriptionStatusActive).
		Where("end_date >= ?", time.Now()).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeActiveSubscriptionCount)}})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewSubscriptionCount(ctx context.Context, request *LedgerStatisticRequest) ([]LedgerStatisticResponseDataItem, error) {
	var results []LedgerStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Select("DATE(created_at) as date, CAST(count(*) AS TEXT) as value").
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyNewSubscriptionCount)}}).
		Group("DATE(created_at)").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getLedgerStatistic(ctx context.Context, request *LedgerStatisticRequest, dataItem *LedgerStatisticDataItem) ([]LedgerStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyDistributionCount:
		return s.getDailyDistributionCount(ctx, request)
	case StatisticTypeDailyTokensDistributed:
		return s.getDailyTokensDistributed(ctx, request)
	case StatisticTypeFailedDistributions:
		return s.getFailedDistributions(ctx, request)
	case StatisticTypeDailyDepositVolume:
		return s.getDailyFlowVolume(ctx, request, StatisticTypeDailyDepositVolume, types.TransactionTypeDeposit)
	case StatisticTypeDailyWithdrawalVolume:
		return s.getDailyFlowVolume(ctx, request, StatisticTypeDailyWithdrawalVolume, types.TransactionTypeWithdrawal)
	case StatisticTypeActiveSubscriptionCount:
		return s.getActiveSubscriptionCount(ctx, request)
	case StatisticTypeDailyNewSubscriptionCount:
		return s.getDailyNewSubscriptionCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetLedgerStatistic runs every requested data item concurrently and
// collects the results keyed by statistic type.
func (s *Service) GetLedgerStatistic(ctx context.Context, request *LedgerStatisticRequest) (*LedgerStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []LedgerStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *LedgerStatisticDataItem) {
			defer wg.Done()
			for _, filter := range request.Filters {
				ft := LedgerStatisticFilterType(filter.Field)
				if lo.Contains(filterTypes, ft) && !lo.Contains(validFilters[ft], di.ID) {
					resChan <- &lo.Entry[StatisticType, []LedgerStatisticResponseDataItem]{Key: di.ID, Value: nil}
					return
				}
			}
			res, err := s.getLedgerStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []LedgerStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[StatisticType][]LedgerStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &LedgerStatisticResponse{DataItems: results}, nil
}
