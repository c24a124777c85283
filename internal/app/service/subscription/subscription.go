package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/logctx"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log}
}

// Scope restricts a query to one user and/or one subscription. A nil
// scope means all subscriptions.
type Scope struct {
	UserID         string `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
}

func (s *Scope) apply(q *gorm.DB) *gorm.DB {
	if s == nil {
		return q
	}
	if s.UserID != "" {
		q = q.Where("user_id = ?", s.UserID)
	}
	if s.SubscriptionID != "" {
		q = q.Where("id = ?", s.SubscriptionID)
	}
	return q
}

// ActiveOn returns all subscriptions accruing on the calendar day
// bounded by [dayStart, dayEnd), optionally narrowed by scope.
func (s *Service) ActiveOn(ctx context.Context, dayStart, dayEnd time.Time, scope *Scope) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	q := s.db.WithContext(ctx).
		Where("status = ?", types.SubscriptionStatusActive).
		Where("start_date < ?", dayEnd).
		Where("end_date >= ?", dayStart)
	q = scope.apply(q)
	if err := q.Order("created_at asc").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to query active subscriptions: %w", err)
	}
	return subs, nil
}

// CountActiveOn is the coverage counterpart of ActiveOn.
func (s *Service) CountActiveOn(ctx context.Context, dayStart, dayEnd time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ?", types.SubscriptionStatusActive).
		Where("start_date < ?", dayEnd).
		Where("end_date >= ?", dayStart).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	return count, nil
}

// Grant creates an active subscription for a purchased plan. The plan's
// nominal duration bounds the accrual window.
func (s *Service) Grant(ctx context.Context, userID, planID, operatorID string) (*models.Subscription, error) {
	if userID == "" || planID == "" {
		return nil, fmt.Errorf("invalid params: userID and planID required")
	}
	plan := s.cfg.GetPlanByID(planID)
	if plan == nil {
		return nil, fmt.Errorf("plan not found: %s", planID)
	}

	durationDays := plan.DurationDays
	if durationDays <= 0 {
		durationDays = 365
	}

	now := time.Now()
	sub := &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    userID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Status:    types.SubscriptionStatusActive,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, int(durationDays)),
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infof("granted subscription, user_id=%s, plan_id=%s, subscription_id=%s, operator_id=%s",
		userID, planID, sub.ID, operatorID)
	return sub, nil
}

// ExpireOverdue flips active subscriptions whose end date has passed to
// expired. Safe to run from any trigger; already-expired rows are left
// alone.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ?", types.SubscriptionStatusActive).
		Where("end_date < ?", asOf).
		Update("status", types.SubscriptionStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logctx.FromCtx(ctx, s.log).Infof("expired %d overdue subscriptions", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// GetUserSubscriptions lists a user's subscriptions, newest first.
func (s *Service) GetUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
