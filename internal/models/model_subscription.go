package models

import (
	"time"

	"github.com/ticglobal/tokenledger/pkg/types"
)

// Subscription is an active plan grant. Created on successful payment,
// flipped to expired by the expiry sweep once EndDate passes. The
// distribution engine only reads it.
type Subscription struct {
	ID       string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID   string                   `gorm:"column:user_id;type:varchar(64);not null;index:idx_subscription_user_id" json:"user_id"`
	PlanID   string                   `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	PlanName string                   `gorm:"column:plan_name;type:varchar(128);not null" json:"plan_name"`
	Status   types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null;index:idx_subscription_status" json:"status"`
	// StartDate and EndDate bound the accrual window, inclusive of any
	// calendar day they overlap in the reference timezone.
	StartDate time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;not null;index:idx_subscription_end_date" json:"end_date"`
	// CreatedAt is managed by GORM and records the creation time.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is managed by GORM and records the update time.
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "user_subscription"
}

// ActiveOn reports whether the subscription accrues on the calendar day
// bounded by [dayStart, dayEnd).
func (s *Subscription) ActiveOn(dayStart, dayEnd time.Time) bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.StartDate.Before(dayEnd) &&
		!s.EndDate.Before(dayStart)
}
