package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Plans: []*types.PlanAllocation{
			{ID: "starter", Name: "Starter Plan", YearlyTokens: 500, DurationDays: 365},
			{ID: "vip", Name: "VIP Plan", YearlyTokens: 6900, DurationDays: 365},
		},
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := newTestDB(t)
	return NewService(testConfig(), db, zap.NewNop().Sugar()), db
}

func seedSubscription(t *testing.T, db *gorm.DB, userID, planID string, status types.SubscriptionStatus, start, end time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    userID,
		PlanID:    planID,
		PlanName:  planID,
		Status:    status,
		StartDate: start,
		EndDate:   end,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func TestActiveOn_Windows(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()
	dayStart, dayEnd := dayBounds(now)

	// Accruing today.
	active := seedSubscription(t, db, "u1", "vip", types.SubscriptionStatusActive, now.AddDate(0, 0, -10), now.AddDate(0, 0, 30))
	// Started mid-day today: accrues from day one.
	startedToday := seedSubscription(t, db, "u2", "starter", types.SubscriptionStatusActive, dayStart.Add(10*time.Hour), dayStart.AddDate(1, 0, 0))
	// Ends exactly at day start: still active on its final day.
	endsToday := seedSubscription(t, db, "u3", "starter", types.SubscriptionStatusActive, now.AddDate(0, 0, -100), dayStart)
	// Window has passed.
	seedSubscription(t, db, "u4", "starter", types.SubscriptionStatusActive, now.AddDate(0, 0, -400), dayStart.Add(-time.Hour))
	// Starts tomorrow.
	seedSubscription(t, db, "u5", "starter", types.SubscriptionStatusActive, dayEnd, dayEnd.AddDate(1, 0, 0))
	// Cancelled mid-window: accrual stops immediately.
	seedSubscription(t, db, "u6", "vip", types.SubscriptionStatusCancelled, now.AddDate(0, 0, -10), now.AddDate(0, 0, 30))

	subs, err := svc.ActiveOn(ctx, dayStart, dayEnd, nil)
	require.NoError(t, err)

	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	require.ElementsMatch(t, []string{active.ID, startedToday.ID, endsToday.ID}, ids)

	count, err := svc.CountActiveOn(ctx, dayStart, dayEnd)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestActiveOn_Scope(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()
	dayStart, dayEnd := dayBounds(now)

	s1 := seedSubscription(t, db, "u1", "vip", types.SubscriptionStatusActive, now.AddDate(0, 0, -1), now.AddDate(1, 0, 0))
	seedSubscription(t, db, "u1", "starter", types.SubscriptionStatusActive, now.AddDate(0, 0, -1), now.AddDate(1, 0, 0))
	seedSubscription(t, db, "u2", "vip", types.SubscriptionStatusActive, now.AddDate(0, 0, -1), now.AddDate(1, 0, 0))

	byUser, err := svc.ActiveOn(ctx, dayStart, dayEnd, &Scope{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, byUser, 2)

	bySub, err := svc.ActiveOn(ctx, dayStart, dayEnd, &Scope{SubscriptionID: s1.ID})
	require.NoError(t, err)
	require.Len(t, bySub, 1)
	require.Equal(t, s1.ID, bySub[0].ID)
}

func TestGrant(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Grant(ctx, "u1", "vip", "op-1")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	require.Equal(t, "VIP Plan", sub.PlanName)
	require.WithinDuration(t, sub.StartDate.AddDate(0, 0, 365), sub.EndDate, time.Second)

	var stored models.Subscription
	require.NoError(t, db.Where("id = ?", sub.ID).First(&stored).Error)
	require.Equal(t, "u1", stored.UserID)

	_, err = svc.Grant(ctx, "u1", "no-such-plan", "op-1")
	require.Error(t, err)
}

func TestExpireOverdue(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := seedSubscription(t, db, "u1", "vip", types.SubscriptionStatusActive, now.AddDate(-1, 0, -5), now.Add(-time.Hour))
	live := seedSubscription(t, db, "u2", "vip", types.SubscriptionStatusActive, now.AddDate(0, 0, -5), now.AddDate(0, 0, 5))
	cancelled := seedSubscription(t, db, "u3", "vip", types.SubscriptionStatusCancelled, now.AddDate(-1, 0, -5), now.Add(-time.Hour))

	n, err := svc.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var storedOverdue models.Subscription
	require.NoError(t, db.Where("id = ?", overdue.ID).First(&storedOverdue).Error)
	require.Equal(t, types.SubscriptionStatusExpired, storedOverdue.Status)

	var storedLive models.Subscription
	require.NoError(t, db.Where("id = ?", live.ID).First(&storedLive).Error)
	require.Equal(t, types.SubscriptionStatusActive, storedLive.Status)

	var storedCancelled models.Subscription
	require.NoError(t, db.Where("id = ?", cancelled.ID).First(&storedCancelled).Error)
	require.Equal(t, types.SubscriptionStatusCancelled, storedCancelled.Status)

	// Nothing left to expire.
	n, err = svc.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
