package distribution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticglobal/tokenledger/internal/app/service/accrual"
	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/internal/app/service/wallet"
	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

type testEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	subs   *subsvc.Service
	wallet *wallet.Service
	engine *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvTZ(t, "")
}

func newTestEnvTZ(t *testing.T, tz string) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Subscription{},
		&models.TokenDistribution{},
		&models.UserWallet{},
		&models.WalletTransaction{},
		&models.BalanceCorrection{},
		&models.DistributionRepairLog{},
	))

	cfg := &config.Config{
		ReferenceTimezone: tz,
		Plans: []*types.PlanAllocation{
			{ID: "starter", Name: "Starter Plan", YearlyTokens: 500, DurationDays: 365},
			{ID: "vip", Name: "VIP Plan", YearlyTokens: 6900, DurationDays: 365},
			{ID: "free", Name: "Free Plan", YearlyTokens: 0, DurationDays: 365},
		},
	}
	log := zap.NewNop().Sugar()
	subs := subsvc.NewService(cfg, db, log)
	w := wallet.NewService(cfg, db, log)
	engine, err := NewService(cfg, db, log, accrual.NewCalculator(cfg), subs, w)
	require.NoError(t, err)
	return &testEnv{db: db, cfg: cfg, subs: subs, wallet: w, engine: engine}
}

func (e *testEnv) seedSubscription(t *testing.T, userID, planID string) *models.Subscription {
	t.Helper()
	now := time.Now().UTC()
	plan := e.cfg.GetPlanByID(planID)
	sub := &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    userID,
		PlanID:    planID,
		PlanName:  plan.Name,
		Status:    types.SubscriptionStatusActive,
		StartDate: now.AddDate(0, 0, -1),
		EndDate:   now.AddDate(1, 0, 0),
	}
	require.NoError(t, e.db.Create(sub).Error)
	return sub
}

func (e *testEnv) ticBalance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	w, err := e.wallet.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.TicBalance
}

func TestRun_CreditsDailyAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "vip")

	res, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Equal(t, 0, res.Failed)

	// 6900/365 rounded to 4 decimal places.
	want := decimal.RequireFromString("18.9041")
	require.True(t, res.TokensDistributed.Equal(want))
	require.True(t, env.ticBalance(t, "u1").Equal(want))

	var dist models.TokenDistribution
	require.NoError(t, env.db.First(&dist).Error)
	require.Equal(t, types.DistributionStatusCompleted, dist.Status)
	require.True(t, dist.TokenAmount.Equal(want))

	var txn models.WalletTransaction
	require.NoError(t, env.db.Where("type = ?", types.TransactionTypeDistribution).First(&txn).Error)
	require.Equal(t, CreditTransactionID("vip", dist.DistributionDate, dist.SubscriptionID), txn.ID)
	require.Equal(t, dist.ID, txn.RelatedEntityID)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "vip")
	env.seedSubscription(t, "u2", "starter")

	first, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)

	second, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 2, second.SkippedExisting)
	require.True(t, second.TokensDistributed.IsZero())

	// Balances unchanged by the rerun.
	require.True(t, env.ticBalance(t, "u1").Equal(decimal.RequireFromString("18.9041")))
	require.True(t, env.ticBalance(t, "u2").Equal(decimal.RequireFromString("1.3699")))

	var count int64
	require.NoError(t, env.db.Model(&models.TokenDistribution{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestRun_MultiplePlansSameUserStack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "vip")
	env.seedSubscription(t, "u1", "starter")

	res, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Created)

	// One record per subscription, credits summed on the wallet.
	var count int64
	require.NoError(t, env.db.Model(&models.TokenDistribution{}).
		Where("user_id = ?", "u1").Count(&count).Error)
	require.EqualValues(t, 2, count)

	want := decimal.RequireFromString("18.9041").Add(decimal.RequireFromString("1.3699"))
	require.True(t, env.ticBalance(t, "u1").Equal(want))
}

func TestRun_ZeroAllocationPlansAreSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "free")

	res, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Created)
	require.Equal(t, 1, res.SkippedZeroAmount)

	var count int64
	require.NoError(t, env.db.Model(&models.TokenDistribution{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
	require.True(t, env.ticBalance(t, "u1").IsZero())
}

func TestRun_ScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "vip")
	env.seedSubscription(t, "u2", "vip")

	res, err := env.engine.Run(ctx, &RunRequest{Scope: &subsvc.Scope{UserID: "u1"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)

	require.False(t, env.ticBalance(t, "u1").IsZero())
	require.True(t, env.ticBalance(t, "u2").IsZero())
}

func TestRun_ExplicitDateKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "vip")

	date := time.Now().UTC().Format(time.DateOnly)
	res, err := env.engine.Run(ctx, &RunRequest{Date: date})
	require.NoError(t, err)
	require.Equal(t, date, res.Date)

	var dist models.TokenDistribution
	require.NoError(t, env.db.First(&dist).Error)
	require.Equal(t, res.Date, dist.DistributionDate)

	_, err = env.engine.Run(ctx, &RunRequest{Date: "not-a-date"})
	require.Error(t, err)
}

func TestRun_ExplicitDateRespectsReferenceTimezone(t *testing.T) {
	env := newTestEnvTZ(t, "America/New_York")
	ctx := context.Background()

	// Subscription covering the whole target year, so the named day is
	// always inside the accrual window.
	sub := &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    "u1",
		PlanID:    "vip",
		PlanName:  "VIP Plan",
		Status:    types.SubscriptionStatusActive,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.db.Create(sub).Error)

	// The named day must never shift through another zone.
	res, err := env.engine.Run(ctx, &RunRequest{Date: "2024-06-01"})
	require.NoError(t, err)
	require.Equal(t, "2024-06-01", res.Date)
	require.Equal(t, 1, res.Created)

	var dist models.TokenDistribution
	require.NoError(t, env.db.First(&dist).Error)
	require.Equal(t, "2024-06-01", dist.DistributionDate)

	st, err := env.engine.Status(ctx, "2024-06-01")
	require.NoError(t, err)
	require.Equal(t, "2024-06-01", st.Date)
	require.EqualValues(t, 1, st.DistributedSubscriptions)
}

func TestRun_ConcurrentTriggersDistributeOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, "u1", "vip")

	const runs = 4
	results := make([]*RunResult, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.engine.Run(context.Background(), &RunRequest{})
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		created += res.Created
	}
	require.Equal(t, 1, created)

	var count int64
	require.NoError(t, env.db.Model(&models.TokenDistribution{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.True(t, env.ticBalance(t, "u1").Equal(decimal.RequireFromString("18.9041")))
}

func TestStatus_Coverage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedSubscription(t, "u1", "vip")
	env.seedSubscription(t, "u2", "starter")

	before, err := env.engine.Status(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 2, before.ActiveSubscriptions)
	require.EqualValues(t, 0, before.DistributedSubscriptions)
	require.Zero(t, before.CoveragePercent)

	_, err = env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)

	after, err := env.engine.Status(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 2, after.DistributedSubscriptions)
	require.InDelta(t, 100.0, after.CoveragePercent, 0.001)
	require.True(t, after.TokensDistributed.Equal(
		decimal.RequireFromString("18.9041").Add(decimal.RequireFromString("1.3699"))))
}

func TestRepair_RecreatesDayCleanly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.seedSubscription(t, "u1", "vip")

	_, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)

	var before models.TokenDistribution
	require.NoError(t, env.db.First(&before).Error)

	res, err := env.engine.Repair(ctx, &RepairRequest{OperatorID: "op-1"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Removed)
	require.Equal(t, 1, res.RunResult.Created)

	// New row, same amount, no double credit.
	var after models.TokenDistribution
	require.NoError(t, env.db.First(&after).Error)
	require.NotEqual(t, before.ID, after.ID)
	require.Equal(t, sub.ID, after.SubscriptionID)
	require.True(t, after.TokenAmount.Equal(before.TokenAmount))
	require.True(t, env.ticBalance(t, "u1").Equal(decimal.RequireFromString("18.9041")))

	var txnCount int64
	require.NoError(t, env.db.Model(&models.WalletTransaction{}).Count(&txnCount).Error)
	require.EqualValues(t, 1, txnCount)

	// The audit row carries both sides of the swap.
	var rl models.DistributionRepairLog
	require.NoError(t, env.db.First(&rl).Error)
	require.Equal(t, "op-1", rl.OperatorID)
	removedRows := rl.Removed.Data()
	require.Len(t, removedRows, 1)
	require.Equal(t, before.ID, removedRows[0].ID)
	recreatedRows := rl.Recreated.Data()
	require.Len(t, recreatedRows, 1)
	require.Equal(t, after.ID, recreatedRows[0].ID)
}

func TestRun_CreditFailureKeepsFailedRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sub := env.seedSubscription(t, "u1", "vip")

	// Take the wallet store away so the credit fails after the
	// distribution row is claimed.
	require.NoError(t, env.db.Migrator().DropTable(&models.UserWallet{}))

	res, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Created)
	require.Equal(t, 1, res.Failed)
	require.True(t, res.TokensDistributed.IsZero())

	var dist models.TokenDistribution
	require.NoError(t, env.db.First(&dist).Error)
	require.Equal(t, sub.ID, dist.SubscriptionID)
	require.Equal(t, types.DistributionStatusFailed, dist.Status)

	// The ledger row rolled back with the credit transaction.
	var txnCount int64
	require.NoError(t, env.db.Model(&models.WalletTransaction{}).Count(&txnCount).Error)
	require.EqualValues(t, 0, txnCount)

	// Failed rows never count toward coverage.
	st, err := env.engine.Status(ctx, "")
	require.NoError(t, err)
	require.EqualValues(t, 0, st.DistributedSubscriptions)
	require.EqualValues(t, 1, st.FailedDistributions)

	// A plain rerun skips the claimed tuple; repair is the corrective
	// path once the store is back.
	require.NoError(t, env.db.AutoMigrate(&models.UserWallet{}))
	rerun, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, rerun.Created)
	require.Equal(t, 1, rerun.SkippedExisting)
	require.True(t, env.ticBalance(t, "u1").IsZero())

	rep, err := env.engine.Repair(ctx, &RepairRequest{OperatorID: "op-1"})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Removed)
	require.Equal(t, 1, rep.RunResult.Created)
	require.True(t, env.ticBalance(t, "u1").Equal(decimal.RequireFromString("18.9041")))
}

func TestGrant_DistributesFirstDayImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Grant(ctx, "u1", "vip", "op-1")
	require.NoError(t, err)
	require.NotNil(t, res.Subscription)
	require.Equal(t, "u1", res.Subscription.UserID)
	require.NotNil(t, res.RunResult)
	require.Equal(t, 1, res.RunResult.Created)
	require.True(t, env.ticBalance(t, "u1").Equal(decimal.RequireFromString("18.9041")))

	var dist models.TokenDistribution
	require.NoError(t, env.db.First(&dist).Error)
	require.Equal(t, res.Subscription.ID, dist.SubscriptionID)
	require.Equal(t, types.DistributionStatusCompleted, dist.Status)

	// The daily run later the same day skips the already-credited tuple.
	daily, err := env.engine.Run(ctx, &RunRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, daily.Created)
	require.Equal(t, 1, daily.SkippedExisting)
	require.True(t, env.ticBalance(t, "u1").Equal(decimal.RequireFromString("18.9041")))
}

func TestGrant_UnknownPlanFails(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Grant(context.Background(), "u1", "missing", "op-1")
	require.Error(t, err)

	var count int64
	require.NoError(t, env.db.Model(&models.Subscription{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestRepair_RequiresOperator(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Repair(context.Background(), &RepairRequest{})
	require.Error(t, err)
}

func TestRun_YearOfAccrualsStaysNearAllocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    "u1",
		PlanID:    "vip",
		PlanName:  "VIP Plan",
		Status:    types.SubscriptionStatusActive,
		StartDate: now.AddDate(-1, 0, -2),
		EndDate:   now.AddDate(1, 0, 0),
	}
	require.NoError(t, env.db.Create(sub).Error)

	start := now.AddDate(0, 0, -364)
	for i := 0; i < 365; i++ {
		res, err := env.engine.Run(ctx, &RunRequest{Date: start.AddDate(0, 0, i).Format(time.DateOnly)})
		require.NoError(t, err)
		require.Equal(t, 1, res.Created)
	}

	diff := env.ticBalance(t, "u1").Sub(decimal.NewFromInt(6900)).Abs()
	require.True(t, diff.LessThanOrEqual(decimal.NewFromFloat(0.05)),
		"a year of distributions drifted %s from the allocation", diff.String())
}
