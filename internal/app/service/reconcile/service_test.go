package reconcile

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticglobal/tokenledger/internal/models"
	"github.com/ticglobal/tokenledger/pkg/tool"
	"github.com/ticglobal/tokenledger/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.TokenDistribution{},
		&models.UserWallet{},
		&models.WalletTransaction{},
		&models.BalanceCorrection{},
	))
	return NewService(db, zap.NewNop().Sugar()), db
}

func seedDistribution(t *testing.T, db *gorm.DB, userID, date string, amount string, status types.DistributionStatus) {
	t.Helper()
	require.NoError(t, db.Create(&models.TokenDistribution{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		SubscriptionID:   tool.GenerateUUIDV7(),
		PlanID:           "vip",
		PlanName:         "VIP Plan",
		TokenAmount:      decimal.RequireFromString(amount),
		DistributionDate: date,
		Status:           status,
	}).Error)
}

func seedTxn(t *testing.T, db *gorm.DB, userID string, txType types.TransactionType, token types.TokenSymbol, amount string) {
	t.Helper()
	require.NoError(t, db.Create(&models.WalletTransaction{
		ID:     tool.GenerateUUIDV7(),
		UserID: userID,
		Type:   txType,
		Token:  token,
		Amount: decimal.RequireFromString(amount),
		Status: types.TransactionStatusCompleted,
	}).Error)
}

func TestReconcile_CorrectsDrift(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedDistribution(t, db, "u1", "2026-08-30", "18.9041", types.DistributionStatusCompleted)
	seedDistribution(t, db, "u1", "2026-08-31", "18.9041", types.DistributionStatusCompleted)
	// Failed rows never count toward the recomputed balance.
	seedDistribution(t, db, "u1", "2026-08-29", "18.9041", types.DistributionStatusFailed)
	seedTxn(t, db, "u1", types.TransactionTypeDeposit, "", "100")

	// Cached wallet drifted from ledger truth.
	require.NoError(t, db.Create(&models.UserWallet{
		UserID:       "u1",
		TicBalance:   decimal.RequireFromString("999"),
		TotalBalance: decimal.RequireFromString("100"),
	}).Error)

	res, err := svc.Reconcile(ctx, "u1", "test")
	require.NoError(t, err)
	require.True(t, res.Corrected)

	var w models.UserWallet
	require.NoError(t, db.Where("user_id = ?", "u1").First(&w).Error)
	require.True(t, w.TicBalance.Equal(decimal.RequireFromString("37.8082")))
	require.True(t, w.TotalBalance.Equal(decimal.RequireFromString("100")))

	// One audit row per corrected field.
	var corrections []*models.BalanceCorrection
	require.NoError(t, db.Find(&corrections).Error)
	require.Len(t, corrections, 1)
	require.Equal(t, "tic_balance", corrections[0].Field)
	require.Equal(t, "test", corrections[0].TriggeredBy)
	require.True(t, corrections[0].Previous.Equal(decimal.RequireFromString("999")))
	require.True(t, corrections[0].Recomputed.Equal(decimal.RequireFromString("37.8082")))

	// A second pass finds nothing to fix.
	res, err = svc.Reconcile(ctx, "u1", "test")
	require.NoError(t, err)
	require.False(t, res.Corrected)
}

func TestReconcile_ExcludesDistributionLedgerRowsFromTicSum(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	// Distribution credit appears in both tables; only the distribution
	// row may count, otherwise the balance doubles.
	seedDistribution(t, db, "u1", "2026-08-31", "18.9041", types.DistributionStatusCompleted)
	seedTxn(t, db, "u1", types.TransactionTypeDistribution, types.TokenTIC, "18.9041")

	res, err := svc.Reconcile(ctx, "u1", "test")
	require.NoError(t, err)
	require.True(t, res.Corrected)

	var w models.UserWallet
	require.NoError(t, db.Where("user_id = ?", "u1").First(&w).Error)
	require.True(t, w.TicBalance.Equal(decimal.RequireFromString("18.9041")))
}

func TestReconcile_SignsAndTokens(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedTxn(t, db, "u1", types.TransactionTypeDeposit, "", "200")
	seedTxn(t, db, "u1", types.TransactionTypeWithdrawal, "", "50")
	seedTxn(t, db, "u1", types.TransactionTypeRankBonus, types.TokenTIC, "345")
	seedTxn(t, db, "u1", types.TransactionTypeRankBonus, types.TokenGIC, "345")

	res, err := svc.Reconcile(ctx, "u1", "test")
	require.NoError(t, err)
	require.True(t, res.Corrected)

	var w models.UserWallet
	require.NoError(t, db.Where("user_id = ?", "u1").First(&w).Error)
	require.True(t, w.TotalBalance.Equal(decimal.RequireFromString("150")))
	require.True(t, w.TicBalance.Equal(decimal.RequireFromString("345")))
	require.True(t, w.GicBalance.Equal(decimal.RequireFromString("345")))
}

func TestReconcile_MissingWalletRowIsCreated(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedDistribution(t, db, "u1", "2026-08-31", "1.3699", types.DistributionStatusCompleted)

	res, err := svc.Reconcile(ctx, "u1", "test")
	require.NoError(t, err)
	require.True(t, res.Corrected)

	var w models.UserWallet
	require.NoError(t, db.Where("user_id = ?", "u1").First(&w).Error)
	require.True(t, w.TicBalance.Equal(decimal.RequireFromString("1.3699")))
}

func TestReconcileAll_ToleratesPerUserResults(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedDistribution(t, db, "u1", "2026-08-31", "18.9041", types.DistributionStatusCompleted)
	seedTxn(t, db, "u2", types.TransactionTypeDeposit, "", "100")
	require.NoError(t, db.Create(&models.UserWallet{
		UserID:       "u2",
		TotalBalance: decimal.RequireFromString("100"),
	}).Error)

	res, err := svc.ReconcileAll(ctx, "cron")
	require.NoError(t, err)
	require.Equal(t, 2, res.Processed)
	require.Equal(t, 1, res.Corrected)
	require.Equal(t, 0, res.Failed)
}

func TestCorrectIfUnchanged_RejectsStaleRead(t *testing.T) {
	_, db := newTestService(t)

	require.NoError(t, db.Create(&models.UserWallet{
		UserID:     "u1",
		TicBalance: decimal.RequireFromString("18.9041"),
	}).Error)

	// A credit landed after this snapshot was taken; the write must not
	// roll the wallet back to it.
	stale := map[string]decimal.Decimal{
		"tic_balance":   decimal.Zero,
		"gic_balance":   decimal.Zero,
		"total_balance": decimal.Zero,
	}
	ok, err := correctIfUnchanged(db, "u1", stale, map[string]any{
		"tic_balance": decimal.Zero,
	})
	require.NoError(t, err)
	require.False(t, ok)

	var w models.UserWallet
	require.NoError(t, db.Where("user_id = ?", "u1").First(&w).Error)
	require.True(t, w.TicBalance.Equal(decimal.RequireFromString("18.9041")))

	// The same write goes through once the snapshot matches the row.
	fresh := map[string]decimal.Decimal{
		"tic_balance":   decimal.RequireFromString("18.9041"),
		"gic_balance":   decimal.Zero,
		"total_balance": decimal.Zero,
	}
	ok, err = correctIfUnchanged(db, "u1", fresh, map[string]any{
		"tic_balance": decimal.RequireFromString("37.8082"),
	})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Where("user_id = ?", "u1").First(&w).Error)
	require.True(t, w.TicBalance.Equal(decimal.RequireFromString("37.8082")))
}

func TestReconcile_RequiresUserID(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Reconcile(context.Background(), "", "test")
	require.Error(t, err)
}
