package accrual

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Plans: []*types.PlanAllocation{
			{ID: "starter", Name: "Starter Plan", YearlyTokens: 500, DurationDays: 365},
			{ID: "vip", Name: "VIP Plan", YearlyTokens: 6900, DurationDays: 365},
			{ID: "free", Name: "Free Plan", YearlyTokens: 0, DurationDays: 365},
		},
	}
}

func TestDailyAmount_VIPPrecision(t *testing.T) {
	calc := NewCalculator(testConfig())

	got := calc.DailyAmount("vip")
	want := decimal.NewFromInt(6900).Div(decimal.NewFromInt(365))
	require.True(t, got.Equal(want))

	// 6900/365 = 18.904109589... must hold to at least 6 decimal places
	require.Equal(t, "18.904110", got.StringFixed(6))
}

func TestDailyAmount_StarterPrecision(t *testing.T) {
	calc := NewCalculator(testConfig())

	got := calc.DailyAmount("starter")
	require.Equal(t, "1.369863", got.StringFixed(6))
}

func TestDailyAmount_UnknownAndZeroPlans(t *testing.T) {
	calc := NewCalculator(testConfig())

	require.True(t, calc.DailyAmount("no-such-plan").IsZero())
	require.True(t, calc.DailyAmount("free").IsZero())
	require.True(t, calc.StoredDailyAmount("free").IsZero())
}

func TestStoredDailyAmount_RoundingIsStable(t *testing.T) {
	calc := NewCalculator(testConfig())

	first := calc.StoredDailyAmount("vip")
	require.Equal(t, "18.9041", first.String())

	// Recomputing must always store the identical value.
	for i := 0; i < 100; i++ {
		require.True(t, first.Equal(calc.StoredDailyAmount("vip")))
	}
}

func TestDailyAmount_YearSumStaysClose(t *testing.T) {
	calc := NewCalculator(testConfig())

	daily := calc.StoredDailyAmount("vip")
	sum := decimal.Zero
	for i := 0; i < 365; i++ {
		sum = sum.Add(daily)
	}

	diff := sum.Sub(decimal.NewFromInt(6900)).Abs()
	require.True(t, diff.LessThanOrEqual(decimal.NewFromFloat(0.05)),
		"365 stored daily amounts drifted %s from the yearly allocation", diff.String())
}
