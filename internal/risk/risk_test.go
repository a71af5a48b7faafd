package risk

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowfi/borrowfi-go/internal/types"
)

var (
	threshold = sdkmath.NewInt(7000)
	scale     = sdkmath.NewInt(10000)
)

func wei(s string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("bad test amount: " + s)
	}
	return v
}

func TestLTCRatio(t *testing.T) {
	t.Run("zero collateral is zero ratio", func(t *testing.T) {
		ratio, err := LTCRatio(sdkmath.ZeroInt(), wei("1000000000000000000"), scale)
		require.NoError(t, err)
		assert.True(t, ratio.IsZero())
	})

	t.Run("truncating division", func(t *testing.T) {
		// 1 loaned against 3 collateral: 1*10000/3 = 3333 (floor).
		ratio, err := LTCRatio(sdkmath.NewInt(3), sdkmath.NewInt(1), scale)
		require.NoError(t, err)
		assert.True(t, sdkmath.NewInt(3333).Equal(ratio))
	})

	t.Run("nil parameter rejected", func(t *testing.T) {
		_, err := LTCRatio(sdkmath.Int{}, sdkmath.ZeroInt(), scale)
		assert.ErrorIs(t, err, ErrNilParameter)
	})

	t.Run("zero scale rejected", func(t *testing.T) {
		_, err := LTCRatio(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
		assert.ErrorIs(t, err, ErrInvalidScale)
	})
}

func TestIsHealthy(t *testing.T) {
	healthy, err := IsHealthy(sdkmath.NewInt(6999), threshold)
	require.NoError(t, err)
	assert.True(t, healthy)

	// Equality with the threshold counts as unhealthy.
	healthy, err = IsHealthy(sdkmath.NewInt(7000), threshold)
	require.NoError(t, err)
	assert.False(t, healthy)

	healthy, err = IsHealthy(sdkmath.NewInt(7001), threshold)
	require.NoError(t, err)
	assert.False(t, healthy)
}

// Increasing the loan against fixed collateral can only make the position
// less healthy, never healthier.
func TestHealthMonotonicInLoan(t *testing.T) {
	collateral := wei("5000000000000000000")
	prevHealthy := true

	for _, loan := range []string{
		"0",
		"1000000000000000000",
		"3499999999999999999",
		"3500000000000000000",
		"4000000000000000000",
		"5000000000000000000",
	} {
		ratio, err := LTCRatio(collateral, wei(loan), scale)
		require.NoError(t, err)
		healthy, err := IsHealthy(ratio, threshold)
		require.NoError(t, err)

		if healthy {
			assert.True(t, prevHealthy, "health regained at higher loan %s", loan)
		}
		prevHealthy = healthy
	}
}

func TestBorrowable(t *testing.T) {
	pool := wei("1000000000000000000000")

	t.Run("one unit of collateral", func(t *testing.T) {
		got, err := Borrowable(wei("1000000000000000000"), sdkmath.ZeroInt(), threshold, scale, pool)
		require.NoError(t, err)
		assert.True(t, wei("699999999999999999").Equal(got), "got %s", got)
	})

	t.Run("zero collateral", func(t *testing.T) {
		got, err := Borrowable(sdkmath.ZeroInt(), sdkmath.ZeroInt(), threshold, scale, pool)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("loan at the limit", func(t *testing.T) {
		collateral := wei("1000000000000000000")
		got, err := Borrowable(collateral, wei("699999999999999999"), threshold, scale, pool)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("loan beyond the limit", func(t *testing.T) {
		collateral := wei("1000000000000000000")
		got, err := Borrowable(collateral, wei("900000000000000000"), threshold, scale, pool)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("capped by pool liquidity", func(t *testing.T) {
		smallPool := wei("100000000000000000")
		got, err := Borrowable(wei("1000000000000000000"), sdkmath.ZeroInt(), threshold, scale, smallPool)
		require.NoError(t, err)
		assert.True(t, smallPool.Equal(got), "got %s", got)
	})

	t.Run("borrowing the headroom is still healthy", func(t *testing.T) {
		collateral := wei("3141592653589793238")
		loan := wei("1000000000000000000")
		headroom, err := Borrowable(collateral, loan, threshold, scale, pool)
		require.NoError(t, err)
		require.True(t, headroom.IsPositive())

		ratio, err := LTCRatio(collateral, loan.Add(headroom), scale)
		require.NoError(t, err)
		healthy, err := IsHealthy(ratio, threshold)
		require.NoError(t, err)
		assert.True(t, healthy, "ratio %s after borrowing full headroom", ratio)
	})
}

func TestMaxWithdraw(t *testing.T) {
	t.Run("no loan withdraws everything", func(t *testing.T) {
		collateral := wei("2000000000000000000")
		got, err := MaxWithdraw(collateral, sdkmath.ZeroInt(), threshold, scale)
		require.NoError(t, err)
		assert.True(t, collateral.Equal(got))
	})

	t.Run("retained collateral keeps position healthy", func(t *testing.T) {
		collateral := wei("2000000000000000000")
		loan := wei("700000000000000000")
		got, err := MaxWithdraw(collateral, loan, threshold, scale)
		require.NoError(t, err)
		require.True(t, got.IsPositive())

		remaining := collateral.Sub(got)
		ratio, err := LTCRatio(remaining, loan, scale)
		require.NoError(t, err)
		healthy, err := IsHealthy(ratio, threshold)
		require.NoError(t, err)
		assert.True(t, healthy, "ratio %s after max withdrawal", ratio)

		// One more smallest unit would tip the ratio over.
		ratio, err = LTCRatio(remaining.SubRaw(1), loan, scale)
		require.NoError(t, err)
		healthy, err = IsHealthy(ratio, threshold)
		require.NoError(t, err)
		assert.False(t, healthy)
	})

	t.Run("fully loaned position withdraws nothing", func(t *testing.T) {
		got, err := MaxWithdraw(wei("1000000000000000000"), wei("700000000000000000"), threshold, scale)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("tiny loan never empties collateral", func(t *testing.T) {
		collateral := wei("1000000000000000000")
		got, err := MaxWithdraw(collateral, sdkmath.NewInt(1), threshold, scale)
		require.NoError(t, err)
		assert.True(t, got.LT(collateral))
	})
}

func TestProjectedRatio(t *testing.T) {
	collateral := wei("10000000000000000000")
	loan := wei("2000000000000000000")

	t.Run("partial withdrawal", func(t *testing.T) {
		ratio, ok, err := ProjectedRatio(collateral, loan, wei("5000000000000000000"), scale)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, sdkmath.NewInt(4000).Equal(ratio))
	})

	t.Run("full withdrawal has no ratio", func(t *testing.T) {
		_, ok, err := ProjectedRatio(collateral, loan, collateral, scale)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("over-withdrawal has no ratio", func(t *testing.T) {
		_, ok, err := ProjectedRatio(collateral, loan, collateral.AddRaw(1), scale)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDerive(t *testing.T) {
	snap := types.ZeroSnapshot()
	snap.Position.Collateral = wei("1000000000000000000")
	snap.Position.Loan = wei("350000000000000000")
	snap.PoolLiquidity.AvailableBorrow = wei("1000000000000000000000")

	metrics, err := Derive(snap)
	require.NoError(t, err)

	assert.True(t, sdkmath.NewInt(3500).Equal(metrics.LTCRatio))
	assert.True(t, metrics.IsHealthy)
	assert.True(t, wei("349999999999999999").Equal(metrics.Borrowable), "got %s", metrics.Borrowable)
}

func TestDeriveEmptyPosition(t *testing.T) {
	metrics, err := Derive(types.ZeroSnapshot())
	require.NoError(t, err)

	assert.True(t, metrics.LTCRatio.IsZero())
	assert.True(t, metrics.IsHealthy)
	assert.True(t, metrics.Borrowable.IsZero())
}

func TestUtilization(t *testing.T) {
	got, err := Utilization(wei("3000000000000000000"), wei("10000000000000000000"), scale)
	require.NoError(t, err)
	assert.True(t, sdkmath.NewInt(3000).Equal(got))
}
