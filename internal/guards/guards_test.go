package guards

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowfi/borrowfi-go/internal/risk"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

func wei(s string) sdkmath.Int {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		panic("bad test amount: " + s)
	}
	return v
}

func baseSnapshot() types.Snapshot {
	snap := types.ZeroSnapshot()
	snap.Position.Collateral = wei("10000000000000000000") // 10 CLT
	snap.Position.Loan = wei("2000000000000000000")        // 2 BFI
	snap.Balances.UserCLT = wei("5000000000000000000")
	snap.Balances.UserBFI = wei("3000000000000000000")
	snap.Allowances.CLTAllowance = wei("100000000000000000000")
	snap.Allowances.BFIAllowance = wei("100000000000000000000")
	snap.PoolLiquidity.AvailableBorrow = wei("1000000000000000000000")
	return snap
}

func TestEvaluateAdd(t *testing.T) {
	t.Run("valid amount enabled", func(t *testing.T) {
		v, err := EvaluateAdd(baseSnapshot(), "2.50")
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Equal(t, ButtonSubmit, v.Button)
		assert.Empty(t, v.Message)
	})

	t.Run("zero amount disabled without message", func(t *testing.T) {
		v, err := EvaluateAdd(baseSnapshot(), "")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Empty(t, v.Message)
	})

	t.Run("over balance disabled with message", func(t *testing.T) {
		v, err := EvaluateAdd(baseSnapshot(), "5.01")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Equal(t, MsgInsufficientCLT, v.Message)
	})

	t.Run("allowance shortfall flips to approve", func(t *testing.T) {
		snap := baseSnapshot()
		snap.Allowances.CLTAllowance = sdkmath.ZeroInt()
		v, err := EvaluateAdd(snap, "2.50")
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Equal(t, ButtonApprove, v.Button)
		assert.Empty(t, v.Message)
	})

	t.Run("typed precision capped at two decimals", func(t *testing.T) {
		v, err := EvaluateAdd(baseSnapshot(), "1.23999")
		require.NoError(t, err)
		assert.True(t, wei("1230000000000000000").Equal(v.Amount))
	})
}

func TestEvaluateWithdraw(t *testing.T) {
	t.Run("safe amount enabled", func(t *testing.T) {
		v, err := EvaluateWithdraw(baseSnapshot(), "1")
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Empty(t, v.Warning)
	})

	t.Run("zero amount disabled", func(t *testing.T) {
		v, err := EvaluateWithdraw(baseSnapshot(), "0")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
	})

	t.Run("over collateral disabled", func(t *testing.T) {
		v, err := EvaluateWithdraw(baseSnapshot(), "11")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
	})

	t.Run("emptying collateral with loan disabled with warning", func(t *testing.T) {
		v, err := EvaluateWithdraw(baseSnapshot(), "10")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Equal(t, MsgHealthBreach, v.Warning)
	})

	t.Run("emptying loan-free position allowed", func(t *testing.T) {
		snap := baseSnapshot()
		snap.Position.Loan = sdkmath.ZeroInt()
		v, err := EvaluateWithdraw(snap, "10")
		require.NoError(t, err)
		assert.False(t, v.Disabled)
	})

	t.Run("ratio breach disabled with warning", func(t *testing.T) {
		// 2 BFI loaned: keeping less than ~2.857 CLT breaches the threshold.
		v, err := EvaluateWithdraw(baseSnapshot(), "7.50")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Equal(t, MsgHealthBreach, v.Warning)
	})

	t.Run("never permits an unhealthy outcome", func(t *testing.T) {
		snap := baseSnapshot()
		for _, input := range []string{"1", "2", "5", "7", "7.14", "7.15", "8", "9.99", "10"} {
			v, err := EvaluateWithdraw(snap, input)
			require.NoError(t, err)
			if v.Disabled {
				continue
			}
			remaining := snap.Position.Collateral.Sub(v.Amount)
			require.False(t, remaining.IsZero())
			ratio, err := risk.LTCRatio(remaining, snap.Position.Loan, snap.Globals.RatioScale)
			require.NoError(t, err)
			healthy, err := risk.IsHealthy(ratio, snap.Globals.HealthThreshold)
			require.NoError(t, err)
			assert.True(t, healthy, "guard permitted unhealthy withdrawal of %s", input)
		}
	})
}

func TestEvaluateBorrow(t *testing.T) {
	t.Run("within headroom enabled", func(t *testing.T) {
		v, err := EvaluateBorrow(baseSnapshot(), "4.99", nil)
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Empty(t, v.Message)
	})

	t.Run("max click passes the cap", func(t *testing.T) {
		// Headroom for 10 CLT / 2 BFI is 4.999... BFI; the Max button floors
		// to 4.99 and that exact value must be accepted.
		v, err := EvaluateBorrow(baseSnapshot(), "4.99", nil)
		require.NoError(t, err)
		assert.False(t, v.Disabled)
	})

	t.Run("beyond cap disabled with message", func(t *testing.T) {
		v, err := EvaluateBorrow(baseSnapshot(), "5.00", nil)
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Equal(t, MsgExceedsBorrowable, v.Message)
	})

	t.Run("simulation error advisory when within headroom", func(t *testing.T) {
		v, err := EvaluateBorrow(baseSnapshot(), "1", errors.New("execution reverted: paused"))
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Equal(t, "execution reverted: paused", v.Warning)
	})

	t.Run("simulation error suppressed when guard already blocks", func(t *testing.T) {
		v, err := EvaluateBorrow(baseSnapshot(), "50", errors.New("execution reverted"))
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Equal(t, MsgExceedsBorrowable, v.Message)
		assert.Empty(t, v.Warning)
	})
}

func TestEvaluateRepay(t *testing.T) {
	t.Run("valid amount enabled", func(t *testing.T) {
		v, err := EvaluateRepay(baseSnapshot(), "2")
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Equal(t, ButtonSubmit, v.Button)
	})

	t.Run("over balance disabled with message", func(t *testing.T) {
		v, err := EvaluateRepay(baseSnapshot(), "3.01")
		require.NoError(t, err)
		assert.True(t, v.Disabled)
		assert.Equal(t, MsgInsufficientBFI, v.Message)
	})

	t.Run("zero allowance flips to approve without blocking", func(t *testing.T) {
		snap := baseSnapshot()
		snap.Allowances.BFIAllowance = sdkmath.ZeroInt()
		v, err := EvaluateRepay(snap, "10")
		require.NoError(t, err)
		// Balance shortfall still wins over the allowance check.
		assert.True(t, v.Disabled)

		v, err = EvaluateRepay(snap, "2")
		require.NoError(t, err)
		assert.False(t, v.Disabled)
		assert.Equal(t, ButtonApprove, v.Button)
		assert.Empty(t, v.Message)
	})
}
