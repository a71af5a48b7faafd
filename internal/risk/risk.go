/*

This file contains the pure position-health arithmetic: loan-to-collateral
ratio, the health predicate, borrowable headroom and maximum safe withdrawal.
Everything here operates on integer smallest units with truncating division;
nothing reads the chain or mutates state.

*/

package risk

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/borrowfi/borrowfi-go/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNilParameter   = errors.New("risk parameter is nil")
	ErrInvalidScale   = errors.New("ratio scale must be positive")
	ErrNegativeAmount = errors.New("amount is negative")
	ErrInvalidThresh  = errors.New("health threshold must be positive")
)

// LTCRatio computes loan*scale/collateral with truncating division. A
// position with zero collateral has ratio zero; the health question for such
// a position is decided by the loan being zero too, which the guards enforce
// before any withdrawal can empty the collateral.
func LTCRatio(collateral, loan, scale sdkmath.Int) (sdkmath.Int, error) {
	if collateral.IsNil() || loan.IsNil() || scale.IsNil() {
		return sdkmath.ZeroInt(), ErrNilParameter
	}
	if collateral.IsNegative() || loan.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeAmount
	}
	if !scale.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidScale
	}
	if collateral.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return loan.Mul(scale).Quo(collateral), nil
}

// IsHealthy reports whether a ratio is strictly below the threshold. Equality
// is unhealthy.
func IsHealthy(ratio, threshold sdkmath.Int) (bool, error) {
	if ratio.IsNil() || threshold.IsNil() {
		return false, ErrNilParameter
	}
	if !threshold.IsPositive() {
		return false, ErrInvalidThresh
	}
	return ratio.LT(threshold), nil
}

// Borrowable computes the additional amount the account can borrow right now:
// the distance from the current loan to one smallest unit below the health
// limit, capped by the pool's free liquidity. Zero collateral or a loan at or
// beyond the limit yields zero.
func Borrowable(collateral, loan, threshold, scale, poolLiquidity sdkmath.Int) (sdkmath.Int, error) {
	if collateral.IsNil() || loan.IsNil() || threshold.IsNil() || scale.IsNil() || poolLiquidity.IsNil() {
		return sdkmath.ZeroInt(), ErrNilParameter
	}
	if collateral.IsNegative() || loan.IsNegative() || poolLiquidity.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeAmount
	}
	if !scale.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidScale
	}
	if !threshold.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidThresh
	}
	if collateral.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	// The largest loan that still satisfies loan*scale/collateral < threshold.
	maxLoan := collateral.Mul(threshold).Quo(scale).SubRaw(1)
	if maxLoan.LTE(loan) {
		return sdkmath.ZeroInt(), nil
	}

	headroom := maxLoan.Sub(loan)
	if headroom.GT(poolLiquidity) {
		return poolLiquidity, nil
	}
	return headroom, nil
}

// ProjectedRatio computes the ratio after a hypothetical withdrawal. ok is
// false when the withdrawal would empty or exceed the collateral, in which
// case no ratio is defined.
func ProjectedRatio(collateral, loan, withdrawal, scale sdkmath.Int) (sdkmath.Int, bool, error) {
	if collateral.IsNil() || loan.IsNil() || withdrawal.IsNil() || scale.IsNil() {
		return sdkmath.ZeroInt(), false, ErrNilParameter
	}
	if withdrawal.IsNegative() {
		return sdkmath.ZeroInt(), false, ErrNegativeAmount
	}
	if withdrawal.GTE(collateral) {
		return sdkmath.ZeroInt(), false, nil
	}
	ratio, err := LTCRatio(collateral.Sub(withdrawal), loan, scale)
	if err != nil {
		return sdkmath.ZeroInt(), false, err
	}
	return ratio, true, nil
}

// MaxWithdraw computes the largest collateral withdrawal that keeps the
// position healthy. The retained collateral is loan*scale/threshold+1, the
// smallest amount whose ratio stays strictly under the threshold, and never
// less than one smallest unit so a position with any loan can never be fully
// emptied. With no loan the entire collateral is withdrawable.
func MaxWithdraw(collateral, loan, threshold, scale sdkmath.Int) (sdkmath.Int, error) {
	if collateral.IsNil() || loan.IsNil() || threshold.IsNil() || scale.IsNil() {
		return sdkmath.ZeroInt(), ErrNilParameter
	}
	if collateral.IsNegative() || loan.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeAmount
	}
	if !scale.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidScale
	}
	if !threshold.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidThresh
	}
	if loan.IsZero() {
		return collateral, nil
	}

	required := loan.Mul(scale).Quo(threshold).AddRaw(1)
	if required.LT(sdkmath.OneInt()) {
		required = sdkmath.OneInt()
	}
	if required.GTE(collateral) {
		return sdkmath.ZeroInt(), nil
	}
	return collateral.Sub(required), nil
}

// Derive recomputes all derived metrics from a snapshot. Callers run it after
// every successful sync; the result is advisory until the next one.
func Derive(snap types.Snapshot) (types.DerivedMetrics, error) {
	ratio, err := LTCRatio(snap.Position.Collateral, snap.Position.Loan, snap.Globals.RatioScale)
	if err != nil {
		return types.DerivedMetrics{}, errors.Join(errors.New("failed to derive loan-to-collateral ratio"), err)
	}

	healthy, err := IsHealthy(ratio, snap.Globals.HealthThreshold)
	if err != nil {
		return types.DerivedMetrics{}, errors.Join(errors.New("failed to derive health"), err)
	}

	borrowable, err := Borrowable(
		snap.Position.Collateral,
		snap.Position.Loan,
		snap.Globals.HealthThreshold,
		snap.Globals.RatioScale,
		snap.PoolLiquidity.AvailableBorrow,
	)
	if err != nil {
		return types.DerivedMetrics{}, errors.Join(errors.New("failed to derive borrowable headroom"), err)
	}

	return types.DerivedMetrics{
		LTCRatio:   ratio,
		IsHealthy:  healthy,
		Borrowable: borrowable,
	}, nil
}

// Utilization computes totalBorrowed*scale/totalCollateral across the whole
// protocol, for the stats surface. Zero total collateral yields zero.
func Utilization(totalBorrowed, totalCollateral, scale sdkmath.Int) (sdkmath.Int, error) {
	return LTCRatio(totalCollateral, totalBorrowed, scale)
}
