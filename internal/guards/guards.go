/*

This file contains the per-action eligibility rules that gate the four
position actions. Each evaluator is a pure function of the cached snapshot
and the raw input text: no network calls, no mutation, safe to re-run on
every keystroke or state change.

*/

package guards

import (
	sdkmath "cosmossdk.io/math"

	"github.com/borrowfi/borrowfi-go/internal/fixedpoint"
	"github.com/borrowfi/borrowfi-go/internal/risk"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

// ButtonRole tells the caller which phase of the two-step flow the submit
// button currently represents.
type ButtonRole string

const (
	// ButtonSubmit submits the primary action.
	ButtonSubmit ButtonRole = "submit"
	// ButtonApprove submits an allowance approval first. An approval
	// shortfall switches the role instead of disabling the button.
	ButtonApprove ButtonRole = "approve"
)

// Verdict is the outcome of one guard evaluation.
type Verdict struct {
	// Amount is the parsed input in smallest units.
	Amount sdkmath.Int `json:"amount"`
	// Disabled blocks submission entirely.
	Disabled bool `json:"disabled"`
	// Button is the current role of the submit control.
	Button ButtonRole `json:"button"`
	// Message is the blocking reason shown when Disabled is set.
	Message string `json:"message,omitempty"`
	// Warning is advisory text that does not block submission by itself.
	Warning string `json:"warning,omitempty"`
}

// userInputDecimals caps typed fractional digits; full-precision values from
// the ledger bypass this and go through fixedpoint directly.
const userInputDecimals = 2

// Guard messages, kept stable because operators grep logs for them.
const (
	MsgInsufficientCLT   = "Insufficient CLT Balance"
	MsgInsufficientBFI   = "Insufficient BFI Balance"
	MsgExceedsBorrowable = "Amount exceeds borrowable"
	MsgHealthBreach      = "Health breach: Can't have 0 collateral"
)

func parseInput(text string, decimals uint8) (sdkmath.Int, error) {
	sanitized := fixedpoint.SanitizeDecimalInput(text, userInputDecimals)
	return fixedpoint.ParseDecimal(sanitized, decimals)
}

// EvaluateAdd gates adding collateral. Blocked by a zero amount (silently) or
// by the amount exceeding the free CLT balance. An allowance shortfall is not
// blocking; it flips the button to its approve role.
func EvaluateAdd(snap types.Snapshot, input string) (Verdict, error) {
	amount, err := parseInput(input, snap.Globals.CLTDecimals)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{Amount: amount, Button: ButtonSubmit}
	if amount.IsZero() {
		v.Disabled = true
		return v, nil
	}
	if snap.Balances.UserCLT.LT(amount) {
		v.Disabled = true
		v.Message = MsgInsufficientCLT
		return v, nil
	}
	if snap.Allowances.CLTAllowance.LT(amount) {
		v.Button = ButtonApprove
	}
	return v, nil
}

// EvaluateWithdraw gates withdrawing collateral. Blocked by a zero amount, an
// amount beyond the current collateral, a withdrawal that would empty the
// collateral, or one whose projected ratio reaches the health threshold. The
// breach cases also carry a warning so the caller can explain why the Max
// suggestion is capped.
func EvaluateWithdraw(snap types.Snapshot, input string) (Verdict, error) {
	amount, err := parseInput(input, snap.Globals.CLTDecimals)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{Amount: amount, Button: ButtonSubmit}
	if amount.IsZero() {
		v.Disabled = true
		return v, nil
	}
	if snap.Position.Collateral.LT(amount) {
		v.Disabled = true
		return v, nil
	}

	projected, ok, err := risk.ProjectedRatio(snap.Position.Collateral, snap.Position.Loan, amount, snap.Globals.RatioScale)
	if err != nil {
		return Verdict{}, err
	}
	if !ok {
		if amount.Equal(snap.Position.Collateral) && snap.Position.Loan.IsZero() {
			// Emptying a loan-free position is fine.
			return v, nil
		}
		v.Disabled = true
		v.Warning = MsgHealthBreach
		return v, nil
	}

	healthy, err := risk.IsHealthy(projected, snap.Globals.HealthThreshold)
	if err != nil {
		return Verdict{}, err
	}
	if !healthy {
		v.Disabled = true
		v.Warning = MsgHealthBreach
	}
	return v, nil
}

// EvaluateBorrow gates borrowing. The cap is the borrowable headroom floored
// to display granularity, so a Max click always passes the amount check. A
// simulation failure from the ledger is surfaced as an advisory warning only
// when the amount is otherwise within headroom.
func EvaluateBorrow(snap types.Snapshot, input string, simulationErr error) (Verdict, error) {
	amount, err := parseInput(input, snap.Globals.BFIDecimals)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{Amount: amount, Button: ButtonSubmit}
	if amount.IsZero() {
		v.Disabled = true
		return v, nil
	}

	borrowable, err := risk.Borrowable(
		snap.Position.Collateral,
		snap.Position.Loan,
		snap.Globals.HealthThreshold,
		snap.Globals.RatioScale,
		snap.PoolLiquidity.AvailableBorrow,
	)
	if err != nil {
		return Verdict{}, err
	}

	limit := fixedpoint.FloorToCent(borrowable, snap.Globals.BFIDecimals)
	if amount.GT(limit) {
		v.Disabled = true
		v.Message = MsgExceedsBorrowable
		return v, nil
	}

	if simulationErr != nil {
		v.Warning = simulationErr.Error()
	}
	return v, nil
}

// EvaluateRepay gates repaying the loan. A BFI balance shortfall blocks; a
// BFI allowance shortfall flips the button to approve without blocking and
// without a message, since the approve phase is the remedy.
func EvaluateRepay(snap types.Snapshot, input string) (Verdict, error) {
	amount, err := parseInput(input, snap.Globals.BFIDecimals)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{Amount: amount, Button: ButtonSubmit}
	if amount.IsZero() {
		v.Disabled = true
		return v, nil
	}
	if snap.Balances.UserBFI.LT(amount) {
		v.Disabled = true
		v.Message = MsgInsufficientBFI
		return v, nil
	}
	if snap.Allowances.BFIAllowance.LT(amount) {
		v.Button = ButtonApprove
	}
	return v, nil
}
