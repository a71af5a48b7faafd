/*

This file contains the types for the cached ledger state and the transient
per-action bookkeeping used while orchestrating transactions.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// ActionKind identifies one of the four mutating position actions.
type ActionKind string

const (
	ActionAdd      ActionKind = "ADD_COLLATERAL"
	ActionWithdraw ActionKind = "WITHDRAW_COLLATERAL"
	ActionBorrow   ActionKind = "BORROW"
	ActionRepay    ActionKind = "REPAY"
)

// ActionPhase is the tagged state of an in-flight action. Phases only move
// forward; an action is discarded on Done or Failed.
type ActionPhase string

const (
	PhaseIdle       ActionPhase = "IDLE"
	PhaseApproving  ActionPhase = "APPROVING"
	PhaseSubmitting ActionPhase = "SUBMITTING"
	PhaseConfirming ActionPhase = "CONFIRMING"
	PhaseDone       ActionPhase = "DONE"
	PhaseFailed     ActionPhase = "FAILED"
)

// Position is the connected account's position in the lending contract.
// Owned by the ledger; the client only holds a cached copy.
type Position struct {
	Collateral sdkmath.Int `json:"collateral"`
	Loan       sdkmath.Int `json:"loan"`
}

// Balances are the account's free (non-deposited) token holdings.
type Balances struct {
	UserCLT sdkmath.Int `json:"user_clt"`
	UserBFI sdkmath.Int `json:"user_bfi"`
}

// Allowances are the amounts the lending contract may pull from the account.
type Allowances struct {
	CLTAllowance sdkmath.Int `json:"clt_allowance"`
	BFIAllowance sdkmath.Int `json:"bfi_allowance"`
}

// PoolLiquidity is the free token balances held by the lending contract itself.
type PoolLiquidity struct {
	AvailableBorrow sdkmath.Int `json:"available_borrow"`
	AvailableCLT    sdkmath.Int `json:"available_clt"`
}

// ProtocolGlobals are protocol-wide parameters and totals. HealthThreshold and
// RatioScale define the health rule: a position is healthy iff
// loan*RatioScale/collateral < HealthThreshold.
type ProtocolGlobals struct {
	TotalBorrowed   sdkmath.Int `json:"total_borrowed"`
	TotalCollateral sdkmath.Int `json:"total_collateral"`
	HealthThreshold sdkmath.Int `json:"health_threshold"`
	RatioScale      sdkmath.Int `json:"ratio_scale"`
	CLTDecimals     uint8       `json:"clt_decimals"`
	BFIDecimals     uint8       `json:"bfi_decimals"`
}

// Snapshot groups all cached ledger state as of one successful sync. Values
// are only trusted as of SyncedAt; metrics derived from them are advisory
// until the next resynchronization.
type Snapshot struct {
	Position      Position        `json:"position"`
	Balances      Balances        `json:"balances"`
	Allowances    Allowances      `json:"allowances"`
	PoolLiquidity PoolLiquidity   `json:"pool_liquidity"`
	Globals       ProtocolGlobals `json:"globals"`
	SyncedAt      time.Time       `json:"synced_at"`
}

// DerivedMetrics are recomputed from a Snapshot on every state change and
// never persisted.
type DerivedMetrics struct {
	LTCRatio   sdkmath.Int `json:"ltc_ratio"`
	IsHealthy  bool        `json:"is_healthy"`
	Borrowable sdkmath.Int `json:"borrowable"`
}

// PendingAction is the transient state of one user-initiated action.
type PendingAction struct {
	Kind   ActionKind  `json:"kind"`
	Phase  ActionPhase `json:"phase"`
	Amount sdkmath.Int `json:"amount"`
	Error  string      `json:"error,omitempty"`
}

// NotificationVariant distinguishes success and error notifications.
type NotificationVariant string

const (
	VariantSuccess NotificationVariant = "success"
	VariantError   NotificationVariant = "error"
)

// Notification is an ephemeral user-facing message; the latest overwrites any
// prior and it auto-expires after a fixed display duration.
type Notification struct {
	Message string              `json:"message"`
	Variant NotificationVariant `json:"variant"`
}

// TxResult contains the confirmation outcome of a submitted transaction.
type TxResult struct {
	Hash    string `json:"hash"`
	GasUsed uint64 `json:"gas_used"`
	Success bool   `json:"success"`
}

// ActionRecord is the persisted journal entry of one orchestrated action.
type ActionRecord struct {
	RecordID     int64      `json:"record_id,omitempty"` // Auto-incremented by DB
	ActionID     string     `json:"action_id"`
	Kind         ActionKind `json:"kind"`
	Amount       string     `json:"amount"` // smallest units, decimal string
	Success      bool       `json:"success"`
	ErrorClass   string     `json:"error_class,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	TxHashes     []string   `json:"tx_hashes"`
	Timestamp    time.Time  `json:"timestamp"`
}

// SyncHistoryPoint is one persisted row of position history, used for the
// history surface. Amounts are decimal strings in smallest units.
type SyncHistoryPoint struct {
	Collateral string    `json:"collateral"`
	Loan       string    `json:"loan"`
	LTCRatio   string    `json:"ltc_ratio"`
	IsHealthy  bool      `json:"is_healthy"`
	SyncedAt   time.Time `json:"synced_at"`
}

// ZeroSnapshot returns a snapshot with all amounts initialized to zero so
// callers never observe nil sdkmath.Int values.
func ZeroSnapshot() Snapshot {
	zero := sdkmath.ZeroInt()
	return Snapshot{
		Position:      Position{Collateral: zero, Loan: zero},
		Balances:      Balances{UserCLT: zero, UserBFI: zero},
		Allowances:    Allowances{CLTAllowance: zero, BFIAllowance: zero},
		PoolLiquidity: PoolLiquidity{AvailableBorrow: zero, AvailableCLT: zero},
		Globals: ProtocolGlobals{
			TotalBorrowed:   zero,
			TotalCollateral: zero,
			HealthThreshold: sdkmath.NewInt(7000),
			RatioScale:      sdkmath.NewInt(10000),
			CLTDecimals:     18,
			BFIDecimals:     18,
		},
	}
}
