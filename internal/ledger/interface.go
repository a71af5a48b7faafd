package ledger

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/borrowfi/borrowfi-go/internal/types"
)

// Reader is the read side of the lending protocol. Results are
// eventually-consistent snapshots; callers decide when to trust them.
type Reader interface {
	// Position returns the account's collateral and loan.
	Position(ctx context.Context, account common.Address) (types.Position, error)

	// Balances returns the account's free CLT and BFI holdings.
	Balances(ctx context.Context, account common.Address) (types.Balances, error)

	// Allowances returns what the lending contract may pull from the account.
	Allowances(ctx context.Context, account common.Address) (types.Allowances, error)

	// PoolLiquidity returns the token balances held by the lending contract.
	PoolLiquidity(ctx context.Context) (types.PoolLiquidity, error)

	// Globals returns protocol-wide parameters and totals.
	Globals(ctx context.Context) (types.ProtocolGlobals, error)
}

// Writer is the write side: approvals and the four position actions. Each
// call signs and broadcasts one transaction and returns its hash without
// waiting for inclusion; confirmation is a separate step.
type Writer interface {
	// ApproveCLT grants the lending contract an allowance over the
	// collateral token.
	ApproveCLT(ctx context.Context, amount sdkmath.Int) (common.Hash, error)

	// ApproveBFI grants the lending contract an allowance over the loan token.
	ApproveBFI(ctx context.Context, amount sdkmath.Int) (common.Hash, error)

	// AddCollateral deposits collateral into the position.
	AddCollateral(ctx context.Context, amount sdkmath.Int) (common.Hash, error)

	// WithdrawCollateral withdraws collateral from the position.
	WithdrawCollateral(ctx context.Context, amount sdkmath.Int) (common.Hash, error)

	// Borrow draws loan tokens against the position.
	Borrow(ctx context.Context, amount sdkmath.Int) (common.Hash, error)

	// Repay pays down the outstanding loan.
	Repay(ctx context.Context, amount sdkmath.Int) (common.Hash, error)

	// Simulate dry-runs a position action without broadcasting anything.
	// A nil error means the node expects the real call to succeed.
	Simulate(ctx context.Context, kind types.ActionKind, amount sdkmath.Int) error

	// WaitForConfirmation blocks until the transaction is mined or the
	// confirmation timeout expires. A mined transaction with a failure
	// status is returned with Success=false and a nil error.
	WaitForConfirmation(ctx context.Context, hash common.Hash) (types.TxResult, error)
}

// Ledger is the full narrow surface the rest of the client builds on.
type Ledger interface {
	Reader
	Writer
}
