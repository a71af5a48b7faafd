/*

This file contains the live implementation of the Ledger interface on top of
the signing wallet client. Reads are plain eth_call round trips; writes pack
calldata against the embedded ABIs and hand it to the signer.

*/

package ledger

import (
	"context"
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/borrowfi/borrowfi-go/internal/config"
	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/types"
	"github.com/borrowfi/borrowfi-go/internal/wallet"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrCallFailed    = errors.New("contract read failed")
	ErrBadReturnData = errors.New("contract returned unexpected data")
	ErrUnknownAction = errors.New("unknown action kind")
)

// Client talks to the lending contract and the two token contracts.
type Client struct {
	log    zerolog.Logger
	signer *wallet.Signer
	lender common.Address
	clt    common.Address
	bfi    common.Address
}

var _ Ledger = (*Client)(nil)

// NewClient wires a ledger client to the configured contract addresses.
func NewClient(signer *wallet.Signer) *Client {
	return &Client{
		log:    logger.GetForComponent("ledger"),
		signer: signer,
		lender: config.LenderAddress,
		clt:    config.CLTTokenAddress,
		bfi:    config.BFITokenAddress,
	}
}

func (c *Client) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, errors.Join(ErrCallFailed, err)
	}
	raw, err := c.signer.Client().CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Join(ErrCallFailed, err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, errors.Join(ErrBadReturnData, err)
	}
	return out, nil
}

func asInt(out []interface{}, index int) (sdkmath.Int, error) {
	if index >= len(out) {
		return sdkmath.ZeroInt(), ErrBadReturnData
	}
	value, ok := out[index].(*big.Int)
	if !ok || value == nil {
		return sdkmath.ZeroInt(), ErrBadReturnData
	}
	return sdkmath.NewIntFromBigInt(value), nil
}

// Position implements Reader.
func (c *Client) Position(ctx context.Context, account common.Address) (types.Position, error) {
	out, err := c.call(ctx, c.lender, lenderABI, "positions", account)
	if err != nil {
		return types.Position{}, err
	}
	collateral, err := asInt(out, 0)
	if err != nil {
		return types.Position{}, err
	}
	loan, err := asInt(out, 1)
	if err != nil {
		return types.Position{}, err
	}
	return types.Position{Collateral: collateral, Loan: loan}, nil
}

func (c *Client) balanceOf(ctx context.Context, token, holder common.Address) (sdkmath.Int, error) {
	out, err := c.call(ctx, token, erc20ABI, "balanceOf", holder)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return asInt(out, 0)
}

func (c *Client) allowance(ctx context.Context, token, owner common.Address) (sdkmath.Int, error) {
	out, err := c.call(ctx, token, erc20ABI, "allowance", owner, c.lender)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return asInt(out, 0)
}

// Balances implements Reader.
func (c *Client) Balances(ctx context.Context, account common.Address) (types.Balances, error) {
	clt, err := c.balanceOf(ctx, c.clt, account)
	if err != nil {
		return types.Balances{}, err
	}
	bfi, err := c.balanceOf(ctx, c.bfi, account)
	if err != nil {
		return types.Balances{}, err
	}
	return types.Balances{UserCLT: clt, UserBFI: bfi}, nil
}

// Allowances implements Reader.
func (c *Client) Allowances(ctx context.Context, account common.Address) (types.Allowances, error) {
	clt, err := c.allowance(ctx, c.clt, account)
	if err != nil {
		return types.Allowances{}, err
	}
	bfi, err := c.allowance(ctx, c.bfi, account)
	if err != nil {
		return types.Allowances{}, err
	}
	return types.Allowances{CLTAllowance: clt, BFIAllowance: bfi}, nil
}

// PoolLiquidity implements Reader. The pool's lendable BFI and withdrawable
// CLT are simply the token balances held by the lending contract.
func (c *Client) PoolLiquidity(ctx context.Context) (types.PoolLiquidity, error) {
	borrow, err := c.balanceOf(ctx, c.bfi, c.lender)
	if err != nil {
		return types.PoolLiquidity{}, err
	}
	clt, err := c.balanceOf(ctx, c.clt, c.lender)
	if err != nil {
		return types.PoolLiquidity{}, err
	}
	return types.PoolLiquidity{AvailableBorrow: borrow, AvailableCLT: clt}, nil
}

// Globals implements Reader.
func (c *Client) Globals(ctx context.Context) (types.ProtocolGlobals, error) {
	globals := types.ProtocolGlobals{}

	for _, read := range []struct {
		method string
		dest   *sdkmath.Int
	}{
		{"totalBorrowed", &globals.TotalBorrowed},
		{"totalCollateral", &globals.TotalCollateral},
		{"healthThreshold", &globals.HealthThreshold},
		{"ratioScale", &globals.RatioScale},
	} {
		out, err := c.call(ctx, c.lender, lenderABI, read.method)
		if err != nil {
			return types.ProtocolGlobals{}, err
		}
		value, err := asInt(out, 0)
		if err != nil {
			return types.ProtocolGlobals{}, err
		}
		*read.dest = value
	}

	cltDecimals, err := c.decimals(ctx, c.clt)
	if err != nil {
		return types.ProtocolGlobals{}, err
	}
	bfiDecimals, err := c.decimals(ctx, c.bfi)
	if err != nil {
		return types.ProtocolGlobals{}, err
	}
	globals.CLTDecimals = cltDecimals
	globals.BFIDecimals = bfiDecimals

	return globals, nil
}

func (c *Client) decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, token, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, ErrBadReturnData
	}
	value, ok := out[0].(uint8)
	if !ok {
		return 0, ErrBadReturnData
	}
	return value, nil
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsZero() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (c *Client) submit(ctx context.Context, to common.Address, parsed abi.ABI, method string, amount sdkmath.Int, extra ...interface{}) (common.Hash, error) {
	if err := validAmount(amount); err != nil {
		return common.Hash{}, err
	}
	args := append(extra, amount.BigInt())
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := c.signer.SubmitCall(ctx, to, data)
	if err != nil {
		return common.Hash{}, err
	}
	c.log.Info().
		Str("method", method).
		Str("amount", amount.String()).
		Str("tx_hash", hash.Hex()).
		Msg("Submitted ledger transaction")
	return hash, nil
}

// ApproveCLT implements Writer.
func (c *Client) ApproveCLT(ctx context.Context, amount sdkmath.Int) (common.Hash, error) {
	return c.submit(ctx, c.clt, erc20ABI, "approve", amount, c.lender)
}

// ApproveBFI implements Writer.
func (c *Client) ApproveBFI(ctx context.Context, amount sdkmath.Int) (common.Hash, error) {
	return c.submit(ctx, c.bfi, erc20ABI, "approve", amount, c.lender)
}

// AddCollateral implements Writer.
func (c *Client) AddCollateral(ctx context.Context, amount sdkmath.Int) (common.Hash, error) {
	return c.submit(ctx, c.lender, lenderABI, "addCollateral", amount)
}

// WithdrawCollateral implements Writer.
func (c *Client) WithdrawCollateral(ctx context.Context, amount sdkmath.Int) (common.Hash, error) {
	return c.submit(ctx, c.lender, lenderABI, "withdrawCollateral", amount)
}

// Borrow implements Writer.
func (c *Client) Borrow(ctx context.Context, amount sdkmath.Int) (common.Hash, error) {
	return c.submit(ctx, c.lender, lenderABI, "borrow", amount)
}

// Repay implements Writer.
func (c *Client) Repay(ctx context.Context, amount sdkmath.Int) (common.Hash, error) {
	return c.submit(ctx, c.lender, lenderABI, "repay", amount)
}

func actionMethod(kind types.ActionKind) (string, error) {
	switch kind {
	case types.ActionAdd:
		return "addCollateral", nil
	case types.ActionWithdraw:
		return "withdrawCollateral", nil
	case types.ActionBorrow:
		return "borrow", nil
	case types.ActionRepay:
		return "repay", nil
	default:
		return "", ErrUnknownAction
	}
}

// Simulate implements Writer.
func (c *Client) Simulate(ctx context.Context, kind types.ActionKind, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	method, err := actionMethod(kind)
	if err != nil {
		return err
	}
	data, err := lenderABI.Pack(method, amount.BigInt())
	if err != nil {
		return err
	}
	return c.signer.Simulate(ctx, c.lender, data)
}

// WaitForConfirmation implements Writer.
func (c *Client) WaitForConfirmation(ctx context.Context, hash common.Hash) (types.TxResult, error) {
	return c.signer.WaitForReceipt(ctx, hash)
}
