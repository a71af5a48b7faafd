/*

This file contains the signing client for the target EVM chain. It owns the
node connection, the private key and the nonce/gas plumbing; contract-level
concerns (calldata, addresses) live in the ledger package which drives it.

*/

package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/borrowfi/borrowfi-go/internal/config"
	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNodeUnavailable     = errors.New("failed to connect to node")
	ErrInvalidSignerKey    = errors.New("signer key is invalid")
	ErrChainMismatch       = errors.New("connected node reports a different chain id")
	ErrGasEstimation       = errors.New("gas estimation failed")
	ErrSubmissionFailed    = errors.New("transaction submission failed")
	ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")
)

// Signer is a single-key transaction signer bound to one node and one chain.
// All writes the client performs go through it; reads may use Client directly.
type Signer struct {
	log     zerolog.Logger
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewSigner dials the configured node, loads the signing key and verifies the
// node is serving the configured chain. A chain mismatch is fatal here; there
// is no point signing transactions the target chain will never see.
func NewSigner(ctx context.Context) (*Signer, error) {
	log := logger.GetForComponent("wallet")

	client, err := ethclient.DialContext(ctx, config.NodeHTTP)
	if err != nil {
		return nil, errors.Join(ErrNodeUnavailable, err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(config.SignerKeyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, errors.Join(ErrInvalidSignerKey, err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Join(ErrNodeUnavailable, err)
	}
	if chainID.Uint64() != config.ChainID {
		client.Close()
		log.Error().
			Uint64("expected", config.ChainID).
			Uint64("got", chainID.Uint64()).
			Msg("Chain ID mismatch")
		return nil, ErrChainMismatch
	}

	log.Info().
		Str("address", address.Hex()).
		Uint64("chain_id", chainID.Uint64()).
		Msg("Signer initialized")

	return &Signer{
		log:     log,
		client:  client,
		key:     key,
		address: address,
		chainID: chainID,
	}, nil
}

// Address returns the signing account.
func (s *Signer) Address() common.Address {
	return s.address
}

// Client exposes the underlying node connection for read-only callers.
func (s *Signer) Client() *ethclient.Client {
	return s.client
}

// Close releases the node connection.
func (s *Signer) Close() {
	s.client.Close()
}

// SubmitCall signs and broadcasts a contract call. Gas is estimated against
// the pending state and scaled by the configured adjustment; if estimation
// fails the configured default limit is used so a transient estimation error
// does not block a transaction the chain may well accept.
func (s *Signer) SubmitCall(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmissionFailed, err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmissionFailed, err)
	}

	gasLimit := s.estimateGas(ctx, to, data)

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, errors.Join(ErrSubmissionFailed, err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Join(ErrSubmissionFailed, err)
	}

	s.log.Debug().
		Str("tx_hash", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Uint64("nonce", nonce).
		Uint64("gas_limit", gasLimit).
		Msg("Transaction submitted")

	return signed.Hash(), nil
}

func (s *Signer) estimateGas(ctx context.Context, to common.Address, data []byte) uint64 {
	estimated, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		s.log.Warn().Err(err).
			Uint64("fallback", config.DefaultGasLimit).
			Msg("Gas estimation failed, using default limit")
		return config.DefaultGasLimit
	}
	return uint64(float64(estimated) * config.GasAdjustment)
}

// Simulate dry-runs a contract call from the signing account against latest
// state. A nil error means the node expects the call to succeed; a revert
// comes back as the node's error with any reason string it could extract.
func (s *Signer) Simulate(ctx context.Context, to common.Address, data []byte) error {
	_, err := s.client.CallContract(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &to,
		Data: data,
	}, nil)
	return err
}

// WaitForReceipt polls for the receipt of a submitted transaction until it is
// mined or the configured confirmation timeout expires. A submitted
// transaction cannot be retracted, so expiry only abandons the wait; the
// transaction may still land later and the next sync will pick up its effects.
func (s *Signer) WaitForReceipt(ctx context.Context, hash common.Hash) (types.TxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(config.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil {
			result := types.TxResult{
				Hash:    hash.Hex(),
				GasUsed: receipt.GasUsed,
				Success: receipt.Status == ethtypes.ReceiptStatusSuccessful,
			}
			s.log.Debug().
				Str("tx_hash", result.Hash).
				Bool("success", result.Success).
				Uint64("gas_used", result.GasUsed).
				Msg("Transaction confirmed")
			return result, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			s.log.Warn().Err(err).Str("tx_hash", hash.Hex()).Msg("Receipt poll failed, retrying")
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return types.TxResult{Hash: hash.Hex()}, ErrConfirmationTimeout
			}
			return types.TxResult{Hash: hash.Hex()}, ctx.Err()
		case <-ticker.C:
		}
	}
}
