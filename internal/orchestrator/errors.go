/*

This file contains the failure taxonomy for orchestrated actions and the
mapping from raw transport/signer errors onto it. Local validation failures
never reach the network; everything network-side is classified at the
orchestration boundary into exactly one class.

*/

package orchestrator

import (
	"errors"
	"strings"

	"github.com/borrowfi/borrowfi-go/internal/wallet"
)

// Error definitions for zero-tolerance error handling
var (
	// ErrInvalidAmount is a local validation failure; no network call is made.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientBalance is a local guard failure, pre-submission.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is a local guard failure, pre-submission.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrUserRejected means the signer declined to sign.
	ErrUserRejected = errors.New("signer rejected the transaction")
	// ErrSimulationReverted means the dry-run predicts on-chain failure.
	ErrSimulationReverted = errors.New("simulation reverted")
	// ErrTransactionReverted means the transaction was included but failed.
	ErrTransactionReverted = errors.New("transaction reverted on-chain")
	// ErrNetworkOrChain covers RPC failures and wrong-chain conditions.
	ErrNetworkOrChain = errors.New("network or chain error")
	// ErrConfirmationTimeout means the confirmation wait expired; the
	// transaction may still land later.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	// ErrActionInFlight rejects a duplicate submission of the same action.
	ErrActionInFlight = errors.New("action already in flight")
)

// taxonomy orders classification checks; the first match wins.
var taxonomy = []struct {
	class error
	name  string
}{
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrInsufficientAllowance, "InsufficientAllowance"},
	{ErrUserRejected, "UserRejected"},
	{ErrSimulationReverted, "SimulationReverted"},
	{ErrTransactionReverted, "TransactionReverted"},
	{ErrConfirmationTimeout, "ConfirmationTimeout"},
	{ErrNetworkOrChain, "NetworkOrChainError"},
	{ErrActionInFlight, "ActionInFlight"},
}

// Classify returns the taxonomy class name of an error for journaling, or
// "Unknown" when the error carries no recognized class.
func Classify(err error) string {
	for _, entry := range taxonomy {
		if errors.Is(err, entry.class) {
			return entry.name
		}
	}
	return "Unknown"
}

// classifySubmission maps a raw submission error onto the taxonomy based on
// the best-effort reason text nodes and signers put in their errors.
func classifySubmission(err error) error {
	if err == nil {
		return nil
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "user denied"), strings.Contains(message, "rejected"):
		return errors.Join(ErrUserRejected, err)
	case strings.Contains(message, "execution reverted"), strings.Contains(message, "revert"):
		return errors.Join(ErrTransactionReverted, err)
	default:
		return errors.Join(ErrNetworkOrChain, err)
	}
}

// classifyConfirmation maps a confirmation-wait error onto the taxonomy.
func classifyConfirmation(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wallet.ErrConfirmationTimeout) {
		return errors.Join(ErrConfirmationTimeout, err)
	}
	return errors.Join(ErrNetworkOrChain, err)
}

// reasonText extracts a short human-readable reason from a raw error,
// falling back to the given generic message.
func reasonText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	message := err.Error()
	if idx := strings.Index(message, "execution reverted"); idx >= 0 {
		return message[idx:]
	}
	if len(message) > 140 {
		return fallback
	}
	return message
}
