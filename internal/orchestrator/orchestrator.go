/*

This file contains the action orchestrator. Each of the four position
actions runs the same shape: local validation, an approval leg when the
allowance falls short, a dry-run, the primary transaction, a confirmation
wait, then a notification and a full state resync. Failures at any step
classify into the taxonomy in errors.go and leave cached state untouched.

*/

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/borrowfi/borrowfi-go/internal/guards"
	"github.com/borrowfi/borrowfi-go/internal/ledger"
	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/metrics"
	"github.com/borrowfi/borrowfi-go/internal/state"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

// SnapshotSource provides the cached ledger state guards evaluate against.
type SnapshotSource interface {
	Snapshot() types.Snapshot
}

// Resyncer refreshes the cached state after a confirmed action.
type Resyncer interface {
	RefetchAll(ctx context.Context, trigger string) error
}

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Per-action user-facing texts.
var (
	invalidAmountMsg = map[types.ActionKind]string{
		types.ActionAdd:      "Enter a valid CLT amount",
		types.ActionWithdraw: "Enter a valid withdraw amount",
		types.ActionBorrow:   "Enter a valid borrow amount",
		types.ActionRepay:    "Enter a valid repay amount",
	}
	successMsg = map[types.ActionKind]string{
		types.ActionAdd:      "Collateral added successfully",
		types.ActionWithdraw: "Withdraw successful",
		types.ActionBorrow:   "Borrow successful",
		types.ActionRepay:    "Repay successful",
	}
	failureMsg = map[types.ActionKind]string{
		types.ActionAdd:      "Failed to add collateral",
		types.ActionWithdraw: "Withdraw failed",
		types.ActionBorrow:   "Borrow failed",
		types.ActionRepay:    "Repay failed",
	}
)

const (
	msgNoCollateral      = "No collateral to withdraw"
	msgNoLoan            = "No outstanding loan to repay"
	msgCLTApproveSuccess = "CLT approval successful"
	msgBFIApproveSuccess = "BFI approval successful"
)

// Orchestrator sequences approve-then-act flows for the four position
// actions. The four kinds are independent; only duplicate submission of the
// same kind is blocked.
type Orchestrator struct {
	log       zerolog.Logger
	ledger    ledger.Writer
	snapshots SnapshotSource
	syncer    Resyncer
	notifier  Notifier

	mu      sync.Mutex
	pending map[types.ActionKind]types.PendingAction
}

// New builds an orchestrator over the given collaborators.
func New(l ledger.Writer, snapshots SnapshotSource, syncer Resyncer, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		log:       logger.GetForComponent("orchestrator"),
		ledger:    l,
		snapshots: snapshots,
		syncer:    syncer,
		notifier:  notifier,
		pending:   make(map[types.ActionKind]types.PendingAction),
	}
}

// Pending returns a copy of the transient per-action states.
func (o *Orchestrator) Pending() map[types.ActionKind]types.PendingAction {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[types.ActionKind]types.PendingAction, len(o.pending))
	for kind, action := range o.pending {
		out[kind] = action
	}
	return out
}

// begin claims the in-flight slot for a kind. False means one is already
// outstanding.
func (o *Orchestrator) begin(kind types.ActionKind, amount sdkmath.Int, phase types.ActionPhase) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, ok := o.pending[kind]; ok && current.Phase != types.PhaseIdle &&
		current.Phase != types.PhaseDone && current.Phase != types.PhaseFailed {
		return false
	}
	o.pending[kind] = types.PendingAction{Kind: kind, Phase: phase, Amount: amount}
	return true
}

func (o *Orchestrator) setAmount(kind types.ActionKind, amount sdkmath.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	action := o.pending[kind]
	action.Amount = amount
	o.pending[kind] = action
}

func (o *Orchestrator) setPhase(kind types.ActionKind, phase types.ActionPhase, errText string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	action := o.pending[kind]
	action.Kind = kind
	action.Phase = phase
	action.Error = errText
	o.pending[kind] = action
}

// Execute runs one full action flow and returns the hashes of every
// transaction it submitted, in order. It blocks until the flow completes or
// fails; duplicate calls for the same kind while one is outstanding fail
// fast with ErrActionInFlight.
func (o *Orchestrator) Execute(ctx context.Context, kind types.ActionKind, input string) ([]string, error) {
	if !o.begin(kind, sdkmath.ZeroInt(), types.PhaseSubmitting) {
		return nil, ErrActionInFlight
	}

	actionID := uuid.NewString()
	started := time.Now()
	hashes, amount, err := o.run(ctx, kind, input)

	outcome := "success"
	errClass := ""
	errText := ""
	if err != nil {
		outcome = Classify(err)
		errClass = outcome
		errText = err.Error()
		o.setPhase(kind, types.PhaseFailed, errText)
	} else {
		o.setPhase(kind, types.PhaseDone, "")
	}
	metrics.ActionsTotal.WithLabelValues(string(kind), outcome).Inc()

	record := types.ActionRecord{
		ActionID:     actionID,
		Kind:         kind,
		Amount:       amount.String(),
		Success:      err == nil,
		ErrorClass:   errClass,
		ErrorMessage: errText,
		TxHashes:     hashes,
		Timestamp:    time.Now().UTC(),
	}
	if journalErr := state.RecordAction(record); journalErr != nil {
		o.log.Warn().Err(journalErr).Str("action_id", actionID).Msg("Failed to journal action record")
	}

	o.log.Info().
		Str("action_id", actionID).
		Str("kind", string(kind)).
		Str("amount", amount.String()).
		Bool("success", err == nil).
		Str("error_class", errClass).
		Dur("elapsed", time.Since(started)).
		Msg("Action flow finished")

	return hashes, err
}

// run is the flow body; Execute wraps it with bookkeeping.
func (o *Orchestrator) run(ctx context.Context, kind types.ActionKind, input string) ([]string, sdkmath.Int, error) {
	snap := o.snapshots.Snapshot()

	verdict, err := o.precheck(kind, snap, input)
	if err != nil {
		return nil, verdict.Amount, err
	}
	amount := verdict.Amount
	o.setAmount(kind, amount)

	var hashes []string

	if verdict.Button == guards.ButtonApprove {
		hash, err := o.approve(ctx, kind, amount)
		if hash != (common.Hash{}) {
			hashes = append(hashes, hash.Hex())
		}
		if err != nil {
			return hashes, amount, err
		}
	}

	o.setPhase(kind, types.PhaseSubmitting, "")
	if err := o.ledger.Simulate(ctx, kind, amount); err != nil {
		o.notifier.Error(reasonText(err, failureMsg[kind]))
		return hashes, amount, errors.Join(ErrSimulationReverted, err)
	}

	hash, err := o.submitPrimary(ctx, kind, amount)
	if err != nil {
		classified := classifySubmission(err)
		o.notifier.Error(reasonText(err, failureMsg[kind]))
		return hashes, amount, classified
	}
	hashes = append(hashes, hash.Hex())

	o.setPhase(kind, types.PhaseConfirming, "")
	result, err := o.waitConfirmed(ctx, hash)
	if err != nil {
		o.notifier.Error(reasonText(err, failureMsg[kind]))
		return hashes, amount, err
	}
	if !result.Success {
		o.notifier.Error(failureMsg[kind])
		return hashes, amount, ErrTransactionReverted
	}

	o.notifier.Success(successMsg[kind])

	// Cached state is refreshed only after the whole flow confirmed; a
	// failed refetch here is not an action failure.
	if err := o.syncer.RefetchAll(ctx, "action"); err != nil {
		o.log.Warn().Err(err).Str("kind", string(kind)).Msg("Post-action resync failed")
	}

	return hashes, amount, nil
}

// precheck runs the guard for the kind and converts a blocked verdict into a
// classified, already-notified error.
func (o *Orchestrator) precheck(kind types.ActionKind, snap types.Snapshot, input string) (guards.Verdict, error) {
	switch kind {
	case types.ActionWithdraw:
		if snap.Position.Collateral.IsZero() {
			o.notifier.Error(msgNoCollateral)
			return guards.Verdict{Amount: sdkmath.ZeroInt()}, ErrInvalidAmount
		}
	case types.ActionRepay:
		if snap.Position.Loan.IsZero() {
			o.notifier.Error(msgNoLoan)
			return guards.Verdict{Amount: sdkmath.ZeroInt()}, ErrInvalidAmount
		}
	}

	var verdict guards.Verdict
	var err error
	switch kind {
	case types.ActionAdd:
		verdict, err = guards.EvaluateAdd(snap, input)
	case types.ActionWithdraw:
		verdict, err = guards.EvaluateWithdraw(snap, input)
	case types.ActionBorrow:
		verdict, err = guards.EvaluateBorrow(snap, input, nil)
	case types.ActionRepay:
		verdict, err = guards.EvaluateRepay(snap, input)
	default:
		return guards.Verdict{Amount: sdkmath.ZeroInt()}, ledger.ErrUnknownAction
	}
	if err != nil {
		return guards.Verdict{Amount: sdkmath.ZeroInt()}, errors.Join(ErrInvalidAmount, err)
	}

	if !verdict.Disabled {
		return verdict, nil
	}

	if verdict.Amount.IsZero() {
		o.notifier.Error(invalidAmountMsg[kind])
		return verdict, ErrInvalidAmount
	}
	switch verdict.Message {
	case guards.MsgInsufficientCLT, guards.MsgInsufficientBFI:
		o.notifier.Error(verdict.Message)
		return verdict, ErrInsufficientBalance
	case guards.MsgExceedsBorrowable:
		o.notifier.Error(verdict.Message)
		return verdict, ErrInvalidAmount
	}
	if verdict.Warning != "" {
		o.notifier.Error(verdict.Warning)
		return verdict, ErrInvalidAmount
	}
	o.notifier.Error(invalidAmountMsg[kind])
	return verdict, ErrInvalidAmount
}

// approve runs the approval leg and waits for its confirmation. The primary
// action is never submitted when this leg fails.
func (o *Orchestrator) approve(ctx context.Context, kind types.ActionKind, amount sdkmath.Int) (common.Hash, error) {
	o.setPhase(kind, types.PhaseApproving, "")

	var hash common.Hash
	var err error
	successText := msgCLTApproveSuccess
	switch kind {
	case types.ActionAdd:
		hash, err = o.ledger.ApproveCLT(ctx, amount)
	case types.ActionRepay:
		hash, err = o.ledger.ApproveBFI(ctx, amount)
		successText = msgBFIApproveSuccess
	default:
		return common.Hash{}, ledger.ErrUnknownAction
	}
	if err != nil {
		classified := classifySubmission(err)
		o.notifier.Error(reasonText(err, "Approval failed"))
		return common.Hash{}, classified
	}

	result, err := o.waitConfirmed(ctx, hash)
	if err != nil {
		o.notifier.Error(reasonText(err, "Approval failed"))
		return hash, err
	}
	if !result.Success {
		o.notifier.Error("Approval failed")
		return hash, ErrTransactionReverted
	}

	o.notifier.Success(successText)
	return hash, nil
}

func (o *Orchestrator) submitPrimary(ctx context.Context, kind types.ActionKind, amount sdkmath.Int) (common.Hash, error) {
	switch kind {
	case types.ActionAdd:
		return o.ledger.AddCollateral(ctx, amount)
	case types.ActionWithdraw:
		return o.ledger.WithdrawCollateral(ctx, amount)
	case types.ActionBorrow:
		return o.ledger.Borrow(ctx, amount)
	case types.ActionRepay:
		return o.ledger.Repay(ctx, amount)
	default:
		return common.Hash{}, ledger.ErrUnknownAction
	}
}

func (o *Orchestrator) waitConfirmed(ctx context.Context, hash common.Hash) (types.TxResult, error) {
	started := time.Now()
	result, err := o.ledger.WaitForConfirmation(ctx, hash)
	metrics.ConfirmWaitSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		return result, classifyConfirmation(err)
	}
	return result, nil
}
