/*

This file contains the synchronization engine. RefetchAll re-reads every
cached state group from the ledger and swaps the store atomically; the event
loop watches token Transfer/Approval events, discards ones that cannot affect
the viewer's state, and coalesces bursts into a single refetch.

*/

package ledgersync

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/borrowfi/borrowfi-go/internal/config"
	"github.com/borrowfi/borrowfi-go/internal/ledger"
	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/metrics"
	"github.com/borrowfi/borrowfi-go/internal/risk"
	"github.com/borrowfi/borrowfi-go/internal/state"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrRefetchFailed = errors.New("ledger state refetch failed")
)

// debounceInterval coalesces event bursts into one refetch. A confirmed
// action typically emits two or three logs in the same block; one sync
// covers them all.
const debounceInterval = 250 * time.Millisecond

// Syncer is the sole writer of the Store. It refetches on demand after
// confirmed actions and reactively on relevant token events.
type Syncer struct {
	log     zerolog.Logger
	reader  ledger.Reader
	store   *Store
	account common.Address
	lender  common.Address
	dirty   chan struct{}
}

// NewSyncer builds a syncer for the connected account.
func NewSyncer(reader ledger.Reader, store *Store, account common.Address) *Syncer {
	return &Syncer{
		log:     logger.GetForComponent("ledgersync"),
		reader:  reader,
		store:   store,
		account: account,
		lender:  config.LenderAddress,
		dirty:   make(chan struct{}, 1),
	}
}

// RefetchAll re-reads all cached state groups concurrently and replaces the
// store only when every read succeeded. A partial failure leaves the cache
// at its last-known-good value.
func (s *Syncer) RefetchAll(ctx context.Context, trigger string) error {
	var (
		position  types.Position
		balances  types.Balances
		allowance types.Allowances
		liquidity types.PoolLiquidity
		globals   types.ProtocolGlobals
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		position, err = s.reader.Position(groupCtx, s.account)
		return err
	})
	group.Go(func() error {
		var err error
		balances, err = s.reader.Balances(groupCtx, s.account)
		return err
	})
	group.Go(func() error {
		var err error
		allowance, err = s.reader.Allowances(groupCtx, s.account)
		return err
	})
	group.Go(func() error {
		var err error
		liquidity, err = s.reader.PoolLiquidity(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		globals, err = s.reader.Globals(groupCtx)
		return err
	})

	if err := group.Wait(); err != nil {
		metrics.RefetchFailuresTotal.Inc()
		s.log.Error().Err(err).Str("trigger", trigger).Msg("State refetch failed, keeping cached snapshot")
		return errors.Join(ErrRefetchFailed, err)
	}

	snap := types.Snapshot{
		Position:      position,
		Balances:      balances,
		Allowances:    allowance,
		PoolLiquidity: liquidity,
		Globals:       globals,
		SyncedAt:      time.Now().UTC(),
	}

	derived, err := risk.Derive(snap)
	if err != nil {
		metrics.RefetchFailuresTotal.Inc()
		return errors.Join(ErrRefetchFailed, err)
	}

	s.store.replace(snap, derived)
	metrics.RefetchesTotal.WithLabelValues(trigger).Inc()

	if err := state.RecordSyncSnapshot(snap, derived); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist sync snapshot")
	}

	s.log.Debug().
		Str("trigger", trigger).
		Str("collateral", snap.Position.Collateral.String()).
		Str("loan", snap.Position.Loan.String()).
		Str("ltc_ratio", derived.LTCRatio.String()).
		Bool("healthy", derived.IsHealthy).
		Msg("Ledger state synchronized")
	return nil
}

// MarkDirty schedules a refetch without blocking. Redundant marks while one
// is already pending collapse into a single refetch.
func (s *Syncer) MarkDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// relevant reports whether a token event can change the viewer's cached
// state: it must involve the connected account or the lending contract.
// Third-party transfers are noise.
func (s *Syncer) relevant(event ledger.TokenEvent) bool {
	switch event.Kind {
	case ledger.EventTransfer:
		return s.involved(event.From) || s.involved(event.To)
	case ledger.EventApproval:
		return s.involved(event.Owner) || s.involved(event.Spender)
	default:
		return false
	}
}

func (s *Syncer) involved(address common.Address) bool {
	return address == s.account || address == s.lender
}

// Run consumes token events until the context is cancelled. Relevant events
// mark the cache dirty; a short debounce window then merges any burst into
// one RefetchAll. Refetch failures are logged and swallowed here since the
// next event or post-action sync will retry.
func (s *Syncer) Run(ctx context.Context, events <-chan ledger.TokenEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event := <-events:
			s.observe(event)

		case <-s.dirty:
			s.debounce(ctx, events)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A failed refetch keeps the last-known-good snapshot; the
			// next trigger retries.
			_ = s.RefetchAll(ctx, "event")
		}
	}
}

// debounce keeps consuming events for one interval so a burst lands in a
// single refetch.
func (s *Syncer) debounce(ctx context.Context, events <-chan ledger.TokenEvent) {
	timer := time.NewTimer(debounceInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			s.observe(event)
			// Drop the extra dirty mark; this refetch covers it.
			select {
			case <-s.dirty:
			default:
			}
		case <-timer.C:
			return
		}
	}
}

func (s *Syncer) observe(event ledger.TokenEvent) {
	if !s.relevant(event) {
		metrics.EventsObservedTotal.WithLabelValues("false").Inc()
		return
	}
	metrics.EventsObservedTotal.WithLabelValues("true").Inc()
	s.log.Debug().
		Str("token", event.Token.Hex()).
		Str("kind", string(event.Kind)).
		Msg("Relevant token event observed")
	s.MarkDirty()
}
