/*

This file contains the token event watcher. It turns raw Transfer/Approval
logs from the two token contracts into decoded TokenEvents on a channel;
deciding whether an event is relevant to the connected account is the
consumer's job.

*/

package ledger

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/borrowfi/borrowfi-go/internal/config"
	"github.com/borrowfi/borrowfi-go/internal/logger"
)

// EventKind distinguishes the two token events the client reacts to.
type EventKind string

const (
	EventTransfer EventKind = "Transfer"
	EventApproval EventKind = "Approval"
)

// TokenEvent is one decoded Transfer or Approval log. From/To are set for
// transfers, Owner/Spender for approvals.
type TokenEvent struct {
	Token   common.Address
	Kind    EventKind
	From    common.Address
	To      common.Address
	Owner   common.Address
	Spender common.Address
}

// watchPollInterval is the log polling cadence used when no WebSocket
// endpoint is configured.
const watchPollInterval = 6 * time.Second

// resubscribeDelay spaces out reconnection attempts after a dropped
// subscription.
const resubscribeDelay = 5 * time.Second

// Watcher streams token events for the CLT and BFI contracts.
type Watcher struct {
	log    zerolog.Logger
	client *ethclient.Client
	tokens []common.Address
}

// NewWatcher builds a watcher over the configured token contracts. The
// passed client is used for polling; subscriptions dial the WebSocket
// endpoint themselves.
func NewWatcher(client *ethclient.Client) *Watcher {
	return &Watcher{
		log:    logger.GetForComponent("watcher"),
		client: client,
		tokens: []common.Address{config.CLTTokenAddress, config.BFITokenAddress},
	}
}

// Run streams decoded events into sink until the context is cancelled. With
// a WebSocket endpoint configured it holds a live log subscription and
// re-establishes it on failure; otherwise it polls for new logs. Run only
// returns the context's error.
func (w *Watcher) Run(ctx context.Context, sink chan<- TokenEvent) error {
	if config.NodeWS != "" {
		return w.runSubscription(ctx, sink)
	}
	w.log.Info().Dur("interval", watchPollInterval).Msg("No WebSocket endpoint configured, polling for token events")
	return w.runPolling(ctx, sink)
}

func (w *Watcher) query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: w.tokens,
		Topics:    [][]common.Hash{{transferTopic, approvalTopic}},
	}
}

func (w *Watcher) runSubscription(ctx context.Context, sink chan<- TokenEvent) error {
	for {
		err := w.subscribeOnce(ctx, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Warn().Err(err).Dur("retry_in", resubscribeDelay).Msg("Event subscription dropped, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeDelay):
		}
	}
}

func (w *Watcher) subscribeOnce(ctx context.Context, sink chan<- TokenEvent) error {
	wsClient, err := ethclient.DialContext(ctx, config.NodeWS)
	if err != nil {
		return errors.Join(errors.New("failed to dial WebSocket endpoint"), err)
	}
	defer wsClient.Close()

	logs := make(chan ethtypes.Log, 64)
	sub, err := wsClient.SubscribeFilterLogs(ctx, w.query(), logs)
	if err != nil {
		return errors.Join(errors.New("failed to subscribe to token logs"), err)
	}
	defer sub.Unsubscribe()

	w.log.Info().Msg("Token event subscription established")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case entry := <-logs:
			w.deliver(ctx, sink, entry)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context, sink chan<- TokenEvent) error {
	lastBlock, err := w.client.BlockNumber(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to fetch head block, starting poll from zero")
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		head, err := w.client.BlockNumber(ctx)
		if err != nil {
			w.log.Warn().Err(err).Msg("Failed to fetch head block")
			continue
		}
		if head <= lastBlock {
			continue
		}

		query := w.query()
		query.FromBlock = new(big.Int).SetUint64(lastBlock + 1)
		query.ToBlock = new(big.Int).SetUint64(head)

		entries, err := w.client.FilterLogs(ctx, query)
		if err != nil {
			w.log.Warn().Err(err).Msg("Failed to filter token logs")
			continue
		}
		lastBlock = head

		for _, entry := range entries {
			w.deliver(ctx, sink, entry)
		}
	}
}

func (w *Watcher) deliver(ctx context.Context, sink chan<- TokenEvent, entry ethtypes.Log) {
	event, ok := decodeLog(entry)
	if !ok {
		return
	}
	select {
	case sink <- event:
	case <-ctx.Done():
	}
}

func decodeLog(entry ethtypes.Log) (TokenEvent, bool) {
	if len(entry.Topics) < 3 || entry.Removed {
		return TokenEvent{}, false
	}

	event := TokenEvent{Token: entry.Address}
	switch entry.Topics[0] {
	case transferTopic:
		event.Kind = EventTransfer
		event.From = common.BytesToAddress(entry.Topics[1].Bytes())
		event.To = common.BytesToAddress(entry.Topics[2].Bytes())
	case approvalTopic:
		event.Kind = EventApproval
		event.Owner = common.BytesToAddress(entry.Topics[1].Bytes())
		event.Spender = common.BytesToAddress(entry.Topics[2].Bytes())
	default:
		return TokenEvent{}, false
	}
	return event, true
}
