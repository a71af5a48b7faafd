/*

This file contains the cached-state store. The Syncer is its only writer;
everything else takes read-only copies. Snapshot and metrics are replaced
together so readers never see a snapshot paired with metrics derived from an
older one.

*/

package ledgersync

import (
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/borrowfi/borrowfi-go/internal/types"
)

// Store holds the last successfully synced ledger snapshot and the metrics
// derived from it.
type Store struct {
	mu      sync.RWMutex
	snap    types.Snapshot
	metrics types.DerivedMetrics
}

// NewStore returns a store seeded with an all-zero snapshot so readers have
// something coherent before the first sync completes.
func NewStore() *Store {
	return &Store{
		snap: types.ZeroSnapshot(),
		metrics: types.DerivedMetrics{
			LTCRatio:   sdkmath.ZeroInt(),
			IsHealthy:  true,
			Borrowable: sdkmath.ZeroInt(),
		},
	}
}

// Snapshot returns the last synced state.
func (s *Store) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Metrics returns the metrics derived from the last synced state.
func (s *Store) Metrics() types.DerivedMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// SyncedAt returns when the last successful sync completed; zero before the
// first one.
func (s *Store) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.SyncedAt
}

func (s *Store) replace(snap types.Snapshot, metrics types.DerivedMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.metrics = metrics
}
