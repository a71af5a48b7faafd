package ledgersync

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowfi/borrowfi-go/internal/ledger"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

var (
	testAccount = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testLender  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	thirdParty  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// fakeReader serves a canned snapshot, optionally failing one read group.
type fakeReader struct {
	snap        types.Snapshot
	failGlobals bool
	calls       int
}

func (f *fakeReader) Position(ctx context.Context, account common.Address) (types.Position, error) {
	f.calls++
	return f.snap.Position, nil
}

func (f *fakeReader) Balances(ctx context.Context, account common.Address) (types.Balances, error) {
	return f.snap.Balances, nil
}

func (f *fakeReader) Allowances(ctx context.Context, account common.Address) (types.Allowances, error) {
	return f.snap.Allowances, nil
}

func (f *fakeReader) PoolLiquidity(ctx context.Context) (types.PoolLiquidity, error) {
	return f.snap.PoolLiquidity, nil
}

func (f *fakeReader) Globals(ctx context.Context) (types.ProtocolGlobals, error) {
	if f.failGlobals {
		return types.ProtocolGlobals{}, errors.New("rpc unavailable")
	}
	return f.snap.Globals, nil
}

func testSnapshot() types.Snapshot {
	snap := types.ZeroSnapshot()
	snap.Position.Collateral = sdkmath.NewInt(1).MulRaw(1e18)
	snap.Position.Loan = sdkmath.NewInt(35).MulRaw(1e16)
	snap.PoolLiquidity.AvailableBorrow = sdkmath.NewInt(1000).MulRaw(1e18)
	return snap
}

func newTestSyncer(reader ledger.Reader) (*Syncer, *Store) {
	store := NewStore()
	syncer := NewSyncer(reader, store, testAccount)
	syncer.lender = testLender
	return syncer, store
}

func TestRefetchAllUpdatesStore(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot()}
	syncer, store := newTestSyncer(reader)

	require.NoError(t, syncer.RefetchAll(context.Background(), "test"))

	snap := store.Snapshot()
	assert.True(t, reader.snap.Position.Collateral.Equal(snap.Position.Collateral))
	assert.False(t, snap.SyncedAt.IsZero())

	derived := store.Metrics()
	assert.True(t, sdkmath.NewInt(3500).Equal(derived.LTCRatio))
	assert.True(t, derived.IsHealthy)
}

func TestRefetchAllFailureKeepsCache(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot(), failGlobals: true}
	syncer, store := newTestSyncer(reader)

	before := store.Snapshot()
	err := syncer.RefetchAll(context.Background(), "test")
	require.ErrorIs(t, err, ErrRefetchFailed)

	after := store.Snapshot()
	assert.Equal(t, before.SyncedAt, after.SyncedAt)
	assert.True(t, before.Position.Collateral.Equal(after.Position.Collateral))
}

func TestEventRelevance(t *testing.T) {
	syncer, _ := newTestSyncer(&fakeReader{snap: testSnapshot()})

	testCases := []struct {
		name     string
		event    ledger.TokenEvent
		relevant bool
	}{
		{
			"transfer to account",
			ledger.TokenEvent{Kind: ledger.EventTransfer, From: thirdParty, To: testAccount},
			true,
		},
		{
			"transfer from lender",
			ledger.TokenEvent{Kind: ledger.EventTransfer, From: testLender, To: thirdParty},
			true,
		},
		{
			"third-party transfer ignored",
			ledger.TokenEvent{Kind: ledger.EventTransfer, From: thirdParty, To: thirdParty},
			false,
		},
		{
			"approval by account",
			ledger.TokenEvent{Kind: ledger.EventApproval, Owner: testAccount, Spender: testLender},
			true,
		},
		{
			"third-party approval ignored",
			ledger.TokenEvent{Kind: ledger.EventApproval, Owner: thirdParty, Spender: thirdParty},
			false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.relevant, syncer.relevant(tc.event))
		})
	}
}

func TestEventBurstCoalescesIntoOneRefetch(t *testing.T) {
	reader := &fakeReader{snap: testSnapshot()}
	syncer, _ := newTestSyncer(reader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan ledger.TokenEvent, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = syncer.Run(ctx, events)
	}()

	for i := 0; i < 5; i++ {
		events <- ledger.TokenEvent{Kind: ledger.EventTransfer, From: testLender, To: testAccount}
	}

	// Wait out the debounce window plus slack, then stop the loop.
	time.Sleep(debounceInterval + 300*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, reader.calls, "burst of events should trigger exactly one refetch")
}

func TestMarkDirtyIsNonBlocking(t *testing.T) {
	syncer, _ := newTestSyncer(&fakeReader{snap: testSnapshot()})

	// Repeated marks with no consumer must not block.
	for i := 0; i < 10; i++ {
		syncer.MarkDirty()
	}
}
