package index

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapgraph/swapgraph-go/events"
	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/pools/constprod"
	"github.com/swapgraph/swapgraph-go/tokens"
)

var (
	tokenA = tokens.Token{Address: common.HexToAddress("0xAA"), Symbol: "TKA", Decimals: 18}
	tokenB = tokens.Token{Address: common.HexToAddress("0xBB"), Symbol: "TKB", Decimals: 18}
	tokenC = tokens.Token{Address: common.HexToAddress("0xCC"), Symbol: "TKC", Decimals: 18}
)

func testPool(t *testing.T, address string, token0, token1 tokens.Token, reserve0, reserve1 int64) pools.Pool {
	t.Helper()
	p, err := constprod.New(common.HexToAddress(address), token0, token1, 30, constprod.State{
		Reserve0: big.NewInt(reserve0),
		Reserve1: big.NewInt(reserve1),
		Observed: time.Now(),
	})
	require.NoError(t, err)
	return p
}

// brokenPool fakes a pool with fewer than two constituent tokens.
type brokenPool struct {
	pools.Pool
}

func (brokenPool) Address() common.Address { return common.HexToAddress("0xBAD") }
func (brokenPool) Tokens() []tokens.Token  { return []tokens.Token{tokenA} }

func TestIngest(t *testing.T) {
	t.Run("RejectsNilPool", func(t *testing.T) {
		s := NewSystem(Config{})
		require.ErrorIs(t, s.Ingest(nil), ErrInvalidPool)
	})

	t.Run("RejectsSingleTokenPool", func(t *testing.T) {
		s := NewSystem(Config{})
		require.ErrorIs(t, s.Ingest(brokenPool{}), ErrInvalidPool)

		tokenCount, poolCount := s.Len()
		assert.Zero(t, tokenCount)
		assert.Zero(t, poolCount)
	})

	t.Run("IsIdempotent", func(t *testing.T) {
		s := NewSystem(Config{})
		pool := testPool(t, "0x1", tokenA, tokenB, 1000, 1000)

		require.NoError(t, s.Ingest(pool))
		require.NoError(t, s.Ingest(pool))
		require.NoError(t, s.Ingest(pool))

		tokenCount, poolCount := s.Len()
		assert.Equal(t, 2, tokenCount)
		assert.Equal(t, 1, poolCount)
		assert.Len(t, s.PoolsForToken(tokenA.Address), 1)
	})

	t.Run("ReingestWithDifferentTokensIsRejected", func(t *testing.T) {
		s := NewSystem(Config{})
		require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1000, 1000)))

		// The edges were built for tokenA/tokenB; a re-ingest must not
		// silently leave them pointing at the wrong tokens.
		err := s.Ingest(testPool(t, "0x1", tokenA, tokenC, 1000, 1000))
		require.ErrorIs(t, err, ErrInvalidPool)

		assert.Empty(t, s.PoolsForToken(tokenC.Address))
		stored, ok := s.Get(common.HexToAddress("0x1"))
		require.True(t, ok)
		assert.True(t, stored.Contains(tokenB.Address))
	})

	t.Run("ReingestReplacesSnapshot", func(t *testing.T) {
		s := NewSystem(Config{})
		require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1000, 1000)))
		require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 42, 42)))

		stored, ok := s.Get(common.HexToAddress("0x1"))
		require.True(t, ok)
		liquidity, err := stored.Liquidity(tokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(42), liquidity.Int64())
	})
}

func TestIngestBatch(t *testing.T) {
	s := NewSystem(Config{})
	err := s.IngestBatch([]pools.Pool{
		testPool(t, "0x1", tokenA, tokenB, 1, 1),
		brokenPool{},
		testPool(t, "0x2", tokenB, tokenC, 1, 1),
	})
	require.ErrorIs(t, err, ErrInvalidPool)

	// Valid pools from the batch still landed.
	_, poolCount := s.Len()
	assert.Equal(t, 2, poolCount)
}

func TestPoolsForToken(t *testing.T) {
	s := NewSystem(Config{})
	require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1, 1)))
	require.NoError(t, s.Ingest(testPool(t, "0x2", tokenA, tokenC, 1, 1)))
	require.NoError(t, s.Ingest(testPool(t, "0x3", tokenB, tokenC, 1, 1)))

	t.Run("EveryIngestedPoolIsDiscoverable", func(t *testing.T) {
		assert.Len(t, s.PoolsForToken(tokenA.Address), 2)
		assert.Len(t, s.PoolsForToken(tokenB.Address), 2)
		assert.Len(t, s.PoolsForToken(tokenC.Address), 2)
	})

	t.Run("UnknownTokenIsEmpty", func(t *testing.T) {
		assert.Empty(t, s.PoolsForToken(common.HexToAddress("0xDD")))
	})
}

func TestDirectPools(t *testing.T) {
	s := NewSystem(Config{})
	require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1, 1)))
	require.NoError(t, s.Ingest(testPool(t, "0x2", tokenA, tokenB, 2, 2))) // parallel pool
	require.NoError(t, s.Ingest(testPool(t, "0x3", tokenB, tokenC, 1, 1)))

	assert.Len(t, s.DirectPools(tokenA.Address, tokenB.Address), 2)
	assert.Len(t, s.DirectPools(tokenB.Address, tokenA.Address), 2)
	assert.Len(t, s.DirectPools(tokenA.Address, tokenC.Address), 0)
}

func TestUpdateReserves(t *testing.T) {
	t.Run("UnknownPool", func(t *testing.T) {
		s := NewSystem(Config{})
		err := s.UpdateReserves(common.HexToAddress("0x99"), constprod.State{
			Reserve0: big.NewInt(1), Reserve1: big.NewInt(1),
		})
		require.ErrorIs(t, err, ErrUnknownPool)
	})

	t.Run("OldViewKeepsSnapshot", func(t *testing.T) {
		s := NewSystem(Config{})
		require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1000, 1000)))

		before := s.View()
		require.NoError(t, s.UpdateReserves(common.HexToAddress("0x1"), constprod.State{
			Reserve0: big.NewInt(5), Reserve1: big.NewInt(5), Observed: time.Now(),
		}))

		oldLiquidity, err := before.Pools[0].Liquidity(tokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), oldLiquidity.Int64())

		newLiquidity, err := s.View().Pools[0].Liquidity(tokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(5), newLiquidity.Int64())
	})
}

func TestScan(t *testing.T) {
	t.Run("AppliesFeedUntilClose", func(t *testing.T) {
		s := NewSystem(Config{})
		feed := make(chan events.Event, 4)
		feed <- events.PairCreated{Pool: testPool(t, "0x1", tokenA, tokenB, 1000, 1000)}
		feed <- events.ReservesUpdated{
			Address: common.HexToAddress("0x1"),
			State:   constprod.State{Reserve0: big.NewInt(7), Reserve1: big.NewInt(7), Observed: time.Now()},
		}
		close(feed)

		applied, err := s.Scan(context.Background(), feed, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, applied)

		stored, ok := s.Get(common.HexToAddress("0x1"))
		require.True(t, ok)
		liquidity, err := stored.Liquidity(tokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(7), liquidity.Int64())
	})

	t.Run("DropsUpdatesForUnknownPools", func(t *testing.T) {
		s := NewSystem(Config{})
		feed := make(chan events.Event, 1)
		feed <- events.ReservesUpdated{
			Address: common.HexToAddress("0x9"),
			State:   constprod.State{Reserve0: big.NewInt(1), Reserve1: big.NewInt(1)},
		}
		close(feed)

		applied, err := s.Scan(context.Background(), feed, nil)
		require.NoError(t, err)
		assert.Zero(t, applied)
	})

	t.Run("FiltersPoolsOutsideUniverse", func(t *testing.T) {
		s := NewSystem(Config{})
		universe := mapset.NewSet(tokenA.Address, tokenB.Address)
		feed := make(chan events.Event, 2)
		feed <- events.PairCreated{Pool: testPool(t, "0x1", tokenA, tokenB, 1, 1)}
		other := tokens.Token{Address: common.HexToAddress("0xEE"), Symbol: "XXX", Decimals: 18}
		feed <- events.PairCreated{Pool: testPool(t, "0x2", other, tokens.Token{Address: common.HexToAddress("0xFF"), Symbol: "YYY", Decimals: 18}, 1, 1)}
		close(feed)

		applied, err := s.Scan(context.Background(), feed, universe)
		require.NoError(t, err)
		assert.Equal(t, 1, applied)
		_, poolCount := s.Len()
		assert.Equal(t, 1, poolCount)
	})

	t.Run("StopsOnCancel", func(t *testing.T) {
		s := NewSystem(Config{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		feed := make(chan events.Event)
		_, err := s.Scan(ctx, feed, nil)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ReplaysDiffEvents", func(t *testing.T) {
		s := NewSystem(Config{})
		require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1000, 1000)))

		// A later full re-scan observed different reserves; bridge the diff
		// into the feed.
		old := map[common.Address]constprod.State{
			common.HexToAddress("0x1"): {Reserve0: big.NewInt(1000), Reserve1: big.NewInt(1000)},
		}
		rescan := map[common.Address]constprod.State{
			common.HexToAddress("0x1"): {Reserve0: big.NewInt(900), Reserve1: big.NewInt(1100)},
		}
		diff := constprod.Differ(old, rescan)

		feed := make(chan events.Event, 1)
		for _, ev := range events.FromDiff(diff) {
			feed <- ev
		}
		close(feed)

		applied, err := s.Scan(context.Background(), feed, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, applied)

		stored, _ := s.Get(common.HexToAddress("0x1"))
		liquidity, err := stored.Liquidity(tokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(900), liquidity.Int64())
	})
}

func TestInactive(t *testing.T) {
	s := NewSystem(Config{})
	now := time.Now()

	fresh, err := constprod.New(common.HexToAddress("0x1"), tokenA, tokenB, 30, constprod.State{
		Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), Observed: now,
	})
	require.NoError(t, err)
	stale, err := constprod.New(common.HexToAddress("0x2"), tokenB, tokenC, 30, constprod.State{
		Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), Observed: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, s.Ingest(fresh))
	require.NoError(t, s.Ingest(stale))

	inactive := s.Inactive(10*time.Minute, now)
	require.Len(t, inactive, 1)
	assert.Equal(t, common.HexToAddress("0x2"), inactive[0])
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := NewSystem(Config{})
	require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1000, 1000)))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers quote continuously against whatever snapshot they see.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				view := s.View()
				for _, pool := range view.Pools {
					out, err := pool.Quote(big.NewInt(10), tokenA.Address, tokenB.Address)
					if assert.NoError(t, err) {
						assert.True(t, out.Sign() >= 0)
					}
				}
			}
		}()
	}

	// The single writer keeps replacing reserves.
	for i := 0; i < 500; i++ {
		err := s.UpdateReserves(common.HexToAddress("0x1"), constprod.State{
			Reserve0: big.NewInt(int64(1000 + i)),
			Reserve1: big.NewInt(int64(1000 + i)),
			Observed: time.Now(),
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestSnapshotAndReconcile(t *testing.T) {
	s := NewSystem(Config{})
	require.NoError(t, s.Ingest(testPool(t, "0x1", tokenA, tokenB, 1000, 1000)))
	require.NoError(t, s.Ingest(testPool(t, "0x2", tokenB, tokenC, 500, 2000)))

	t.Run("SnapshotCoversEveryPool", func(t *testing.T) {
		snapshot := s.Snapshot()
		require.Len(t, snapshot, 2)
		assert.Equal(t, int64(1000), snapshot[common.HexToAddress("0x1")].Reserve0.Int64())
		assert.Equal(t, int64(2000), snapshot[common.HexToAddress("0x2")].Reserve1.Int64())
	})

	t.Run("ReconcileAppliesChangedReserves", func(t *testing.T) {
		scanned := s.Snapshot()
		scanned[common.HexToAddress("0x1")] = constprod.State{
			Reserve0: big.NewInt(1100),
			Reserve1: big.NewInt(910),
			Observed: time.Now(),
		}

		applied, err := s.Reconcile(scanned)
		require.NoError(t, err)
		assert.Equal(t, 1, applied)

		stored, ok := s.Get(common.HexToAddress("0x1"))
		require.True(t, ok)
		liquidity, err := stored.Liquidity(tokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(1100), liquidity.Int64())
	})

	t.Run("UnchangedScanAppliesNothing", func(t *testing.T) {
		applied, err := s.Reconcile(s.Snapshot())
		require.NoError(t, err)
		assert.Zero(t, applied)
	})

	t.Run("UnknownScannedPoolIsSkipped", func(t *testing.T) {
		scanned := s.Snapshot()
		scanned[common.HexToAddress("0x99")] = constprod.State{
			Reserve0: big.NewInt(1),
			Reserve1: big.NewInt(1),
			Observed: time.Now(),
		}

		applied, err := s.Reconcile(scanned)
		require.NoError(t, err)
		assert.Zero(t, applied)

		_, ok := s.Get(common.HexToAddress("0x99"))
		assert.False(t, ok)
	})
}
