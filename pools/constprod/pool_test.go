package constprod

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/tokens"
)

var (
	testTokenA = tokens.Token{Address: common.HexToAddress("0xA0"), Symbol: "TKA", Decimals: 18}
	testTokenB = tokens.Token{Address: common.HexToAddress("0xB0"), Symbol: "TKB", Decimals: 18}
)

func testPool(t *testing.T, reserve0, reserve1 int64, feeBps uint16) *Pool {
	t.Helper()
	p, err := New(common.HexToAddress("0x1"), testTokenA, testTokenB, feeBps, State{
		Reserve0: big.NewInt(reserve0),
		Reserve1: big.NewInt(reserve1),
		Observed: time.Now(),
	})
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("RejectsIdenticalTokens", func(t *testing.T) {
		_, err := New(common.HexToAddress("0x1"), testTokenA, testTokenA, 30, State{
			Reserve0: big.NewInt(1), Reserve1: big.NewInt(1),
		})
		require.ErrorIs(t, err, pools.ErrInvalidState)
	})

	t.Run("RejectsNilReserves", func(t *testing.T) {
		_, err := New(common.HexToAddress("0x1"), testTokenA, testTokenB, 30, State{})
		require.ErrorIs(t, err, pools.ErrInvalidState)
	})

	t.Run("CopiesState", func(t *testing.T) {
		reserve := big.NewInt(1000)
		p, err := New(common.HexToAddress("0x1"), testTokenA, testTokenB, 30, State{
			Reserve0: reserve, Reserve1: big.NewInt(1000),
		})
		require.NoError(t, err)

		reserve.SetInt64(1) // caller mutates its own copy
		liquidity, err := p.Liquidity(testTokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), liquidity.Int64())
	})
}

func TestQuote(t *testing.T) {
	p := testPool(t, 1_000_000, 1_000_000, 30)

	t.Run("BothDirections", func(t *testing.T) {
		out, err := p.Quote(big.NewInt(500_000), testTokenA.Address, testTokenB.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(332_665), out.Int64())

		back, err := p.Quote(big.NewInt(500_000), testTokenB.Address, testTokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(332_665), back.Int64())
	})

	t.Run("UnknownPair", func(t *testing.T) {
		_, err := p.Quote(big.NewInt(1), testTokenA.Address, common.HexToAddress("0xC0"))
		require.ErrorIs(t, err, pools.ErrTokenMismatch)
	})

	t.Run("RoundTripNeverProfits", func(t *testing.T) {
		for _, amount := range []int64{1, 997, 10_000, 314_159, 999_999} {
			in := big.NewInt(amount)
			out, err := p.Quote(in, testTokenA.Address, testTokenB.Address)
			require.NoError(t, err)
			if out.Sign() == 0 {
				continue
			}
			roundTrip, err := p.Quote(out, testTokenB.Address, testTokenA.Address)
			require.NoError(t, err)
			assert.True(t, roundTrip.Cmp(in) <= 0,
				"round trip of %s produced %s", in, roundTrip)
		}
	})
}

func TestSpotPrice(t *testing.T) {
	t.Run("BalancedPoolIsParity", func(t *testing.T) {
		p := testPool(t, 1_000_000, 1_000_000, 0)
		price, err := p.SpotPrice(testTokenA.Address, testTokenB.Address)
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(1)), "expected 1, got %s", price)
	})

	t.Run("AdjustsForDecimals", func(t *testing.T) {
		sixDecimals := tokens.Token{Address: common.HexToAddress("0xC0"), Symbol: "USDX", Decimals: 6}
		p, err := New(common.HexToAddress("0x2"), testTokenA, sixDecimals, 30, State{
			Reserve0: new(big.Int).Mul(big.NewInt(1000), tenPow(18)), // 1000 whole TKA
			Reserve1: new(big.Int).Mul(big.NewInt(2000), tenPow(6)),  // 2000 whole USDX
		})
		require.NoError(t, err)

		price, err := p.SpotPrice(testTokenA.Address, sixDecimals.Address)
		require.NoError(t, err)
		assert.Equal(t, "2", price.String())
	})

	t.Run("EmptyReserve", func(t *testing.T) {
		p := testPool(t, 0, 1_000_000, 30)
		_, err := p.SpotPrice(testTokenA.Address, testTokenB.Address)
		require.ErrorIs(t, err, pools.ErrInsufficientLiquidity)
	})
}

func TestWithState(t *testing.T) {
	t.Run("OldPoolKeepsSnapshot", func(t *testing.T) {
		p := testPool(t, 1_000_000, 1_000_000, 30)
		replaced, err := p.WithState(State{
			Reserve0: big.NewInt(5), Reserve1: big.NewInt(5), Observed: time.Now(),
		})
		require.NoError(t, err)

		oldLiquidity, err := p.Liquidity(testTokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), oldLiquidity.Int64())

		newLiquidity, err := replaced.Liquidity(testTokenA.Address)
		require.NoError(t, err)
		assert.Equal(t, int64(5), newLiquidity.Int64())
	})

	t.Run("RejectsForeignState", func(t *testing.T) {
		p := testPool(t, 10, 10, 30)
		_, err := p.WithState(fakeState{})
		require.ErrorIs(t, err, pools.ErrInvalidState)
	})
}

type fakeState struct{}

func (fakeState) StateKind() pools.Kind { return pools.KindStableSwap }

func TestSimulateSwap(t *testing.T) {
	p := testPool(t, 1_000_000, 1_000_000, 30)

	out, next, err := p.SimulateSwap(big.NewInt(500_000), testTokenA.Address, testTokenB.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(332_665), out.Int64())

	nextReserveA, err := next.Liquidity(testTokenA.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), nextReserveA.Int64())

	nextReserveB, err := next.Liquidity(testTokenB.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000-332_665), nextReserveB.Int64())

	// original snapshot unchanged
	origReserveA, err := p.Liquidity(testTokenA.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), origReserveA.Int64())
}

func tenPow(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}
