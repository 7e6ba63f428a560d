package router

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapgraph/swapgraph-go/pools"
)

func testRoute(t *testing.T) Route {
	t.Helper()
	poolAB := testPool(t, "0x1", tokenA, tokenB, 1000, 1000, 30)
	poolBC := testPool(t, "0x2", tokenB, tokenC, 500, 2000, 30)
	return Route{
		{Pool: poolAB, TokenIn: tokenA.Address, TokenOut: tokenB.Address},
		{Pool: poolBC, TokenIn: tokenB.Address, TokenOut: tokenC.Address},
	}
}

func TestRouteQuoteIn(t *testing.T) {
	route := testRoute(t)

	t.Run("ChainsHops", func(t *testing.T) {
		out, err := route.QuoteIn(big.NewInt(100))
		require.NoError(t, err)

		// The chained quote must equal quoting hop by hop.
		mid, err := route[0].Pool.Quote(big.NewInt(100), tokenA.Address, tokenB.Address)
		require.NoError(t, err)
		expected, err := route[1].Pool.Quote(mid, tokenB.Address, tokenC.Address)
		require.NoError(t, err)
		assert.Equal(t, 0, expected.Cmp(out))
	})

	t.Run("EmptyRoute", func(t *testing.T) {
		_, err := Route{}.QuoteIn(big.NewInt(1))
		require.ErrorIs(t, err, pools.ErrInvalidAmount)
	})
}

func TestRouteQuoteForOutput(t *testing.T) {
	route := testRoute(t)

	want := big.NewInt(50)
	in, err := route.QuoteForOutput(want)
	require.NoError(t, err)

	out, err := route.QuoteIn(in)
	require.NoError(t, err)
	assert.True(t, out.Cmp(want) >= 0, "input %s only buys %s of %s", in, out, want)
}

func TestRouteSpotPrice(t *testing.T) {
	route := testRoute(t)

	price, err := route.SpotPrice()
	require.NoError(t, err)

	// 1000/1000 then 2000/500: the product is 1 * 4 = 4.
	assert.True(t, price.Equal(decimal.NewFromInt(4)), "expected 4, got %s", price)
}

func TestRouteLiquidity(t *testing.T) {
	route := testRoute(t)

	depth, err := route.Liquidity()
	require.NoError(t, err)

	// Hop 1 input reserve: 1000 TKA. Hop 2 input reserve: 500 TKB, which at
	// the cumulative price of 1 TKB/TKA is 500 in source terms. Bottleneck 500.
	assert.Equal(t, int64(500), depth.Int64())
}

func TestRouteTotalFee(t *testing.T) {
	route := testRoute(t)

	// Two 30 bps hops: 1 - 0.997^2 = 0.005991.
	assert.Equal(t, "0.005991", route.TotalFee().String())
}

func TestRouteEndpoints(t *testing.T) {
	route := testRoute(t)
	assert.Equal(t, tokenA.Address, route.Source())
	assert.Equal(t, tokenC.Address, route.Destination())
	assert.Equal(t, common.Address{}, Route{}.Source())
}
