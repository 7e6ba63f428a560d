package constprod

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapgraph/swapgraph-go/pools"
)

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name      string
		amountIn  *big.Int
		reserveIn *big.Int
		reserveOu *big.Int
		feeBps    uint16
		expected  *big.Int
		expectErr error
	}{
		{
			name:      "StandardFee",
			amountIn:  big.NewInt(500_000),
			reserveIn: big.NewInt(1_000_000),
			reserveOu: big.NewInt(1_000_000),
			feeBps:    30,
			expected:  big.NewInt(332_665),
		},
		{
			name:      "NoFee",
			amountIn:  big.NewInt(500_000),
			reserveIn: big.NewInt(1_000_000),
			reserveOu: big.NewInt(1_000_000),
			feeBps:    0,
			expected:  big.NewInt(333_333),
		},
		{
			name:      "ZeroInput",
			amountIn:  big.NewInt(0),
			reserveIn: big.NewInt(1_000_000),
			reserveOu: big.NewInt(1_000_000),
			feeBps:    30,
			expected:  big.NewInt(0),
		},
		{
			name:      "NilInput",
			amountIn:  nil,
			reserveIn: big.NewInt(1_000_000),
			reserveOu: big.NewInt(1_000_000),
			feeBps:    30,
			expectErr: pools.ErrNilAmount,
		},
		{
			name:      "NegativeInput",
			amountIn:  big.NewInt(-1),
			reserveIn: big.NewInt(1_000_000),
			reserveOu: big.NewInt(1_000_000),
			feeBps:    30,
			expectErr: pools.ErrInvalidAmount,
		},
		{
			name:      "EmptyReserves",
			amountIn:  big.NewInt(100),
			reserveIn: big.NewInt(0),
			reserveOu: big.NewInt(1_000_000),
			feeBps:    30,
			expectErr: pools.ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := getAmountOut(tc.amountIn, tc.reserveIn, tc.reserveOu, tc.feeBps)
			if tc.expectErr != nil {
				require.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tc.expected.Cmp(out), "expected %s, got %s", tc.expected, out)
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	t.Run("RoundsUp", func(t *testing.T) {
		// The input required to buy amountOut must itself buy at least
		// amountOut when quoted forward.
		amountOut := big.NewInt(332_665)
		reserveIn := big.NewInt(1_000_000)
		reserveOut := big.NewInt(1_000_000)

		in, err := getAmountIn(amountOut, reserveIn, reserveOut, 30)
		require.NoError(t, err)

		forward, err := getAmountOut(in, reserveIn, reserveOut, 30)
		require.NoError(t, err)
		assert.True(t, forward.Cmp(amountOut) >= 0, "round trip lost output: in %s buys %s < %s", in, forward, amountOut)
	})

	t.Run("OutputExceedsReserve", func(t *testing.T) {
		_, err := getAmountIn(big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1_000_000), 30)
		require.ErrorIs(t, err, pools.ErrInsufficientLiquidity)
	})

	t.Run("NilOutput", func(t *testing.T) {
		_, err := getAmountIn(nil, big.NewInt(1), big.NewInt(1), 30)
		require.ErrorIs(t, err, pools.ErrNilAmount)
	})
}

func TestCalculatorConcurrency(t *testing.T) {
	// Hammer the shared calculator pool from many goroutines; the results must
	// stay deterministic.
	expected, err := getAmountOut(big.NewInt(12_345), big.NewInt(9_999_999), big.NewInt(7_777_777), 30)
	require.NoError(t, err)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 500; i++ {
				out, err := getAmountOut(big.NewInt(12_345), big.NewInt(9_999_999), big.NewInt(7_777_777), 30)
				assert.NoError(t, err)
				assert.Equal(t, 0, expected.Cmp(out))
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
