package tokens

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	weth := Token{Address: common.HexToAddress("0x1"), Symbol: "WETH", Decimals: 18}
	usdc := Token{Address: common.HexToAddress("0x2"), Symbol: "USDC", Decimals: 6}
	set := NewSet([]Token{weth, usdc})

	t.Run("GetByAddress", func(t *testing.T) {
		token, ok := set.GetByAddress(weth.Address)
		require.True(t, ok)
		assert.Equal(t, "WETH", token.Symbol)

		_, ok = set.GetByAddress(common.HexToAddress("0x9"))
		assert.False(t, ok)
	})

	t.Run("GetBySymbol", func(t *testing.T) {
		token, ok := set.GetBySymbol("USDC")
		require.True(t, ok)
		assert.Equal(t, uint8(6), token.Decimals)
	})

	t.Run("AllIsACopy", func(t *testing.T) {
		all := set.All()
		require.Len(t, all, 2)
		all[0] = Token{}
		assert.Equal(t, 2, set.Len())
		_, ok := set.GetByAddress(weth.Address)
		assert.True(t, ok)
	})
}

func TestTokenScale(t *testing.T) {
	testCases := []struct {
		decimals uint8
		expected string
	}{
		{0, "1"},
		{6, "1000000"},
		{18, "1000000000000000000"},
	}
	for _, tc := range testCases {
		token := Token{Decimals: tc.decimals}
		expected, _ := new(big.Int).SetString(tc.expected, 10)
		assert.Equal(t, 0, expected.Cmp(token.Scale()), "decimals %d", tc.decimals)
	}
}
