package tokens

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ten = big.NewInt(10)

// precomputed 10^dec for typical ERC20 decimals (0..18)
var precomputedScales [19]*big.Int

func init() {
	precomputedScales[0] = big.NewInt(1)
	for i := 1; i < len(precomputedScales); i++ {
		precomputedScales[i] = new(big.Int).Mul(precomputedScales[i-1], ten)
	}
}

// Token is a resolved representation of a token's identity. Tokens are immutable
// once resolved; components reference them by address everywhere else.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Scale returns 10^Decimals. The returned *big.Int MUST NOT be modified:
// for decimals <= 18 it is a shared precomputed value.
func (t Token) Scale() *big.Int {
	if int(t.Decimals) < len(precomputedScales) {
		return precomputedScales[t.Decimals]
	}

	// rare path: compute on the fly
	return new(big.Int).Exp(ten, big.NewInt(int64(t.Decimals)), nil)
}
