package constprod

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/swapgraph/swapgraph-go/pools"
)

// basisPointDivisor is a constant representing 100% in basis points (10000).
var basisPointDivisor = big.NewInt(10000)

var one = big.NewInt(1)

// calculator holds reusable big.Int objects to avoid memory allocations during
// quoting. Instances are NOT safe for concurrent use by themselves; they are
// managed by the sync.Pool below.
type calculator struct {
	// Reusable objects for getAmountOut
	feeMultiplier   *big.Int
	amountInWithFee *big.Int
	numerator       *big.Int
	denominator     *big.Int

	// Reusable objects for getAmountIn
	numeratorIn   *big.Int
	denominatorIn *big.Int
}

// calculatorPool manages a pool of calculator objects, allowing safe concurrent
// use while drastically reducing memory allocations.
var calculatorPool = sync.Pool{
	New: func() any {
		return &calculator{
			feeMultiplier:   new(big.Int),
			amountInWithFee: new(big.Int),
			numerator:       new(big.Int),
			denominator:     new(big.Int),
			numeratorIn:     new(big.Int),
			denominatorIn:   new(big.Int),
		}
	},
}

// getAmountOut computes the constant-product output amount:
//
//	amountOut = reserveOut * amountIn * (10000-feeBps) / (reserveIn*10000 + amountIn*(10000-feeBps))
//
// The integer division floors the result, which rounds against the trader,
// matching on-chain behavior.
func getAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if amountIn == nil {
		return nil, pools.ErrNilAmount
	}
	if amountIn.Sign() < 0 {
		return nil, pools.ErrInvalidAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: pool has empty reserves", pools.ErrInsufficientLiquidity)
	}

	calc := calculatorPool.Get().(*calculator)
	defer calculatorPool.Put(calc)

	calc.feeMultiplier.Sub(basisPointDivisor, big.NewInt(int64(feeBps)))
	calc.amountInWithFee.Mul(amountIn, calc.feeMultiplier)
	calc.numerator.Mul(reserveOut, calc.amountInWithFee)
	calc.denominator.Mul(reserveIn, basisPointDivisor)
	calc.denominator.Add(calc.denominator, calc.amountInWithFee)

	if calc.denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", pools.ErrInvalidState)
	}

	return new(big.Int).Div(calc.numerator, calc.denominator), nil
}

// getAmountIn computes the required input for a desired output. The +1 at the
// end rounds the requirement up, against the trader.
func getAmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if amountOut == nil {
		return nil, pools.ErrNilAmount
	}
	if amountOut.Sign() < 0 {
		return nil, pools.ErrInvalidAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf(
			"%w: requested amountOut (%s) is >= reserveOut (%s)",
			pools.ErrInsufficientLiquidity, amountOut.String(), reserveOut.String(),
		)
	}

	calc := calculatorPool.Get().(*calculator)
	defer calculatorPool.Put(calc)

	calc.numeratorIn.Mul(reserveIn, amountOut)
	calc.numeratorIn.Mul(calc.numeratorIn, basisPointDivisor)

	calc.feeMultiplier.Sub(basisPointDivisor, big.NewInt(int64(feeBps)))
	calc.denominatorIn.Sub(reserveOut, amountOut)
	calc.denominatorIn.Mul(calc.denominatorIn, calc.feeMultiplier)

	if calc.denominatorIn.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool denominator is zero", pools.ErrInvalidState)
	}

	// amountIn = (reserveIn * amountOut * 10000) / ((reserveOut - amountOut) * (10000-feeBps)) + 1
	amountIn := new(big.Int).Div(calc.numeratorIn, calc.denominatorIn)
	return amountIn.Add(amountIn, one), nil
}
