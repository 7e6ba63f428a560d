// Package router enumerates and evaluates swap routes over the pair graph.
package router

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/swapgraph/swapgraph-go/pools"
)

const basisPointDivisor = 10_000

// Hop is one pool traversal within a route, with an explicit direction.
type Hop struct {
	Pool     pools.Pool
	TokenIn  common.Address
	TokenOut common.Address
}

// Route is an ordered sequence of hops where each hop's output token is the
// next hop's input token. A route never visits a token twice.
type Route []Hop

// Source returns the route's input token.
func (r Route) Source() common.Address {
	if len(r) == 0 {
		return common.Address{}
	}
	return r[0].TokenIn
}

// Destination returns the route's output token.
func (r Route) Destination() common.Address {
	if len(r) == 0 {
		return common.Address{}
	}
	return r[len(r)-1].TokenOut
}

// Tokens returns the token path, source first.
func (r Route) Tokens() []common.Address {
	if len(r) == 0 {
		return nil
	}
	path := make([]common.Address, 0, len(r)+1)
	path = append(path, r[0].TokenIn)
	for _, hop := range r {
		path = append(path, hop.TokenOut)
	}
	return path
}

// QuoteIn chains an exact-input quote through every hop, feeding each hop's
// output into the next. Any hop error aborts the quote.
func (r Route) QuoteIn(amountIn *big.Int) (*big.Int, error) {
	if len(r) == 0 {
		return nil, fmt.Errorf("%w: empty route", pools.ErrInvalidAmount)
	}
	amount := amountIn
	for i, hop := range r {
		out, err := hop.Pool.Quote(amount, hop.TokenIn, hop.TokenOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s): %w", i, hop.Pool.Address(), err)
		}
		amount = out
	}
	return amount, nil
}

// QuoteForOutput chains an exact-output quote backwards through the route,
// computing the input each hop requires to deliver the next hop's input.
func (r Route) QuoteForOutput(amountOut *big.Int) (*big.Int, error) {
	if len(r) == 0 {
		return nil, fmt.Errorf("%w: empty route", pools.ErrInvalidAmount)
	}
	amount := amountOut
	for i := len(r) - 1; i >= 0; i-- {
		hop := r[i]
		in, err := hop.Pool.QuoteForOutput(amount, hop.TokenIn, hop.TokenOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s): %w", i, hop.Pool.Address(), err)
		}
		amount = in
	}
	return amount, nil
}

// SpotPrice returns the route's marginal zero-size price, the product of the
// per-hop spot prices.
func (r Route) SpotPrice() (decimal.Decimal, error) {
	if len(r) == 0 {
		return decimal.Zero, fmt.Errorf("%w: empty route", pools.ErrInvalidAmount)
	}
	price := decimal.NewFromInt(1)
	for i, hop := range r {
		hopPrice, err := hop.Pool.SpotPrice(hop.TokenIn, hop.TokenOut)
		if err != nil {
			return decimal.Zero, fmt.Errorf("hop %d (%s): %w", i, hop.Pool.Address(), err)
		}
		price = price.Mul(hopPrice)
	}
	return price, nil
}

// Liquidity returns the route's depth in source-token terms: each hop's input
// reserve is converted back to the source token using the cumulative spot
// price up to that hop, and the minimum across hops is the bottleneck.
func (r Route) Liquidity() (*big.Int, error) {
	if len(r) == 0 {
		return nil, fmt.Errorf("%w: empty route", pools.ErrInvalidAmount)
	}

	cumulative := decimal.NewFromInt(1)
	var bottleneck decimal.Decimal
	for i, hop := range r {
		reserve, err := hop.Pool.Liquidity(hop.TokenIn)
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s): %w", i, hop.Pool.Address(), err)
		}

		normalized := decimal.NewFromBigInt(reserve, 0)
		if !cumulative.IsZero() {
			normalized = normalized.Div(cumulative)
		}
		if i == 0 || normalized.LessThan(bottleneck) {
			bottleneck = normalized
		}

		hopPrice, err := hop.Pool.SpotPrice(hop.TokenIn, hop.TokenOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d (%s): %w", i, hop.Pool.Address(), err)
		}
		cumulative = cumulative.Mul(hopPrice)
	}
	return bottleneck.Floor().BigInt(), nil
}

// TotalFee returns the route's compounded fee as a fraction of input,
// 1 - prod(1 - fee_i).
func (r Route) TotalFee() decimal.Decimal {
	retained := decimal.NewFromInt(1)
	divisor := decimal.NewFromInt(basisPointDivisor)
	for _, hop := range r {
		hopRetained := decimal.NewFromInt(basisPointDivisor - int64(hop.Pool.FeeBps())).Div(divisor)
		retained = retained.Mul(hopRetained)
	}
	return decimal.NewFromInt(1).Sub(retained)
}

// String renders the token path for logs, e.g. "0xA -> 0xB -> 0xC".
func (r Route) String() string {
	path := r.Tokens()
	if len(path) == 0 {
		return "<empty route>"
	}
	out := path[0].Hex()
	for _, token := range path[1:] {
		out += " -> " + token.Hex()
	}
	return out
}
