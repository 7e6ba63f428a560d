package concentrated

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/tokens"
)

// q96 is the fixed-point scale for tick prices: prices are stored as
// token1-per-token0 ratios multiplied by 2^96.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

var (
	one               = big.NewInt(1)
	basisPointDivisor = big.NewInt(10000)
)

// Tick is one liquidity range. The price is treated as constant within the
// range (piecewise-constant model); Reserve0/Reserve1 are the amounts of each
// token the range can supply before the trade crosses into the next tick.
type Tick struct {
	Index    int32        `json:"index"`
	PriceX96 *uint256.Int `json:"priceX96"`
	Reserve0 *big.Int     `json:"reserve0"`
	Reserve1 *big.Int     `json:"reserve1"`
}

// State is the whole tick-ladder snapshot of a concentrated-liquidity pool.
// Ticks must be sorted ascending by Index; Current names the active range.
type State struct {
	Ticks    []Tick    `json:"ticks"`
	Current  int32     `json:"current"`
	Observed time.Time `json:"observed"`
}

// StateKind implements pools.State.
func (State) StateKind() pools.Kind { return pools.KindConcentrated }

func (s State) deepCopy() State {
	copied := s
	copied.Ticks = make([]Tick, len(s.Ticks))
	for i, t := range s.Ticks {
		ct := Tick{Index: t.Index}
		if t.PriceX96 != nil {
			ct.PriceX96 = new(uint256.Int).Set(t.PriceX96)
		}
		if t.Reserve0 != nil {
			ct.Reserve0 = new(big.Int).Set(t.Reserve0)
		}
		if t.Reserve1 != nil {
			ct.Reserve1 = new(big.Int).Set(t.Reserve1)
		}
		copied.Ticks[i] = ct
	}
	return copied
}

func (s State) validate() error {
	if len(s.Ticks) == 0 {
		return fmt.Errorf("%w: empty tick ladder", pools.ErrInvalidState)
	}
	for i, t := range s.Ticks {
		if t.PriceX96 == nil || t.PriceX96.IsZero() {
			return fmt.Errorf("%w: tick %d has no price", pools.ErrInvalidState, t.Index)
		}
		if t.Reserve0 == nil || t.Reserve1 == nil || t.Reserve0.Sign() < 0 || t.Reserve1.Sign() < 0 {
			return fmt.Errorf("%w: tick %d has nil or negative reserves", pools.ErrInvalidState, t.Index)
		}
		if i > 0 && s.Ticks[i-1].Index >= t.Index {
			return fmt.Errorf("%w: ticks not strictly ascending", pools.ErrInvalidState)
		}
	}
	if _, ok := s.position(s.Current); !ok {
		return fmt.Errorf("%w: current tick %d not in ladder", pools.ErrInvalidState, s.Current)
	}
	return nil
}

// position finds the slice position of the tick with the given index.
func (s State) position(index int32) (int, bool) {
	i := sort.Search(len(s.Ticks), func(i int) bool { return s.Ticks[i].Index >= index })
	if i < len(s.Ticks) && s.Ticks[i].Index == index {
		return i, true
	}
	return 0, false
}

// Pool is a two-token concentrated-liquidity venue modeled as a ladder of
// piecewise-constant price ranges. Pool values are immutable.
type Pool struct {
	address common.Address
	token0  tokens.Token
	token1  tokens.Token
	feeBps  uint16
	state   State
}

// New creates a concentrated-liquidity pool from its identity and a tick
// ladder snapshot.
func New(address common.Address, token0, token1 tokens.Token, feeBps uint16, state State) (*Pool, error) {
	if token0.Address == token1.Address {
		return nil, fmt.Errorf("%w: identical constituent tokens", pools.ErrInvalidState)
	}
	if err := state.validate(); err != nil {
		return nil, err
	}
	return &Pool{
		address: address,
		token0:  token0,
		token1:  token1,
		feeBps:  feeBps,
		state:   state.deepCopy(),
	}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Kind() pools.Kind        { return pools.KindConcentrated }
func (p *Pool) FeeBps() uint16          { return p.feeBps }
func (p *Pool) UpdatedAt() time.Time    { return p.state.Observed }

func (p *Pool) Tokens() []tokens.Token {
	return []tokens.Token{p.token0, p.token1}
}

func (p *Pool) Contains(token common.Address) bool {
	return token == p.token0.Address || token == p.token1.Address
}

func (p *Pool) direction(tokenIn, tokenOut common.Address) (zeroForOne bool, err error) {
	if tokenIn == p.token0.Address && tokenOut == p.token1.Address {
		return true, nil
	}
	if tokenIn == p.token1.Address && tokenOut == p.token0.Address {
		return false, nil
	}
	return false, fmt.Errorf(
		"%w: pool %s does not contain the pair %s -> %s", pools.ErrTokenMismatch, p.address, tokenIn, tokenOut,
	)
}

// Quote implements pools.Pool. The fee is charged on the input; the walk then
// consumes ranges at their constant price until the input is spent. Running
// out of ranges with input remaining is InsufficientLiquidity.
func (p *Pool) Quote(amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if amountIn == nil {
		return nil, pools.ErrNilAmount
	}
	if amountIn.Sign() < 0 {
		return nil, pools.ErrInvalidAmount
	}
	zeroForOne, err := p.direction(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	// effIn = amountIn * (10000-feeBps) / 10000, floored against the trader.
	effIn := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-p.feeBps)))
	effIn.Div(effIn, basisPointDivisor)

	out := new(big.Int)
	err = p.walk(zeroForOne, func(price, capacityOut, capacityIn *big.Int) bool {
		if effIn.Sign() == 0 {
			return false
		}
		rangeOut := convert(effIn, price, zeroForOne, false)
		if rangeOut.Cmp(capacityOut) <= 0 {
			out.Add(out, rangeOut)
			effIn.SetUint64(0)
			return false
		}
		// Exhaust the range: charge the input needed for its full output.
		out.Add(out, capacityOut)
		used := convert(capacityOut, price, !zeroForOne, true)
		effIn.Sub(effIn, used)
		if effIn.Sign() < 0 {
			effIn.SetUint64(0)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if effIn.Sign() > 0 {
		return nil, fmt.Errorf("%w: tick ladder exhausted in pool %s", pools.ErrInsufficientLiquidity, p.address)
	}
	return out, nil
}

// QuoteForOutput implements pools.Pool. The walk accumulates the effective
// input for the requested output, then grosses the fee back up, rounding up.
func (p *Pool) QuoteForOutput(amountOut *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if amountOut == nil {
		return nil, pools.ErrNilAmount
	}
	if amountOut.Sign() < 0 {
		return nil, pools.ErrInvalidAmount
	}
	zeroForOne, err := p.direction(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	remaining := new(big.Int).Set(amountOut)
	effIn := new(big.Int)
	err = p.walk(zeroForOne, func(price, capacityOut, capacityIn *big.Int) bool {
		if remaining.Sign() == 0 {
			return false
		}
		take := remaining
		if capacityOut.Cmp(remaining) < 0 {
			take = capacityOut
		}
		effIn.Add(effIn, convert(take, price, !zeroForOne, true))
		remaining.Sub(remaining, take)
		return remaining.Sign() > 0
	})
	if err != nil {
		return nil, err
	}
	if remaining.Sign() > 0 {
		return nil, fmt.Errorf(
			"%w: requested amountOut (%s) exceeds ladder capacity in pool %s",
			pools.ErrInsufficientLiquidity, amountOut.String(), p.address,
		)
	}

	// amountIn = ceil(effIn * 10000 / (10000-feeBps))
	amountIn := new(big.Int).Mul(effIn, basisPointDivisor)
	amountIn = ceilDiv(amountIn, big.NewInt(int64(10000-p.feeBps)))
	return amountIn, nil
}

// walk visits ranges starting at the current tick, moving down-ladder when
// selling token0 and up-ladder when selling token1. The step callback receives
// the range price and the capacities of the output and input side; it returns
// true to continue into the next range.
func (p *Pool) walk(zeroForOne bool, step func(price, capacityOut, capacityIn *big.Int) bool) error {
	pos, ok := p.state.position(p.state.Current)
	if !ok {
		return fmt.Errorf("%w: current tick missing from ladder", pools.ErrInvalidState)
	}

	delta := -1
	if !zeroForOne {
		delta = 1
	}
	for ; pos >= 0 && pos < len(p.state.Ticks); pos += delta {
		t := p.state.Ticks[pos]
		price := t.PriceX96.ToBig()
		capacityOut, capacityIn := t.Reserve1, t.Reserve0
		if !zeroForOne {
			capacityOut, capacityIn = t.Reserve0, t.Reserve1
		}
		if !step(price, capacityOut, capacityIn) {
			return nil
		}
	}
	return nil
}

// convert translates an amount across a range price. With toToken1 true the
// amount is token0 and the result token1 (amount*price/2^96); otherwise the
// inverse. roundUp selects the trader-unfavorable rounding for input-side
// requirements.
func convert(amount, priceX96 *big.Int, toToken1, roundUp bool) *big.Int {
	num := new(big.Int)
	if toToken1 {
		num.Mul(amount, priceX96)
		if roundUp {
			return ceilDiv(num, q96)
		}
		return num.Div(num, q96)
	}
	num.Mul(amount, q96)
	if roundUp {
		return ceilDiv(num, priceX96)
	}
	return num.Div(num, priceX96)
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, one)
	}
	return q
}

// SpotPrice implements pools.Pool using the active range's price.
func (p *Pool) SpotPrice(tokenIn, tokenOut common.Address) (decimal.Decimal, error) {
	zeroForOne, err := p.direction(tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, err
	}
	pos, ok := p.state.position(p.state.Current)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: current tick missing from ladder", pools.ErrInvalidState)
	}

	// price = PriceX96 / 2^96, adjusted to human units by the decimal gap.
	raw := decimal.NewFromBigInt(p.state.Ticks[pos].PriceX96.ToBig(), 0).
		Div(decimal.NewFromBigInt(q96, 0))
	adjust := decimal.New(1, int32(p.token0.Decimals)-int32(p.token1.Decimals))
	price := raw.Mul(adjust)
	if !zeroForOne {
		if price.IsZero() {
			return decimal.Zero, fmt.Errorf("%w: zero price in pool %s", pools.ErrInvalidState, p.address)
		}
		price = decimal.New(1, 0).Div(price)
	}
	return price, nil
}

// Liquidity returns the total reserve of the given token across all ranges.
func (p *Pool) Liquidity(token common.Address) (*big.Int, error) {
	if !p.Contains(token) {
		return nil, fmt.Errorf("%w: pool %s does not contain token %s", pools.ErrTokenMismatch, p.address, token)
	}
	total := new(big.Int)
	for _, t := range p.state.Ticks {
		if token == p.token0.Address {
			total.Add(total, t.Reserve0)
		} else {
			total.Add(total, t.Reserve1)
		}
	}
	return total, nil
}

// WithState implements pools.Pool.
func (p *Pool) WithState(state pools.State) (pools.Pool, error) {
	next, ok := state.(State)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s state, got %s", pools.ErrInvalidState, p.Kind(), state.StateKind())
	}
	if err := next.validate(); err != nil {
		return nil, err
	}
	replaced := *p
	replaced.state = next.deepCopy()
	return &replaced, nil
}
