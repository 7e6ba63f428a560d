package constprod

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/tokens"
)

// State is the whole reserve snapshot of a constant-product pool. It is only
// ever applied as a unit via Pool.WithState, never field-by-field.
type State struct {
	Reserve0 *big.Int  `json:"reserve0"`
	Reserve1 *big.Int  `json:"reserve1"`
	Observed time.Time `json:"observed"`
}

// StateKind implements pools.State.
func (State) StateKind() pools.Kind { return pools.KindConstantProduct }

// deepCopy creates a new State with its own memory for the *big.Int reserves,
// so the pool never shares mutable memory with the caller.
func (s State) deepCopy() State {
	copied := s
	if s.Reserve0 != nil {
		copied.Reserve0 = new(big.Int).Set(s.Reserve0)
	}
	if s.Reserve1 != nil {
		copied.Reserve1 = new(big.Int).Set(s.Reserve1)
	}
	return copied
}

func (s State) validate() error {
	if s.Reserve0 == nil || s.Reserve1 == nil {
		return fmt.Errorf("%w: nil reserve", pools.ErrInvalidState)
	}
	if s.Reserve0.Sign() < 0 || s.Reserve1.Sign() < 0 {
		return fmt.Errorf("%w: negative reserve", pools.ErrInvalidState)
	}
	return nil
}

// Pool is a two-token constant-product (x*y=k) venue. Pool values are
// immutable; WithState returns a fresh pool carrying the replaced reserves.
type Pool struct {
	address common.Address
	token0  tokens.Token
	token1  tokens.Token
	feeBps  uint16
	state   State
}

// New creates a constant-product pool from its identity and an initial state.
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
func (p *Pool) Kind() pools.Kind        { return pools.KindConstantProduct }
func (p *Pool) FeeBps() uint16          { return p.feeBps }
func (p *Pool) UpdatedAt() time.Time    { return p.state.Observed }

func (p *Pool) Tokens() []tokens.Token {
	return []tokens.Token{p.token0, p.token1}
}

func (p *Pool) Contains(token common.Address) bool {
	return token == p.token0.Address || token == p.token1.Address
}

// reservesFor returns the (reserveIn, reserveOut) pair oriented for a trade
// from tokenIn to tokenOut. The returned values are the pool's own and MUST
// NOT be modified by callers.
func (p *Pool) reservesFor(tokenIn, tokenOut common.Address) (reserveIn, reserveOut *big.Int, err error) {
	if tokenIn == p.token0.Address && tokenOut == p.token1.Address {
		return p.state.Reserve0, p.state.Reserve1, nil
	}
	if tokenIn == p.token1.Address && tokenOut == p.token0.Address {
		return p.state.Reserve1, p.state.Reserve0, nil
	}
	return nil, nil, fmt.Errorf(
		"%w: pool %s does not contain the pair %s -> %s", pools.ErrTokenMismatch, p.address, tokenIn, tokenOut,
	)
}

// Quote implements pools.Pool.
func (p *Pool) Quote(amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	reserveIn, reserveOut, err := p.reservesFor(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return getAmountOut(amountIn, reserveIn, reserveOut, p.feeBps)
}

// QuoteForOutput implements pools.Pool.
func (p *Pool) QuoteForOutput(amountOut *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	reserveIn, reserveOut, err := p.reservesFor(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return getAmountIn(amountOut, reserveIn, reserveOut, p.feeBps)
}

// SpotPrice returns the marginal price of tokenIn in terms of tokenOut,
// adjusted for decimals: (reserveOut/10^decOut) / (reserveIn/10^decIn).
func (p *Pool) SpotPrice(tokenIn, tokenOut common.Address) (decimal.Decimal, error) {
	reserveIn, reserveOut, err := p.reservesFor(tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, err
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return decimal.Zero, fmt.Errorf("%w: pool %s has an empty reserve", pools.ErrInsufficientLiquidity, p.address)
	}

	in, out := p.token0, p.token1
	if tokenIn == p.token1.Address {
		in, out = p.token1, p.token0
	}
	num := decimal.NewFromBigInt(reserveOut, -int32(out.Decimals))
	den := decimal.NewFromBigInt(reserveIn, -int32(in.Decimals))
	return num.Div(den), nil
}

// Liquidity returns the pool's reserve of the given token.
func (p *Pool) Liquidity(token common.Address) (*big.Int, error) {
	switch token {
	case p.token0.Address:
		return new(big.Int).Set(p.state.Reserve0), nil
	case p.token1.Address:
		return new(big.Int).Set(p.state.Reserve1), nil
	}
	return nil, fmt.Errorf("%w: pool %s does not contain token %s", pools.ErrTokenMismatch, p.address, token)
}

// WithState implements pools.Pool. The entire reserve state is replaced
// atomically: readers holding the old pool keep a consistent snapshot.
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

// State returns a deep copy of the pool's current reserve snapshot.
func (p *Pool) State() State {
	return p.state.deepCopy()
}

// SimulateSwap quotes a swap and returns the post-trade pool, used by callers
// that need to chain hypothetical trades against a moving snapshot.
func (p *Pool) SimulateSwap(amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, *Pool, error) {
	amountOut, err := p.Quote(amountIn, tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}

	next := p.state.deepCopy()
	if tokenIn == p.token0.Address {
		next.Reserve0.Add(next.Reserve0, amountIn)
		next.Reserve1.Sub(next.Reserve1, amountOut)
	} else {
		next.Reserve1.Add(next.Reserve1, amountIn)
		next.Reserve0.Sub(next.Reserve0, amountOut)
	}

	replaced := *p
	replaced.state = next
	return amountOut, &replaced, nil
}
