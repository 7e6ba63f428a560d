package stableswap

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/tokens"
)

// State is the whole balance snapshot of a stable-swap pool. Balances are in
// each token's native decimals, in the same order as the pool's tokens.
type State struct {
	Balances []*big.Int `json:"balances"`
	Observed time.Time  `json:"observed"`
}

// StateKind implements pools.State.
func (State) StateKind() pools.Kind { return pools.KindStableSwap }

func (s State) deepCopy() State {
	copied := s
	copied.Balances = make([]*big.Int, len(s.Balances))
	for i, b := range s.Balances {
		if b != nil {
			copied.Balances[i] = new(big.Int).Set(b)
		}
	}
	return copied
}

func (s State) validate(n int) error {
	if len(s.Balances) != n {
		return fmt.Errorf("%w: %d balances for %d tokens", pools.ErrInvalidState, len(s.Balances), n)
	}
	for _, b := range s.Balances {
		if b == nil || b.Sign() < 0 {
			return fmt.Errorf("%w: nil or negative balance", pools.ErrInvalidState)
		}
	}
	return nil
}

// Pool is an N-token stable-swap venue using the Curve invariant with
// amplification coefficient amp. Pool values are immutable.
type Pool struct {
	address common.Address
	tokens  []tokens.Token
	amp     uint64
	feeBps  uint16
	state   State

	// tokenIndex caches constituent positions for quoting.
	tokenIndex map[common.Address]int
}

// New creates a stable-swap pool. At least two tokens are required, and the
// initial state must carry one balance per token.
func New(address common.Address, constituents []tokens.Token, amp uint64, feeBps uint16, state State) (*Pool, error) {
	if len(constituents) < 2 {
		return nil, fmt.Errorf("%w: stable-swap pool needs at least two tokens", pools.ErrInvalidState)
	}
	if amp == 0 {
		return nil, fmt.Errorf("%w: zero amplification coefficient", pools.ErrInvalidState)
	}
	if err := state.validate(len(constituents)); err != nil {
		return nil, err
	}

	tokenIndex := make(map[common.Address]int, len(constituents))
	for i, t := range constituents {
		if _, dup := tokenIndex[t.Address]; dup {
			return nil, fmt.Errorf("%w: duplicate constituent token %s", pools.ErrInvalidState, t.Address)
		}
		tokenIndex[t.Address] = i
	}

	return &Pool{
		address:    address,
		tokens:     append([]tokens.Token(nil), constituents...),
		amp:        amp,
		feeBps:     feeBps,
		state:      state.deepCopy(),
		tokenIndex: tokenIndex,
	}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Kind() pools.Kind        { return pools.KindStableSwap }
func (p *Pool) FeeBps() uint16          { return p.feeBps }
func (p *Pool) UpdatedAt() time.Time    { return p.state.Observed }

// Amp returns the pool's amplification coefficient.
func (p *Pool) Amp() uint64 { return p.amp }

func (p *Pool) Tokens() []tokens.Token {
	return append([]tokens.Token(nil), p.tokens...)
}

func (p *Pool) Contains(token common.Address) bool {
	_, ok := p.tokenIndex[token]
	return ok
}

// normalized returns the balances scaled to 18-decimal precision.
func (p *Pool) normalized() []*big.Int {
	xp := make([]*big.Int, len(p.state.Balances))
	for i, b := range p.state.Balances {
		scaled := new(big.Int).Mul(b, normalizedPrecision)
		xp[i] = scaled.Div(scaled, p.tokens[i].Scale())
	}
	return xp
}

func (p *Pool) pair(tokenIn, tokenOut common.Address) (i, j int, err error) {
	i, okIn := p.tokenIndex[tokenIn]
	j, okOut := p.tokenIndex[tokenOut]
	if !okIn || !okOut || i == j {
		return 0, 0, fmt.Errorf(
			"%w: pool %s does not contain the pair %s -> %s", pools.ErrTokenMismatch, p.address, tokenIn, tokenOut,
		)
	}
	return i, j, nil
}

// Quote implements pools.Pool. The fee is charged on the output, and all
// roundings go against the trader.
func (p *Pool) Quote(amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if amountIn == nil {
		return nil, pools.ErrNilAmount
	}
	if amountIn.Sign() < 0 {
		return nil, pools.ErrInvalidAmount
	}
	i, j, err := p.pair(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}

	xp := p.normalized()
	d, err := getD(xp, p.amp)
	if err != nil {
		return nil, err
	}

	// Normalize the input and move the input-side balance.
	dxNorm := new(big.Int).Mul(amountIn, normalizedPrecision)
	dxNorm.Div(dxNorm, p.tokens[i].Scale())
	x := new(big.Int).Add(xp[i], dxNorm)

	y, err := getY(i, j, x, xp, p.amp, d)
	if err != nil {
		return nil, err
	}

	// dy = xp[j] - y - 1; the -1 rounds against the trader.
	dy := new(big.Int).Sub(xp[j], y)
	dy.Sub(dy, one)
	if dy.Sign() <= 0 {
		return nil, fmt.Errorf("%w: pool %s cannot cover the requested output", pools.ErrInsufficientLiquidity, p.address)
	}

	// Charge the fee on the output.
	fee := new(big.Int).Mul(dy, big.NewInt(int64(p.feeBps)))
	fee.Div(fee, basisPointDivisor)
	dy.Sub(dy, fee)

	// Scale back to the output token's native decimals.
	dy.Mul(dy, p.tokens[j].Scale())
	dy.Div(dy, normalizedPrecision)
	return dy, nil
}

// QuoteForOutput implements pools.Pool via bisection on Quote: the invariant
// has no closed-form inverse once fees are applied, so we search for the
// smallest input whose quote covers the requested output.
func (p *Pool) QuoteForOutput(amountOut *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	if amountOut == nil {
		return nil, pools.ErrNilAmount
	}
	if amountOut.Sign() < 0 {
		return nil, pools.ErrInvalidAmount
	}
	i, j, err := p.pair(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if amountOut.Cmp(p.state.Balances[j]) >= 0 {
		return nil, fmt.Errorf(
			"%w: requested amountOut (%s) is >= balance (%s)",
			pools.ErrInsufficientLiquidity, amountOut.String(), p.state.Balances[j].String(),
		)
	}

	// Upper bound: the whole input-side balance scaled by the amplified pool
	// is more than enough for any reachable output; double until covered.
	lo := new(big.Int).Set(one)
	hi := new(big.Int).Set(p.state.Balances[i])
	if hi.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty input-side balance", pools.ErrInsufficientLiquidity)
	}
	for {
		out, err := p.Quote(hi, tokenIn, tokenOut)
		if err == nil && out.Cmp(amountOut) >= 0 {
			break
		}
		hi.Lsh(hi, 1)
		// Reachability cap: beyond 2^8 doublings the output side is exhausted.
		if hi.BitLen() > p.state.Balances[i].BitLen()+8 {
			return nil, fmt.Errorf("%w: output unreachable for pool %s", pools.ErrInsufficientLiquidity, p.address)
		}
	}

	mid := new(big.Int)
	for lo.Cmp(hi) < 0 {
		mid.Add(lo, hi)
		mid.Rsh(mid, 1)
		out, err := p.Quote(mid, tokenIn, tokenOut)
		if err == nil && out.Cmp(amountOut) >= 0 {
			hi.Set(mid)
		} else {
			lo.Add(mid, one)
		}
	}
	return new(big.Int).Set(lo), nil
}

// SpotPrice implements pools.Pool by probing the curve with a small input
// (1/1000 of the input-side balance) and measuring the resulting rate. The
// fee is backed out of the probe so the price is fee-exclusive, matching the
// reserve-ratio convention of the other pool kinds.
func (p *Pool) SpotPrice(tokenIn, tokenOut common.Address) (decimal.Decimal, error) {
	i, j, err := p.pair(tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, err
	}
	probe := new(big.Int).Div(p.state.Balances[i], big.NewInt(1000))
	if probe.Sign() == 0 {
		return decimal.Zero, fmt.Errorf("%w: pool %s has an empty balance", pools.ErrInsufficientLiquidity, p.address)
	}
	out, err := p.Quote(probe, tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, err
	}
	num := decimal.NewFromBigInt(out, -int32(p.tokens[j].Decimals))
	den := decimal.NewFromBigInt(probe, -int32(p.tokens[i].Decimals))
	rate := num.Div(den)
	if p.feeBps > 0 {
		// keep = (10000 - feeBps) / 10000, the fraction of output retained.
		keep := decimal.New(10000-int64(p.feeBps), -4)
		rate = rate.Div(keep)
	}
	return rate, nil
}

// Liquidity returns the pool's balance of the given token.
func (p *Pool) Liquidity(token common.Address) (*big.Int, error) {
	i, ok := p.tokenIndex[token]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s does not contain token %s", pools.ErrTokenMismatch, p.address, token)
	}
	return new(big.Int).Set(p.state.Balances[i]), nil
}

// WithState implements pools.Pool.
func (p *Pool) WithState(state pools.State) (pools.Pool, error) {
	next, ok := state.(State)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s state, got %s", pools.ErrInvalidState, p.Kind(), state.StateKind())
	}
	if err := next.validate(len(p.tokens)); err != nil {
		return nil, err
	}
	replaced := *p
	replaced.state = next.deepCopy()
	return &replaced, nil
}
