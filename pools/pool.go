package pools

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/swapgraph/swapgraph-go/tokens"
)

var (
	// ErrInvalidAmount is returned when an input/output amount is nil or negative.
	ErrInvalidAmount = errors.New("amount must be non-nil and non-negative")
	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrTokenMismatch is returned when the specified input/output tokens do not match the pool's tokens.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrInvalidState is returned for internal calculation errors, like division by zero,
	// and when a state replace carries the wrong kind or shape for the pool.
	ErrInvalidState = errors.New("invalid pool state")
	// ErrInsufficientLiquidity is returned when a quote exceeds the pool's capacity,
	// i.e. it would drive an output reserve to or below zero.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
)

// Kind tags which curve-math variant applies to a pool.
type Kind uint8

const (
	KindConstantProduct Kind = iota + 1
	KindStableSwap
	KindConcentrated
)

func (k Kind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant-product"
	case KindStableSwap:
		return "stable-swap"
	case KindConcentrated:
		return "concentrated"
	default:
		return "unknown"
	}
}

// State is a whole reserve/liquidity snapshot for a pool of a specific kind.
// Each curve package defines its own concrete State; a pool only accepts a
// state of its own kind.
type State interface {
	StateKind() Kind
}

// Pool is the quotable-curve capability shared by every venue kind. All methods
// are pure functions of the pool's current snapshot: no side effects, and
// deterministic given the same state. Implementations are immutable values;
// WithState returns a fresh pool carrying the replaced state, which is how the
// index performs atomic whole-state replacement without exposing torn reads.
type Pool interface {
	// Address returns the pool's chain-unique address.
	Address() common.Address

	// Kind reports which curve-math variant applies.
	Kind() Kind

	// Tokens returns the pool's constituent tokens in canonical order.
	Tokens() []tokens.Token

	// FeeBps returns the swap fee in basis points (30 = 0.3%).
	FeeBps() uint16

	// Contains reports whether the token is a constituent of the pool.
	Contains(token common.Address) bool

	// Quote computes the output amount of tokenOut for swapping amountIn of
	// tokenIn, rounding in the direction unfavorable to the trader.
	Quote(amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error)

	// QuoteForOutput computes the input amount of tokenIn required to receive
	// exactly amountOut of tokenOut, rounding up (unfavorable to the trader).
	QuoteForOutput(amountOut *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error)

	// SpotPrice returns the marginal price of tokenIn in terms of tokenOut,
	// adjusted for token decimals.
	SpotPrice(tokenIn, tokenOut common.Address) (decimal.Decimal, error)

	// Liquidity returns the pool's available reserve of the given token.
	Liquidity(token common.Address) (*big.Int, error)

	// WithState returns a new pool with the reserve state replaced as a whole.
	WithState(state State) (Pool, error)

	// UpdatedAt reports when the pool's state was last replaced. Staleness is
	// derived from this by callers; stale pools are never deleted.
	UpdatedAt() time.Time
}
