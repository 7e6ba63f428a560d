// Package solver splits orders across candidate routes so that the marginal
// cost of the last unit is equalized, minimizing total price impact.
package solver

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/swapgraph/swapgraph-go/tokens"
)

var (
	// ErrInvalidOrder is returned when an order's fields are inconsistent.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrUnfillable is returned when available liquidity cannot satisfy the
	// order, or a limit or deadline cannot be honored. A partial Solution may
	// accompany it so callers can inspect how far the solver got.
	ErrUnfillable = errors.New("order unfillable")
)

// Order is a request to trade Have for Want. Exactly one of AmountIn and
// AmountOut must be set: AmountIn asks "sell exactly this much", AmountOut
// asks "buy exactly this much".
type Order struct {
	Have tokens.Token
	Want tokens.Token

	// AmountIn is the exact input for a sell order.
	AmountIn *big.Int
	// AmountOut is the exact output for a buy order.
	AmountOut *big.Int

	// MinAmountOut optionally bounds an exact-input order from below.
	MinAmountOut *big.Int
	// MaxAmountIn optionally bounds an exact-output order from above.
	MaxAmountIn *big.Int

	// Deadline optionally invalidates the order after a point in time.
	Deadline time.Time
}

// ExactIn reports whether the order fixes the input side.
func (o Order) ExactIn() bool { return o.AmountIn != nil }

// Validate checks the order's internal consistency.
func (o Order) Validate() error {
	if o.Have.Address == o.Want.Address {
		return fmt.Errorf("%w: have and want are the same token %s", ErrInvalidOrder, o.Have.Address)
	}
	if (o.AmountIn == nil) == (o.AmountOut == nil) {
		return fmt.Errorf("%w: exactly one of AmountIn and AmountOut must be set", ErrInvalidOrder)
	}
	if o.AmountIn != nil && o.AmountIn.Sign() <= 0 {
		return fmt.Errorf("%w: AmountIn must be positive", ErrInvalidOrder)
	}
	if o.AmountOut != nil && o.AmountOut.Sign() <= 0 {
		return fmt.Errorf("%w: AmountOut must be positive", ErrInvalidOrder)
	}
	if o.MinAmountOut != nil && o.AmountIn == nil {
		return fmt.Errorf("%w: MinAmountOut only applies to exact-input orders", ErrInvalidOrder)
	}
	if o.MaxAmountIn != nil && o.AmountOut == nil {
		return fmt.Errorf("%w: MaxAmountIn only applies to exact-output orders", ErrInvalidOrder)
	}
	return nil
}

// expired reports whether the order's deadline has passed at the given time.
func (o Order) expired(now time.Time) bool {
	return !o.Deadline.IsZero() && now.After(o.Deadline)
}
