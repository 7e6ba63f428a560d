package solver

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/router"
)

// SingleRouteSolver sends the whole order down the one route that quotes best
// at full size. It accepts more price impact than MarginalSolver in exchange
// for a single-path execution.
type SingleRouteSolver struct {
	Logger Logger

	now func() time.Time
}

func (s *SingleRouteSolver) logger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return noopLogger{}
}

func (s *SingleRouteSolver) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Solve picks the route with the best full-size quote and allocates the
// entire order to it.
func (s *SingleRouteSolver) Solve(order Order, routes []router.Route) (*Solution, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.expired(s.clock()) {
		return nil, fmt.Errorf("%w: deadline %s has passed", ErrUnfillable, order.Deadline.Format(time.RFC3339))
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no routes from %s to %s", ErrUnfillable, order.Have.Symbol, order.Want.Symbol)
	}

	var best router.Route
	var bestIn, bestOut *big.Int
	for _, route := range routes {
		var in, out *big.Int
		var err error
		if order.ExactIn() {
			in = order.AmountIn
			out, err = route.QuoteIn(order.AmountIn)
		} else {
			out = order.AmountOut
			in, err = route.QuoteForOutput(order.AmountOut)
		}
		if err != nil {
			if !errors.Is(err, pools.ErrInsufficientLiquidity) {
				s.logger().Warn("excluding route from solve", "route", route.String(), "err", err)
			}
			continue
		}

		better := best == nil ||
			(order.ExactIn() && out.Cmp(bestOut) > 0) ||
			(!order.ExactIn() && in.Cmp(bestIn) < 0)
		if better {
			best, bestIn, bestOut = route, in, out
		}
	}
	if best == nil {
		shortfall := order.AmountIn
		if !order.ExactIn() {
			shortfall = order.AmountOut
		}
		solution := &Solution{
			TotalIn:   new(big.Int),
			TotalOut:  new(big.Int),
			Shortfall: new(big.Int).Set(shortfall),
		}
		return solution, fmt.Errorf("%w: no single route can absorb the order", ErrUnfillable)
	}

	solution := &Solution{
		Allocations: []Allocation{{
			Route:     best,
			AmountIn:  new(big.Int).Set(bestIn),
			AmountOut: new(big.Int).Set(bestOut),
		}},
		TotalIn:   new(big.Int).Set(bestIn),
		TotalOut:  new(big.Int).Set(bestOut),
		Shortfall: new(big.Int),
	}
	if order.MinAmountOut != nil && solution.TotalOut.Cmp(order.MinAmountOut) < 0 {
		return solution, fmt.Errorf(
			"%w: best obtainable output %s is below minimum %s", ErrUnfillable, solution.TotalOut, order.MinAmountOut,
		)
	}
	if order.MaxAmountIn != nil && solution.TotalIn.Cmp(order.MaxAmountIn) > 0 {
		return solution, fmt.Errorf(
			"%w: required input %s exceeds maximum %s", ErrUnfillable, solution.TotalIn, order.MaxAmountIn,
		)
	}
	return solution, nil
}
