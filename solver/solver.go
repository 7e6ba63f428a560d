package solver

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/router"
)

// defaultSteps divides the order into increments for marginal allocation.
const defaultSteps = 128

// Allocation assigns a slice of the order to one route.
type Allocation struct {
	Route     router.Route
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Solution is the solver's split of an order across routes. When the order
// could not be filled completely, Shortfall holds the unfilled remainder in
// the order's fixed-side token and the solution accompanies ErrUnfillable.
type Solution struct {
	Allocations []Allocation
	TotalIn     *big.Int
	TotalOut    *big.Int
	Shortfall   *big.Int
}

// Solver turns an order and a candidate route set into a solution.
type Solver interface {
	Solve(order Order, routes []router.Route) (*Solution, error)
}

// Logger defines the logging interface the solvers depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MarginalSolver fills the order in fixed increments, sending each increment
// to whichever route currently offers the best marginal rate. As a route's
// curve steepens with size, allocation naturally shifts to the alternatives,
// converging on a split where no increment could do better elsewhere.
type MarginalSolver struct {
	// Steps is the number of increments the order is divided into. Zero means
	// defaultSteps; the increment never falls below one base unit.
	Steps  int
	Logger Logger

	now func() time.Time
}

// NewMarginalSolver creates a marginal-allocation solver with default knobs.
func NewMarginalSolver(logger Logger) *MarginalSolver {
	return &MarginalSolver{Logger: logger}
}

func (s *MarginalSolver) steps() int64 {
	if s.Steps > 0 {
		return int64(s.Steps)
	}
	return defaultSteps
}

func (s *MarginalSolver) logger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return noopLogger{}
}

func (s *MarginalSolver) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Solve splits the order across the candidate routes. The routes must all run
// from the order's Have token to its Want token; the solver quotes them as
// given and never re-searches the graph.
func (s *MarginalSolver) Solve(order Order, routes []router.Route) (*Solution, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.expired(s.clock()) {
		return nil, fmt.Errorf("%w: deadline %s has passed", ErrUnfillable, order.Deadline.Format(time.RFC3339))
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no routes from %s to %s", ErrUnfillable, order.Have.Symbol, order.Want.Symbol)
	}

	if order.ExactIn() {
		return s.solveExactIn(order, routes)
	}
	return s.solveExactOut(order, routes)
}

// routeFill tracks one route's cumulative allocation during a solve.
type routeFill struct {
	route     router.Route
	in        *big.Int
	out       *big.Int
	saturated bool
}

func newFills(routes []router.Route) []*routeFill {
	fills := make([]*routeFill, len(routes))
	for i, route := range routes {
		fills[i] = &routeFill{route: route, in: new(big.Int), out: new(big.Int)}
	}
	return fills
}

// increment returns the allocation step for a total, at least one base unit.
func (s *MarginalSolver) increment(total *big.Int) *big.Int {
	step := new(big.Int).Div(total, big.NewInt(s.steps()))
	if step.Sign() <= 0 {
		step = big.NewInt(1)
	}
	return step
}

func (s *MarginalSolver) solveExactIn(order Order, routes []router.Route) (*Solution, error) {
	fills := newFills(routes)
	step := s.increment(order.AmountIn)
	remaining := new(big.Int).Set(order.AmountIn)

	for remaining.Sign() > 0 {
		chunk := step
		if remaining.Cmp(step) < 0 {
			chunk = remaining
		}

		// Pick the route where this chunk buys the most additional output.
		var best *routeFill
		var bestOut, bestGain *big.Int
		for _, fill := range fills {
			if fill.saturated {
				continue
			}
			candidateIn := new(big.Int).Add(fill.in, chunk)
			totalOut, err := fill.route.QuoteIn(candidateIn)
			if err != nil {
				if !errors.Is(err, pools.ErrInsufficientLiquidity) {
					s.logger().Warn("excluding route from solve", "route", fill.route.String(), "err", err)
				}
				fill.saturated = true
				continue
			}
			gain := new(big.Int).Sub(totalOut, fill.out)
			if gain.Sign() <= 0 {
				// The route's curve has flattened: more input buys no more
				// output, so its depth is exhausted.
				fill.saturated = true
				continue
			}
			if best == nil || gain.Cmp(bestGain) > 0 {
				best, bestOut, bestGain = fill, totalOut, gain
			}
		}
		if best == nil {
			break // every route is saturated
		}

		best.in.Add(best.in, chunk)
		best.out.Set(bestOut)
		remaining.Sub(remaining, chunk)
	}

	solution := buildSolution(fills, remaining)
	if remaining.Sign() > 0 {
		s.logger().Warn("order only partially fillable",
			"have", order.Have.Symbol, "want", order.Want.Symbol, "shortfall", remaining.String())
		return solution, fmt.Errorf("%w: %s %s of input cannot be routed", ErrUnfillable, remaining, order.Have.Symbol)
	}
	if order.MinAmountOut != nil && solution.TotalOut.Cmp(order.MinAmountOut) < 0 {
		return solution, fmt.Errorf(
			"%w: best obtainable output %s is below minimum %s", ErrUnfillable, solution.TotalOut, order.MinAmountOut,
		)
	}
	return solution, nil
}

func (s *MarginalSolver) solveExactOut(order Order, routes []router.Route) (*Solution, error) {
	fills := newFills(routes)
	step := s.increment(order.AmountOut)
	remaining := new(big.Int).Set(order.AmountOut)

	for remaining.Sign() > 0 {
		chunk := step
		if remaining.Cmp(step) < 0 {
			chunk = remaining
		}

		// Pick the route where this chunk of output costs the least extra input.
		var best *routeFill
		var bestIn, bestCost *big.Int
		for _, fill := range fills {
			if fill.saturated {
				continue
			}
			candidateOut := new(big.Int).Add(fill.out, chunk)
			totalIn, err := fill.route.QuoteForOutput(candidateOut)
			if err != nil {
				if !errors.Is(err, pools.ErrInsufficientLiquidity) {
					s.logger().Warn("excluding route from solve", "route", fill.route.String(), "err", err)
				}
				fill.saturated = true
				continue
			}
			cost := new(big.Int).Sub(totalIn, fill.in)
			if best == nil || cost.Cmp(bestCost) < 0 {
				best, bestIn, bestCost = fill, totalIn, cost
			}
		}
		if best == nil {
			break
		}

		best.out.Add(best.out, chunk)
		best.in.Set(bestIn)
		remaining.Sub(remaining, chunk)
	}

	solution := buildSolution(fills, remaining)
	if remaining.Sign() > 0 {
		s.logger().Warn("order only partially fillable",
			"have", order.Have.Symbol, "want", order.Want.Symbol, "shortfall", remaining.String())
		return solution, fmt.Errorf("%w: %s %s of output cannot be sourced", ErrUnfillable, remaining, order.Want.Symbol)
	}
	if order.MaxAmountIn != nil && solution.TotalIn.Cmp(order.MaxAmountIn) > 0 {
		return solution, fmt.Errorf(
			"%w: required input %s exceeds maximum %s", ErrUnfillable, solution.TotalIn, order.MaxAmountIn,
		)
	}
	return solution, nil
}

func buildSolution(fills []*routeFill, remaining *big.Int) *Solution {
	solution := &Solution{
		TotalIn:   new(big.Int),
		TotalOut:  new(big.Int),
		Shortfall: new(big.Int).Set(remaining),
	}
	for _, fill := range fills {
		if fill.in.Sign() == 0 && fill.out.Sign() == 0 {
			continue
		}
		solution.Allocations = append(solution.Allocations, Allocation{
			Route:     fill.route,
			AmountIn:  new(big.Int).Set(fill.in),
			AmountOut: new(big.Int).Set(fill.out),
		})
		solution.TotalIn.Add(solution.TotalIn, fill.in)
		solution.TotalOut.Add(solution.TotalOut, fill.out)
	}
	return solution
}
