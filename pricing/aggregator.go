// Package pricing derives indicative prices from the route set between two
// tokens, weighting each route's spot price by its liquidity so deep pools
// dominate and dust pools cannot skew the aggregate.
package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/swapgraph/swapgraph-go/router"
)

// ErrNoLiquidity is returned when no route between the pair carries usable
// liquidity.
var ErrNoLiquidity = errors.New("no liquidity")

// Logger defines the logging interface the aggregator depends on.
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

// RouteSource yields candidate routes between a token pair.
type RouteSource interface {
	FindRoutes(src, dst common.Address) ([]router.Route, error)
}

// Config carries the aggregator's dependencies and knobs.
type Config struct {
	// MinLiquidity excludes routes whose source-token depth is below this
	// threshold. Nil or zero disables the filter.
	MinLiquidity *big.Int
	// Registry receives the aggregator's metrics. Nil disables registration.
	Registry prometheus.Registerer
	Logger   Logger
}

// Aggregator computes liquidity-weighted prices over a route source.
type Aggregator struct {
	routes       RouteSource
	minLiquidity *big.Int
	logger       Logger
	metrics      *Metrics
}

// NewAggregator creates an aggregator over the given route source.
func NewAggregator(routes RouteSource, cfg Config) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Aggregator{
		routes:       routes,
		minLiquidity: cfg.MinLiquidity,
		logger:       logger,
		metrics:      NewMetrics(cfg.Registry),
	}
}

// Price returns the liquidity-weighted spot price of base in quote terms:
// sum(price_r * liquidity_r) / sum(liquidity_r) over every route whose depth
// clears the configured minimum. Routes that cannot be evaluated are skipped,
// not fatal. If no route contributes, ErrNoLiquidity is returned.
func (a *Aggregator) Price(base, quote common.Address) (decimal.Decimal, error) {
	start := time.Now()
	defer func() {
		a.metrics.priceLatencySc.Observe(time.Since(start).Seconds())
	}()

	pair := base.Hex() + "/" + quote.Hex()

	routes, err := a.routes.FindRoutes(base, quote)
	if err != nil {
		return decimal.Zero, fmt.Errorf("finding routes for %s: %w", pair, err)
	}

	weightedSum := decimal.Zero
	totalWeight := decimal.Zero
	contributing := 0
	for _, route := range routes {
		depth, err := route.Liquidity()
		if err != nil {
			a.logger.Debug("skipping route without measurable depth", "route", route.String(), "err", err)
			continue
		}
		if depth.Sign() <= 0 {
			continue
		}
		if a.minLiquidity != nil && a.minLiquidity.Sign() > 0 && depth.Cmp(a.minLiquidity) < 0 {
			continue
		}

		price, err := route.SpotPrice()
		if err != nil {
			a.logger.Debug("skipping unpriceable route", "route", route.String(), "err", err)
			continue
		}

		weight := decimal.NewFromBigInt(depth, 0)
		weightedSum = weightedSum.Add(price.Mul(weight))
		totalWeight = totalWeight.Add(weight)
		contributing++
	}

	if totalWeight.IsZero() {
		a.metrics.noLiquidity.WithLabelValues(pair).Inc()
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoLiquidity, pair)
	}

	price := weightedSum.Div(totalWeight)
	priceFloat, _ := price.Float64()
	a.metrics.price.WithLabelValues(pair).Set(priceFloat)
	a.metrics.routesPriced.WithLabelValues(pair).Set(float64(contributing))
	a.metrics.updatesTotal.WithLabelValues(pair).Inc()
	a.logger.Debug("priced pair", "pair", pair, "price", price.String(), "routes", contributing)
	return price, nil
}
