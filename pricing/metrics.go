package pricing

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the aggregator's instruments, labelled by trading pair.
type Metrics struct {
	price          *prometheus.GaugeVec
	routesPriced   *prometheus.GaugeVec
	updatesTotal   *prometheus.CounterVec
	noLiquidity    *prometheus.CounterVec
	priceLatencySc prometheus.Histogram
}

// NewMetrics constructs and registers the aggregator's instruments. A nil
// registerer yields working but unregistered metrics, which keeps tests free
// of global registry collisions.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggregated_price",
			Help: "Liquidity-weighted price by pair",
		}, []string{"pair"}),
		routesPriced: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "priced_routes",
			Help: "Routes contributing to the last aggregate by pair",
		}, []string{"pair"}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_updates_total",
			Help: "Successful price computations by pair",
		}, []string{"pair"}),
		noLiquidity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_no_liquidity_total",
			Help: "Price requests that found no usable route by pair",
		}, []string{"pair"}),
		priceLatencySc: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "price_latency_seconds",
			Help:    "Wall time per price computation",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	if registry != nil {
		registry.MustRegister(m.price, m.routesPriced, m.updatesTotal, m.noLiquidity, m.priceLatencySc)
	}
	return m
}
