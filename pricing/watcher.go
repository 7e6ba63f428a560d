package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Pair is one base/quote entry on a watchlist.
type Pair struct {
	Base  common.Address
	Quote common.Address
}

// Watcher recomputes a watchlist of pair prices on a fixed interval, feeding
// the aggregator's metrics. A pair with no liquidity is logged and retried on
// the next tick; only route-source failures stop the watcher.
type Watcher struct {
	aggregator *Aggregator
	pairs      []Pair
	interval   time.Duration
}

// NewWatcher creates a watcher over the aggregator's route source.
func NewWatcher(aggregator *Aggregator, pairs []Pair, interval time.Duration) *Watcher {
	return &Watcher{
		aggregator: aggregator,
		pairs:      pairs,
		interval:   interval,
	}
}

// Run observes every pair once immediately and then on each tick until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.Observe(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Observe(); err != nil {
				return err
			}
		}
	}
}

// Observe prices every pair on the watchlist once, updating the aggregator's
// metrics as a side effect.
func (w *Watcher) Observe() error {
	for _, pair := range w.pairs {
		price, err := w.aggregator.Price(pair.Base, pair.Quote)
		if errors.Is(err, ErrNoLiquidity) {
			w.aggregator.logger.Warn("pair has no liquidity", "base", pair.Base, "quote", pair.Quote)
			continue
		}
		if err != nil {
			return err
		}
		w.aggregator.logger.Info("observed price",
			"base", pair.Base, "quote", pair.Quote, "price", price.String())
	}
	return nil
}
