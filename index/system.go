package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/swapgraph/swapgraph-go/events"
	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/pools/constprod"
)

// Logger defines the logging interface the index depends on.
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

// Config carries the optional dependencies of a System.
type Config struct {
	Logger Logger
}

// System provides a concurrency-safe layer for managing the pair graph.
// It uses a sync.RWMutex for writes and an atomic.Pointer for lock-free reads,
// and it assumes a single writer: all mutations come from one ingestion
// goroutine while any number of readers quote against snapshots.
type System struct {
	mu         sync.RWMutex
	registry   *registry
	cachedView atomic.Pointer[View]

	logger Logger
}

// NewSystem creates and initializes an empty, concurrency-safe System.
func NewSystem(cfg Config) *System {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	s := &System{
		registry: newRegistry(),
		logger:   logger,
	}
	s.cachedView.Store(s.registry.view())
	return s
}

// updateCachedView generates a fresh view from the registry and atomically
// updates the pointer. Must be called while holding s.mu for writing.
func (s *System) updateCachedView() {
	s.cachedView.Store(s.registry.view())
}

// Ingest adds a pool or, if its address is already known, replaces the stored
// snapshot. For multiple additions, use IngestBatch for better performance.
func (s *System) Ingest(pool pools.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.add(pool); err != nil {
		return err
	}
	s.updateCachedView()
	return nil
}

// IngestBatch adds multiple pools in a single atomic operation, updating the
// cached view only once after all additions are complete. Invalid pools are
// dropped and logged; valid pools in the same batch are still applied. The
// returned error joins every per-pool failure, or nil if all succeeded.
func (s *System) IngestBatch(batch []pools.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var errs []error
	for _, pool := range batch {
		if err := s.registry.add(pool); err != nil {
			s.logger.Warn("dropping pool from batch", "err", err)
			errs = append(errs, err)
		}
	}

	s.updateCachedView()
	return errors.Join(errs...)
}

// UpdateReserves atomically replaces the whole reserve state of a known pool.
// Readers holding earlier views keep a consistent pre-update snapshot.
func (s *System) UpdateReserves(address common.Address, state pools.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.replaceState(address, state); err != nil {
		return err
	}
	s.updateCachedView()
	return nil
}

// Apply dispatches a single feed event to the matching write operation.
func (s *System) Apply(ev events.Event) error {
	switch e := ev.(type) {
	case events.PairCreated:
		return s.Ingest(e.Pool)
	case events.ReservesUpdated:
		return s.UpdateReserves(e.Address, e.State)
	default:
		return nil
	}
}

// Scan consumes a feed of events until the feed closes or ctx is cancelled,
// returning the number of events applied. The feed may deliver events
// out of order and more than once; application is idempotent.
//
// When universe is non-nil, PairCreated events whose pool shares no token
// with the universe are skipped. ReservesUpdated events for unknown pools
// are logged and dropped rather than failing the scan, since the matching
// PairCreated may simply not have arrived yet.
func (s *System) Scan(ctx context.Context, feed <-chan events.Event, universe mapset.Set[common.Address]) (int, error) {
	applied := 0
	for {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		case ev, open := <-feed:
			if !open {
				return applied, nil
			}
			if created, isCreate := ev.(events.PairCreated); isCreate && universe != nil {
				if !touchesUniverse(created.Pool, universe) {
					s.logger.Debug("skipping pool outside universe", "pool", created.Pool.Address())
					continue
				}
			}
			if err := s.Apply(ev); err != nil {
				if errors.Is(err, ErrUnknownPool) || errors.Is(err, ErrInvalidPool) {
					s.logger.Warn("dropping feed event", "pool", ev.PoolAddress(), "err", err)
					continue
				}
				return applied, err
			}
			applied++
		}
	}
}

func touchesUniverse(pool pools.Pool, universe mapset.Set[common.Address]) bool {
	for _, token := range pool.Tokens() {
		if universe.Contains(token.Address) {
			return true
		}
	}
	return false
}

// Get returns the current snapshot of a pool by address.
func (s *System) Get(address common.Address) (pools.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.get(address)
}

// PoolsForToken returns every known pool containing the token, each once.
func (s *System) PoolsForToken(token common.Address) []pools.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.poolsForToken(token)
}

// DirectPools returns every pool directly connecting the unordered pair
// (a, b). Parallel pools on the same pair are all returned.
func (s *System) DirectPools(a, b common.Address) []pools.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.directPools(a, b)
}

// Len returns the number of distinct tokens and pools in the graph.
func (s *System) Len() (tokenCount, poolCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry.tokens), len(s.registry.pools)
}

// View atomically loads the cached snapshot of the pair graph. The returned
// View is immutable and shared between callers; it never blocks the writer
// and stays internally consistent while ingestion continues.
func (s *System) View() *View {
	view := s.cachedView.Load()
	if view == nil {
		return &View{}
	}
	return view
}

// Snapshot returns the address-keyed reserve state of every constant-product
// pool in the graph, suitable for diffing against the result of a later full
// re-scan.
func (s *System) Snapshot() map[common.Address]constprod.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[common.Address]constprod.State)
	for _, pool := range s.registry.pools {
		if cp, ok := pool.(*constprod.Pool); ok {
			snapshot[cp.Address()] = cp.State()
		}
	}
	return snapshot
}

// Reconcile diffs the current constant-product snapshot against the result of
// a full re-scan and applies the changes as feed events, returning the number
// applied. Scanned pools the graph has never ingested are logged and skipped:
// raw reserve state alone cannot construct a pool. Pools absent from the scan
// stay in the graph; staleness is reported by Inactive, never by deletion.
func (s *System) Reconcile(scanned map[common.Address]constprod.State) (int, error) {
	diff := constprod.Differ(s.Snapshot(), scanned)

	applied := 0
	for _, ev := range events.FromDiff(diff) {
		if err := s.Apply(ev); err != nil {
			if errors.Is(err, ErrUnknownPool) {
				s.logger.Warn("skipping scanned state for unknown pool", "pool", ev.PoolAddress(), "err", err)
				continue
			}
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Inactive returns the addresses of pools whose reserve state was last
// observed more than maxAge before now. The pools stay in the graph; callers
// decide whether to re-scan or exclude them.
func (s *System) Inactive(maxAge time.Duration, now time.Time) []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := now.Add(-maxAge)
	var stale []common.Address
	for _, pool := range s.registry.pools {
		if pool.UpdatedAt().Before(cutoff) {
			stale = append(stale, pool.Address())
		}
	}
	return stale
}
