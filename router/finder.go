package router

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/swapgraph/swapgraph-go/bitset"
	"github.com/swapgraph/swapgraph-go/index"
)

const (
	// DefaultMaxDepth bounds route length at two hops, one intermediate token.
	DefaultMaxDepth = 2
	// DefaultMaxRoutes caps how many routes a single search returns.
	DefaultMaxRoutes = 16
)

// Graph is the read side of the pair index the finder searches over.
type Graph interface {
	View() *index.View
}

// Config carries the optional knobs of a Finder.
type Config struct {
	// MaxDepth is the maximum number of hops per route. Zero means
	// DefaultMaxDepth.
	MaxDepth int
	// MaxRoutes caps the result set after ranking. Zero means
	// DefaultMaxRoutes; negative means unlimited.
	MaxRoutes int
}

// Finder enumerates acyclic routes between token pairs. Each search runs
// against a single graph snapshot, so a concurrent writer never produces a
// route mixing pre- and post-update pools.
type Finder struct {
	graph     Graph
	maxDepth  int
	maxRoutes int
}

// NewFinder creates a route finder over the given graph.
func NewFinder(graph Graph, cfg Config) *Finder {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	maxRoutes := cfg.MaxRoutes
	if maxRoutes == 0 {
		maxRoutes = DefaultMaxRoutes
	}
	return &Finder{
		graph:     graph,
		maxDepth:  maxDepth,
		maxRoutes: maxRoutes,
	}
}

// FindRoutes returns every acyclic route from src to dst of at most the
// configured depth, ranked by hop count ascending and then liquidity
// descending, truncated to the configured route cap. Searching from a token
// to itself, or between tokens with no connecting path, yields an empty
// result and no error.
func (f *Finder) FindRoutes(src, dst common.Address) ([]Route, error) {
	if src == dst {
		return nil, nil
	}

	view := f.graph.View()
	srcIndex, srcKnown := view.TokenIndex(src)
	dstIndex, dstKnown := view.TokenIndex(dst)
	if !srcKnown || !dstKnown {
		return nil, nil
	}

	walker := &routeWalker{
		view:     view,
		dstIndex: dstIndex,
		maxDepth: f.maxDepth,
		visited:  bitset.NewBitSet(uint64(len(view.Tokens))),
	}
	walker.visited.Set(uint64(srcIndex))
	walker.walk(srcIndex, nil)

	rankRoutes(walker.found)
	if f.maxRoutes > 0 && len(walker.found) > f.maxRoutes {
		walker.found = walker.found[:f.maxRoutes]
	}
	return walker.found, nil
}

type routeWalker struct {
	view     *index.View
	dstIndex int
	maxDepth int
	visited  bitset.BitSet
	found    []Route
}

// walk extends the current path from the given token, backtracking through
// the visited set so each token appears at most once per route.
func (w *routeWalker) walk(fromIndex int, path Route) {
	if len(path) >= w.maxDepth {
		return
	}

	fromToken := w.view.Tokens[fromIndex]
	for _, edgeIndex := range w.view.Adjacency[fromIndex] {
		toIndex := w.view.EdgeTargets[edgeIndex]
		if w.visited.IsSet(uint64(toIndex)) {
			continue
		}
		toToken := w.view.Tokens[toIndex]

		for _, poolIdx := range w.view.EdgePools[edgeIndex] {
			hop := Hop{
				Pool:     w.view.Pools[poolIdx],
				TokenIn:  fromToken,
				TokenOut: toToken,
			}
			extended := append(append(Route{}, path...), hop)

			if toIndex == w.dstIndex {
				w.found = append(w.found, extended)
				continue
			}

			w.visited.Set(uint64(toIndex))
			w.walk(toIndex, extended)
			w.visited.Unset(uint64(toIndex))
		}
	}
}

// rankRoutes orders routes by hop count ascending, breaking ties by route
// liquidity descending. Routes whose liquidity cannot be evaluated rank last
// within their hop-count band.
func rankRoutes(routes []Route) {
	type ranked struct {
		route     Route
		liquidity *big.Int
	}

	entries := make([]ranked, len(routes))
	for i, route := range routes {
		depth, err := route.Liquidity()
		if err != nil {
			depth = new(big.Int)
		}
		entries[i] = ranked{route: route, liquidity: depth}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].route) != len(entries[j].route) {
			return len(entries[i].route) < len(entries[j].route)
		}
		return entries[i].liquidity.Cmp(entries[j].liquidity) > 0
	})

	for i, entry := range entries {
		routes[i] = entry.route
	}
}
