package index

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/tokens"
)

var (
	// ErrInvalidPool is returned when ingestion input is malformed (fewer than
	// two constituent tokens). The pool is dropped; the index is unaffected.
	ErrInvalidPool = errors.New("invalid pool")
	// ErrUnknownPool is returned when a reserve update references an address
	// that was never ingested. The caller must ingest the pool first.
	ErrUnknownPool = errors.New("unknown pool")
)

// registry is a single-writer graph of tokens (nodes) and pools (edges).
// It is not safe for concurrent use by itself; System provides the
// concurrency-safe layer on top.
//
// Core data lives in slices for cache-friendly access: adjacency maps a token
// index to edge indices, edgeTargets maps an edge to its destination token,
// and edgePools maps an edge to the (possibly parallel) pools serving it.
type registry struct {
	tokenToIndex map[common.Address]int
	poolToIndex  map[common.Address]int

	tokens      []common.Address
	pools       []pools.Pool
	adjacency   [][]int
	edgeTargets []int
	edgePools   [][]int
}

func newRegistry() *registry {
	return &registry{
		tokenToIndex: make(map[common.Address]int),
		poolToIndex:  make(map[common.Address]int),
	}
}

// tokenIndexOf interns a token address, growing the adjacency list as needed.
func (r *registry) tokenIndexOf(token common.Address) int {
	idx, exists := r.tokenToIndex[token]
	if !exists {
		idx = len(r.tokens)
		r.tokens = append(r.tokens, token)
		r.tokenToIndex[token] = idx
		r.adjacency = append(r.adjacency, nil)
	}
	return idx
}

// addEdge associates poolIdx with the directed edge from -> to, creating the
// edge if it does not exist. Re-adding an existing association is a no-op.
func (r *registry) addEdge(fromIndex, toIndex, poolIdx int) {
	for _, edgeIndex := range r.adjacency[fromIndex] {
		if r.edgeTargets[edgeIndex] == toIndex {
			for _, existing := range r.edgePools[edgeIndex] {
				if existing == poolIdx {
					return
				}
			}
			r.edgePools[edgeIndex] = append(r.edgePools[edgeIndex], poolIdx)
			return
		}
	}

	newEdgeIndex := len(r.edgeTargets)
	r.edgeTargets = append(r.edgeTargets, toIndex)
	r.edgePools = append(r.edgePools, []int{poolIdx})
	r.adjacency[fromIndex] = append(r.adjacency[fromIndex], newEdgeIndex)
}

// add inserts or updates a pool. A known address is an update (the stored
// snapshot is replaced; adjacency is already in place), so re-ingesting a feed
// is always idempotent. Pools connect every constituent token pair (a clique
// for N-token pools).
func (r *registry) add(pool pools.Pool) error {
	if pool == nil {
		return fmt.Errorf("%w: nil pool", ErrInvalidPool)
	}
	constituents := pool.Tokens()
	if len(constituents) < 2 {
		return fmt.Errorf(
			"%w: pool %s has %d constituent tokens", ErrInvalidPool, pool.Address(), len(constituents),
		)
	}

	if existing, known := r.poolToIndex[pool.Address()]; known {
		// Adjacency was built from the original token set and is not
		// reconciled on update, so a re-ingest must not change it.
		if !sameTokenSet(r.pools[existing].Tokens(), constituents) {
			return fmt.Errorf(
				"%w: pool %s re-ingested with a different token set", ErrInvalidPool, pool.Address(),
			)
		}
		r.pools[existing] = pool
		return nil
	}

	poolIdx := len(r.pools)
	r.pools = append(r.pools, pool)
	r.poolToIndex[pool.Address()] = poolIdx

	for i := 0; i < len(constituents); i++ {
		for j := i + 1; j < len(constituents); j++ {
			a := r.tokenIndexOf(constituents[i].Address)
			b := r.tokenIndexOf(constituents[j].Address)
			r.addEdge(a, b, poolIdx)
			r.addEdge(b, a, poolIdx)
		}
	}
	return nil
}

// sameTokenSet reports whether two constituent lists name the same token
// addresses, ignoring order.
func sameTokenSet(a, b []tokens.Token) bool {
	if len(a) != len(b) {
		return false
	}
	members := make(map[common.Address]struct{}, len(a))
	for _, token := range a {
		members[token.Address] = struct{}{}
	}
	for _, token := range b {
		if _, ok := members[token.Address]; !ok {
			return false
		}
	}
	return true
}

// replaceState swaps the stored pool for one carrying the new reserve state.
// The swap is a single slice-slot write of an immutable value, so a concurrent
// reader holding the previous view never observes a torn state.
func (r *registry) replaceState(address common.Address, state pools.State) error {
	poolIdx, known := r.poolToIndex[address]
	if !known {
		return fmt.Errorf("%w: %s; ingest it before updating reserves", ErrUnknownPool, address)
	}
	replaced, err := r.pools[poolIdx].WithState(state)
	if err != nil {
		return err
	}
	r.pools[poolIdx] = replaced
	return nil
}

func (r *registry) get(address common.Address) (pools.Pool, bool) {
	poolIdx, known := r.poolToIndex[address]
	if !known {
		return nil, false
	}
	return r.pools[poolIdx], true
}

// poolsForToken returns every pool containing the token, each exactly once.
func (r *registry) poolsForToken(token common.Address) []pools.Pool {
	tokenIndex, exists := r.tokenToIndex[token]
	if !exists {
		return nil
	}

	seen := make(map[int]struct{})
	var result []pools.Pool
	for _, edgeIndex := range r.adjacency[tokenIndex] {
		for _, poolIdx := range r.edgePools[edgeIndex] {
			if _, dup := seen[poolIdx]; dup {
				continue
			}
			seen[poolIdx] = struct{}{}
			result = append(result, r.pools[poolIdx])
		}
	}
	return result
}

// directPools returns every pool directly connecting the unordered pair
// (a, b), possibly empty. Parallel pools on the same pair are legal.
func (r *registry) directPools(a, b common.Address) []pools.Pool {
	aIndex, okA := r.tokenToIndex[a]
	bIndex, okB := r.tokenToIndex[b]
	if !okA || !okB {
		return nil
	}

	var result []pools.Pool
	for _, edgeIndex := range r.adjacency[aIndex] {
		if r.edgeTargets[edgeIndex] != bIndex {
			continue
		}
		for _, poolIdx := range r.edgePools[edgeIndex] {
			result = append(result, r.pools[poolIdx])
		}
	}
	return result
}

// view returns a deep copy of the graph's core data structures. The pools
// themselves are immutable values and are shared, not copied.
func (r *registry) view() *View {
	tokensCopy := make([]common.Address, len(r.tokens))
	copy(tokensCopy, r.tokens)

	poolsCopy := make([]pools.Pool, len(r.pools))
	copy(poolsCopy, r.pools)

	adjacencyCopy := make([][]int, len(r.adjacency))
	for i, adj := range r.adjacency {
		adjCopy := make([]int, len(adj))
		copy(adjCopy, adj)
		adjacencyCopy[i] = adjCopy
	}

	edgeTargetsCopy := make([]int, len(r.edgeTargets))
	copy(edgeTargetsCopy, r.edgeTargets)

	edgePoolsCopy := make([][]int, len(r.edgePools))
	for i, poolList := range r.edgePools {
		listCopy := make([]int, len(poolList))
		copy(listCopy, poolList)
		edgePoolsCopy[i] = listCopy
	}

	tokenToIndexCopy := make(map[common.Address]int, len(r.tokenToIndex))
	for token, i := range r.tokenToIndex {
		tokenToIndexCopy[token] = i
	}

	return &View{
		Tokens:       tokensCopy,
		Pools:        poolsCopy,
		Adjacency:    adjacencyCopy,
		EdgeTargets:  edgeTargetsCopy,
		EdgePools:    edgePoolsCopy,
		tokenToIndex: tokenToIndexCopy,
	}
}
