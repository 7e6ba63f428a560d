package index

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/swapgraph/swapgraph-go/pools"
)

// View is an immutable snapshot of the pair graph. Readers obtained a View
// from System.View and may use it without locking for as long as they like;
// quotes computed against it are mutually consistent even while the writer
// keeps ingesting. Callers must not mutate any field.
//
// Tokens and Pools are parallel to the index spaces used by Adjacency,
// EdgeTargets and EdgePools: Adjacency[t] lists edge indices out of token t,
// EdgeTargets[e] is the destination token index of edge e, and EdgePools[e]
// lists the pools serving that edge.
type View struct {
	Tokens      []common.Address
	Pools       []pools.Pool
	Adjacency   [][]int
	EdgeTargets []int
	EdgePools   [][]int

	tokenToIndex map[common.Address]int
}

// TokenIndex returns the graph index of a token address.
func (v *View) TokenIndex(token common.Address) (int, bool) {
	idx, exists := v.tokenToIndex[token]
	return idx, exists
}

// PoolsForToken returns every pool in the snapshot containing the token.
func (v *View) PoolsForToken(token common.Address) []pools.Pool {
	tokenIndex, exists := v.tokenToIndex[token]
	if !exists {
		return nil
	}

	seen := make(map[int]struct{})
	var result []pools.Pool
	for _, edgeIndex := range v.Adjacency[tokenIndex] {
		for _, poolIdx := range v.EdgePools[edgeIndex] {
			if _, dup := seen[poolIdx]; dup {
				continue
			}
			seen[poolIdx] = struct{}{}
			result = append(result, v.Pools[poolIdx])
		}
	}
	return result
}
