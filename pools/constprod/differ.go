package constprod

import (
	"github.com/ethereum/go-ethereum/common"
)

// Diff summarizes the changes between two address-keyed snapshots of
// constant-product pool state, as produced by two full scans.
type Diff struct {
	Additions map[common.Address]State `json:"additions,omitempty"`
	Updates   map[common.Address]State `json:"updates,omitempty"`
	Deletions []common.Address         `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d Diff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ calculates the difference between two snapshots of pool reserve state.
// It follows the standard pattern for diffing keyed collections: additions and
// updates are found by walking the new map, deletions by walking the old one.
// Updates compare reserves with big.Int.Cmp, which is much faster than a
// reflective deep-equal.
func Differ(old, new map[common.Address]State) Diff {
	var deletions []common.Address
	additions := make(map[common.Address]State)
	updates := make(map[common.Address]State)

	for address, newState := range new {
		oldState, exists := old[address]
		if !exists {
			additions[address] = newState
			continue
		}
		if oldState.Reserve0.Cmp(newState.Reserve0) != 0 || oldState.Reserve1.Cmp(newState.Reserve1) != 0 {
			updates[address] = newState
		}
	}

	for address := range old {
		if _, exists := new[address]; !exists {
			deletions = append(deletions, address)
		}
	}

	return Diff{
		Additions: additions,
		Updates:   updates,
		Deletions: deletions,
	}
}

// Patcher constructs a new snapshot by applying a diff to a previous one.
// Every entry in the result is deep-copied so the new snapshot never shares
// *big.Int memory with the old state or the diff.
func Patcher(prev map[common.Address]State, diff Diff) map[common.Address]State {
	next := make(map[common.Address]State, len(prev))
	for address, state := range prev {
		next[address] = state.deepCopy()
	}

	for _, address := range diff.Deletions {
		delete(next, address)
	}
	for address, state := range diff.Updates {
		next[address] = state.deepCopy()
	}
	for address, state := range diff.Additions {
		next[address] = state.deepCopy()
	}

	return next
}
