package events

import "github.com/swapgraph/swapgraph-go/pools/constprod"

// FromDiff converts a constant-product snapshot diff into replayable feed
// events. Additions and updates both become ReservesUpdated events, since a
// full re-scan observes reserve states without pool metadata; an addition for
// a pool the consumer has not ingested is dropped downstream. Deletions are
// ignored, pools never leave the graph.
func FromDiff(diff constprod.Diff) []Event {
	result := make([]Event, 0, len(diff.Additions)+len(diff.Updates))
	for address, state := range diff.Additions {
		result = append(result, ReservesUpdated{Address: address, State: state})
	}
	for address, state := range diff.Updates {
		result = append(result, ReservesUpdated{Address: address, State: state})
	}
	return result
}
