// Package events defines the contract between the index and whatever feeds it
// on-chain state. Delivery is at-least-once and may be out of order: pair
// creations are idempotent and reserve updates are whole-state, last-write-wins
// replaces keyed by pool address, so replaying a feed is always safe.
package events

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/swapgraph/swapgraph-go/pools"
)

// Event is one observed on-chain notification.
type Event interface {
	// PoolAddress identifies the pool the event concerns.
	PoolAddress() common.Address

	isEvent()
}

// PairCreated announces a newly observed pool. The ingestion collaborator has
// already resolved tokens and constructed the pool with its initial state; the
// core never sees raw strings.
type PairCreated struct {
	Pool pools.Pool
}

func (e PairCreated) PoolAddress() common.Address { return e.Pool.Address() }
func (PairCreated) isEvent()                      {}

// ReservesUpdated carries a whole replacement reserve state for a previously
// created pool.
type ReservesUpdated struct {
	Address common.Address
	State   pools.State
}

func (e ReservesUpdated) PoolAddress() common.Address { return e.Address }
func (ReservesUpdated) isEvent()                      {}
