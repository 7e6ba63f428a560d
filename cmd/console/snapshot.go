package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/swapgraph/swapgraph-go/index"
	"github.com/swapgraph/swapgraph-go/pools"
	"github.com/swapgraph/swapgraph-go/pools/concentrated"
	"github.com/swapgraph/swapgraph-go/pools/constprod"
	"github.com/swapgraph/swapgraph-go/pools/stableswap"
	"github.com/swapgraph/swapgraph-go/tokens"
)

// snapshotFile is the on-disk pool universe the console operates on. Pools
// are kind-tagged; amounts are base-10 strings to survive JSON number limits.
type snapshotFile struct {
	Tokens []snapshotToken `json:"tokens"`
	Pools  []snapshotPool  `json:"pools"`
}

type snapshotToken struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

type snapshotPool struct {
	Kind    string           `json:"kind"`
	Address common.Address   `json:"address"`
	FeeBps  uint16           `json:"feeBps"`
	Tokens  []common.Address `json:"tokens"`

	// constant-product and concentrated
	Reserve0 string `json:"reserve0,omitempty"`
	Reserve1 string `json:"reserve1,omitempty"`

	// stable-swap
	Amp      uint64   `json:"amp,omitempty"`
	Balances []string `json:"balances,omitempty"`

	// concentrated
	Current int32          `json:"current,omitempty"`
	Ticks   []snapshotTick `json:"ticks,omitempty"`
}

type snapshotTick struct {
	Index    int32  `json:"index"`
	PriceX96 string `json:"priceX96"`
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// loadSnapshot reads a snapshot file and ingests its pools into a fresh
// graph. Invalid pools fail the load rather than silently shrinking the
// universe.
func loadSnapshot(path string, logger index.Logger) (*index.System, *tokens.Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	universe := make([]tokens.Token, 0, len(file.Tokens))
	for _, t := range file.Tokens {
		universe = append(universe, tokens.Token{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals})
	}
	tokenSet := tokens.NewSet(universe)

	system := index.NewSystem(index.Config{Logger: logger})
	now := time.Now()
	for i, entry := range file.Pools {
		pool, err := buildPool(entry, tokenSet, now)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot pool %d (%s): %w", i, entry.Address, err)
		}
		if err := system.Ingest(pool); err != nil {
			return nil, nil, fmt.Errorf("ingesting pool %s: %w", entry.Address, err)
		}
	}
	return system, tokenSet, nil
}

func buildPool(entry snapshotPool, tokenSet *tokens.Set, observed time.Time) (pools.Pool, error) {
	constituents := make([]tokens.Token, 0, len(entry.Tokens))
	for _, address := range entry.Tokens {
		token, ok := tokenSet.GetByAddress(address)
		if !ok {
			return nil, fmt.Errorf("token %s not in snapshot token list", address)
		}
		constituents = append(constituents, token)
	}

	switch entry.Kind {
	case pools.KindConstantProduct.String():
		if len(constituents) != 2 {
			return nil, fmt.Errorf("constant-product pool needs 2 tokens, got %d", len(constituents))
		}
		reserve0, err := parseAmount(entry.Reserve0)
		if err != nil {
			return nil, fmt.Errorf("reserve0: %w", err)
		}
		reserve1, err := parseAmount(entry.Reserve1)
		if err != nil {
			return nil, fmt.Errorf("reserve1: %w", err)
		}
		return constprod.New(entry.Address, constituents[0], constituents[1], entry.FeeBps, constprod.State{
			Reserve0: reserve0,
			Reserve1: reserve1,
			Observed: observed,
		})

	case pools.KindStableSwap.String():
		balances := make([]*big.Int, 0, len(entry.Balances))
		for i, raw := range entry.Balances {
			balance, err := parseAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("balance %d: %w", i, err)
			}
			balances = append(balances, balance)
		}
		return stableswap.New(entry.Address, constituents, entry.Amp, entry.FeeBps, stableswap.State{
			Balances: balances,
			Observed: observed,
		})

	case pools.KindConcentrated.String():
		if len(constituents) != 2 {
			return nil, fmt.Errorf("concentrated pool needs 2 tokens, got %d", len(constituents))
		}
		ticks := make([]concentrated.Tick, 0, len(entry.Ticks))
		for i, rawTick := range entry.Ticks {
			price, err := uint256.FromDecimal(rawTick.PriceX96)
			if err != nil {
				return nil, fmt.Errorf("tick %d priceX96: %w", i, err)
			}
			reserve0, err := parseAmount(rawTick.Reserve0)
			if err != nil {
				return nil, fmt.Errorf("tick %d reserve0: %w", i, err)
			}
			reserve1, err := parseAmount(rawTick.Reserve1)
			if err != nil {
				return nil, fmt.Errorf("tick %d reserve1: %w", i, err)
			}
			ticks = append(ticks, concentrated.Tick{
				Index:    rawTick.Index,
				PriceX96: price,
				Reserve0: reserve0,
				Reserve1: reserve1,
			})
		}
		return concentrated.New(entry.Address, constituents[0], constituents[1], entry.FeeBps, concentrated.State{
			Ticks:    ticks,
			Current:  entry.Current,
			Observed: observed,
		})

	default:
		return nil, fmt.Errorf("unknown pool kind %q", entry.Kind)
	}
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a base-10 integer", raw)
	}
	return amount, nil
}
