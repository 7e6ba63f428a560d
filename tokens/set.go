package tokens

import (
	"github.com/ethereum/go-ethereum/common"
)

// Set provides fast, indexed access to a group of resolved tokens.
type Set struct {
	byAddress map[common.Address]Token
	bySymbol  map[string]Token
	all       []Token
}

// NewSet creates an indexed token set from a raw slice of resolved tokens.
func NewSet(tokens []Token) *Set {
	byAddress := make(map[common.Address]Token, len(tokens))
	bySymbol := make(map[string]Token, len(tokens))

	for _, t := range tokens {
		byAddress[t.Address] = t
		bySymbol[t.Symbol] = t
	}

	return &Set{
		byAddress: byAddress,
		bySymbol:  bySymbol,
		all:       tokens,
	}
}

// GetByAddress retrieves a token by its contract address.
func (s *Set) GetByAddress(address common.Address) (Token, bool) {
	t, ok := s.byAddress[address]
	return t, ok
}

// GetBySymbol retrieves a token by its symbol. Symbols are not guaranteed unique
// on chain; when duplicates exist the last one indexed wins.
func (s *Set) GetBySymbol(symbol string) (Token, bool) {
	t, ok := s.bySymbol[symbol]
	return t, ok
}

// All returns a defensive copy of the slice of all tokens in the set.
func (s *Set) All() []Token {
	allCopy := make([]Token, len(s.all))
	copy(allCopy, s.all)
	return allCopy
}

// Len returns the number of tokens in the set.
func (s *Set) Len() int {
	return len(s.all)
}
