package bitset

import "fmt"

// BitSet is a fixed-size dense bit vector. The route finder uses one per
// in-progress path to track visited tokens without per-step map allocations.
type BitSet []uint64

// NewBitSet allocates a BitSet capable of holding len bits.
func NewBitSet(len uint64) BitSet {
	words := (len + 63) / 64
	return make(BitSet, words)
}

func (b BitSet) IsSet(index uint64) bool {
	mask := uint64(1) << (index % 64)
	return (b[index/64] & mask) != 0
}

func (b BitSet) Set(index uint64) {
	mask := uint64(1) << (index % 64)
	b[index/64] |= mask
}

func (b BitSet) Unset(index uint64) {
	mask := uint64(1) << (index % 64)
	b[index/64] &^= mask
}

func (b BitSet) Clear() {
	for i := range b {
		b[i] = 0
	}
}

// SetFrom overwrites the receiver with the contents of o. Both sets must have
// the same word length.
func (b BitSet) SetFrom(o BitSet) {
	if len(b) != len(o) {
		panic(fmt.Sprintf("bitsets must be same size: got %d vs %d", len(b), len(o)))
	}
	copy(b, o)
}

// Clone returns an independent copy of the set.
func (b BitSet) Clone() BitSet {
	c := make(BitSet, len(b))
	copy(c, b)
	return c
}
