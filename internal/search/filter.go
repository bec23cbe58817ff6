// Package search builds and queries the per-directory search index: one
// xor filter per document over its token set.
package search

import (
	"fmt"
	"sort"

	"github.com/FastFilter/xorfilter"
	"github.com/cespare/xxhash/v2"
)

// Filter is a membership filter over a token set with no false negatives.
// The zero value is the filter of the empty set.
type Filter struct {
	_msgpack struct{} `msgpack:",as_array"`

	Seed         uint64
	BlockLength  uint32
	Fingerprints []uint8
}

// NewFilter builds a filter sized to the distinct tokens given.
func NewFilter(tokens []string) (Filter, error) {
	keys := hashKeys(tokens)
	if len(keys) == 0 {
		return Filter{}, nil
	}
	xf, err := xorfilter.Populate(keys)
	if err != nil {
		return Filter{}, fmt.Errorf("search: build filter over %d keys: %w", len(keys), err)
	}
	return Filter{Seed: xf.Seed, BlockLength: xf.BlockLength, Fingerprints: xf.Fingerprints}, nil
}

// Contains reports whether token may be in the set.
func (f Filter) Contains(token string) bool {
	if len(f.Fingerprints) == 0 {
		return false
	}
	xf := xorfilter.Xor8{Seed: f.Seed, BlockLength: f.BlockLength, Fingerprints: f.Fingerprints}
	return xf.Contains(xxhash.Sum64String(token))
}

// hashKeys hashes tokens and drops duplicate hashes.
func hashKeys(tokens []string) []uint64 {
	keys := make([]uint64, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, xxhash.Sum64String(t))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := keys[:0]
	for _, k := range keys {
		if len(out) == 0 || out[len(out)-1] != k {
			out = append(out, k)
		}
	}
	return out
}
