package abi

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
)

// Registry caches parsed Contracts keyed by the raw ABI JSON's hash, so
// property tests that reparse the same fixture ABI thousands of times
// over a run don't repeatedly pay json.Unmarshal and argument-type
// parsing — the same bounded-LRU shape linker.Linker uses for linked
// bytecode.
type Registry struct {
	cache *lru.Cache[common.Hash, *Contract]
}

// NewRegistry builds a Registry whose cache holds at most size parsed
// Contracts.
func NewRegistry(size int) *Registry {
	cache, _ := lru.New[common.Hash, *Contract](size)
	return &Registry{cache: cache}
}

// Parse returns the Contract for raw, parsing and caching it on first
// sight and serving every later call with identical bytes from the
// cache.
func (r *Registry) Parse(raw []byte) (*Contract, error) {
	key := crypto.Keccak256Hash(raw)
	if c, ok := r.cache.Get(key); ok {
		return c, nil
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, c)
	return c, nil
}
