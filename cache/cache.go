// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package cache memoizes compiled top-level functions by source hash, the
// same kind of keyed LRU the teacher's consensus engines use for recent
// snapshots/signatures (e.g. consensus/pob.recents), sized for REPL and
// debugapi request traffic instead of blocks.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru"

	"github.com/probechain/plox/vm"
)

// DefaultSize is the number of distinct sources kept compiled at once.
const DefaultSize = 256

// Cache is an LRU of sha256(source) -> *vm.ObjFunction. Entries are heap
// objects belonging to one *vm.VM; a Cache must only ever be consulted
// against the machine that compiled the functions it holds, and must be
// registered with that machine via vm.VM.AddRootSource so cached entries
// survive collection between runs (see MarkRoots).
type Cache struct {
	entries *lru.Cache
}

// New returns a Cache holding up to size compiled functions.
func New(size int) (*Cache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Key hashes source to the cache's lookup key.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the function cached for key, if any.
func (c *Cache) Get(key string) (*vm.ObjFunction, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*vm.ObjFunction), true
}

// Put caches fn under key, evicting the least recently used entry if the
// cache is already at capacity.
func (c *Cache) Put(key string, fn *vm.ObjFunction) {
	c.entries.Add(key, fn)
}

// Len reports how many entries are currently cached.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// MarkRoots marks every cached function as reachable. Register it with
// machine.AddRootSource so the collector doesn't reclaim a cached entry
// just because nothing is running it at the moment a collection happens.
func (c *Cache) MarkRoots(machine *vm.VM) {
	for _, key := range c.entries.Keys() {
		if v, ok := c.entries.Peek(key); ok {
			machine.MarkExternalRoot(v.(*vm.ObjFunction))
		}
	}
}
