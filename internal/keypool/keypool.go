// Package keypool implements round-robin API key rotation with per-key
// dead-key tracking, scoped one pool per provider.
package keypool

import "sync/atomic"

type entry struct {
	key  string
	dead atomic.Bool
}

// Pool is a fixed-size ordered collection of credentials with an atomic
// round-robin cursor. Safe for concurrent use; ordering of concurrent Next
// calls is not deterministic but every call observes a consistent decision.
type Pool struct {
	entries []*entry
	cursor  atomic.Uint64
}

// New builds a pool from an ordered, non-empty list of keys. Construction
// with zero keys is a programming error and panics immediately rather than
// surfacing a confusing failure later at the first Next call.
func New(keys []string) *Pool {
	if len(keys) == 0 {
		panic("keypool: New called with zero keys")
	}
	entries := make([]*entry, len(keys))
	for i, k := range keys {
		entries[i] = &entry{key: k}
	}
	return &Pool{entries: entries}
}

// Next returns the next live key in round-robin order, or ("", false) if
// every key in the pool is dead.
func (p *Pool) Next() (string, bool) {
	n := uint64(len(p.entries))
	start := p.cursor.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		e := p.entries[(start+i)%n]
		if !e.dead.Load() {
			return e.key, true
		}
	}
	return "", false
}

// MarkDead sets the one-way dead latch on the first entry matching key by
// string equality. It is a no-op if the key is not present in the pool.
// The flag is never cleared within the process lifetime.
func (p *Pool) MarkDead(key string) {
	for _, e := range p.entries {
		if e.key == key {
			e.dead.Store(true)
			return
		}
	}
}

// Len returns the number of keys (dead or alive) in the pool.
func (p *Pool) Len() int { return len(p.entries) }
