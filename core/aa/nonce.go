// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/halcyonlabs/go-halcyon/core/rawdb"
)

// nonceSlot addresses one replay-protection counter.
type nonceSlot struct {
	addr common.Address
	key  NonceKey
}

// NonceTracker maintains the last consumed sequence per account nonce
// slot. Checks never mutate state; consumption happens only through
// commit, which the authority calls atomically with acceptance.
type NonceTracker struct {
	db ethdb.KeyValueStore // nil means in-memory only

	mu   sync.RWMutex
	seen map[nonceSlot]uint64 // write-through cache of last consumed
}

// NewNonceTracker creates a tracker backed by the given database. A nil
// database keeps all counters in memory, which is only useful for tests
// and simulation.
func NewNonceTracker(db ethdb.KeyValueStore) *NonceTracker {
	return &NonceTracker{
		db:   db,
		seen: make(map[nonceSlot]uint64),
	}
}

// Last returns the last consumed sequence for an account nonce slot,
// zero if the slot was never used.
func (t *NonceTracker) Last(addr common.Address, key NonceKey) uint64 {
	t.mu.RLock()
	last, ok := t.seen[nonceSlot{addr, key}]
	t.mu.RUnlock()
	if ok {
		return last
	}
	if t.db != nil {
		if stored, ok := rawdb.ReadNonceValue(t.db, addr, key[:]); ok {
			t.mu.Lock()
			t.seen[nonceSlot{addr, key}] = stored
			t.mu.Unlock()
			return stored
		}
	}
	return 0
}

// check verifies a provided sequence against the slot's last consumed
// value without consuming it. In strict mode the sequence must advance
// by exactly one; otherwise it only has to exceed the last value.
func (t *NonceTracker) check(addr common.Address, key NonceKey, seq uint64, strict bool) error {
	last := t.Last(addr, key)
	if strict {
		if seq != last+1 {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, last+1, seq)
		}
		return nil
	}
	if seq <= last {
		return fmt.Errorf("%w: sequence %d already consumed (last %d)", ErrInvalidNonce, seq, last)
	}
	return nil
}

// commit records a sequence as consumed. The caller must hold the
// account lock and have verified the sequence with check.
func (t *NonceTracker) commit(addr common.Address, key NonceKey, seq uint64) {
	t.mu.Lock()
	t.seen[nonceSlot{addr, key}] = seq
	t.mu.Unlock()
	if t.db != nil {
		rawdb.WriteNonceValue(t.db, addr, key[:], seq)
	}
}
