// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Package accounts tracks the programmable accounts managed by the
// engine: controlling key, liquid balance and materialization state.

package accounts

import (
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"

	"github.com/halcyonlabs/go-halcyon/core/rawdb"
)

var (
	// ErrAlreadyMaterialized is returned when an init payload targets an
	// account that already exists.
	ErrAlreadyMaterialized = errors.New("account already materialized")

	// ErrBadInitPayload is returned when the init payload is too short
	// to name a controlling key.
	ErrBadInitPayload = errors.New("init payload too short")
)

// Record is the durable form of one account. Balance may accrue before
// materialization (an address can be funded ahead of first use), so a
// record without an owner is legal; it just cannot validate operations.
type Record struct {
	Owner        common.Address `json:"owner"`
	Balance      *big.Int       `json:"balance"`
	Materialized bool           `json:"materialized"`
	InitArgs     []byte         `json:"initArgs,omitempty"` // payload tail kept for the account's target logic
}

// Registry is the authoritative store of account records. It is the
// engine's only mutator of account state; the nonce tracker and prefund
// settlement act through the validation authority, never directly here.
type Registry struct {
	db ethdb.KeyValueStore // nil means in-memory only

	mu    sync.Mutex // exclusive: reads populate the cache lazily
	cache map[common.Address]*Record
}

// NewRegistry opens a registry over the given database. Records are
// loaded lazily and written through on every mutation.
func NewRegistry(db ethdb.KeyValueStore) *Registry {
	return &Registry{
		db:    db,
		cache: make(map[common.Address]*Record),
	}
}

// Exists reports whether the account has been materialized.
func (r *Registry) Exists(addr common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(addr)
	return rec != nil && rec.Materialized
}

// Owner returns the account's controlling key, the zero address if the
// account is not materialized.
func (r *Registry) Owner(addr common.Address) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.record(addr); rec != nil {
		return rec.Owner
	}
	return common.Address{}
}

// Balance returns the account's liquid balance. Never nil.
func (r *Registry) Balance(addr common.Address) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.record(addr); rec != nil && rec.Balance != nil {
		return new(big.Int).Set(rec.Balance)
	}
	return new(big.Int)
}

// AddBalance credits the address, creating a bare record if needed.
func (r *Registry) AddBalance(addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(addr)
	if rec == nil {
		rec = &Record{Balance: new(big.Int)}
		r.cache[addr] = rec
	}
	if rec.Balance == nil {
		rec.Balance = new(big.Int)
	}
	rec.Balance.Add(rec.Balance, amount)
	r.store(addr, rec)
}

// SubBalance debits the address. The balance never goes negative; the
// prefund settlement caps transfers at the available balance before
// calling here.
func (r *Registry) SubBalance(addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(addr)
	if rec == nil || rec.Balance == nil || rec.Balance.Cmp(amount) < 0 {
		log.Error("Refusing balance underflow", "address", addr, "amount", amount)
		return
	}
	rec.Balance.Sub(rec.Balance, amount)
	r.store(addr, rec)
}

// Materialize creates the account from its init payload: the first 20
// bytes name the controlling key, the remainder is kept verbatim for the
// account's target logic.
func (r *Registry) Materialize(addr common.Address, initPayload []byte) error {
	if len(initPayload) < common.AddressLength {
		return ErrBadInitPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(addr)
	if rec != nil && rec.Materialized {
		return ErrAlreadyMaterialized
	}
	if rec == nil {
		rec = &Record{Balance: new(big.Int)}
		r.cache[addr] = rec
	}
	rec.Owner = common.BytesToAddress(initPayload[:common.AddressLength])
	rec.InitArgs = common.CopyBytes(initPayload[common.AddressLength:])
	rec.Materialized = true
	r.store(addr, rec)
	return nil
}

// Register seeds a materialized account directly, bypassing the init
// payload path. Used by configuration tooling and tests.
func (r *Registry) Register(addr, owner common.Address, balance *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := &Record{
		Owner:        owner,
		Balance:      new(big.Int),
		Materialized: true,
	}
	if balance != nil {
		rec.Balance.Set(balance)
	}
	r.cache[addr] = rec
	r.store(addr, rec)
}

// SetOwner rotates the account's controlling key. Administrative
// transfer policy lives outside the engine; this is the record update.
func (r *Registry) SetOwner(addr, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(addr)
	if rec == nil || !rec.Materialized {
		return errors.New("unknown account")
	}
	rec.Owner = owner
	r.store(addr, rec)
	return nil
}

// record returns the cached record, loading it from the database on
// first touch. Callers hold r.mu.
func (r *Registry) record(addr common.Address) *Record {
	if rec, ok := r.cache[addr]; ok {
		return rec
	}
	if r.db == nil {
		return nil
	}
	data := rawdb.ReadAccountRecord(r.db, addr)
	if len(data) == 0 {
		return nil
	}
	rec := new(Record)
	if err := json.Unmarshal(data, rec); err != nil {
		log.Error("Corrupted account record", "address", addr, "err", err)
		return nil
	}
	if rec.Balance == nil {
		rec.Balance = new(big.Int)
	}
	r.cache[addr] = rec
	return rec
}

// store writes a record through to the database. Callers hold r.mu.
func (r *Registry) store(addr common.Address, rec *Record) {
	if r.db == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Crit("Failed to encode account record", "address", addr, "err", err)
	}
	rawdb.WriteAccountRecord(r.db, addr, data)
}
