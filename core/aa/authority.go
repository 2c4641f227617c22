// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	opAcceptedMeter = metrics.NewRegisteredCounter("aa/ops/accepted", nil)
	opRejectedMeter = metrics.NewRegisteredCounter("aa/ops/rejected", nil)
)

// Authority is the validation authority: it decides, in a single pass
// and with no internal retries, whether an operation is authentic,
// authorized and replay-safe. Acceptance commits the nonce consumption
// and records the operation digest for the executor, atomically under a
// per-account lock. Rejections leave all state untouched.
type Authority struct {
	config Config
	state  AccountState
	nonces *NonceTracker
	signer *SignerCache

	lockMu sync.Mutex
	locks  map[common.Address]*sync.Mutex // serializes validations per account

	acceptedMu sync.Mutex
	accepted   lru.BasicLRU[common.Hash, struct{}] // digests cleared for execution

	now func() uint64 // clock, swappable in tests
}

// NewAuthority creates a validation authority over the given account
// state. The database only persists nonce counters; it may be nil for
// purely in-memory use.
func NewAuthority(config Config, state AccountState, db ethdb.KeyValueStore) *Authority {
	if config.AcceptedOpsLimit <= 0 {
		config.AcceptedOpsLimit = DefaultConfig.AcceptedOpsLimit
	}
	return &Authority{
		config:   config,
		state:    state,
		nonces:   NewNonceTracker(db),
		signer:   NewSignerCache(config.SignerCacheSize),
		locks:    make(map[common.Address]*sync.Mutex),
		accepted: lru.NewBasicLRU[common.Hash, struct{}](config.AcceptedOpsLimit),
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// Config returns the engine configuration the authority was built with.
func (a *Authority) Config() Config {
	return a.config
}

// Nonces returns the authority's nonce tracker.
func (a *Authority) Nonces() *NonceTracker {
	return a.nonces
}

// Digest computes the canonical digest of an operation under this
// authority's chain and engine identity.
func (a *Authority) Digest(op *Operation) common.Hash {
	return op.Digest(a.config.ChainID, a.config.Engine)
}

// Validate runs the pull-model validation pass: keyed nonce slots, the
// dispatcher as prefund payee. missingFunds is the caller-declared
// prefund the account must expose before execution proceeds.
func (a *Authority) Validate(op *Operation, missingFunds *big.Int) (*ValidationResult, error) {
	if op == nil {
		opRejectedMeter.Inc(1)
		return nil, ErrInvalidOperation
	}
	return a.validate(op, a.Digest(op), missingFunds, a.config.Dispatcher, false)
}

// validateSequential runs the push-model pass: the slot key must be zero
// and the sequence must advance by exactly one. The digest is the signed
// envelope digest, which on this path covers more than the operation
// fields.
func (a *Authority) validateSequential(op *Operation, digest common.Hash, missingFunds *big.Int, payee common.Address) (*ValidationResult, error) {
	return a.validate(op, digest, missingFunds, payee, true)
}

func (a *Authority) validate(op *Operation, digest common.Hash, missingFunds *big.Int, payee common.Address, sequential bool) (*ValidationResult, error) {
	if op.Sender == (common.Address{}) || op.Nonce == nil {
		opRejectedMeter.Inc(1)
		return nil, ErrInvalidOperation
	}

	lock := a.accountLock(op.Sender)
	lock.Lock()
	defer lock.Unlock()

	result, err := a.validateLocked(op, digest, missingFunds, payee, sequential)
	if err != nil {
		opRejectedMeter.Inc(1)
		log.Debug("Operation rejected", "sender", op.Sender, "opHash", digest, "err", err)
		return nil, err
	}
	opAcceptedMeter.Inc(1)
	log.Debug("Operation accepted", "sender", op.Sender, "opHash", digest,
		"nonce", op.Nonce, "shortfall", result.PrefundShortfall)
	return result, nil
}

// validateLocked is the single-pass state machine. Every step completes
// or fails before the next begins; nothing mutates account state until
// the final commit.
func (a *Authority) validateLocked(op *Operation, digest common.Hash, missingFunds *big.Int, payee common.Address, sequential bool) (*ValidationResult, error) {
	// Identity: an unmaterialized sender needs an init payload naming
	// its controlling key. Materialization is deferred to the commit so
	// a rejection later in the pass leaves no trace.
	var (
		owner       common.Address
		materialize bool
	)
	if a.state.Exists(op.Sender) {
		owner = a.state.Owner(op.Sender)
	} else {
		if len(op.InitPayload) == 0 {
			return nil, ErrUninitializedAccount
		}
		if len(op.InitPayload) < common.AddressLength {
			return nil, ErrMalformedInitPayload
		}
		owner = common.BytesToAddress(op.InitPayload[:common.AddressLength])
		materialize = true
	}

	// Signature: the recovered identity must be the controlling key.
	signer, err := a.signer.Recover(digest, op.Signature)
	if err != nil {
		return nil, err
	}
	if signer != owner {
		return nil, fmt.Errorf("%w: recovered %s", ErrInvalidSignature, signer)
	}

	// Nonce: checked but not consumed until the commit below.
	key, seq := op.NonceKey(), op.NonceSequence()
	strict := a.config.StrictSlotNonces
	if sequential {
		if key != (NonceKey{}) {
			return nil, fmt.Errorf("%w: keyed slot in sequential mode", ErrInvalidNonce)
		}
		strict = true
	}
	if err := a.nonces.check(op.Sender, key, seq, strict); err != nil {
		return nil, err
	}

	// Time window: not-yet-valid and expired are distinguishable so the
	// caller can tell "valid later" from "dead".
	if op.HasWindow() {
		now := a.now()
		if op.ValidAfter != 0 && now < op.ValidAfter {
			return nil, fmt.Errorf("%w: window opens at %d", ErrNotYetValid, op.ValidAfter)
		}
		if op.ValidUntil != 0 && now > op.ValidUntil {
			return nil, fmt.Errorf("%w: window closed at %d", ErrExpired, op.ValidUntil)
		}
	}

	// Prefund: a shortfall is surfaced, never a rejection.
	paid, shortfall := SettlePrefund(a.state, op.Sender, payee, missingFunds)

	// Commit. The nonce advance and the acceptance are atomic with
	// respect to concurrent readers of this account.
	if materialize {
		if err := a.state.Materialize(op.Sender, op.InitPayload); err != nil {
			return nil, err
		}
		log.Info("Account materialized", "address", op.Sender, "owner", owner)
	}
	a.nonces.commit(op.Sender, key, seq)
	a.acceptedMu.Lock()
	a.accepted.Add(digest, struct{}{})
	a.acceptedMu.Unlock()

	return &ValidationResult{
		ValidAfter:       op.ValidAfter,
		ValidUntil:       op.ValidUntil,
		PrefundPaid:      paid,
		PrefundShortfall: shortfall,
	}, nil
}

// consumeAccepted removes an accepted digest, returning whether it was
// present. Each acceptance clears exactly one execution. The set is
// LRU-bounded: acceptances validated but never executed are eventually
// evicted and the stale operation fails closed with ErrUnknownOperation.
func (a *Authority) consumeAccepted(digest common.Hash) bool {
	a.acceptedMu.Lock()
	defer a.acceptedMu.Unlock()
	return a.accepted.Remove(digest)
}

// accountLock returns the mutex serializing validations for one account.
// Validations for distinct accounts proceed in parallel.
func (a *Authority) accountLock(addr common.Address) *sync.Mutex {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()
	lock, ok := a.locks[addr]
	if !ok {
		lock = new(sync.Mutex)
		a.locks[addr] = lock
	}
	return lock
}
