// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Engine wires the account registry, validation authority, executor and
// the two protocol adapters into one instance.

package aa

import (
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"

	"github.com/halcyonlabs/go-halcyon/core/accounts"
)

// Engine owns the validation state for the accounts it manages. Adapters
// share one authority, so pull and push traffic observe the same nonce
// and acceptance state.
type Engine struct {
	config    Config
	accounts  *accounts.Registry
	authority *Authority
	executor  *Executor
}

// NewEngine constructs an engine over the given database. The database
// carries the durable state (account records, nonce counters); a nil
// database is allowed for simulation and tests.
func NewEngine(config Config, db ethdb.KeyValueStore) (*Engine, error) {
	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	registry := accounts.NewRegistry(db)
	authority := NewAuthority(config, registry, db)
	executor := NewExecutor(authority, registry)

	log.Info("Account abstraction engine initialized",
		"chainid", config.ChainID, "dispatcher", config.Dispatcher, "syscaller", config.SystemCaller)
	return &Engine{
		config:    config,
		accounts:  registry,
		authority: authority,
		executor:  executor,
	}, nil
}

// Accounts returns the engine's account registry.
func (e *Engine) Accounts() *accounts.Registry {
	return e.accounts
}

// Authority returns the shared validation authority.
func (e *Engine) Authority() *Authority {
	return e.authority
}

// Executor returns the execution authorizer.
func (e *Engine) Executor() *Executor {
	return e.executor
}

// Dispatcher returns the pull-model adapter.
func (e *Engine) Dispatcher() *Dispatcher {
	return NewDispatcher(e.authority, e.executor)
}

// SystemCaller returns the push-model adapter.
func (e *Engine) SystemCaller() *SystemCaller {
	return NewSystemCaller(e.authority, e.executor)
}
