// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultConfig holds the engine defaults shared by both adapters.
var DefaultConfig = Config{
	StrictSlotNonces: true,
	SignerCacheSize:  4096,
	AcceptedOpsLimit: 8192,
}

// Config carries the resolved chain and caller identities the engine is
// constructed with. There is no ambient global lookup; everything the
// engine needs is passed in here.
type Config struct {
	// ChainID binds operation digests to one network.
	ChainID *big.Int

	// Engine is the address the operations are addressed to. It is
	// mixed into every operation digest.
	Engine common.Address

	// Dispatcher is the coordinator allowed to drive the pull-model
	// entry and to trigger execution of accepted operations.
	Dispatcher common.Address

	// SystemCaller is the sole privileged identity allowed to drive
	// the push-model entry.
	SystemCaller common.Address

	// StrictSlotNonces requires slot sequences to advance by exactly
	// one. When false a sequence only has to exceed the last consumed
	// value within its slot.
	StrictSlotNonces bool `toml:",omitempty"`

	// SignerCacheSize bounds the recovered-signer cache.
	SignerCacheSize int `toml:",omitempty"`

	// AcceptedOpsLimit bounds the set of validated-but-unexecuted
	// operations. Evicted acceptances fail closed: the operation has to
	// be revalidated before it can execute.
	AcceptedOpsLimit int `toml:",omitempty"`
}

// Sanitize checks the config for missing identities and fills defaults.
func (c *Config) Sanitize() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return errors.New("chain id not configured")
	}
	if c.Dispatcher == (common.Address{}) && c.SystemCaller == (common.Address{}) {
		return errors.New("neither dispatcher nor system caller configured")
	}
	if c.SignerCacheSize <= 0 {
		c.SignerCacheSize = DefaultConfig.SignerCacheSize
	}
	if c.AcceptedOpsLimit <= 0 {
		c.AcceptedOpsLimit = DefaultConfig.AcceptedOpsLimit
	}
	return nil
}
