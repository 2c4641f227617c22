// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	prefundSettledMeter   = metrics.NewRegisteredCounter("aa/prefund/settles", nil)
	prefundShortfallMeter = metrics.NewRegisteredCounter("aa/prefund/shortfalls", nil)
)

// SettlePrefund moves up to missing from the account's liquid balance to
// the payee. It never transfers more than requested and never fails on
// an insufficient balance: the shortfall is returned as data and policy
// is left to the caller. Nonce rejection is strict because replay is an
// integrity violation; a prefund shortfall is an economic risk the
// dispatcher chooses to accept or not.
func SettlePrefund(state AccountState, account, payee common.Address, missing *big.Int) (transferred, shortfall *big.Int) {
	if missing == nil || missing.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	transferred = new(big.Int).Set(missing)
	if balance := state.Balance(account); balance.Cmp(missing) < 0 {
		transferred.Set(balance)
	}
	shortfall = new(big.Int).Sub(missing, transferred)

	if transferred.Sign() > 0 {
		state.SubBalance(account, transferred)
		state.AddBalance(payee, transferred)
		prefundSettledMeter.Inc(1)
	}
	if shortfall.Sign() > 0 {
		prefundShortfallMeter.Inc(1)
		log.Debug("Prefund shortfall", "account", account, "missing", missing, "transferred", transferred)
	}
	return transferred, shortfall
}
