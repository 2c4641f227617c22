// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Database key schema for the engine's durable state: account records
// and per-slot nonce counters. Nothing else persists.

package rawdb

import "github.com/ethereum/go-ethereum/common"

var (
	// accountRecordPrefix is the prefix for account records.
	// accountRecordPrefix + address -> JSON account record
	accountRecordPrefix = []byte("aa-acct-")

	// noncePrefix is the prefix for consumed nonce counters.
	// noncePrefix + address + slot key -> last consumed sequence (8 bytes BE)
	noncePrefix = []byte("aa-nonce-")
)

// accountRecordKey returns the database key for an account record.
func accountRecordKey(addr common.Address) []byte {
	return append(accountRecordPrefix, addr.Bytes()...)
}

// nonceValueKey returns the database key for a nonce slot counter.
func nonceValueKey(addr common.Address, slot []byte) []byte {
	key := make([]byte, 0, len(noncePrefix)+common.AddressLength+len(slot))
	key = append(key, noncePrefix...)
	key = append(key, addr.Bytes()...)
	key = append(key, slot...)
	return key
}
