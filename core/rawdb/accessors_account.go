// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Database accessors for account records and nonce counters.

package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

// HasAccountRecord checks if a record exists for the address.
func HasAccountRecord(db ethdb.KeyValueReader, addr common.Address) bool {
	has, _ := db.Has(accountRecordKey(addr))
	return has
}

// ReadAccountRecord retrieves the raw account record, nil if absent.
func ReadAccountRecord(db ethdb.KeyValueReader, addr common.Address) []byte {
	data, _ := db.Get(accountRecordKey(addr))
	return data
}

// WriteAccountRecord stores a raw account record.
func WriteAccountRecord(db ethdb.KeyValueWriter, addr common.Address, record []byte) {
	if err := db.Put(accountRecordKey(addr), record); err != nil {
		log.Crit("Failed to store account record", "address", addr, "err", err)
	}
}

// DeleteAccountRecord removes an account record.
func DeleteAccountRecord(db ethdb.KeyValueWriter, addr common.Address) {
	if err := db.Delete(accountRecordKey(addr)); err != nil {
		log.Crit("Failed to delete account record", "address", addr, "err", err)
	}
}

// ReadNonceValue retrieves the last consumed sequence for an account
// nonce slot. The second return reports whether the slot was ever used.
func ReadNonceValue(db ethdb.KeyValueReader, addr common.Address, slot []byte) (uint64, bool) {
	data, _ := db.Get(nonceValueKey(addr, slot))
	if len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// WriteNonceValue stores the last consumed sequence for a nonce slot.
func WriteNonceValue(db ethdb.KeyValueWriter, addr common.Address, slot []byte, seq uint64) {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], seq)
	if err := db.Put(nonceValueKey(addr, slot), data[:]); err != nil {
		log.Crit("Failed to store nonce value", "address", addr, "err", err)
	}
}
