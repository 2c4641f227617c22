// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/halcyonlabs/go-halcyon/core/aa"
)

// burnerIdentity is the local-testing signer applied to operations
// submitted without a signature.
type burnerIdentity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// opEntry is one operation in the submitted ops file.
type opEntry struct {
	Sender       common.Address        `json:"sender"`
	Nonce        *math.HexOrDecimal256 `json:"nonce"`
	InitPayload  hexutil.Bytes         `json:"initPayload,omitempty"`
	CallPayload  hexutil.Bytes         `json:"callPayload,omitempty"`
	ValidAfter   uint64                `json:"validAfter,omitempty"`
	ValidUntil   uint64                `json:"validUntil,omitempty"`
	Signature    hexutil.Bytes         `json:"signature,omitempty"`
	MissingFunds *math.HexOrDecimal256 `json:"missingFunds,omitempty"`

	// Push-model pricing, ignored in pull mode.
	Gas       uint64                `json:"gas,omitempty"`
	GasFeeCap *math.HexOrDecimal256 `json:"gasFeeCap,omitempty"`
}

// readOpsFile loads and decodes the JSON operations file.
func readOpsFile(path string) ([]opEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []opEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid ops file %s: %v", path, err)
	}
	return entries, nil
}

func (e *opEntry) toOperation() (*aa.Operation, error) {
	nonce := new(uint256.Int)
	if e.Nonce != nil {
		var overflow bool
		if nonce, overflow = uint256.FromBig((*big.Int)(e.Nonce)); overflow {
			return nil, fmt.Errorf("nonce overflow for sender %s", e.Sender)
		}
	}
	return &aa.Operation{
		Sender:      e.Sender,
		Nonce:       nonce,
		InitPayload: e.InitPayload,
		CallPayload: e.CallPayload,
		ValidAfter:  e.ValidAfter,
		ValidUntil:  e.ValidUntil,
		Signature:   e.Signature,
	}, nil
}

func (e *opEntry) missingFunds() *big.Int {
	if e.MissingFunds == nil {
		return new(big.Int)
	}
	return (*big.Int)(e.MissingFunds)
}

// runPull walks the operations through the dispatcher adapter.
func runPull(engine *aa.Engine, entries []opEntry, burner *burnerIdentity) ([]*aa.Receipt, error) {
	cfg := engine.Authority().Config()
	bundle := make([]aa.BundledOperation, 0, len(entries))
	for i := range entries {
		op, err := entries[i].toOperation()
		if err != nil {
			return nil, err
		}
		if len(op.Signature) == 0 && burner != nil {
			if err := aa.SignOperation(op, cfg.ChainID, cfg.Engine, burner.key); err != nil {
				return nil, err
			}
			log.Debug("Signed operation with burner identity", "sender", op.Sender, "burner", burner.address)
		}
		bundle = append(bundle, aa.BundledOperation{Op: op, MissingFunds: entries[i].missingFunds()})
	}
	return engine.Dispatcher().HandleOps(bundle), nil
}

// runPush drives each operation through the two-call system caller
// lifecycle as a native transaction.
func runPush(engine *aa.Engine, entries []opEntry, burner *burnerIdentity) ([]*aa.Receipt, error) {
	cfg := engine.Authority().Config()
	syscall := engine.SystemCaller()

	receipts := make([]*aa.Receipt, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		feeCap := new(uint256.Int)
		if entry.GasFeeCap != nil {
			var overflow bool
			if feeCap, overflow = uint256.FromBig((*big.Int)(entry.GasFeeCap)); overflow {
				return nil, fmt.Errorf("gas fee cap overflow for sender %s", entry.Sender)
			}
		}
		var seq uint64
		if entry.Nonce != nil {
			n := (*big.Int)(entry.Nonce)
			if !n.IsUint64() {
				return nil, fmt.Errorf("nonce overflow for sender %s", entry.Sender)
			}
			seq = n.Uint64()
		}
		tx := &aa.NativeTx{
			ChainID:     uint256.MustFromBig(cfg.ChainID),
			Sender:      entry.Sender,
			Nonce:       seq,
			InitPayload: entry.InitPayload,
			CallPayload: entry.CallPayload,
			ValidAfter:  entry.ValidAfter,
			ValidUntil:  entry.ValidUntil,
			GasFeeCap:   feeCap,
			Gas:         entry.Gas,
			Signature:   entry.Signature,
		}
		if len(tx.Signature) == 0 && burner != nil {
			if err := aa.SignNativeTx(tx, cfg.Engine, burner.key); err != nil {
				return nil, err
			}
		}

		receipt := &aa.Receipt{
			OpHash: tx.Digest(cfg.Engine),
			Sender: tx.Sender,
			Nonce:  uint256.NewInt(tx.Nonce),
		}
		result, err := syscall.ValidateTransaction(cfg.SystemCaller, tx)
		if err != nil {
			log.Warn("Native transaction rejected", "sender", tx.Sender, "err", err)
			receipt.Reason = err.Error()
			receipts = append(receipts, receipt)
			continue
		}
		receipt.PrefundPaid = result.PrefundPaid
		receipt.PrefundShortfall = result.PrefundShortfall

		ret, err := syscall.ExecuteTransaction(cfg.SystemCaller, tx)
		receipt.ReturnData = ret
		if err != nil {
			receipt.Reason = err.Error()
		} else {
			receipt.Success = true
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}
