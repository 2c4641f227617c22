// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Operation types shared by the validation authority, the execution
// authorizer and both protocol adapters.

package aa

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// operationDigestPrefix tags the RLP payload hashed into an operation
// digest, so operation digests can never collide with other signed
// structures carried on the same chain.
const operationDigestPrefix = byte(0xa1)

// NonceKeyLength is the size of a nonce slot key in bytes. The remaining
// low 8 bytes of the 32-byte nonce hold the per-slot sequence.
const NonceKeyLength = 24

// NonceKey identifies an independent replay-protection counter namespace
// within an account.
type NonceKey [NonceKeyLength]byte

// Operation is the unit of work submitted on behalf of a programmable
// account for validation and, on acceptance, execution.
type Operation struct {
	Sender      common.Address `json:"sender"`
	Nonce       *uint256.Int   `json:"nonce"`       // high 192 bits = slot key, low 64 bits = sequence
	InitPayload []byte         `json:"initPayload"` // account materialization instructions, empty if deployed
	CallPayload []byte         `json:"callPayload"` // opaque action bytes, may be empty
	ValidAfter  uint64         `json:"validAfter"`  // unix seconds, 0 = immediately valid
	ValidUntil  uint64         `json:"validUntil"`  // unix seconds, 0 = never expires
	Signature   []byte         `json:"signature"`
}

// NonceKey returns the slot key portion of the operation nonce.
func (op *Operation) NonceKey() NonceKey {
	var key NonceKey
	if op.Nonce == nil {
		return key
	}
	b := op.Nonce.Bytes32()
	copy(key[:], b[:NonceKeyLength])
	return key
}

// NonceSequence returns the per-slot sequence portion of the nonce.
func (op *Operation) NonceSequence() uint64 {
	if op.Nonce == nil {
		return 0
	}
	b := op.Nonce.Bytes32()
	return binary.BigEndian.Uint64(b[NonceKeyLength:])
}

// HasWindow reports whether the operation carries an explicit validity
// window on either bound.
func (op *Operation) HasWindow() bool {
	return op.ValidAfter != 0 || op.ValidUntil != 0
}

// Digest computes the canonical digest of the operation, bound to the
// chain and the engine instance that will validate it. The signature is
// not part of the digest.
func (op *Operation) Digest(chainID *big.Int, engine common.Address) common.Hash {
	return prefixedRlpHash(operationDigestPrefix, []interface{}{
		op.Sender,
		uint256OrZero(op.Nonce),
		op.InitPayload,
		op.CallPayload,
		op.ValidAfter,
		op.ValidUntil,
		bigOrZero(chainID),
		engine,
	})
}

// copy returns a deep copy of the operation.
func (op *Operation) copy() *Operation {
	cpy := &Operation{
		Sender:      op.Sender,
		InitPayload: common.CopyBytes(op.InitPayload),
		CallPayload: common.CopyBytes(op.CallPayload),
		ValidAfter:  op.ValidAfter,
		ValidUntil:  op.ValidUntil,
		Signature:   common.CopyBytes(op.Signature),
	}
	if op.Nonce != nil {
		cpy.Nonce = new(uint256.Int).Set(op.Nonce)
	}
	return cpy
}

// ValidationResult is the packed metadata accompanying an accepted
// operation. Rejections are reported as errors, not results.
type ValidationResult struct {
	ValidAfter uint64         // echo of the operation window, 0 = always
	ValidUntil uint64         // echo of the operation window, 0 = forever
	Aggregator common.Address // signature aggregator hint, zero = none

	// Prefund telemetry. A shortfall does not reject the operation;
	// the dispatcher decides whether to carry the economic risk.
	PrefundPaid      *big.Int
	PrefundShortfall *big.Int
}

// Receipt summarizes the outcome of one operation handled by an adapter.
type Receipt struct {
	OpHash           common.Hash    `json:"opHash"`
	Sender           common.Address `json:"sender"`
	Nonce            *uint256.Int   `json:"nonce"`
	Success          bool           `json:"success"`
	PrefundPaid      *big.Int       `json:"prefundPaid,omitempty"`
	PrefundShortfall *big.Int       `json:"prefundShortfall,omitempty"`
	ReturnData       []byte         `json:"returnData,omitempty"`
	Reason           string         `json:"reason,omitempty"` // rejection or revert reason if failed
}

// AccountState is the view of account records the engine validates
// against and settles prefund through. The engine is the only mutator of
// the records behind this interface during a validation pass.
type AccountState interface {
	Exists(addr common.Address) bool
	Owner(addr common.Address) common.Address
	Materialize(addr common.Address, initPayload []byte) error
	Balance(addr common.Address) *big.Int
	SubBalance(addr common.Address, amount *big.Int)
	AddBalance(addr common.Address, amount *big.Int)
}

// prefixedRlpHash hashes a one-byte type prefix followed by the RLP
// encoding of x.
func prefixedRlpHash(prefix byte, x interface{}) common.Hash {
	var buf bytes.Buffer
	buf.WriteByte(prefix)
	rlp.Encode(&buf, x)
	return crypto.Keccak256Hash(buf.Bytes())
}

func uint256OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
