// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Push-model entry: a privileged system caller drives validation and
// execution as two separate calls against the account within one native
// transaction's lifecycle.

package aa

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// NativeTxType is the envelope type byte of a native account transaction.
const NativeTxType = byte(0x71)

// NativeTx is the native-transaction form of an operation: the strict
// sequential variant carried by the push model. The slot key is always
// zero; Nonce is the plain per-account sequence.
type NativeTx struct {
	ChainID     *uint256.Int
	Sender      common.Address
	Nonce       uint64 // sequential, must advance by exactly one
	InitPayload []byte
	CallPayload []byte
	ValidAfter  uint64
	ValidUntil  uint64
	GasFeeCap   *uint256.Int
	Gas         uint64
	Signature   []byte
}

// RequiredPrefund returns the balance the account must expose to the
// system caller before execution proceeds: Gas * GasFeeCap.
func (tx *NativeTx) RequiredPrefund() *big.Int {
	fee := new(big.Int)
	if tx.GasFeeCap != nil {
		fee = tx.GasFeeCap.ToBig()
	}
	return fee.Mul(fee, new(big.Int).SetUint64(tx.Gas))
}

// Digest computes the canonical digest of the native transaction, bound
// to the engine instance that will validate it. Every envelope field is
// covered, the gas pricing included, so tampering with the prefund terms
// after signing invalidates the signature. Only the signature itself is
// excluded.
func (tx *NativeTx) Digest(engine common.Address) common.Hash {
	return prefixedRlpHash(NativeTxType, []interface{}{
		uint256OrZero(tx.ChainID),
		tx.Sender,
		tx.Nonce,
		tx.InitPayload,
		tx.CallPayload,
		tx.ValidAfter,
		tx.ValidUntil,
		uint256OrZero(tx.GasFeeCap),
		tx.Gas,
		engine,
	})
}

// ToOperation lowers the transaction to the shared operation form with a
// zero slot key. The operation's own digest is not used on the push
// path; the envelope digest above is what the account signs.
func (tx *NativeTx) ToOperation() *Operation {
	return &Operation{
		Sender:      tx.Sender,
		Nonce:       uint256.NewInt(tx.Nonce),
		InitPayload: common.CopyBytes(tx.InitPayload),
		CallPayload: common.CopyBytes(tx.CallPayload),
		ValidAfter:  tx.ValidAfter,
		ValidUntil:  tx.ValidUntil,
		Signature:   common.CopyBytes(tx.Signature),
	}
}

// MarshalBinary encodes the transaction as a typed envelope: the type
// byte followed by the RLP payload.
func (tx *NativeTx) MarshalBinary() ([]byte, error) {
	payload, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, err
	}
	return append([]byte{NativeTxType}, payload...), nil
}

// DecodeNativeTx decodes a typed native transaction envelope.
func DecodeNativeTx(data []byte) (*NativeTx, error) {
	if len(data) == 0 || data[0] != NativeTxType {
		return nil, errors.New("not a native account transaction")
	}
	tx := new(NativeTx)
	if err := rlp.DecodeBytes(data[1:], tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// SignNativeTx signs the transaction's envelope digest with the
// engine's personal-message convention and attaches the signature.
func SignNativeTx(tx *NativeTx, engine common.Address, key *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(prefixedDigest(tx.Digest(engine)).Bytes(), key)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// SystemCaller is the push-model adapter. Both lifecycle calls verify
// the invoking identity: validation accepts only the configured system
// caller, execution additionally allows the account's controlling key as
// the self-call convenience path.
type SystemCaller struct {
	authority *Authority
	executor  *Executor
}

// NewSystemCaller creates the push-model adapter over a shared authority
// and executor pair.
func NewSystemCaller(authority *Authority, executor *Executor) *SystemCaller {
	return &SystemCaller{authority: authority, executor: executor}
}

// ValidateTransaction runs the strict sequential validation pass over
// the envelope digest, so the signature covers the gas pricing the
// prefund is derived from. The prefund payee is the system caller
// itself.
func (s *SystemCaller) ValidateTransaction(caller common.Address, tx *NativeTx) (*ValidationResult, error) {
	cfg := s.authority.Config()
	if caller != cfg.SystemCaller || caller == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedCaller, caller)
	}
	if tx.ChainID != nil && tx.ChainID.ToBig().Cmp(cfg.ChainID) != 0 {
		return nil, fmt.Errorf("%w: chain id mismatch", ErrInvalidOperation)
	}
	return s.authority.validateSequential(tx.ToOperation(), tx.Digest(cfg.Engine), tx.RequiredPrefund(), caller)
}

// ExecuteTransaction dispatches a previously validated transaction. The
// executor enforces the caller gate and the exactly-once guard, keyed by
// the same envelope digest the validation recorded.
func (s *SystemCaller) ExecuteTransaction(caller common.Address, tx *NativeTx) ([]byte, error) {
	cfg := s.authority.Config()
	return s.executor.execute(tx.ToOperation(), tx.Digest(cfg.Engine), caller)
}
