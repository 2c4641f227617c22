// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.
//
// Pull-model entry: an external dispatcher submits batched operations,
// each validated and, on acceptance, executed in sequence.

package aa

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"
)

// BundledOperation pairs an operation with the prefund the dispatcher
// declares the account must expose for it.
type BundledOperation struct {
	Op           *Operation `json:"op"`
	MissingFunds *big.Int   `json:"missingFunds"`
}

// Dispatcher is the pull-model adapter. Batching, ordering across
// accounts and fee settlement beyond the prefund transfer belong to the
// external coordinator; this adapter only walks a submitted batch
// through the shared authority and executor.
type Dispatcher struct {
	authority *Authority
	executor  *Executor
}

// NewDispatcher creates the pull-model adapter over a shared authority
// and executor pair.
func NewDispatcher(authority *Authority, executor *Executor) *Dispatcher {
	return &Dispatcher{authority: authority, executor: executor}
}

// Validate runs the full validation pass for a single operation without
// executing it. This is not a dry run: acceptance consumes the nonce and
// clears the operation for execution, so a coordinator that validates
// here must execute directly rather than resubmit through HandleOps,
// which would reject the operation as a replay.
func (d *Dispatcher) Validate(op *Operation, missingFunds *big.Int) (*ValidationResult, error) {
	return d.authority.Validate(op, missingFunds)
}

// HandleOps processes a batch of operations. Failed operations do not
// abort the batch; they yield receipts with Success=false and the reason
// recorded. Execution only ever runs for operations this same call
// accepted.
func (d *Dispatcher) HandleOps(bundle []BundledOperation) []*Receipt {
	receipts := make([]*Receipt, 0, len(bundle))
	for _, item := range bundle {
		receipts = append(receipts, d.handleOp(item.Op, item.MissingFunds))
	}
	return receipts
}

func (d *Dispatcher) handleOp(op *Operation, missingFunds *big.Int) *Receipt {
	if op == nil {
		return &Receipt{Reason: ErrInvalidOperation.Error()}
	}
	receipt := &Receipt{Sender: op.Sender, Nonce: op.Nonce}
	receipt.OpHash = d.authority.Digest(op)

	result, err := d.authority.Validate(op, missingFunds)
	if err != nil {
		log.Warn("Operation failed validation", "sender", op.Sender, "opHash", receipt.OpHash, "err", err)
		receipt.Reason = err.Error()
		return receipt
	}
	receipt.PrefundPaid = result.PrefundPaid
	receipt.PrefundShortfall = result.PrefundShortfall

	ret, err := d.executor.Execute(op, d.authority.Config().Dispatcher)
	receipt.ReturnData = ret
	if err != nil {
		receipt.Reason = err.Error()
		return receipt
	}
	receipt.Success = true
	return receipt
}
