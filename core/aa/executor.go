// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var execRevertedMeter = metrics.NewRegisteredCounter("aa/exec/reverted", nil)

// CallTarget is the account's target logic a cleared call payload is
// dispatched to.
type CallTarget interface {
	Call(sender common.Address, payload []byte) ([]byte, error)
}

// CallTargetFunc adapts a function to the CallTarget interface.
type CallTargetFunc func(sender common.Address, payload []byte) ([]byte, error)

// Call invokes the function.
func (f CallTargetFunc) Call(sender common.Address, payload []byte) ([]byte, error) {
	return f(sender, payload)
}

// Executor gates the state-changing call of an accepted operation. Only
// the configured protocol caller (dispatcher or system caller) or the
// account's own controlling key may trigger execution, and each accepted
// operation executes at most once.
type Executor struct {
	config    Config
	authority *Authority
	state     AccountState

	mu            sync.RWMutex
	targets       map[common.Address]CallTarget // per-account target logic
	defaultTarget CallTarget
}

// NewExecutor creates an executor bound to the authority whose accepted
// decisions it consumes.
func NewExecutor(authority *Authority, state AccountState) *Executor {
	return &Executor{
		config:    authority.Config(),
		authority: authority,
		state:     state,
		targets:   make(map[common.Address]CallTarget),
	}
}

// RegisterTarget installs the target logic for one account.
func (e *Executor) RegisterTarget(addr common.Address, target CallTarget) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.targets[addr] = target
}

// SetDefaultTarget installs the target used by accounts without their
// own registration. A nil default makes cleared payloads no-ops.
func (e *Executor) SetDefaultTarget(target CallTarget) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultTarget = target
}

// Execute dispatches the call payload of a previously accepted
// operation. The invoker must be the dispatcher, the system caller or
// the account's controlling key; anything else is rejected before the
// payload is touched. A failure inside the target is propagated wrapped
// in ErrExecutionReverted, never swallowed.
func (e *Executor) Execute(op *Operation, invoker common.Address) ([]byte, error) {
	if op == nil {
		return nil, ErrInvalidOperation
	}
	return e.execute(op, e.authority.Digest(op), invoker)
}

// execute runs the gate and dispatch against an explicit digest. The
// push path keys acceptance by the envelope digest, not the operation
// digest.
func (e *Executor) execute(op *Operation, digest common.Hash, invoker common.Address) ([]byte, error) {
	if op.Sender == (common.Address{}) {
		return nil, ErrInvalidOperation
	}
	if !e.authorized(op.Sender, invoker) {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorizedCaller, invoker)
	}
	if !e.authority.consumeAccepted(digest) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, digest)
	}

	target := e.target(op.Sender)
	if target == nil {
		return nil, nil // no target logic installed, cleared no-op
	}
	ret, err := target.Call(op.Sender, op.CallPayload)
	if err != nil {
		execRevertedMeter.Inc(1)
		log.Warn("Operation execution reverted", "sender", op.Sender, "opHash", digest, "err", err)
		return ret, fmt.Errorf("%w: %v", ErrExecutionReverted, err)
	}
	return ret, nil
}

// authorized implements the two-variant capability check: protocol
// caller or account owner.
func (e *Executor) authorized(sender, invoker common.Address) bool {
	if invoker == (common.Address{}) {
		return false
	}
	if invoker == e.config.Dispatcher || invoker == e.config.SystemCaller {
		return true
	}
	return e.state.Exists(sender) && invoker == e.state.Owner(sender)
}

func (e *Executor) target(addr common.Address) CallTarget {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.targets[addr]; ok {
		return t
	}
	return e.defaultTarget
}
