// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

/*
Package aa implements the account abstraction validation and
authorization engine: given an operation submitted on behalf of a
programmable account, it decides whether the operation is authentic and
authorized, whether the account can cover the prefund its processing
demands, and whether it may be executed exactly once.

# Architecture

The engine is built from five parts orchestrated by a single validation
authority:

 1. SignerCache - recovers the signer identity of an operation digest
    under the personal-message signing convention, with an LRU cache.

 2. NonceTracker - per-account, per-slot last-consumed counters. The
    push model uses the plain sequential slot (zero key); the pull model
    allows independent keyed slots so several operations can be pending
    concurrently.

 3. Prefund settlement - transfers the declared missing funds from the
    account to the caller, up to the account's liquid balance.

 4. Authority - the single-pass state machine: materialization check,
    signature check, nonce check, validity window, prefund. Only a full
    pass commits; the nonce advance is atomic with acceptance under a
    per-account lock, and rejections leave no trace.

 5. Executor - gates execution of accepted operations behind the
    capability set {protocol caller, account owner} and consumes each
    acceptance exactly once.

# Protocol variants

Two thin adapters share one authority instance:

	Dispatcher   - pull model: an external coordinator submits batched
	               operations (HandleOps) and triggers execution itself.
	SystemCaller - push model: a privileged caller drives validate and
	               execute as two calls over a NativeTx.

# Prefund policy

A prefund shortfall does not reject an operation: validation still
accepts, the transferred amount is capped at the account balance and the
deficit is surfaced in the ValidationResult. A dispatcher that is not
willing to process work it cannot get paid for must check the shortfall
itself before executing. This asymmetry against the strict nonce rule is
deliberate and load-bearing; do not "fix" it here.
*/
package aa
