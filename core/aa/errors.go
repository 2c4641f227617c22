// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import "errors"

var (
	// ErrInvalidOperation is returned for operations that fail basic
	// shape checks before any stateful validation runs.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUninitializedAccount is returned when the sender account has
	// not been materialized and the operation carries no init payload.
	ErrUninitializedAccount = errors.New("sender account not materialized")

	// ErrMalformedInitPayload is returned when an init payload is too
	// short to name a controlling key.
	ErrMalformedInitPayload = errors.New("malformed init payload")

	// ErrMalformedSignature is returned for signatures of the wrong
	// length or recovery id. Verification failure, never fatal.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrUnrecoverableSignature is returned when the signature is well
	// formed but cryptographically invalid.
	ErrUnrecoverableSignature = errors.New("unrecoverable signature")

	// ErrInvalidSignature is returned when the recovered signer is not
	// the account's controlling key.
	ErrInvalidSignature = errors.New("signer is not the controlling key")

	// ErrInvalidNonce is returned for stale or out-of-order nonces.
	// The tracked nonce state is left unchanged.
	ErrInvalidNonce = errors.New("invalid operation nonce")

	// ErrNotYetValid is returned when the validity window opens in the
	// future. Unlike other rejections, the operation may become valid.
	ErrNotYetValid = errors.New("operation not yet valid")

	// ErrExpired is returned when the validity window has closed.
	ErrExpired = errors.New("operation expired")

	// ErrUnauthorizedCaller is returned when an invoker is neither the
	// recognized protocol caller nor the account's controlling key.
	ErrUnauthorizedCaller = errors.New("caller not authorized")

	// ErrUnknownOperation is returned by the executor when no accepted
	// validation decision matches the operation digest.
	ErrUnknownOperation = errors.New("no accepted validation for operation")

	// ErrExecutionReverted wraps failures propagated from the account's
	// target logic after authorization.
	ErrExecutionReverted = errors.New("execution reverted")
)
