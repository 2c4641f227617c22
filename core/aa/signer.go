// Copyright 2026 The go-halcyon Authors
// This file is part of the go-halcyon library.

package aa

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/crypto"
)

// signatureLength is a 64-byte secp256k1 signature plus one recovery byte.
const signatureLength = 65

// signedMessagePrefix is the personal-message convention applied to the
// 32-byte operation digest before recovery. Off-engine signers and the
// engine must agree on this bit-for-bit.
var signedMessagePrefix = []byte("\x19Ethereum Signed Message:\n32")

// sigLRU caches recovered signers keyed by digest-and-signature hash.
type sigLRU = lru.Cache[common.Hash, common.Address]

// SignerCache recovers the signer identity of operation signatures,
// memoizing results. It is stateless apart from the cache and safe for
// concurrent use.
type SignerCache struct {
	cache *sigLRU
}

// NewSignerCache creates a signer cache bounded to size entries.
func NewSignerCache(size int) *SignerCache {
	if size <= 0 {
		size = DefaultConfig.SignerCacheSize
	}
	return &SignerCache{cache: lru.NewCache[common.Hash, common.Address](size)}
}

// Recover returns the address that signed the prefixed digest. A wrong
// length or recovery id yields ErrMalformedSignature, a cryptographically
// invalid signature ErrUnrecoverableSignature. Both mean "verification
// failed"; neither is fatal to the engine.
func (s *SignerCache) Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	key := crypto.Keccak256Hash(digest.Bytes(), sig)
	if signer, known := s.cache.Get(key); known {
		return signer, nil
	}

	// Normalize the legacy 27/28 recovery id convention.
	rsv := make([]byte, signatureLength)
	copy(rsv, sig)
	if rsv[64] >= 27 {
		rsv[64] -= 27
	}
	if rsv[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig[64])
	}

	pubkey, err := crypto.Ecrecover(prefixedDigest(digest).Bytes(), rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrUnrecoverableSignature, err)
	}
	var signer common.Address
	copy(signer[:], crypto.Keccak256(pubkey[1:])[12:])

	s.cache.Add(key, signer)
	return signer, nil
}

// prefixedDigest applies the personal-message prefix to a digest.
func prefixedDigest(digest common.Hash) common.Hash {
	return crypto.Keccak256Hash(signedMessagePrefix, digest.Bytes())
}

// SignOperation signs the operation digest with the given key using the
// engine's personal-message convention and attaches the signature to the
// operation. Intended for tests and the burner identity of local setups.
func SignOperation(op *Operation, chainID *big.Int, engine common.Address, key *ecdsa.PrivateKey) error {
	digest := op.Digest(chainID, engine)
	sig, err := crypto.Sign(prefixedDigest(digest).Bytes(), key)
	if err != nil {
		return err
	}
	op.Signature = sig
	return nil
}
