// Package htlc drives hash time locked swaps between mutually untrusted
// chains. A coordinator tracks each swap through a one-way state machine:
// funds lock on the source chain against a secret hash, the claimant reveals
// the preimage before expiration to collect, or the sender refunds after it.
package htlc

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/prism-dex/router-engine/executor/models"
)

// SecretSize is the byte length of swap secrets and their hashes.
const SecretSize = 32

// GenerateSecret draws a fresh swap secret from the system CSPRNG and
// returns it with its SHA-256 hash. The hash goes into the lock contract;
// the secret stays with the claimant until claim time.
func GenerateSecret() (secret, hash [SecretSize]byte, err error) {
	if _, err = rand.Read(secret[:]); err != nil {
		return secret, hash, fmt.Errorf("failed to generate secret: %w", err)
	}
	hash = sha256.Sum256(secret[:])
	return secret, hash, nil
}

// HashSecret returns the SHA-256 digest of a secret.
func HashSecret(secret [SecretSize]byte) [SecretSize]byte {
	return sha256.Sum256(secret[:])
}

// ParseHash decodes a 0x-prefixed hex secret hash.
func ParseHash(s string) ([SecretSize]byte, error) {
	var hash [SecretSize]byte
	raw, err := hexutil.Decode(s)
	if err != nil {
		return hash, fmt.Errorf("%w: invalid secret hash: %w", models.ErrConfig, err)
	}
	if len(raw) != SecretSize {
		return hash, fmt.Errorf("%w: secret hash must be %d bytes, got %d", models.ErrConfig, SecretSize, len(raw))
	}
	copy(hash[:], raw)
	return hash, nil
}

// ParseSecret decodes a 0x-prefixed hex secret. A malformed or wrong-length
// secret can never hash to the lock, so it fails the same way a wrong
// preimage does.
func ParseSecret(s string) ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	raw, err := hexutil.Decode(s)
	if err != nil {
		return secret, fmt.Errorf("%w: invalid secret: %w", models.ErrExecution, err)
	}
	if len(raw) != SecretSize {
		return secret, fmt.Errorf("%w: secret must be %d bytes, got %d", models.ErrExecution, SecretSize, len(raw))
	}
	copy(secret[:], raw)
	return secret, nil
}
