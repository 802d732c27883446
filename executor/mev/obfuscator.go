// Package mev wraps transactions in decoy bundles before relay submission.
//
// A searcher watching the relay feed sees every bundle the executor sends.
// Mixing each real transaction into a shuffled set of same-length decoys
// denies them a stable fingerprint: neither position nor payload size
// distinguishes the real transaction inside a bundle.
package mev

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/prism-dex/router-engine/executor/models"
)

// Decoy count per bundle. With 2 to 4 decoys a bundle carries 3 to 5
// transactions total.
const (
	minDecoys = 2
	maxDecoys = 4
)

// Obfuscator builds decoy sets around real transactions. The randomness
// source is injectable so tests can drive it deterministically; production
// callers use New which reads from crypto/rand.
type Obfuscator struct {
	rand io.Reader
}

// New returns an Obfuscator backed by the system CSPRNG.
func New() *Obfuscator {
	return &Obfuscator{rand: rand.Reader}
}

// NewWithSource returns an Obfuscator drawing randomness from src.
func NewWithSource(src io.Reader) *Obfuscator {
	return &Obfuscator{rand: src}
}

// Obfuscate returns tx mixed into a shuffled slice of decoy transactions.
// The real transaction appears exactly once; each decoy has the same length
// as tx and shares its leading envelope byte so the set is homogeneous on
// the wire.
func (o *Obfuscator) Obfuscate(tx []byte) ([][]byte, error) {
	if len(tx) == 0 {
		return nil, fmt.Errorf("%w: cannot obfuscate an empty transaction", models.ErrExecution)
	}

	count, err := o.uniformInt(maxDecoys - minDecoys + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to draw decoy count: %w", err)
	}
	count += minDecoys

	bundle := make([][]byte, 0, count+1)
	for i := 0; i < count; i++ {
		decoy := make([]byte, len(tx))
		if _, err := io.ReadFull(o.rand, decoy); err != nil {
			return nil, fmt.Errorf("failed to fill decoy: %w", err)
		}
		// Typed transactions carry their envelope marker in the first
		// byte; decoys must match it or they sort trivially.
		decoy[0] = tx[0]
		bundle = append(bundle, decoy)
	}

	real := make([]byte, len(tx))
	copy(real, tx)
	bundle = append(bundle, real)

	if err := o.shuffle(bundle); err != nil {
		return nil, fmt.Errorf("failed to shuffle bundle: %w", err)
	}
	return bundle, nil
}

// shuffle permutes txs in place with a Fisher-Yates walk over the
// obfuscator's randomness source.
func (o *Obfuscator) shuffle(txs [][]byte) error {
	for i := len(txs) - 1; i > 0; i-- {
		j, err := o.uniformInt(i + 1)
		if err != nil {
			return err
		}
		txs[i], txs[j] = txs[j], txs[i]
	}
	return nil
}

// uniformInt draws an unbiased integer in [0, n).
func (o *Obfuscator) uniformInt(n int) (int, error) {
	v, err := rand.Int(o.rand, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
