package mev_test

import (
	"bytes"
	"errors"
	mrand "math/rand"
	"testing"

	"github.com/zeebo/assert"

	"github.com/prism-dex/router-engine/executor/mev"
	"github.com/prism-dex/router-engine/executor/models"
)

// A plausible signed EIP-1559 transaction: type marker, then opaque payload.
var fixtureTx = append([]byte{0x02}, bytes.Repeat([]byte{0xab, 0x5c, 0x11, 0xf7}, 32)...)

func TestObfuscator_BundleShape(t *testing.T) {
	obf := mev.New()

	for i := 0; i < 200; i++ {
		bundle, err := obf.Obfuscate(fixtureTx)
		assert.NoError(t, err)

		// 1 real transaction plus 2 to 4 decoys.
		assert.True(t, len(bundle) >= 3)
		assert.True(t, len(bundle) <= 5)

		real := 0
		for _, tx := range bundle {
			assert.Equal(t, len(tx), len(fixtureTx))
			assert.Equal(t, tx[0], fixtureTx[0])
			if bytes.Equal(tx, fixtureTx) {
				real++
			}
		}
		assert.Equal(t, real, 1)
	}

	// if all goes well
	t.Logf("Bundle shape test passed")
}

func TestObfuscator_AllSizesReached(t *testing.T) {
	obf := mev.New()

	seen := make(map[int]int)
	for i := 0; i < 300; i++ {
		bundle, err := obf.Obfuscate(fixtureTx)
		assert.NoError(t, err)
		seen[len(bundle)]++
	}

	// Uniform over three sizes; 300 draws miss one with probability
	// under 1e-50.
	assert.True(t, seen[3] > 0)
	assert.True(t, seen[4] > 0)
	assert.True(t, seen[5] > 0)

	t.Logf("Size distribution over 300 draws: %v", seen)
}

func TestObfuscator_DoesNotAliasInput(t *testing.T) {
	obf := mev.New()

	tx := make([]byte, len(fixtureTx))
	copy(tx, fixtureTx)

	bundle, err := obf.Obfuscate(tx)
	assert.NoError(t, err)

	// Mutating the bundle's copy of the real transaction must not reach
	// the caller's buffer.
	for _, b := range bundle {
		if bytes.Equal(b, tx) {
			b[1] ^= 0xff
		}
	}
	assert.True(t, bytes.Equal(tx, fixtureTx))

	// if all goes well
	t.Logf("Aliasing test passed")
}

func TestObfuscator_DeterministicWithSeededSource(t *testing.T) {
	a := mev.NewWithSource(mrand.New(mrand.NewSource(7)))
	b := mev.NewWithSource(mrand.New(mrand.NewSource(7)))

	bundleA, err := a.Obfuscate(fixtureTx)
	assert.NoError(t, err)
	bundleB, err := b.Obfuscate(fixtureTx)
	assert.NoError(t, err)

	assert.Equal(t, len(bundleA), len(bundleB))
	for i := range bundleA {
		assert.True(t, bytes.Equal(bundleA[i], bundleB[i]))
	}

	// A different seed lands on a different bundle.
	c := mev.NewWithSource(mrand.New(mrand.NewSource(8)))
	bundleC, err := c.Obfuscate(fixtureTx)
	assert.NoError(t, err)
	same := len(bundleC) == len(bundleA)
	if same {
		for i := range bundleC {
			if !bytes.Equal(bundleC[i], bundleA[i]) {
				same = false
				break
			}
		}
	}
	assert.False(t, same)

	// if all goes well
	t.Logf("Determinism test passed")
}

func TestObfuscator_EmptyTx(t *testing.T) {
	obf := mev.New()

	_, err := obf.Obfuscate(nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExecution))

	// if all goes well
	t.Logf("Empty tx test passed")
}

func BenchmarkObfuscate(b *testing.B) {
	obf := mev.New()

	for b.Loop() {
		if _, err := obf.Obfuscate(fixtureTx); err != nil {
			b.Fatal(err)
		}
	}
}
