package htlc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"

	"github.com/prism-dex/router-engine/executor/models"
)

// Bridges maps directed chain pairs to the lock contract address on the
// source chain. Chain identifiers are strings so EVM chain IDs ("1",
// "42161") and cosmos-style IDs ("osmosis-1") share one registry; bridge
// addresses are 0x-hex for the former and bech32 for the latter.
type Bridges struct {
	mu     sync.RWMutex
	byPair map[bridgeKey]string
}

type bridgeKey struct {
	source string
	dest   string
}

// NewBridges returns an empty bridge registry.
func NewBridges() *Bridges {
	return &Bridges{byPair: make(map[bridgeKey]string)}
}

// Register adds a bridge for the directed (source, dest) pair. The address
// must be a valid 0x-hex or bech32 address; pairs are directional, so a
// reverse route needs its own registration.
func (b *Bridges) Register(sourceChain, destChain, address string) error {
	if sourceChain == "" || destChain == "" {
		return fmt.Errorf("%w: bridge requires source and dest chains", models.ErrConfig)
	}
	if sourceChain == destChain {
		return fmt.Errorf("%w: bridge source and dest chains must differ", models.ErrConfig)
	}
	if !validBridgeAddress(address) {
		return fmt.Errorf("%w: bridge address %q is neither hex nor bech32", models.ErrConfig, address)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.byPair[bridgeKey{source: sourceChain, dest: destChain}] = address
	return nil
}

// Lookup returns the bridge address for the directed pair.
func (b *Bridges) Lookup(sourceChain, destChain string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	addr, ok := b.byPair[bridgeKey{source: sourceChain, dest: destChain}]
	return addr, ok
}

// Pairs returns the number of registered bridge pairs.
func (b *Bridges) Pairs() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byPair)
}

func validBridgeAddress(address string) bool {
	if address == "" {
		return false
	}
	if common.IsHexAddress(address) {
		return true
	}
	// bech32 decoding is case sensitive and rejects mixed case outright;
	// addresses arrive lowercased by convention.
	if _, _, err := bech32.Decode(strings.ToLower(address)); err == nil {
		return true
	}
	return false
}
