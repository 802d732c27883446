package engine_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/zeebo/assert"

	"github.com/prism-dex/router-engine/router/engine"
)

func TestRegistry_TokenLookup(t *testing.T) {
	registry := engine.NewRegistry()
	registerTokens(registry)

	token, ok := registry.Token(1, usdc.Address)
	assert.True(t, ok)
	assert.Equal(t, token.Symbol, "USDC")
	assert.Equal(t, token.Decimals, uint8(6))

	// Lookups are case-insensitive on the address.
	token, ok = registry.Token(1, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	assert.True(t, ok)
	assert.Equal(t, token.Symbol, "USDC")

	_, ok = registry.Token(137, usdc.Address)
	assert.False(t, ok)

	// if all goes well
	t.Logf("Token lookup test passed")
}

func TestRegistry_TokenReRegister(t *testing.T) {
	registry := engine.NewRegistry()

	assert.NoError(t, registry.RegisterToken(usdc))
	// Identical record again is a no-op.
	assert.NoError(t, registry.RegisterToken(usdc))

	// Same identity with different metadata is a config error.
	clash := usdc
	clash.Decimals = 18
	err := registry.RegisterToken(clash)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrConfig))

	// Empty address is a config error.
	err = registry.RegisterToken(engine.Token{ChainID: 1, Symbol: "GHOST"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrConfig))

	// if all goes well
	t.Logf("Token re-register test passed")
}

func TestRegistry_VenueRegistration(t *testing.T) {
	registry := engine.NewRegistry()

	venue := engine.Venue{
		ID: "uniswap-v2", Name: "Uniswap V2", ChainID: 1,
		RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
	}
	adapter := &MockVenueClient{}

	assert.NoError(t, registry.RegisterVenue(venue, adapter))

	// Duplicate venue IDs are rejected.
	err := registry.RegisterVenue(venue, adapter)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrConfig))

	// A venue without an adapter is useless.
	err = registry.RegisterVenue(engine.Venue{ID: "empty", ChainID: 1}, nil)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrConfig))

	got, ok := registry.Venue("uniswap-v2")
	assert.True(t, ok)
	assert.Equal(t, got.Name, "Uniswap V2")

	_, ok = registry.Adapter("uniswap-v2")
	assert.True(t, ok)
	_, ok = registry.Adapter("unknown")
	assert.False(t, ok)

	// if all goes well
	t.Logf("Venue registration test passed")
}

func TestRegistry_ChainListings(t *testing.T) {
	registry := engine.NewRegistry()
	registerTokens(registry)

	other := engine.Token{ChainID: 137, Address: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", Symbol: "USDC.e", Decimals: 6}
	assert.NoError(t, registry.RegisterToken(other))

	mainnet := registry.TokensOnChain(1)
	assert.Equal(t, len(mainnet), len(testTokens))
	// Sorted by address.
	for i := 1; i < len(mainnet); i++ {
		assert.True(t, mainnet[i-1].Address < mainnet[i].Address)
	}

	polygon := registry.TokensOnChain(137)
	assert.Equal(t, len(polygon), 1)
	assert.Equal(t, polygon[0].Symbol, "USDC.e")

	assert.NoError(t, registry.RegisterVenue(engine.Venue{ID: "quickswap", ChainID: 137}, &MockVenueClient{}))
	assert.NoError(t, registry.RegisterVenue(engine.Venue{ID: "uniswap-v2", ChainID: 1}, &MockVenueClient{}))

	assert.Equal(t, len(registry.VenuesOnChain(137)), 1)
	assert.Equal(t, registry.VenuesOnChain(137)[0].ID, "quickswap")

	// if all goes well
	t.Logf("Chain listings test passed")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := engine.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				token := engine.Token{
					ChainID:  1,
					Address:  fmt.Sprintf("0x%040x", n*1000+j),
					Symbol:   fmt.Sprintf("T%d_%d", n, j),
					Decimals: 18,
				}
				if err := registry.RegisterToken(token); err != nil {
					t.Errorf("register failed: %v", err)
				}
				if _, ok := registry.Token(1, token.Address); !ok {
					t.Errorf("token %s not found after register", token.Address)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, len(registry.TokensOnChain(1)), 16*50)

	// if all goes well
	t.Logf("Concurrent access test passed")
}
