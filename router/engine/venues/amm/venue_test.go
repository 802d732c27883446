package amm_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/zeebo/assert"

	"github.com/prism-dex/router-engine/router/engine"
	"github.com/prism-dex/router-engine/router/engine/venues/amm"
)

var (
	usdc = engine.Token{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6}
	weth = engine.Token{ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18}
	wbtc = engine.Token{ChainID: 1, Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Symbol: "WBTC", Decimals: 8}
)

func setupTestVenue() *amm.Venue {
	venue := amm.New()
	// 100k USDC / 50 WETH, default 30 bps fee.
	venue.AddPool(usdc, weth,
		new(big.Int).Mul(big.NewInt(100_000), big.NewInt(1_000_000)),
		new(big.Int).Mul(big.NewInt(50), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		0)
	return venue
}

func TestVenue_Quote(t *testing.T) {
	venue := setupTestVenue()

	quote, err := venue.Quote(context.Background(), usdc, weth, big.NewInt(1_000_000_000))
	assert.NoError(t, err)
	t.Logf("Quote: %+v", quote)

	assert.Equal(t, quote.AmountIn, "1000000000")
	// 50e18 * 1e9*9970 / (1e11*10000 + 1e9*9970)
	assert.Equal(t, quote.AmountOut, "493579017198530649")
	assert.Equal(t, quote.EffectiveFeeBps, uint32(30))
	assert.True(t, quote.PriceImpact > 0.012)
	assert.True(t, quote.PriceImpact < 0.014)

	// if all goes well
	t.Logf("Quote test passed")
}

func TestVenue_QuoteReverseDirection(t *testing.T) {
	venue := setupTestVenue()

	// 1 WETH back into the pool.
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	quote, err := venue.Quote(context.Background(), weth, usdc, one)
	assert.NoError(t, err)
	t.Logf("Reverse quote: %+v", quote)

	out, ok := new(big.Int).SetString(quote.AmountOut, 10)
	assert.True(t, ok)

	// Mid price is 2000 USDC per WETH; the quote lands below it but in
	// the right neighborhood.
	assert.True(t, out.Cmp(big.NewInt(1_900_000_000)) > 0)
	assert.True(t, out.Cmp(big.NewInt(2_000_000_000)) < 0)

	// if all goes well
	t.Logf("Reverse direction test passed")
}

func TestVenue_QuoteErrors(t *testing.T) {
	venue := setupTestVenue()

	// Unknown pair.
	_, err := venue.Quote(context.Background(), usdc, wbtc, big.NewInt(1000))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInsufficientLiquidity))

	// Zero amount.
	_, err = venue.Quote(context.Background(), usdc, weth, big.NewInt(0))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInsufficientLiquidity))

	// Larger than the pool can absorb.
	tooBig := new(big.Int).Mul(big.NewInt(60_000), big.NewInt(1_000_000))
	_, err = venue.Quote(context.Background(), usdc, weth, tooBig)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInsufficientLiquidity))

	// Cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = venue.Quote(ctx, usdc, weth, big.NewInt(1000))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrChain))

	// if all goes well
	t.Logf("Quote errors test passed")
}

func TestVenue_Reserves(t *testing.T) {
	venue := setupTestVenue()

	snap, err := venue.Reserves(context.Background(), usdc, weth)
	assert.NoError(t, err)
	assert.Equal(t, snap.ReserveIn.String(), "100000000000")
	assert.Equal(t, snap.ReserveOut.String(), "50000000000000000000")

	// Reversed query flips the orientation.
	snap, err = venue.Reserves(context.Background(), weth, usdc)
	assert.NoError(t, err)
	assert.Equal(t, snap.ReserveIn.String(), "50000000000000000000")
	assert.Equal(t, snap.ReserveOut.String(), "100000000000")

	_, err = venue.Reserves(context.Background(), usdc, wbtc)
	assert.Error(t, err)

	// if all goes well
	t.Logf("Reserves test passed")
}

func TestVenue_SetReserves(t *testing.T) {
	venue := setupTestVenue()

	err := venue.SetReserves(weth, usdc,
		new(big.Int).Mul(big.NewInt(60), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		new(big.Int).Mul(big.NewInt(120_000), big.NewInt(1_000_000)))
	assert.NoError(t, err)

	snap, err := venue.Reserves(context.Background(), usdc, weth)
	assert.NoError(t, err)
	assert.Equal(t, snap.ReserveIn.String(), "120000000000")
	assert.Equal(t, snap.ReserveOut.String(), "60000000000000000000")

	err = venue.SetReserves(usdc, wbtc, big.NewInt(1), big.NewInt(1))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInsufficientLiquidity))

	// if all goes well
	t.Logf("SetReserves test passed")
}

func TestVenue_VenueType(t *testing.T) {
	venue := amm.New()
	assert.Equal(t, venue.VenueType(), "constant-product")
}
