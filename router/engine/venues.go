package engine

import (
	"context"
	"math/big"
)

// VenueClient is the capability interface every liquidity venue adapter
// implements. Concrete adapters live under engine/venues; the optimizer
// depends only on this interface and never branches on a venue type tag.
type VenueClient interface {
	// Quote returns the expected output and price impact for swapping
	// amountIn of tokenIn into tokenOut on this venue. Fails with
	// ErrInsufficientLiquidity when the venue cannot absorb the amount, or
	// an ErrChain wrap when the venue is unreachable.
	Quote(ctx context.Context, tokenIn, tokenOut Token, amountIn *big.Int) (*QuoteResult, error)

	// Reserves returns the venue's current reserves for the pair, oriented
	// to the argument order (ReserveIn backs tokenA, ReserveOut tokenB).
	Reserves(ctx context.Context, tokenA, tokenB Token) (*ReserveSnapshot, error)

	// VenueType returns the adapter kind (e.g. "constant-product",
	// "sidecar-api"). Used for gas heuristics and logs.
	VenueType() string

	// Close cleans up resources used by the adapter.
	Close()
}

// QuoteResult contains standardized quote information from any venue.
type QuoteResult struct {
	// AmountIn is the actual amount in (after any venue-side adjustment).
	AmountIn  string
	AmountOut string
	// PriceImpact is the fractional deviation from the mid price caused by
	// this trade (e.g. 0.02 for 2%).
	PriceImpact float64
	// EffectiveFeeBps is the total venue fee taken, in basis points.
	EffectiveFeeBps uint32
	// FeeTier is the pool fee tier the quote was served from, when the
	// venue has more than one.
	FeeTier *uint32
}

// ReserveSnapshot is a point-in-time view of pair reserves.
type ReserveSnapshot struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
	FeeTier    *uint32
}
