// Package sidecar implements engine.VenueClient over an external quote API.
// Venues that run their own quoting service (order books, concentrated
// liquidity) are integrated through this adapter rather than reimplementing
// their math in process.
package sidecar

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prism-dex/router-engine/router/engine"
	"github.com/prism-dex/router-engine/router/quoteapi"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "sidecar-venue").Logger()
}

// Venue adapts a remote quote API to the engine's venue interface.
type Venue struct {
	client *quoteapi.Client
}

// New creates a sidecar venue talking to a single endpoint.
func New(apiURL string) *Venue {
	return &Venue{client: quoteapi.NewClient(apiURL)}
}

// NewWithFailover creates a sidecar venue with backup endpoints.
func NewWithFailover(primaryURL string, backupURLs []string) *Venue {
	return &Venue{
		client: quoteapi.NewClientWithFailover(primaryURL, backupURLs, quoteapi.DefaultFailoverConfig()),
	}
}

// Quote implements engine.VenueClient.
func (v *Venue) Quote(ctx context.Context, tokenIn, tokenOut engine.Token, amountIn *big.Int) (*engine.QuoteResult, error) {
	log.Debug().
		Str("tokenIn", tokenIn.Symbol).
		Str("tokenOut", tokenOut.Symbol).
		Str("amount", amountIn.String()).
		Msg("Querying quote API")

	resp, err := v.client.GetQuote(ctx, tokenIn.Address, tokenOut.Address, amountIn.String())
	if err != nil {
		if isLiquidityError(err) {
			return nil, fmt.Errorf("%w: %v", engine.ErrInsufficientLiquidity, err)
		}
		log.Error().Err(err).
			Str("tokenIn", tokenIn.Symbol).
			Str("tokenOut", tokenOut.Symbol).
			Msg("Quote API query failed")
		return nil, fmt.Errorf("%w: %v", engine.ErrChain, err)
	}

	if _, ok := new(big.Int).SetString(resp.AmountOut, 10); !ok {
		return nil, fmt.Errorf("%w: quote API returned malformed amount %q", engine.ErrChain, resp.AmountOut)
	}

	return &engine.QuoteResult{
		AmountIn:        resp.AmountIn,
		AmountOut:       resp.AmountOut,
		PriceImpact:     resp.PriceImpact,
		EffectiveFeeBps: resp.EffectiveFee,
		FeeTier:         resp.FeeTier,
	}, nil
}

// Reserves implements engine.VenueClient.
func (v *Venue) Reserves(ctx context.Context, tokenA, tokenB engine.Token) (*engine.ReserveSnapshot, error) {
	resp, err := v.client.GetReserves(ctx, tokenA.Address, tokenB.Address)
	if err != nil {
		if isLiquidityError(err) {
			return nil, fmt.Errorf("%w: %v", engine.ErrInsufficientLiquidity, err)
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrChain, err)
	}

	reserveIn, ok := new(big.Int).SetString(resp.ReserveIn, 10)
	if !ok {
		return nil, fmt.Errorf("%w: malformed reserve %q", engine.ErrChain, resp.ReserveIn)
	}
	reserveOut, ok := new(big.Int).SetString(resp.ReserveOut, 10)
	if !ok {
		return nil, fmt.Errorf("%w: malformed reserve %q", engine.ErrChain, resp.ReserveOut)
	}

	return &engine.ReserveSnapshot{
		ReserveIn:  reserveIn,
		ReserveOut: reserveOut,
		FeeTier:    resp.FeeTier,
	}, nil
}

// VenueType implements engine.VenueClient.
func (v *Venue) VenueType() string {
	return "sidecar-api"
}

// Close implements engine.VenueClient.
func (v *Venue) Close() {
	v.client.Close()
}

// isLiquidityError sniffs quote API rejections that mean the pair or depth
// is missing rather than the endpoint being down. The API reports these as
// 404/422 with a message body.
func isLiquidityError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "HTTP 404") || strings.Contains(msg, "HTTP 422")
}
