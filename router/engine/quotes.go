package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// probeDivisor sets the representative probe size for edges that are not on
// the first hop: 1% of the edge's input reserve.
const probeDivisor = 100

// probeQuote is the outcome of probing one edge during discovery.
type probeQuote struct {
	edge       Edge
	venueType  string
	reserveIn  *big.Int
	reserveOut *big.Int
	probeIn    *big.Int
	probeOut   *big.Int
	price      decimal.Decimal // out per in at probe size
	impact     float64
	feeBps     uint32
	cached     bool
	weight     float64
}

// probeEdges concurrently quotes every edge with a representative amount.
// Each edge runs independently under its own timeout; a failed or timed-out
// edge is dropped from the result, never fatal. The price cache is
// consulted before any adapter quote and populated after every live one.
// First-hop edges are pruned when reserves fall under the liquidity floor.
func (r *Router) probeEdges(ctx context.Context, g *RouteGraph, edges []Edge, sourceKey string, amountIn *big.Int, slippage float64) map[string]*probeQuote {
	results := make(map[string]*probeQuote, len(edges))
	var resultsMu sync.Mutex

	sem := make(chan struct{}, r.params.QuoteConcurrency)
	var wg sync.WaitGroup

	for _, edge := range edges {
		wg.Add(1)
		go func(edge Edge) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pq := r.probeEdge(ctx, g, edge, sourceKey, amountIn, slippage)
			if pq == nil {
				return
			}

			resultsMu.Lock()
			results[edge.Key()] = pq
			resultsMu.Unlock()
		}(edge)
	}

	wg.Wait()
	return results
}

// probeEdge quotes one edge. A nil return means the edge is pruned.
func (r *Router) probeEdge(parent context.Context, g *RouteGraph, edge Edge, sourceKey string, amountIn *big.Int, slippage float64) *probeQuote {
	adapter, ok := r.registry.Adapter(edge.VenueID)
	if !ok {
		return nil
	}

	tokenIn, ok := g.TokenByKey(edge.From)
	if !ok {
		return nil
	}
	tokenOut, ok := g.TokenByKey(edge.To)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, r.params.QuoteTimeout)
	defer cancel()

	snap, err := adapter.Reserves(ctx, tokenIn, tokenOut)
	if err != nil {
		log.Debug().Err(err).Str("edge", edge.Key()).Msg("Reserves lookup failed, pruning edge")
		return nil
	}

	// Liquidity floor applies where the trade size is known in the edge's
	// own units, i.e. on first-hop edges. Downstream hops are re-checked
	// during the re-quote walk with realized amounts.
	if edge.From == sourceKey {
		floor := new(big.Int).Mul(amountIn, big.NewInt(int64(r.params.LiquidityFloor)))
		if snap.ReserveIn.Cmp(floor) < 0 {
			log.Debug().
				Str("edge", edge.Key()).
				Str("reserveIn", snap.ReserveIn.String()).
				Msg("Reserves below liquidity floor, pruning edge")
			return nil
		}
	}

	probeIn := amountIn
	if edge.From != sourceKey {
		probeIn = new(big.Int).Quo(snap.ReserveIn, big.NewInt(probeDivisor))
		if probeIn.Sign() <= 0 {
			probeIn = big.NewInt(1)
		}
	}

	pq := &probeQuote{
		edge:       edge,
		venueType:  adapter.VenueType(),
		reserveIn:  snap.ReserveIn,
		reserveOut: snap.ReserveOut,
		probeIn:    probeIn,
	}

	if price, ok := r.cache.Get(edge.From, edge.To); ok {
		out := price.Mul(decimal.NewFromBigInt(probeIn, 0)).Floor().BigInt()
		if out.Sign() > 0 {
			pq.probeOut = out
			pq.price = price
			pq.cached = true
			pq.weight = edgeWeight(0, perHopGas+gasAdjustment[pq.venueType], slippage)
			return pq
		}
	}

	quote, err := r.quoteWithRetry(ctx, adapter, tokenIn, tokenOut, probeIn)
	if err != nil {
		log.Debug().Err(err).Str("edge", edge.Key()).Msg("Probe quote failed, pruning edge")
		return nil
	}

	out, ok := new(big.Int).SetString(quote.AmountOut, 10)
	if !ok || out.Sign() <= 0 {
		return nil
	}

	pq.probeOut = out
	pq.price = decimal.NewFromBigInt(out, 0).Div(decimal.NewFromBigInt(probeIn, 0))
	pq.impact = quote.PriceImpact
	pq.feeBps = quote.EffectiveFeeBps
	pq.weight = edgeWeight(quote.PriceImpact, perHopGas+gasAdjustment[pq.venueType], slippage)

	r.cache.Put(edge.From, edge.To, pq.price)
	return pq
}

// quoteWithRetry calls the adapter with exponential backoff on transient
// failures. Permanent errors (insufficient liquidity, config) return
// immediately.
func (r *Router) quoteWithRetry(ctx context.Context, adapter VenueClient, tokenIn, tokenOut Token, amountIn *big.Int) (*QuoteResult, error) {
	var lastErr error
	delay := r.params.RetryDelay

	for attempt := 0; attempt < r.params.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		quote, err := adapter.Quote(ctx, tokenIn, tokenOut, amountIn)
		if err == nil {
			return quote, nil
		}
		lastErr = err

		if !Retryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		log.Debug().Err(err).
			Int("attempt", attempt+1).
			Str("venue", adapter.VenueType()).
			Msg("Quote attempt failed, retrying")
	}

	return nil, lastErr
}
