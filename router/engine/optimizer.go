// Package engine implements the aggregation router core: the token/venue
// registry, the per-chain route graph, and the route optimizer that turns a
// quote request into ranked multi-hop execution paths.
package engine

import (
	"container/heap"
	"container/list"
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prism-dex/router-engine/router/engine/venues"
	"github.com/prism-dex/router-engine/router/pricecache"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "engine").Logger()
}

// maxExpansions bounds frontier growth on pathological graphs.
const maxExpansions = 10000

// Params tune the optimizer. Zero values fall back to the defaults.
type Params struct {
	// MaxHops bounds route length to avoid path explosion.
	MaxHops int
	// MaxCandidates is how many candidate paths are collected before
	// re-quoting (the K in k-shortest-path collection).
	MaxCandidates int
	// ImpactCeiling rejects routes whose cumulative price impact exceeds
	// this fraction.
	ImpactCeiling float64
	// LiquidityFloor prunes edges whose input reserve is below this
	// multiple of the trade amount.
	LiquidityFloor int64
	// QuoteTimeout caps each adapter call.
	QuoteTimeout time.Duration
	// MaxRetries and RetryDelay drive the transient-failure retry loop
	// around adapter quotes; the delay doubles each attempt.
	MaxRetries int
	RetryDelay time.Duration
	// QuoteConcurrency bounds the number of in-flight adapter calls.
	QuoteConcurrency int
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MaxHops:          3,
		MaxCandidates:    5,
		ImpactCeiling:    0.15,
		LiquidityFloor:   10,
		QuoteTimeout:     3 * time.Second,
		MaxRetries:       3,
		RetryDelay:       200 * time.Millisecond,
		QuoteConcurrency: 16,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.MaxHops <= 0 {
		p.MaxHops = def.MaxHops
	}
	if p.MaxCandidates <= 0 {
		p.MaxCandidates = def.MaxCandidates
	}
	if p.ImpactCeiling <= 0 {
		p.ImpactCeiling = def.ImpactCeiling
	}
	if p.LiquidityFloor <= 0 {
		p.LiquidityFloor = def.LiquidityFloor
	}
	if p.QuoteTimeout <= 0 {
		p.QuoteTimeout = def.QuoteTimeout
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = def.RetryDelay
	}
	if p.QuoteConcurrency <= 0 {
		p.QuoteConcurrency = def.QuoteConcurrency
	}
	return p
}

// Router is the route optimizer. It consumes the registry and the per-chain
// graphs, fans quote probes out to venue adapters through the price cache,
// and returns ranked candidate routes.
type Router struct {
	registry *Registry
	graphs   map[uint64]*RouteGraph
	cache    *pricecache.Cache
	metrics  *Metrics
	params   Params
}

// NewRouter creates a router over the given graphs. metrics may be nil.
func NewRouter(registry *Registry, graphs map[uint64]*RouteGraph, cache *pricecache.Cache, metrics *Metrics, params Params) *Router {
	if cache == nil {
		cache = pricecache.New(0)
	}
	return &Router{
		registry: registry,
		graphs:   graphs,
		cache:    cache,
		metrics:  metrics,
		params:   params.withDefaults(),
	}
}

// Cache exposes the shared price cache, for metrics collection.
func (r *Router) Cache() *pricecache.Cache {
	return r.cache
}

// FindRoutes discovers, re-quotes and ranks execution paths for the
// request. Fails with ErrConfig for unregistered tokens, with
// ErrInsufficientLiquidity when no path survives discovery and pruning, and
// with ErrPriceImpactTooHigh when paths exist but all exceed the impact
// ceiling.
func (r *Router) FindRoutes(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	start := time.Now()

	log.Info().
		Uint64("chain", req.ChainID).
		Str("tokenIn", req.TokenIn).
		Str("tokenOut", req.TokenOut).
		Str("amount", req.AmountIn).
		Msg("Finding routes")

	tokenIn, tokenOut, amountIn, err := r.validateRequest(req)
	if err != nil {
		r.metrics.quoteFinished("invalid", start)
		return nil, err
	}

	graph, ok := r.graphs[req.ChainID]
	if !ok {
		r.metrics.quoteFinished("no_liquidity", start)
		return nil, fmt.Errorf("%w: no venues registered on chain %d", ErrInsufficientLiquidity, req.ChainID)
	}

	sourceKey, targetKey := tokenIn.Key(), tokenOut.Key()

	allow := venueAllowlist(req.Venues)
	edges := r.reachableEdges(graph, sourceKey, allow)
	if len(edges) == 0 {
		r.metrics.quoteFinished("no_liquidity", start)
		return nil, fmt.Errorf("%w: no edges reachable from %s on chain %d",
			ErrInsufficientLiquidity, tokenIn.Symbol, req.ChainID)
	}

	probes := r.probeEdges(ctx, graph, edges, sourceKey, amountIn, req.Slippage)
	r.metrics.edgesProbed(len(edges), len(edges)-len(probes))
	if len(probes) == 0 {
		r.metrics.quoteFinished("no_liquidity", start)
		return nil, fmt.Errorf("%w: every edge was pruned for %s -> %s",
			ErrInsufficientLiquidity, tokenIn.Symbol, tokenOut.Symbol)
	}

	paths := r.collectPaths(graph, probes, sourceKey, targetKey)
	if len(paths) == 0 {
		r.metrics.quoteFinished("no_liquidity", start)
		return nil, fmt.Errorf("%w: no path from %s to %s within %d hops",
			ErrInsufficientLiquidity, tokenIn.Symbol, tokenOut.Symbol, r.params.MaxHops)
	}

	log.Debug().Int("candidates", len(paths)).Msg("Candidate paths collected, re-quoting")

	var routes []SwapRoute
	impactRejected := 0
	for _, path := range paths {
		route, err := r.requotePath(ctx, graph, path, amountIn, req.Slippage)
		if err != nil {
			log.Debug().Err(err).Msg("Candidate path dropped during re-quote")
			continue
		}
		if route.PriceImpact > r.params.ImpactCeiling {
			impactRejected++
			continue
		}
		routes = append(routes, *route)
	}

	if len(routes) == 0 {
		if impactRejected > 0 {
			r.metrics.quoteFinished("impact_too_high", start)
			return nil, fmt.Errorf("%w: %d path(s) exceeded the %.2f impact ceiling",
				ErrPriceImpactTooHigh, impactRejected, r.params.ImpactCeiling)
		}
		r.metrics.quoteFinished("no_liquidity", start)
		return nil, fmt.Errorf("%w: no candidate path survived re-quoting", ErrInsufficientLiquidity)
	}

	routes = rankRoutes(routes)
	r.metrics.quoteFinished("ok", start)
	r.metrics.routeRanked(&routes[0])

	log.Info().
		Int("routes", len(routes)).
		Int("hops", routes[0].Hops()).
		Str("bestOut", routes[0].ExpectedAmountOut).
		Dur("took", time.Since(start)).
		Msg("Routes ranked")

	return &QuoteResponse{Routes: routes}, nil
}

// validateRequest resolves tokens and parses the amount.
func (r *Router) validateRequest(req QuoteRequest) (Token, Token, *big.Int, error) {
	var zero Token

	if req.Slippage < 0 || req.Slippage >= 1 {
		return zero, zero, nil, fmt.Errorf("%w: slippage %f out of [0,1)", ErrConfig, req.Slippage)
	}

	tokenIn, ok := r.registry.Token(req.ChainID, req.TokenIn)
	if !ok {
		return zero, zero, nil, fmt.Errorf("%w: token %s not registered on chain %d",
			ErrConfig, req.TokenIn, req.ChainID)
	}
	tokenOut, ok := r.registry.Token(req.ChainID, req.TokenOut)
	if !ok {
		return zero, zero, nil, fmt.Errorf("%w: token %s not registered on chain %d",
			ErrConfig, req.TokenOut, req.ChainID)
	}
	if tokenIn.Key() == tokenOut.Key() {
		return zero, zero, nil, fmt.Errorf("%w: token in equals token out", ErrConfig)
	}

	amountIn, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok || amountIn.Sign() <= 0 {
		return zero, zero, nil, fmt.Errorf("%w: amount %q is not a positive integer", ErrConfig, req.AmountIn)
	}

	return tokenIn, tokenOut, amountIn, nil
}

func venueAllowlist(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	allow := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allow[id] = struct{}{}
	}
	return allow
}

// reachableEdges collects the edges within MaxHops of the source by BFS,
// honoring the venue allowlist. Only these are probed.
func (r *Router) reachableEdges(g *RouteGraph, sourceKey string, allow map[string]struct{}) []Edge {
	type frontier struct {
		key   string
		depth int
	}

	seen := map[string]int{sourceKey: 0}
	var edges []Edge
	edgeSeen := make(map[string]struct{})

	queue := list.New()
	queue.PushBack(frontier{key: sourceKey, depth: 0})

	for queue.Len() > 0 {
		item := queue.Remove(queue.Front()).(frontier)
		if item.depth >= r.params.MaxHops {
			continue
		}

		for _, edge := range g.EdgesFrom(item.key) {
			if allow != nil {
				if _, ok := allow[edge.VenueID]; !ok {
					continue
				}
			}
			if _, ok := edgeSeen[edge.Key()]; !ok {
				edgeSeen[edge.Key()] = struct{}{}
				edges = append(edges, edge)
			}
			next := item.depth + 1
			if prev, ok := seen[edge.To]; !ok || next < prev {
				seen[edge.To] = next
				queue.PushBack(frontier{key: edge.To, depth: next})
			}
		}
	}
	return edges
}

// partialPath is a frontier entry in the best-first expansion.
type partialPath struct {
	current string
	hops    []*probeQuote
	weight  float64
	visited map[string]struct{}
}

type pathHeap []*partialPath

func (h pathHeap) Len() int            { return len(h) }
func (h pathHeap) Less(i, j int) bool  { return h[i].weight < h[j].weight }
func (h pathHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x interface{}) { *h = append(*h, x.(*partialPath)) }
func (h *pathHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// collectPaths runs a best-first expansion over the probed edges, bounded
// by MaxHops, and returns up to MaxCandidates loop-free paths from source
// to target ordered by ascending cumulative weight.
func (r *Router) collectPaths(g *RouteGraph, probes map[string]*probeQuote, sourceKey, targetKey string) [][]*probeQuote {
	h := &pathHeap{{
		current: sourceKey,
		visited: map[string]struct{}{sourceKey: {}},
	}}
	heap.Init(h)

	var paths [][]*probeQuote
	expansions := 0

	for h.Len() > 0 && len(paths) < r.params.MaxCandidates {
		p := heap.Pop(h).(*partialPath)

		if p.current == targetKey {
			paths = append(paths, p.hops)
			continue
		}
		if len(p.hops) >= r.params.MaxHops {
			continue
		}
		if expansions++; expansions > maxExpansions {
			log.Warn().Int("expansions", expansions).Msg("Search expansion budget exhausted")
			break
		}

		for _, edge := range g.EdgesFrom(p.current) {
			pq, ok := probes[edge.Key()]
			if !ok {
				continue
			}
			if _, ok := p.visited[edge.To]; ok {
				continue
			}

			visited := make(map[string]struct{}, len(p.visited)+1)
			for k := range p.visited {
				visited[k] = struct{}{}
			}
			visited[edge.To] = struct{}{}

			hops := make([]*probeQuote, len(p.hops)+1)
			copy(hops, p.hops)
			hops[len(p.hops)] = pq

			heap.Push(h, &partialPath{
				current: edge.To,
				hops:    hops,
				weight:  p.weight + pq.weight,
				visited: visited,
			})
		}
	}

	return paths
}

// requotePath walks a candidate path hop by hop, re-fetching a live quote
// for the realized upstream amount at each hop. Probe-time estimates are
// never reused here; trade size changes impact non-linearly.
func (r *Router) requotePath(ctx context.Context, g *RouteGraph, path []*probeQuote, amountIn *big.Int, slippage float64) (*SwapRoute, error) {
	slipBps := venues.SlippageToBps(slippage)

	steps := make([]SwapStep, 0, len(path))
	venueTypes := make([]string, 0, len(path))
	feeTiers := make([]*uint32, 0, len(path))

	amount := new(big.Int).Set(amountIn)
	survival := 1.0 // Π(1-impact_i)
	minDepthRatio := 0.0

	for i, pq := range path {
		adapter, ok := r.registry.Adapter(pq.edge.VenueID)
		if !ok {
			return nil, fmt.Errorf("%w: venue %s disappeared during re-quote", ErrConfig, pq.edge.VenueID)
		}
		tokenIn, _ := g.TokenByKey(pq.edge.From)
		tokenOut, _ := g.TokenByKey(pq.edge.To)

		// The floor check for hops past the first happens here, where the
		// realized amount is in the hop's own units.
		floor := new(big.Int).Mul(amount, big.NewInt(int64(r.params.LiquidityFloor)))
		if pq.reserveIn.Cmp(floor) < 0 {
			return nil, fmt.Errorf("%w: hop %d reserves below floor for realized amount %s",
				ErrInsufficientLiquidity, i, amount)
		}

		cctx, cancel := context.WithTimeout(ctx, r.params.QuoteTimeout)
		quote, err := r.quoteWithRetry(cctx, adapter, tokenIn, tokenOut, amount)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("re-quote hop %d on %s: %w", i, pq.edge.VenueID, err)
		}

		out, ok := new(big.Int).SetString(quote.AmountOut, 10)
		if !ok || out.Sign() <= 0 {
			return nil, fmt.Errorf("%w: hop %d returned unusable amount %q",
				ErrInsufficientLiquidity, i, quote.AmountOut)
		}

		r.cache.Put(pq.edge.From, pq.edge.To, quotePrice(amount, out))

		minOut, err := venues.MinimumAmountOut(quote.AmountOut, slipBps)
		if err != nil {
			return nil, err
		}

		feeTier := pq.edge.FeeTier
		if feeTier == nil {
			feeTier = quote.FeeTier
		}

		steps = append(steps, SwapStep{
			VenueID:      pq.edge.VenueID,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			FeeTier:      feeTier,
			AmountIn:     amount.String(),
			AmountOutMin: minOut,
		})
		venueTypes = append(venueTypes, pq.venueType)
		feeTiers = append(feeTiers, feeTier)

		survival *= 1 - quote.PriceImpact

		ratio := depthRatio(pq.reserveIn, amount)
		if i == 0 || ratio < minDepthRatio {
			minDepthRatio = ratio
		}

		amount = out
	}

	route := &SwapRoute{
		Steps:             steps,
		AmountIn:          amountIn.String(),
		ExpectedAmountOut: amount.String(),
		PriceImpact:       clampImpact(1 - survival),
		GasEstimate:       gasForRoute(venueTypes),
	}
	route.RiskScore = riskForRoute(len(steps), minDepthRatio, feeTiers)

	if err := route.Validate(); err != nil {
		// A broken chain here is a construction bug, never user input.
		return nil, fmt.Errorf("route failed invariant check: %w", err)
	}
	return route, nil
}

func quotePrice(amountIn, amountOut *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(amountOut, 0).Div(decimal.NewFromBigInt(amountIn, 0))
}

func depthRatio(reserveIn, amountIn *big.Int) float64 {
	ratio := new(big.Float).Quo(new(big.Float).SetInt(reserveIn), new(big.Float).SetInt(amountIn))
	f, _ := ratio.Float64()
	return f
}

func clampImpact(impact float64) float64 {
	if impact < 0 {
		return 0
	}
	if impact >= 1 {
		return 0.999999
	}
	return impact
}
