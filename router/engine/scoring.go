package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Gas heuristic: flat base per transaction plus a per-hop cost, adjusted by
// venue kind. These are planning estimates for ranking, not gas limits.
const (
	baseGas   uint64 = 100000
	perHopGas uint64 = 70000
)

// gasAdjustment maps venue types to their extra per-hop cost relative to a
// plain constant-product swap.
var gasAdjustment = map[string]uint64{
	"constant-product": 0,
	"concentrated":     20000,
	"sidecar-api":      15000,
	"order-book":       40000,
}

// Scoring weights for the edge/path objective:
// weight = 0.6*impact + 0.3*(gas/1e6) + 0.1*slippage.
const (
	impactWeight = 0.6
	gasWeight    = 0.3
	slipWeight   = 0.1
)

// Final ranking penalties. A route's score is
// amountOut * (1 - impactPenalty*impact - riskPenalty*risk/100).
var (
	impactPenalty = decimal.NewFromFloat(0.5)
	riskPenalty   = decimal.NewFromFloat(0.1)
	hundred       = decimal.NewFromInt(100)
	one           = decimal.NewFromInt(1)
)

// standardFeeTiers are the tiers seen across mainstream venues; anything
// else is rare enough to count against a route's risk.
var standardFeeTiers = map[uint32]struct{}{
	1: {}, 5: {}, 30: {}, 100: {}, 500: {}, 3000: {}, 10000: {},
}

// gasForRoute estimates gas for a route visiting the given venue types.
func gasForRoute(venueTypes []string) uint64 {
	gas := baseGas
	for _, vt := range venueTypes {
		gas += perHopGas + gasAdjustment[vt]
	}
	return gas
}

// riskForRoute derives the 0-100 risk score from hop count, the worst
// reserve-depth ratio along the path (min reserveIn/amountIn), and fee tier
// rarity. Deeper liquidity never raises the score.
func riskForRoute(hops int, depthRatio float64, feeTiers []*uint32) uint8 {
	score := 0

	// Every hop past the first adds surface for partial fills and stale
	// quotes.
	if hops > 1 {
		score += (hops - 1) * 10
	}

	switch {
	case depthRatio >= 100:
		// well inside the pool, no depth risk
	case depthRatio >= 50:
		score += 10
	case depthRatio >= 20:
		score += 20
	case depthRatio >= 10:
		score += 30
	default:
		score += 45
	}

	for _, tier := range feeTiers {
		if tier == nil {
			continue
		}
		if _, ok := standardFeeTiers[*tier]; !ok {
			score += 8
		}
	}

	if score > 100 {
		score = 100
	}
	return uint8(score)
}

// edgeWeight is the search cost of one edge quote.
func edgeWeight(priceImpact float64, gas uint64, slippage float64) float64 {
	return impactWeight*priceImpact + gasWeight*float64(gas)/1e6 + slipWeight*slippage
}

// scoredRoute pairs a materialized route with its ranking score.
type scoredRoute struct {
	route SwapRoute
	score decimal.Decimal
}

// scoreRoute computes the ranking objective: expected output discounted by
// price impact and risk.
func scoreRoute(route SwapRoute) decimal.Decimal {
	out, err := decimal.NewFromString(route.ExpectedAmountOut)
	if err != nil {
		return decimal.Zero
	}

	discount := one.
		Sub(impactPenalty.Mul(decimal.NewFromFloat(route.PriceImpact))).
		Sub(riskPenalty.Mul(decimal.NewFromInt(int64(route.RiskScore))).Div(hundred))
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return out.Mul(discount)
}

// rankRoutes orders routes best first: score descending, then gas
// ascending, then hop count ascending. The sort is stable so equally
// ranked routes keep their discovery order.
func rankRoutes(routes []SwapRoute) []SwapRoute {
	scored := make([]scoredRoute, len(routes))
	for i, r := range routes {
		scored[i] = scoredRoute{route: r, score: scoreRoute(r)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if !scored[i].score.Equal(scored[j].score) {
			return scored[i].score.GreaterThan(scored[j].score)
		}
		if scored[i].route.GasEstimate != scored[j].route.GasEstimate {
			return scored[i].route.GasEstimate < scored[j].route.GasEstimate
		}
		return scored[i].route.Hops() < scored[j].route.Hops()
	})

	out := make([]SwapRoute, len(scored))
	for i, s := range scored {
		out[i] = s.route
	}
	return out
}
