// Package amm implements engine.VenueClient for constant-product (x*y=k)
// pools whose reserves are held in process. It backs configured pools in
// production and is the reference adapter in tests and simulations.
package amm

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/prism-dex/router-engine/router/engine"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "amm-venue").Logger()
}

const (
	// DefaultFeeBps is the pool fee applied when a pool declares none.
	DefaultFeeBps uint32 = 30

	// maxTradeFraction rejects trades larger than 1/2 of the input reserve.
	// Beyond that the constant-product curve is pure slippage.
	maxTradeFraction = 2
)

var bps = big.NewInt(10000)

// Pool is one constant-product pair. TokenA/TokenB are held in the order
// given at construction; quotes orient reserves to the query direction.
type Pool struct {
	TokenA   string // lowercase address
	TokenB   string
	ReserveA *big.Int
	ReserveB *big.Int
	FeeBps   uint32

	mu sync.RWMutex
}

// Venue is an in-process constant-product venue over a set of pools, keyed
// by unordered pair.
type Venue struct {
	venueType string
	mu        sync.RWMutex
	pools     map[string]*Pool
}

// New creates an empty constant-product venue.
func New() *Venue {
	return &Venue{
		venueType: "constant-product",
		pools:     make(map[string]*Pool),
	}
}

func pairKey(a, b string) string {
	if a <= b {
		return a + "|" + b
	}
	return b + "|" + a
}

// AddPool registers a pool for the pair. Reserves are copied. The second
// registration for a pair replaces the first.
func (v *Venue) AddPool(tokenA, tokenB engine.Token, reserveA, reserveB *big.Int, feeBps uint32) {
	if feeBps == 0 {
		feeBps = DefaultFeeBps
	}
	pool := &Pool{
		TokenA:   tokenA.Key(),
		TokenB:   tokenB.Key(),
		ReserveA: new(big.Int).Set(reserveA),
		ReserveB: new(big.Int).Set(reserveB),
		FeeBps:   feeBps,
	}

	v.mu.Lock()
	v.pools[pairKey(pool.TokenA, pool.TokenB)] = pool
	v.mu.Unlock()

	log.Debug().
		Str("tokenA", tokenA.Symbol).
		Str("tokenB", tokenB.Symbol).
		Uint32("feeBps", feeBps).
		Msg("Pool added")
}

// SetReserves replaces a pool's reserves, for reserve sync loops and tests.
func (v *Venue) SetReserves(tokenA, tokenB engine.Token, reserveA, reserveB *big.Int) error {
	pool, oriented := v.pool(tokenA.Key(), tokenB.Key())
	if pool == nil {
		return fmt.Errorf("%w: no pool for %s/%s", engine.ErrInsufficientLiquidity, tokenA.Symbol, tokenB.Symbol)
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	if oriented {
		pool.ReserveA.Set(reserveA)
		pool.ReserveB.Set(reserveB)
	} else {
		pool.ReserveA.Set(reserveB)
		pool.ReserveB.Set(reserveA)
	}
	return nil
}

// pool returns the pool for the unordered pair and whether the pool's A
// side matches keyA.
func (v *Venue) pool(keyA, keyB string) (*Pool, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	pool, ok := v.pools[pairKey(keyA, keyB)]
	if !ok {
		return nil, false
	}
	return pool, pool.TokenA == keyA
}

// Quote implements engine.VenueClient using the constant-product formula
// with the fee taken on input:
//
//	out = reserveOut * in * (10000-fee) / (reserveIn*10000 + in*(10000-fee))
func (v *Venue) Quote(ctx context.Context, tokenIn, tokenOut engine.Token, amountIn *big.Int) (*engine.QuoteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrChain, err)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount in must be positive", engine.ErrInsufficientLiquidity)
	}

	pool, oriented := v.pool(tokenIn.Key(), tokenOut.Key())
	if pool == nil {
		return nil, fmt.Errorf("%w: no pool for %s/%s", engine.ErrInsufficientLiquidity, tokenIn.Symbol, tokenOut.Symbol)
	}

	pool.mu.RLock()
	reserveIn := new(big.Int).Set(pool.ReserveA)
	reserveOut := new(big.Int).Set(pool.ReserveB)
	feeBps := pool.FeeBps
	pool.mu.RUnlock()
	if !oriented {
		reserveIn, reserveOut = reserveOut, reserveIn
	}

	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty reserves for %s/%s", engine.ErrInsufficientLiquidity, tokenIn.Symbol, tokenOut.Symbol)
	}

	// Reject trades the curve cannot absorb.
	limit := new(big.Int).Quo(reserveIn, big.NewInt(maxTradeFraction))
	if amountIn.Cmp(limit) > 0 {
		return nil, fmt.Errorf("%w: amount %s exceeds pool depth for %s/%s",
			engine.ErrInsufficientLiquidity, amountIn, tokenIn.Symbol, tokenOut.Symbol)
	}

	amountOut := constantProductOut(amountIn, reserveIn, reserveOut, feeBps)
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero output for %s/%s", engine.ErrInsufficientLiquidity, tokenIn.Symbol, tokenOut.Symbol)
	}

	impact := priceImpact(amountIn, amountOut, reserveIn, reserveOut)

	return &engine.QuoteResult{
		AmountIn:        amountIn.String(),
		AmountOut:       amountOut.String(),
		PriceImpact:     impact,
		EffectiveFeeBps: feeBps,
	}, nil
}

// Reserves implements engine.VenueClient.
func (v *Venue) Reserves(ctx context.Context, tokenA, tokenB engine.Token) (*engine.ReserveSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrChain, err)
	}

	pool, oriented := v.pool(tokenA.Key(), tokenB.Key())
	if pool == nil {
		return nil, fmt.Errorf("%w: no pool for %s/%s", engine.ErrInsufficientLiquidity, tokenA.Symbol, tokenB.Symbol)
	}

	pool.mu.RLock()
	defer pool.mu.RUnlock()

	snap := &engine.ReserveSnapshot{
		ReserveIn:  new(big.Int).Set(pool.ReserveA),
		ReserveOut: new(big.Int).Set(pool.ReserveB),
	}
	if !oriented {
		snap.ReserveIn, snap.ReserveOut = snap.ReserveOut, snap.ReserveIn
	}
	return snap, nil
}

// VenueType implements engine.VenueClient.
func (v *Venue) VenueType() string {
	return v.venueType
}

// Close implements engine.VenueClient. Nothing to release for in-process
// pools.
func (v *Venue) Close() {}

// constantProductOut computes the output amount with the fee taken on the
// input side.
func constantProductOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	inAfterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))

	numerator := new(big.Int).Mul(reserveOut, inAfterFee)
	denominator := new(big.Int).Mul(reserveIn, bps)
	denominator.Add(denominator, inAfterFee)

	return numerator.Quo(numerator, denominator)
}

// priceImpact is the fractional deviation of the execution price from the
// reserve-implied mid price: 1 - (out/in) / (reserveOut/reserveIn).
func priceImpact(amountIn, amountOut, reserveIn, reserveOut *big.Int) float64 {
	execPrice := decimal.NewFromBigInt(amountOut, 0).Div(decimal.NewFromBigInt(amountIn, 0))
	midPrice := decimal.NewFromBigInt(reserveOut, 0).Div(decimal.NewFromBigInt(reserveIn, 0))
	if midPrice.IsZero() {
		return 0
	}

	impact := decimal.NewFromInt(1).Sub(execPrice.Div(midPrice))
	f, _ := impact.Float64()
	if f < 0 {
		return 0
	}
	if f >= 1 {
		return 0.999999
	}
	return f
}
