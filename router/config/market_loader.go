package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prism-dex/router-engine/config_manager/output"
	"github.com/prism-dex/router-engine/router/engine"
	"github.com/prism-dex/router-engine/router/engine/venues/amm"
	"github.com/prism-dex/router-engine/router/engine/venues/sidecar"
	"github.com/prism-dex/router-engine/router/pricecache"
)

// MarketConfigLoader loads generated market configurations and converts them
// to the engine types used by the router. Venue IDs are global: reusing an
// ID across chains is a config error.
type MarketConfigLoader struct{}

// NewMarketConfigLoader creates a new market config loader.
func NewMarketConfigLoader() *MarketConfigLoader {
	return &MarketConfigLoader{}
}

// LoadFromFile loads a market config from a file. JSON and TOML are
// supported, chosen by extension.
func (l *MarketConfigLoader) LoadFromFile(filePath string) (*output.MarketConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read market config file: %w", err)
	}

	var marketConfig output.MarketConfig

	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &marketConfig); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &marketConfig); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	return &marketConfig, nil
}

// BuildMarket converts a MarketConfig into a populated registry and
// per-chain route graphs.
func (l *MarketConfigLoader) BuildMarket(
	config *output.MarketConfig,
) (*engine.Registry, map[uint64]*engine.RouteGraph, error) {
	if config == nil || len(config.Chains) == 0 {
		return nil, nil, fmt.Errorf("no chains in config")
	}

	registry := engine.NewRegistry()
	pairs := make([]engine.MarketPair, 0)

	for _, chain := range config.Chains {
		for _, token := range chain.Tokens {
			err := registry.RegisterToken(engine.Token{
				ChainID:  chain.ChainID,
				Address:  token.Address,
				Symbol:   token.Symbol,
				Decimals: token.Decimals,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("chain %d: failed to register token %s: %w",
					chain.ChainID, token.Address, err)
			}
		}

		for _, venue := range chain.Venues {
			venuePairs, adapter, err := l.buildVenue(chain, venue, registry)
			if err != nil {
				return nil, nil, fmt.Errorf("chain %d: %w", chain.ChainID, err)
			}

			engineVenue := engine.Venue{
				ID:             venue.ID,
				Name:           venue.Name,
				ChainID:        chain.ChainID,
				RouterAddress:  venue.RouterAddress,
				FactoryAddress: venue.FactoryAddress,
				FeeTiers:       venue.FeeTiers,
			}
			if err := registry.RegisterVenue(engineVenue, adapter); err != nil {
				return nil, nil, fmt.Errorf("chain %d: failed to register venue %s: %w",
					chain.ChainID, venue.ID, err)
			}

			pairs = append(pairs, venuePairs...)
		}
	}

	graphs := make(map[uint64]*engine.RouteGraph, len(config.Chains))
	for _, chain := range config.Chains {
		graph := engine.NewRouteGraph(chain.ChainID)
		if err := graph.BuildGraph(pairs, registry); err != nil {
			return nil, nil, fmt.Errorf("chain %d: failed to build route graph: %w", chain.ChainID, err)
		}
		graphs[chain.ChainID] = graph
	}

	return registry, graphs, nil
}

// buildVenue creates the adapter for one venue and the market pairs it
// contributes to the route graph.
func (l *MarketConfigLoader) buildVenue(
	chain output.MarketChain,
	venue output.MarketVenue,
	registry *engine.Registry,
) ([]engine.MarketPair, engine.VenueClient, error) {
	switch venue.Kind {
	case "amm":
		return l.buildAMMVenue(chain, venue, registry)
	case "sidecar":
		return l.buildSidecarVenue(chain, venue)
	default:
		return nil, nil, fmt.Errorf("%w: venue %s has unsupported kind %q",
			engine.ErrConfig, venue.ID, venue.Kind)
	}
}

func (l *MarketConfigLoader) buildAMMVenue(
	chain output.MarketChain,
	venue output.MarketVenue,
	registry *engine.Registry,
) ([]engine.MarketPair, engine.VenueClient, error) {
	adapter := amm.New()
	pairs := make([]engine.MarketPair, 0, len(venue.Pools))

	for _, pool := range venue.Pools {
		tokenA, ok := registry.Token(chain.ChainID, pool.TokenA)
		if !ok {
			return nil, nil, fmt.Errorf("%w: venue %s pool references unregistered token %s",
				engine.ErrConfig, venue.ID, pool.TokenA)
		}
		tokenB, ok := registry.Token(chain.ChainID, pool.TokenB)
		if !ok {
			return nil, nil, fmt.Errorf("%w: venue %s pool references unregistered token %s",
				engine.ErrConfig, venue.ID, pool.TokenB)
		}

		reserveA, ok := new(big.Int).SetString(pool.ReserveA, 10)
		if !ok || reserveA.Sign() <= 0 {
			return nil, nil, fmt.Errorf("%w: venue %s pool %s/%s has invalid reserve_a %q",
				engine.ErrConfig, venue.ID, tokenA.Symbol, tokenB.Symbol, pool.ReserveA)
		}
		reserveB, ok := new(big.Int).SetString(pool.ReserveB, 10)
		if !ok || reserveB.Sign() <= 0 {
			return nil, nil, fmt.Errorf("%w: venue %s pool %s/%s has invalid reserve_b %q",
				engine.ErrConfig, venue.ID, tokenA.Symbol, tokenB.Symbol, pool.ReserveB)
		}

		adapter.AddPool(tokenA, tokenB, reserveA, reserveB, pool.FeeBps)
		pairs = append(pairs, engine.MarketPair{
			VenueID:  venue.ID,
			ChainID:  chain.ChainID,
			TokenA:   pool.TokenA,
			TokenB:   pool.TokenB,
			FeeTiers: []uint32{pool.FeeBps},
		})
	}

	return pairs, adapter, nil
}

// buildSidecarVenue wires a quote API venue. A sidecar can quote any pair
// its aggregator knows, so it contributes an edge for every registered
// token pair on the chain.
func (l *MarketConfigLoader) buildSidecarVenue(
	chain output.MarketChain,
	venue output.MarketVenue,
) ([]engine.MarketPair, engine.VenueClient, error) {
	if len(venue.SidecarURLs) == 0 {
		return nil, nil, fmt.Errorf("%w: sidecar venue %s has no quote API URLs",
			engine.ErrConfig, venue.ID)
	}

	var adapter *sidecar.Venue
	if len(venue.SidecarURLs) == 1 {
		adapter = sidecar.New(venue.SidecarURLs[0])
	} else {
		adapter = sidecar.NewWithFailover(venue.SidecarURLs[0], venue.SidecarURLs[1:])
	}

	pairs := make([]engine.MarketPair, 0, len(chain.Tokens)*(len(chain.Tokens)-1)/2)
	for i := 0; i < len(chain.Tokens); i++ {
		for j := i + 1; j < len(chain.Tokens); j++ {
			pairs = append(pairs, engine.MarketPair{
				VenueID:  venue.ID,
				ChainID:  chain.ChainID,
				TokenA:   chain.Tokens[i].Address,
				TokenB:   chain.Tokens[j].Address,
				FeeTiers: venue.FeeTiers,
			})
		}
	}

	return pairs, adapter, nil
}

// InitializeRouter creates a fully initialized Router from a generated
// market config file. Returns the router, the registry backing it, and the
// chain IDs it serves in ascending order.
func (l *MarketConfigLoader) InitializeRouter(
	marketPath string,
	params engine.Params,
	cache *pricecache.Cache,
	metrics *engine.Metrics,
) (*engine.Router, *engine.Registry, []uint64, error) {
	marketConfig, err := l.LoadFromFile(marketPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load market config: %w", err)
	}

	registry, graphs, err := l.BuildMarket(marketConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build market: %w", err)
	}

	chains := make([]uint64, 0, len(graphs))
	for chainID := range graphs {
		chains = append(chains, chainID)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	router := engine.NewRouter(registry, graphs, cache, metrics, params)
	return router, registry, chains, nil
}

// EngineParams converts the optimizer knobs into engine params. Zero values
// fall back to the engine defaults.
func (c *RPCRouterConfig) EngineParams() engine.Params {
	return engine.Params{
		MaxHops:          c.MaxHops,
		MaxCandidates:    c.MaxCandidates,
		ImpactCeiling:    c.ImpactCeiling,
		LiquidityFloor:   c.LiquidityFloor,
		QuoteTimeout:     time.Duration(c.QuoteTimeoutMs) * time.Millisecond,
		QuoteConcurrency: c.QuoteConcurrency,
	}
}

// CacheTTL returns the configured price cache TTL, zero when unset.
func (c *RPCRouterConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}
