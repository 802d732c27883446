package output

import (
	"fmt"
	"sort"
	"time"

	"github.com/prism-dex/router-engine/config_manager/input"
)

// configVersion is the current version of the generated config format.
const configVersion = "1"

// MarketConverter converts validated market inputs to the router config format.
type MarketConverter struct{}

// NewMarketConverter creates a new market converter.
func NewMarketConverter() *MarketConverter {
	return &MarketConverter{}
}

// Convert transforms the per-chain market inputs into a router market config.
// Chains are emitted in ascending chain ID order so regeneration is
// deterministic.
func (c *MarketConverter) Convert(configs map[uint64]*input.MarketInput) (*MarketConfig, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no chains to convert")
	}

	chainIDs := make([]uint64, 0, len(configs))
	for chainID := range configs {
		chainIDs = append(chainIDs, chainID)
	}
	sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

	config := &MarketConfig{
		Version:     configVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Chains:      make([]MarketChain, 0, len(configs)),
	}

	for _, chainID := range chainIDs {
		marketChain := c.convertChain(configs[chainID])
		config.Chains = append(config.Chains, marketChain)
	}

	return config, nil
}

func (c *MarketConverter) convertChain(chain *input.MarketInput) MarketChain {
	marketChain := MarketChain{
		Name:    chain.Chain.Name,
		ChainID: chain.Chain.ID,
		RPCs:    make([]MarketEndpoint, 0, len(chain.Chain.RPCs)),
		Tokens:  make([]MarketToken, 0, len(chain.Tokens)),
		Venues:  make([]MarketVenue, 0, len(chain.Venues)),
	}

	for _, rpc := range chain.Chain.RPCs {
		marketChain.RPCs = append(marketChain.RPCs, MarketEndpoint{
			URL:      rpc.URL,
			Provider: rpc.Provider,
		})
	}

	for _, token := range chain.Tokens {
		marketChain.Tokens = append(marketChain.Tokens, MarketToken{
			Address:  token.Address,
			Symbol:   token.Symbol,
			Decimals: token.Decimals,
			LogoURI:  token.LogoURI,
		})
	}

	for _, venue := range chain.Venues {
		marketChain.Venues = append(marketChain.Venues, c.convertVenue(venue, chain.Pools))
	}

	return marketChain
}

func (c *MarketConverter) convertVenue(venue input.VenueMeta, pools []input.PoolMeta) MarketVenue {
	marketVenue := MarketVenue{
		ID:             venue.ID,
		Name:           venue.Name,
		Kind:           venue.Kind,
		RouterAddress:  venue.RouterAddress,
		FactoryAddress: venue.FactoryAddress,
		FeeTiers:       venue.FeeTiers,
		SidecarURLs:    venue.SidecarURLs,
	}

	// Attach the pools declared for this venue
	for _, pool := range pools {
		if pool.Venue != venue.ID {
			continue
		}
		feeBps := pool.FeeBps
		if feeBps == 0 {
			feeBps = 30
		}
		marketVenue.Pools = append(marketVenue.Pools, MarketPool{
			TokenA:   pool.TokenA,
			TokenB:   pool.TokenB,
			ReserveA: pool.ReserveA,
			ReserveB: pool.ReserveB,
			FeeBps:   feeBps,
		})
	}

	return marketVenue
}
