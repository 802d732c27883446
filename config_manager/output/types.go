// Package output defines the generated configuration types for both the
// backend (Router) and frontend (Client) applications.
package output

// MarketConfig contains the full market description the router backend loads
// at startup. This is the top-level config that gets generated from the
// human-maintained per-chain files.
type MarketConfig struct {
	// Version of the config format
	Version string `json:"version" toml:"version"`

	// When this config was generated
	GeneratedAt string `json:"generated_at" toml:"generated_at"`

	// All chains available for routing
	Chains []MarketChain `json:"chains" toml:"chains"`
}

// MarketChain describes one chain's tokens, venues, and pools.
type MarketChain struct {
	// Human-readable chain name
	Name string `json:"name" toml:"name"`

	// EVM chain ID (e.g., 1 for Ethereum mainnet)
	ChainID uint64 `json:"chain_id" toml:"chain_id"`

	// JSON-RPC endpoints for this chain
	RPCs []MarketEndpoint `json:"rpcs,omitempty" toml:"rpcs,omitempty"`

	// Tokens registered for routing on this chain
	Tokens []MarketToken `json:"tokens" toml:"tokens"`

	// Venues available for routing on this chain
	Venues []MarketVenue `json:"venues" toml:"venues"`
}

// MarketEndpoint represents a JSON-RPC endpoint with an optional provider tag.
type MarketEndpoint struct {
	URL      string `json:"url" toml:"url"`
	Provider string `json:"provider,omitempty" toml:"provider,omitempty"`
}

// MarketToken contains token information for routing decisions.
// This maps directly to the engine.Token type.
type MarketToken struct {
	// Contract address (0x-prefixed, checksummed or lowercase)
	Address string `json:"address" toml:"address"`

	// Human-readable symbol (e.g., "USDC", "WETH")
	Symbol string `json:"symbol" toml:"symbol"`

	// Number of decimal places
	Decimals uint8 `json:"decimals" toml:"decimals"`

	// Optional URL to the token logo, carried into the client config
	LogoURI string `json:"logo_uri,omitempty" toml:"logo_uri,omitempty"`
}

// MarketVenue describes a liquidity venue and, for on-chain AMMs, its pools.
type MarketVenue struct {
	// Venue identifier used in quote requests (e.g., "uniswap-v2")
	ID string `json:"id" toml:"id"`

	// Human-readable name
	Name string `json:"name" toml:"name"`

	// Venue kind: "amm" for constant-product pools, "sidecar" for venues
	// quoted through an external quote API
	Kind string `json:"kind" toml:"kind"`

	// Swap router contract address, required for amm venues
	RouterAddress string `json:"router_address,omitempty" toml:"router_address,omitempty"`

	// Factory contract address, optional
	FactoryAddress string `json:"factory_address,omitempty" toml:"factory_address,omitempty"`

	// Fee tiers this venue supports, in basis points
	FeeTiers []uint32 `json:"fee_tiers,omitempty" toml:"fee_tiers,omitempty"`

	// Quote API base URLs in failover order, required for sidecar venues
	SidecarURLs []string `json:"sidecar_urls,omitempty" toml:"sidecar_urls,omitempty"`

	// Seed pools for amm venues
	Pools []MarketPool `json:"pools,omitempty" toml:"pools,omitempty"`
}

// MarketPool is a constant-product pool snapshot used to seed the router's
// reserve state. Reserves are decimal strings in base token units.
type MarketPool struct {
	TokenA   string `json:"token_a" toml:"token_a"`
	TokenB   string `json:"token_b" toml:"token_b"`
	ReserveA string `json:"reserve_a" toml:"reserve_a"`
	ReserveB string `json:"reserve_b" toml:"reserve_b"`

	// Swap fee in basis points
	FeeBps uint32 `json:"fee_bps" toml:"fee_bps"`
}
