// Package input defines the human-readable configuration types that market
// maintainers write. These configs are intentionally simple and focused on
// what humans can easily provide - the config_manager handles the rest by
// enriching tokens from published token lists and probing endpoints.
package input

// MarketInput is the human-readable market configuration for a single chain.
// This is parsed from TOML files in the market_configs/ directory.
type MarketInput struct {
	Chain  ChainMeta   `toml:"chain"`
	Tokens []TokenMeta `toml:"token"`
	Venues []VenueMeta `toml:"venue"`
	Pools  []PoolMeta  `toml:"pool"`
}

// ChainMeta contains the basic chain identification and metadata.
type ChainMeta struct {
	// Required: Human-readable name (e.g., "Ethereum", "Arbitrum One")
	Name string `toml:"name"`

	// Required: EVM chain ID (e.g., 1, 42161)
	ID uint64 `toml:"id"`

	// JSON-RPC endpoints
	RPCs []APIEndpoint `toml:"rpcs"`
}

// APIEndpoint represents a JSON-RPC API endpoint.
type APIEndpoint struct {
	// Required: Full URL of the endpoint
	URL string `toml:"url"`

	// Optional: Provider name (e.g., "Alchemy", "Ankr")
	Provider string `toml:"provider,omitempty"`
}

// TokenMeta contains information about a token on this chain.
//
// Decimals and symbol can either be written by hand or pulled from a
// published token list during generation:
//
//	[[token]]
//	address = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
//	symbol = "USDC"
//	decimals = 6
//
//	[[token]]
//	address = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
//	enrich = true   # symbol/decimals filled from the token list
type TokenMeta struct {
	// Required: The token contract address on this chain
	Address string `toml:"address"`

	// Human recognizable symbol (e.g., "USDC", "WETH").
	// Required unless enrich is set.
	Symbol string `toml:"symbol,omitempty"`

	// Decimal places. Required unless enrich is set.
	Decimals uint8 `toml:"decimals,omitempty"`

	// Optional: URL or path to the token icon
	LogoURI string `toml:"logo_uri,omitempty"`

	// Optional: CoinGecko ID for price data
	CoinGeckoID string `toml:"coingecko_id,omitempty"`

	// Optional: Fill missing symbol/decimals/logo from the downloaded
	// token list. Generation warns when the token is not listed.
	Enrich bool `toml:"enrich,omitempty"`
}

// VenueMeta describes a liquidity venue available on this chain.
type VenueMeta struct {
	// Required: Venue identifier used in quote requests (e.g., "uniswap-v2")
	ID string `toml:"id"`

	// Required: Human-readable name (e.g., "Uniswap V2")
	Name string `toml:"name"`

	// Required: Venue kind - "amm" or "sidecar"
	Kind string `toml:"kind"`

	// Swap router contract address. Required if Kind is "amm".
	RouterAddress string `toml:"router_address,omitempty"`

	// Optional: Factory contract address
	FactoryAddress string `toml:"factory_address,omitempty"`

	// Optional: Fee tiers in basis points (e.g., [30] for Uniswap V2)
	FeeTiers []uint32 `toml:"fee_tiers,omitempty"`

	// Quote API base URLs in failover order. Required if Kind is "sidecar".
	SidecarURLs []string `toml:"sidecar_urls,omitempty"`
}

// PoolMeta seeds a constant-product pool for an amm venue. Reserves are
// decimal strings in base token units and both tokens must be declared in
// the same file.
type PoolMeta struct {
	// Required: The venue ID this pool belongs to
	Venue string `toml:"venue"`

	// Required: Token contract addresses
	TokenA string `toml:"token_a"`
	TokenB string `toml:"token_b"`

	// Required: Reserves in base units at generation time
	ReserveA string `toml:"reserve_a"`
	ReserveB string `toml:"reserve_b"`

	// Optional: Swap fee in basis points, defaults to 30
	FeeBps uint32 `toml:"fee_bps,omitempty"`
}

// IsAMM returns true if this venue quotes from on-chain constant-product pools.
func (v *VenueMeta) IsAMM() bool {
	return v.Kind == "amm"
}

// IsSidecar returns true if this venue quotes through an external quote API.
func (v *VenueMeta) IsSidecar() bool {
	return v.Kind == "sidecar"
}
