package output

import (
	"testing"
	"time"

	"github.com/prism-dex/router-engine/config_manager/input"
)

// createTestChainInput creates a mock market input for the given chain
func createTestChainInput(chainID uint64, name string) *input.MarketInput {
	return &input.MarketInput{
		Chain: input.ChainMeta{
			Name: name,
			ID:   chainID,
			RPCs: []input.APIEndpoint{
				{URL: "https://rpc.example.com", Provider: "example"},
			},
		},
		Tokens: []input.TokenMeta{
			{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6, LogoURI: "icons/usdc.png"},
			{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18, LogoURI: "https://cdn.example.com/weth.png"},
		},
		Venues: []input.VenueMeta{
			{ID: "uniswap-v2", Name: "Uniswap V2", Kind: "amm", RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", FeeTiers: []uint32{30}},
			{ID: "odos", Name: "Odos", Kind: "sidecar", SidecarURLs: []string{"https://quotes.example.com"}},
		},
		Pools: []input.PoolMeta{
			{
				Venue:    "uniswap-v2",
				TokenA:   "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
				TokenB:   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
				ReserveA: "50000000000000",
				ReserveB: "20000000000000000000000",
			},
		},
	}
}

func TestConvert_OrdersChainsByID(t *testing.T) {
	converter := NewMarketConverter()

	configs := map[uint64]*input.MarketInput{
		42161: createTestChainInput(42161, "Arbitrum One"),
		1:     createTestChainInput(1, "Ethereum"),
		10:    createTestChainInput(10, "Optimism"),
	}

	config, err := converter.Convert(configs)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	if config.Version != "1" {
		t.Errorf("expected version 1, got %s", config.Version)
	}
	if _, err := time.Parse(time.RFC3339, config.GeneratedAt); err != nil {
		t.Errorf("generated_at is not RFC3339: %v", err)
	}

	wantOrder := []uint64{1, 10, 42161}
	if len(config.Chains) != len(wantOrder) {
		t.Fatalf("expected %d chains, got %d", len(wantOrder), len(config.Chains))
	}
	for i, want := range wantOrder {
		if config.Chains[i].ChainID != want {
			t.Errorf("chain %d: expected ID %d, got %d", i, want, config.Chains[i].ChainID)
		}
	}
}

func TestConvert_AttachesPoolsToVenue(t *testing.T) {
	converter := NewMarketConverter()

	configs := map[uint64]*input.MarketInput{
		1: createTestChainInput(1, "Ethereum"),
	}

	config, err := converter.Convert(configs)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	chain := config.Chains[0]
	if len(chain.Venues) != 2 {
		t.Fatalf("expected 2 venues, got %d", len(chain.Venues))
	}

	amm := chain.Venues[0]
	if amm.ID != "uniswap-v2" {
		t.Fatalf("expected uniswap-v2 first, got %s", amm.ID)
	}
	if len(amm.Pools) != 1 {
		t.Fatalf("expected 1 pool on the amm venue, got %d", len(amm.Pools))
	}
	if amm.Pools[0].FeeBps != 30 {
		t.Errorf("expected unset fee_bps to default to 30, got %d", amm.Pools[0].FeeBps)
	}

	sidecar := chain.Venues[1]
	if len(sidecar.Pools) != 0 {
		t.Errorf("expected no pools on the sidecar venue, got %d", len(sidecar.Pools))
	}
}

func TestConvert_PreservesDeclaredFee(t *testing.T) {
	converter := NewMarketConverter()

	cfg := createTestChainInput(1, "Ethereum")
	cfg.Pools[0].FeeBps = 100

	config, err := converter.Convert(map[uint64]*input.MarketInput{1: cfg})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got := config.Chains[0].Venues[0].Pools[0].FeeBps; got != 100 {
		t.Errorf("expected fee_bps 100, got %d", got)
	}
}

func TestConvert_EmptyInput(t *testing.T) {
	converter := NewMarketConverter()

	if _, err := converter.Convert(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestClientConvert_TrimsToFrontendFields(t *testing.T) {
	converter := NewClientConverter()

	configs := map[uint64]*input.MarketInput{
		42161: createTestChainInput(42161, "Arbitrum One"),
		1:     createTestChainInput(1, "Ethereum"),
	}

	config, err := converter.Convert(configs)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	if len(config.Chains) != 2 || config.Chains[0].ChainID != 1 {
		t.Fatalf("expected chains ordered by ID, got %+v", config.Chains)
	}

	chain := config.Chains[0]
	if len(chain.Tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(chain.Tokens))
	}
	if chain.Tokens[0].Symbol != "USDC" || chain.Tokens[0].Decimals != 6 {
		t.Errorf("token fields not carried over: %+v", chain.Tokens[0])
	}
	if len(chain.Venues) != 2 || chain.Venues[1].Name != "Odos" {
		t.Errorf("venue fields not carried over: %+v", chain.Venues)
	}
}

func TestClientConvert_LogoPrefixing(t *testing.T) {
	converter := NewClientConverter(WithLogoBaseURL("https://assets.example.com/"))

	config, err := converter.Convert(map[uint64]*input.MarketInput{
		1: createTestChainInput(1, "Ethereum"),
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	tokens := config.Chains[0].Tokens
	if tokens[0].LogoURI != "https://assets.example.com/icons/usdc.png" {
		t.Errorf("relative logo not prefixed: %s", tokens[0].LogoURI)
	}
	// Absolute URLs pass through untouched
	if tokens[1].LogoURI != "https://cdn.example.com/weth.png" {
		t.Errorf("absolute logo rewritten: %s", tokens[1].LogoURI)
	}
}

func TestClientConvert_NoBaseURL(t *testing.T) {
	converter := NewClientConverter()

	config, err := converter.Convert(map[uint64]*input.MarketInput{
		1: createTestChainInput(1, "Ethereum"),
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got := config.Chains[0].Tokens[0].LogoURI; got != "icons/usdc.png" {
		t.Errorf("expected logo unchanged without base URL, got %s", got)
	}
}
