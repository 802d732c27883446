package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prism-dex/router-engine/config_manager/output"
	"github.com/prism-dex/router-engine/router/engine"
	"github.com/prism-dex/router-engine/router/pricecache"

	. "github.com/prism-dex/router-engine/router/config"
)

const (
	addrUSDC = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	addrWETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	addrDAI  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

// testMarketConfig builds a one-chain market with an AMM venue over two
// pools and a sidecar venue quoting every pair.
func testMarketConfig() *output.MarketConfig {
	return &output.MarketConfig{
		Version:     "1",
		GeneratedAt: "2025-06-01T00:00:00Z",
		Chains: []output.MarketChain{
			{
				Name:    "ethereum",
				ChainID: 1,
				Tokens: []output.MarketToken{
					{Address: addrUSDC, Symbol: "USDC", Decimals: 6},
					{Address: addrWETH, Symbol: "WETH", Decimals: 18},
					{Address: addrDAI, Symbol: "DAI", Decimals: 18},
				},
				Venues: []output.MarketVenue{
					{
						ID:            "uniswap-v2",
						Name:          "Uniswap V2",
						Kind:          "amm",
						RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
						Pools: []output.MarketPool{
							{TokenA: addrUSDC, TokenB: addrWETH, ReserveA: "50000000000000", ReserveB: "20000000000000000000000", FeeBps: 30},
							{TokenA: addrWETH, TokenB: addrDAI, ReserveA: "20000000000000000000000", ReserveB: "50000000000000000000000000", FeeBps: 30},
						},
					},
					{
						ID:          "odos",
						Name:        "Odos",
						Kind:        "sidecar",
						SidecarURLs: []string{"https://quotes.example.com"},
						FeeTiers:    []uint32{30},
					},
				},
			},
		},
	}
}

func TestBuildMarket_Success(t *testing.T) {
	loader := NewMarketConfigLoader()

	registry, graphs, err := loader.BuildMarket(testMarketConfig())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, ok := registry.Token(1, addrUSDC); !ok {
		t.Errorf("expected USDC registered")
	}
	if _, ok := registry.Venue("uniswap-v2"); !ok {
		t.Errorf("expected uniswap-v2 registered")
	}
	if _, ok := registry.Venue("odos"); !ok {
		t.Errorf("expected odos registered")
	}

	graph, ok := graphs[1]
	if !ok {
		t.Fatalf("expected a graph for chain 1")
	}
	nodes, edges := graph.Size()
	if nodes != 3 {
		t.Errorf("expected 3 nodes, got %d", nodes)
	}
	// 2 AMM pools and 3 sidecar pairs, each contributing both directions.
	if edges != 10 {
		t.Errorf("expected 10 directed edges, got %d", edges)
	}
	if !graph.HasToken(engine.TokenKey(1, addrUSDC)) {
		t.Errorf("expected USDC node in the graph")
	}
}

func TestBuildMarket_UnknownVenueKind(t *testing.T) {
	loader := NewMarketConfigLoader()

	cfg := testMarketConfig()
	cfg.Chains[0].Venues[0].Kind = "orderbook"

	_, _, err := loader.BuildMarket(cfg)
	if err == nil {
		t.Fatalf("expected error for unsupported venue kind")
	}
	if !errors.Is(err, engine.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestBuildMarket_UnregisteredPoolToken(t *testing.T) {
	loader := NewMarketConfigLoader()

	cfg := testMarketConfig()
	cfg.Chains[0].Venues[0].Pools[0].TokenA = "0x0000000000000000000000000000000000000bad"

	_, _, err := loader.BuildMarket(cfg)
	if err == nil {
		t.Fatalf("expected error for unregistered pool token")
	}
	if !errors.Is(err, engine.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestBuildMarket_BadReserve(t *testing.T) {
	loader := NewMarketConfigLoader()

	cfg := testMarketConfig()
	cfg.Chains[0].Venues[0].Pools[0].ReserveA = "0"

	_, _, err := loader.BuildMarket(cfg)
	if err == nil {
		t.Fatalf("expected error for zero reserve")
	}
	if !errors.Is(err, engine.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestBuildMarket_SidecarWithoutURLs(t *testing.T) {
	loader := NewMarketConfigLoader()

	cfg := testMarketConfig()
	cfg.Chains[0].Venues[1].SidecarURLs = nil

	_, _, err := loader.BuildMarket(cfg)
	if err == nil {
		t.Fatalf("expected error for sidecar without quote API URLs")
	}
	if !errors.Is(err, engine.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewMarketConfigLoader()

	dir := t.TempDir()
	path := filepath.Join(dir, "market_config.json")
	content := `{
  "version": "1",
  "generated_at": "2025-06-01T00:00:00Z",
  "chains": [
    {
      "name": "ethereum",
      "chain_id": 1,
      "tokens": [{"address": "` + addrUSDC + `", "symbol": "USDC", "decimals": 6}],
      "venues": []
    }
  ]
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp config: %v", err)
	}

	cfg, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cfg.Chains) != 1 || cfg.Chains[0].ChainID != 1 {
		t.Errorf("unexpected chains: %+v", cfg.Chains)
	}
	if len(cfg.Chains[0].Tokens) != 1 || cfg.Chains[0].Tokens[0].Symbol != "USDC" {
		t.Errorf("unexpected tokens: %+v", cfg.Chains[0].Tokens)
	}
}

func TestInitializeRouter_FromTOML(t *testing.T) {
	loader := NewMarketConfigLoader()

	dir := t.TempDir()
	path := filepath.Join(dir, "market_config.toml")
	content := `
version = "1"
generated_at = "2025-06-01T00:00:00Z"

[[chains]]
name = "ethereum"
chain_id = 1

[[chains.tokens]]
address = "` + addrUSDC + `"
symbol = "USDC"
decimals = 6

[[chains.tokens]]
address = "` + addrWETH + `"
symbol = "WETH"
decimals = 18

[[chains.venues]]
id = "uniswap-v2"
name = "Uniswap V2"
kind = "amm"
router_address = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"

[[chains.venues.pools]]
token_a = "` + addrUSDC + `"
token_b = "` + addrWETH + `"
reserve_a = "50000000000000"
reserve_b = "20000000000000000000000"
fee_bps = 30
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp config: %v", err)
	}

	cache := pricecache.New(time.Minute)
	metrics := engine.NewMetrics(prometheus.NewRegistry())

	router, registry, chains, err := loader.InitializeRouter(path, engine.DefaultParams(), cache, metrics)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if router == nil || registry == nil {
		t.Fatalf("expected router and registry")
	}
	if len(chains) != 1 || chains[0] != 1 {
		t.Errorf("unexpected chains: %v", chains)
	}
	registry.CloseAdapters()
}
