package input

import (
	"strings"
	"testing"
)

// createTestMarketInput creates a valid single-chain market config for testing
func createTestMarketInput() *MarketInput {
	return &MarketInput{
		Chain: ChainMeta{
			Name: "Ethereum",
			ID:   1,
			RPCs: []APIEndpoint{
				{URL: "https://eth.example.com", Provider: "example"},
			},
		},
		Tokens: []TokenMeta{
			{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
			{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18},
		},
		Venues: []VenueMeta{
			{
				ID:            "uniswap-v2",
				Name:          "Uniswap V2",
				Kind:          "amm",
				RouterAddress: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			},
			{
				ID:          "odos",
				Name:        "Odos",
				Kind:        "sidecar",
				SidecarURLs: []string{"https://quotes.example.com"},
			},
		},
		Pools: []PoolMeta{
			{
				Venue:    "uniswap-v2",
				TokenA:   "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
				TokenB:   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
				ReserveA: "50000000000000",
				ReserveB: "20000000000000000000000",
				FeeBps:   30,
			},
		},
	}
}

// hasFieldError reports whether any validation error names the field
func hasFieldError(result *ValidationResult, field string) bool {
	for _, err := range result.Errors {
		if ve, ok := err.(*ValidationError); ok && ve.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	v := NewValidator()

	result := v.Validate(createTestMarketInput())
	if !result.IsValid {
		t.Fatalf("expected valid config, got errors: %v", result.Errors)
	}
	if result.ChainID != 1 {
		t.Errorf("expected chain ID 1, got %d", result.ChainID)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
}

func TestValidate_MissingChainFields(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	cfg.Chain.Name = ""
	cfg.Chain.ID = 0

	result := v.Validate(cfg)
	if result.IsValid {
		t.Fatalf("expected invalid config")
	}
	if !hasFieldError(result, "chain.name") {
		t.Errorf("expected chain.name error, got %v", result.Errors)
	}
	if !hasFieldError(result, "chain.id") {
		t.Errorf("expected chain.id error, got %v", result.Errors)
	}
}

func TestValidate_BadTokenAddress(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	cfg.Tokens[0].Address = "not-an-address"

	result := v.Validate(cfg)
	if result.IsValid {
		t.Fatalf("expected invalid config")
	}
	if !hasFieldError(result, "token[0].address") {
		t.Errorf("expected token[0].address error, got %v", result.Errors)
	}
}

func TestValidate_TokenDecimalsBound(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	cfg.Tokens[1].Decimals = 37

	result := v.Validate(cfg)
	if result.IsValid {
		t.Fatalf("expected invalid config")
	}
	if !hasFieldError(result, "token[1].decimals") {
		t.Errorf("expected token[1].decimals error, got %v", result.Errors)
	}
}

func TestValidate_EnrichRelaxesTokenFields(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	// With enrich set, symbol and decimals may come from the token list.
	cfg.Tokens[0].Symbol = ""
	cfg.Tokens[0].Decimals = 0
	cfg.Tokens[0].Enrich = true

	result := v.Validate(cfg)
	if !result.IsValid {
		t.Fatalf("expected valid config, got errors: %v", result.Errors)
	}

	// Without enrich the same omissions error and warn.
	cfg.Tokens[0].Enrich = false
	result = v.Validate(cfg)
	if result.IsValid {
		t.Fatalf("expected invalid config")
	}
	if !hasFieldError(result, "token[0].symbol") {
		t.Errorf("expected token[0].symbol error, got %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Errorf("expected a zero-decimals warning")
	}
}

func TestValidate_DuplicateTokensCaseInsensitive(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	cfg.Tokens = append(cfg.Tokens, TokenMeta{
		Address:  strings.ToLower(cfg.Tokens[0].Address),
		Symbol:   "USDC2",
		Decimals: 6,
	})

	result := v.Validate(cfg)
	if result.IsValid {
		t.Fatalf("expected invalid config")
	}
	if !hasFieldError(result, "token[2].address") {
		t.Errorf("expected duplicate address error, got %v", result.Errors)
	}
}

func TestValidate_VenueKindRequirements(t *testing.T) {
	v := NewValidator()

	// Unsupported kind
	cfg := createTestMarketInput()
	cfg.Venues[0].Kind = "orderbook"
	result := v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "venue[0].kind") {
		t.Errorf("expected venue[0].kind error, got %v", result.Errors)
	}

	// AMM without a router address
	cfg = createTestMarketInput()
	cfg.Venues[0].RouterAddress = ""
	result = v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "venue[0].router_address") {
		t.Errorf("expected venue[0].router_address error, got %v", result.Errors)
	}

	// Sidecar without quote API URLs
	cfg = createTestMarketInput()
	cfg.Venues[1].SidecarURLs = nil
	result = v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "venue[1].sidecar_urls") {
		t.Errorf("expected venue[1].sidecar_urls error, got %v", result.Errors)
	}
}

func TestValidate_PoolReferences(t *testing.T) {
	v := NewValidator()

	// Undeclared venue
	cfg := createTestMarketInput()
	cfg.Pools[0].Venue = "sushiswap"
	result := v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "pool[0].venue") {
		t.Errorf("expected pool[0].venue error, got %v", result.Errors)
	}

	// Undeclared token
	cfg = createTestMarketInput()
	cfg.Pools[0].TokenA = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	result = v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "pool[0].token_a") {
		t.Errorf("expected pool[0].token_a error, got %v", result.Errors)
	}

	// Token paired with itself, case differences ignored
	cfg = createTestMarketInput()
	cfg.Pools[0].TokenB = strings.ToUpper(cfg.Pools[0].TokenA)
	result = v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "pool[0].token_b") {
		t.Errorf("expected pool[0].token_b self-pair error, got %v", result.Errors)
	}
}

func TestValidate_BadReserves(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	cfg.Pools[0].ReserveA = "-5"
	result := v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "pool[0].reserve_a") {
		t.Errorf("expected pool[0].reserve_a error, got %v", result.Errors)
	}

	cfg = createTestMarketInput()
	cfg.Pools[0].ReserveB = "12.5"
	result = v.Validate(cfg)
	if result.IsValid || !hasFieldError(result, "pool[0].reserve_b") {
		t.Errorf("expected pool[0].reserve_b error, got %v", result.Errors)
	}
}

func TestValidate_NoLiquidityWarning(t *testing.T) {
	v := NewValidator()

	cfg := createTestMarketInput()
	cfg.Pools = nil
	cfg.Venues = cfg.Venues[:1] // drop the sidecar, keep the AMM

	result := v.Validate(cfg)
	if !result.IsValid {
		t.Fatalf("expected valid config, got errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Errorf("expected a no-liquidity warning")
	}

	// A sidecar venue counts as liquidity.
	cfg = createTestMarketInput()
	cfg.Pools = nil
	result = v.Validate(cfg)
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings with a sidecar present, got %v", result.Warnings)
	}
}

func TestValidateAll_ReportsFailures(t *testing.T) {
	v := NewValidator()

	good := createTestMarketInput()
	bad := createTestMarketInput()
	bad.Chain.ID = 137
	bad.Chain.Name = ""

	configs := map[uint64]*MarketInput{1: good, 137: bad}
	results, err := v.ValidateAll(configs)
	if err == nil {
		t.Fatalf("expected error when a chain fails validation")
	}
	if !results[1].IsValid {
		t.Errorf("expected chain 1 valid, got %v", results[1].Errors)
	}
	if results[137].IsValid {
		t.Errorf("expected chain 137 invalid")
	}
}
