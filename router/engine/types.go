package engine

import (
	"fmt"
	"strings"
)

// Token is one asset registered on a chain. Identity is (ChainID, Address);
// addresses are normalized to lowercase so lookups are case-insensitive.
type Token struct {
	ChainID  uint64 `json:"chain_id"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Key returns the registry key for the token.
func (t Token) Key() string {
	return TokenKey(t.ChainID, t.Address)
}

// TokenKey builds the registry key for a (chain, address) pair.
func TokenKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}

// Venue describes one liquidity venue (AMM, order book, aggregator API...)
// on a chain. One adapter instance serves one venue ID.
type Venue struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ChainID        uint64   `json:"chain_id"`
	RouterAddress  string   `json:"router_address"`
	FactoryAddress string   `json:"factory_address,omitempty"`
	FeeTiers       []uint32 `json:"fee_tiers"` // basis points
}

// SwapStep is one hop of a route: a single swap on a single venue.
type SwapStep struct {
	VenueID      string  `json:"exchange_id"`
	TokenIn      Token   `json:"token_in"`
	TokenOut     Token   `json:"token_out"`
	FeeTier      *uint32 `json:"fee_tier,omitempty"`
	AmountIn     string  `json:"amount_in"`
	AmountOutMin string  `json:"amount_out_min"`
}

// SwapRoute is an ordered sequence of steps from the requested input token
// to the requested output token.
//
// Invariants: Steps[i].TokenOut == Steps[i+1].TokenIn for all i, the first
// step consumes the route input and the last step produces the route output.
type SwapRoute struct {
	Steps             []SwapStep `json:"steps"`
	AmountIn          string     `json:"amount_in"`
	ExpectedAmountOut string     `json:"expected_amount_out"`
	PriceImpact       float64    `json:"price_impact"` // fraction in [0,1)
	GasEstimate       uint64     `json:"gas_estimate"`
	RiskScore         uint8      `json:"risk_score"` // 0-100
}

// Hops returns the number of steps in the route.
func (r *SwapRoute) Hops() int {
	return len(r.Steps)
}

// Validate checks the hop chaining invariants. A failure here is a
// programming error in route construction, not a user-facing condition.
func (r *SwapRoute) Validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	for i := 0; i < len(r.Steps)-1; i++ {
		if r.Steps[i].TokenOut.Key() != r.Steps[i+1].TokenIn.Key() {
			return fmt.Errorf("step %d output %s does not chain into step %d input %s",
				i, r.Steps[i].TokenOut.Symbol, i+1, r.Steps[i+1].TokenIn.Symbol)
		}
	}
	if r.AmountIn != r.Steps[0].AmountIn {
		return fmt.Errorf("route amount in %s does not match first step amount in %s",
			r.AmountIn, r.Steps[0].AmountIn)
	}
	return nil
}

// QuoteRequest asks for ranked routes swapping TokenIn for TokenOut on one
// chain. Amounts are decimal strings in base units. Slippage is a fraction
// in [0,1). Venues, when non-empty, restricts the search to those venue IDs.
type QuoteRequest struct {
	ChainID  uint64   `json:"chain_id"`
	TokenIn  string   `json:"token_in"`
	TokenOut string   `json:"token_out"`
	AmountIn string   `json:"amount_in"`
	Slippage float64  `json:"slippage"`
	Venues   []string `json:"exchanges,omitempty"`
}

// QuoteResponse carries candidate routes ranked best first. TxCalldata is
// set only when a route was selected for execution.
type QuoteResponse struct {
	Routes     []SwapRoute `json:"routes"`
	TxCalldata string      `json:"tx_calldata,omitempty"`
}
