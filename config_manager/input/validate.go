package input

import (
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ValidationError contains details about a validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult contains the results of validating a market configuration.
type ValidationResult struct {
	ChainID  uint64
	IsValid  bool
	Errors   []error
	Warnings []string
}

// Validator validates human-readable market configurations.
// Note: Network validation is skipped by default since the probe package
// performs thorough endpoint validation (chain ID consensus, height sync,
// sidecar health). Use WithSkipNetworkCheck(false) to enable basic
// reachability checks here.
type Validator struct {
	httpClient   *http.Client
	skipNetCheck bool
}

// ValidatorOption configures the validator.
type ValidatorOption func(*Validator)

// WithHTTPClient sets a custom HTTP client for network checks.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(v *Validator) {
		v.httpClient = client
	}
}

// WithSkipNetworkCheck disables network reachability checks.
func WithSkipNetworkCheck(skip bool) ValidatorOption {
	return func(v *Validator) {
		v.skipNetCheck = skip
	}
}

// NewValidator creates a new configuration validator.
// Network checks are skipped by default - use WithSkipNetworkCheck(false) to enable.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		skipNetCheck: true, // Skip by default - probe does thorough validation
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SupportedVenueKinds lists the venue kinds we currently support.
var SupportedVenueKinds = []string{"amm", "sidecar"}

// maxTokenDecimals bounds the decimals field. ERC-20 tokens above 36
// decimals overflow downstream fixed-point math.
const maxTokenDecimals = 36

// Validate validates a single chain's market configuration.
func (v *Validator) Validate(config *MarketInput) *ValidationResult {
	result := &ValidationResult{
		ChainID: config.Chain.ID,
		IsValid: true,
	}

	// Required field validations
	v.validateRequired(config, result)

	// Type validations
	v.validateTypes(config, result)

	// Logical validations
	v.validateLogic(config, result)

	// Network validations (optional)
	if !v.skipNetCheck {
		v.validateNetwork(config, result)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateAll validates all configurations and returns a map of results.
func (v *Validator) ValidateAll(configs map[uint64]*MarketInput) (map[uint64]*ValidationResult, error) {
	results := make(map[uint64]*ValidationResult)
	var hasErrors bool

	for chainID, config := range configs {
		result := v.Validate(config)
		results[chainID] = result
		if !result.IsValid {
			hasErrors = true
		}
	}

	if hasErrors {
		return results, errors.New("one or more configurations failed validation")
	}
	return results, nil
}

func (v *Validator) validateRequired(config *MarketInput, result *ValidationResult) {
	chain := config.Chain

	if chain.Name == "" {
		result.Errors = append(result.Errors, &ValidationError{"chain.name", "is required"})
	}
	if chain.ID == 0 {
		result.Errors = append(result.Errors, &ValidationError{"chain.id", "is required"})
	}

	for i, token := range config.Tokens {
		prefix := fmt.Sprintf("token[%d]", i)
		if token.Address == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".address", "is required"})
		}
		if token.Symbol == "" && !token.Enrich {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".symbol", "is required unless enrich is set"})
		}
		if token.Decimals == 0 && !token.Enrich {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s.decimals is zero - set enrich or declare the decimals", prefix))
		}
	}

	for i, venue := range config.Venues {
		prefix := fmt.Sprintf("venue[%d]", i)
		if venue.ID == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".id", "is required"})
		}
		if venue.Name == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".name", "is required"})
		}
		if venue.Kind == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".kind", "is required"})
		}
	}

	for i, pool := range config.Pools {
		prefix := fmt.Sprintf("pool[%d]", i)
		if pool.Venue == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".venue", "is required"})
		}
		if pool.TokenA == "" || pool.TokenB == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".token_a/token_b", "both are required"})
		}
		if pool.ReserveA == "" || pool.ReserveB == "" {
			result.Errors = append(result.Errors, &ValidationError{prefix + ".reserve_a/reserve_b", "both are required"})
		}
	}
}

func (v *Validator) validateTypes(config *MarketInput, result *ValidationResult) {
	for i, token := range config.Tokens {
		prefix := fmt.Sprintf("token[%d]", i)
		if token.Address != "" && !common.IsHexAddress(token.Address) {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".address",
				fmt.Sprintf("'%s' is not a valid hex address", token.Address),
			})
		}
		if token.Decimals > maxTokenDecimals {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".decimals",
				fmt.Sprintf("must be between 0 and %d", maxTokenDecimals),
			})
		}
	}

	for i, venue := range config.Venues {
		prefix := fmt.Sprintf("venue[%d]", i)
		if venue.Kind != "" && !slices.Contains(SupportedVenueKinds, venue.Kind) {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".kind",
				fmt.Sprintf("unsupported kind '%s', must be one of: %v", venue.Kind, SupportedVenueKinds),
			})
		}
		if venue.RouterAddress != "" && !common.IsHexAddress(venue.RouterAddress) {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".router_address",
				fmt.Sprintf("'%s' is not a valid hex address", venue.RouterAddress),
			})
		}
		if venue.FactoryAddress != "" && !common.IsHexAddress(venue.FactoryAddress) {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".factory_address",
				fmt.Sprintf("'%s' is not a valid hex address", venue.FactoryAddress),
			})
		}
		for j, tier := range venue.FeeTiers {
			if tier > 10000 {
				result.Errors = append(result.Errors, &ValidationError{
					fmt.Sprintf("%s.fee_tiers[%d]", prefix, j),
					"cannot exceed 10000 basis points",
				})
			}
		}
	}

	for i, pool := range config.Pools {
		prefix := fmt.Sprintf("pool[%d]", i)
		for field, reserve := range map[string]string{"reserve_a": pool.ReserveA, "reserve_b": pool.ReserveB} {
			if reserve == "" {
				continue
			}
			value, ok := new(big.Int).SetString(reserve, 10)
			if !ok || value.Sign() <= 0 {
				result.Errors = append(result.Errors, &ValidationError{
					fmt.Sprintf("%s.%s", prefix, field),
					fmt.Sprintf("'%s' is not a positive integer", reserve),
				})
			}
		}
		if pool.FeeBps > 10000 {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".fee_bps",
				"cannot exceed 10000 basis points",
			})
		}
	}
}

func (v *Validator) validateLogic(config *MarketInput, result *ValidationResult) {
	// Check for duplicate token addresses, case-insensitive
	seenTokens := make(map[string]bool)
	for i, token := range config.Tokens {
		key := strings.ToLower(token.Address)
		if seenTokens[key] {
			result.Errors = append(result.Errors, &ValidationError{
				fmt.Sprintf("token[%d].address", i),
				fmt.Sprintf("duplicate address '%s'", token.Address),
			})
		}
		seenTokens[key] = true
	}

	// Check for duplicate venue IDs and kind-specific requirements
	seenVenues := make(map[string]bool)
	for i, venue := range config.Venues {
		prefix := fmt.Sprintf("venue[%d]", i)
		if seenVenues[venue.ID] {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".id",
				fmt.Sprintf("duplicate venue '%s'", venue.ID),
			})
		}
		seenVenues[venue.ID] = true

		if venue.IsAMM() && venue.RouterAddress == "" {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".router_address",
				"is required when venue.kind is amm",
			})
		}
		if venue.IsSidecar() && len(venue.SidecarURLs) == 0 {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".sidecar_urls",
				"at least one URL is required when venue.kind is sidecar",
			})
		}
	}

	// Pools must reference declared venues and tokens
	for i, pool := range config.Pools {
		prefix := fmt.Sprintf("pool[%d]", i)
		if pool.Venue != "" && !seenVenues[pool.Venue] {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".venue",
				fmt.Sprintf("references undeclared venue '%s'", pool.Venue),
			})
		}
		if pool.TokenA != "" && !seenTokens[strings.ToLower(pool.TokenA)] {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".token_a",
				fmt.Sprintf("references undeclared token '%s'", pool.TokenA),
			})
		}
		if pool.TokenB != "" && !seenTokens[strings.ToLower(pool.TokenB)] {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".token_b",
				fmt.Sprintf("references undeclared token '%s'", pool.TokenB),
			})
		}
		if pool.TokenA != "" && strings.EqualFold(pool.TokenA, pool.TokenB) {
			result.Errors = append(result.Errors, &ValidationError{
				prefix + ".token_b",
				"pool cannot pair a token with itself",
			})
		}
	}

	// Warn if the chain declares no liquidity at all
	if len(config.Pools) == 0 {
		hasSidecar := false
		for _, venue := range config.Venues {
			if venue.IsSidecar() {
				hasSidecar = true
				break
			}
		}
		if !hasSidecar {
			result.Warnings = append(result.Warnings, "no pools or sidecar venues defined - routing will find no liquidity")
		}
	}

	// Validate endpoint URLs
	for i, rpc := range config.Chain.RPCs {
		if rpc.URL == "" {
			result.Errors = append(result.Errors, &ValidationError{
				fmt.Sprintf("chain.rpcs[%d].url", i),
				"is required",
			})
		}
	}
}

// validateNetwork checks basic reachability of the declared endpoints.
// This is not a deep network validation, it only checks if the endpoints
// respond at all. The probe package does the thorough checks.
func (v *Validator) validateNetwork(config *MarketInput, result *ValidationResult) {
	// Check at least one RPC is reachable
	rpcReachable := false
	for _, rpc := range config.Chain.RPCs {
		resp, err := v.httpClient.Head(rpc.URL)
		if err == nil {
			if err := resp.Body.Close(); err != nil {
				log.Printf("failed to close response body: %v", err)
			}
			rpcReachable = true
			break
		}
	}
	if !rpcReachable && len(config.Chain.RPCs) > 0 {
		result.Warnings = append(result.Warnings, "no RPC endpoints are currently reachable")
	}

	// Check each sidecar venue has at least one reachable quote API
	for _, venue := range config.Venues {
		if !venue.IsSidecar() {
			continue
		}
		reachable := false
		for _, url := range venue.SidecarURLs {
			resp, err := v.httpClient.Get(strings.TrimSuffix(url, "/") + "/healthcheck")
			if err == nil {
				if err := resp.Body.Close(); err != nil {
					log.Printf("failed to close response body: %v", err)
				}
				reachable = true
				break
			}
		}
		if !reachable {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("venue %s: no quote API endpoints are currently reachable", venue.ID))
		}
	}
}
