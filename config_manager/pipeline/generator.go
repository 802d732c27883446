// Package pipeline provides the main configuration generation pipeline that
// transforms human-readable market configs into generated configs for the
// router backend and frontend.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prism-dex/router-engine/config_manager/input"
	"github.com/prism-dex/router-engine/config_manager/output"
	"github.com/prism-dex/router-engine/config_manager/probe"
	"github.com/prism-dex/router-engine/config_manager/tokenlist"
)

// OutputFormat specifies the output format for generated configs.
type OutputFormat string

const (
	FormatTOML OutputFormat = "toml"
	FormatJSON OutputFormat = "json"
	FormatAuto OutputFormat = "auto" // Determine from file extension
)

// Probe timing used when network validation is enabled.
const (
	probeRetryAttempts = 2
	probeRetryDelay    = 500 * time.Millisecond
	probeTimeout       = 10 * time.Second
)

// GeneratorConfig configures the pipeline generator.
type GeneratorConfig struct {
	// Path to the directory containing human-readable market configs
	InputDir string

	// Path to output the generated router market config
	MarketOutputPath string

	// Path to output the generated client config
	ClientOutputPath string

	// Output format for market config (default: auto from extension)
	MarketOutputFormat OutputFormat

	// Output format for client config (default: auto from extension)
	ClientOutputFormat OutputFormat

	// Path to store the downloaded token list data (optional)
	LocalTokenListPath string

	// Skip network probing of RPC and quote API endpoints
	SkipNetworkValidation bool

	// Skip downloading a fresh token list (use stored data)
	UseLocalTokenList bool

	// Skip token list enrichment entirely
	SkipTokenList bool

	// Base URL prefixed to relative token logo paths in the client config
	LogoBaseURL string
}

// Generator is the main config generation pipeline.
type Generator struct {
	config         GeneratorConfig
	inputLoader    *input.Loader
	inputValidator *input.Validator
	marketConv     *output.MarketConverter
	clientConv     *output.ClientConverter
}

// NewGenerator creates a new pipeline generator with the given configuration.
func NewGenerator(config GeneratorConfig) *Generator {
	var clientConvOpts []output.ClientConverterOption
	if config.LogoBaseURL != "" {
		clientConvOpts = append(clientConvOpts, output.WithLogoBaseURL(config.LogoBaseURL))
	}

	return &Generator{
		config:         config,
		inputLoader:    input.NewLoader(),
		inputValidator: input.NewValidator(),
		marketConv:     output.NewMarketConverter(),
		clientConv:     output.NewClientConverter(clientConvOpts...),
	}
}

// GenerateResult contains the results of the generation process.
type GenerateResult struct {
	// Number of chains written to the generated configs
	ChainsProcessed int

	// Validation results for each chain
	ValidationResults map[uint64]*input.ValidationResult

	// Path where the market config was written
	MarketConfigPath string

	// Path where the client config was written
	ClientConfigPath string

	// Any warnings during generation
	Warnings []string
}

// Generate runs the complete configuration generation pipeline.
func (g *Generator) Generate() (*GenerateResult, error) {
	result := &GenerateResult{
		ValidationResults: make(map[uint64]*input.ValidationResult),
		Warnings:          make([]string, 0),
	}

	// Step 1: Load input configs
	log.Println("Loading market configs...")
	inputConfigs, err := g.inputLoader.LoadAllConfigs(g.config.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load input configs: %w", err)
	}
	log.Printf("Loaded %d market configs", len(inputConfigs))

	// Step 2: Validate input configs, invalid chains are excluded from output
	log.Println("Validating configs...")
	validationResults, _ := g.inputValidator.ValidateAll(inputConfigs)
	result.ValidationResults = validationResults

	validConfigs := make(map[uint64]*input.MarketInput, len(inputConfigs))
	for chainID, valResult := range validationResults {
		if valResult.IsValid {
			validConfigs[chainID] = inputConfigs[chainID]
		} else {
			log.Printf("chain %d: validation failed", chainID)
			for _, err := range valResult.Errors {
				log.Printf("\t- %v", err)
			}
		}
		for _, warning := range valResult.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("chain %d: %s", chainID, warning))
		}
	}
	log.Printf("%d/%d chains passed validation", len(validConfigs), len(inputConfigs))
	if len(validConfigs) == 0 {
		return result, fmt.Errorf("no chains passed validation")
	}

	// Step 3: Fetch the token list and enrich declared tokens
	if !g.config.SkipTokenList {
		enrichChains := g.inputLoader.GetEnrichChainIDs(validConfigs)
		if len(enrichChains) > 0 {
			log.Println("Fetching token list data...")
			index, err := g.fetchTokenList(enrichChains)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch token list: %w", err)
			}
			log.Printf("Indexed %d listed tokens", index.Count())
			g.enrichTokens(validConfigs, index, result)
		} else {
			log.Println("No tokens request enrichment, skipping token list download")
		}
	}

	// Step 4: Probe declared endpoints and drop the unhealthy ones
	if !g.config.SkipNetworkValidation {
		log.Println("Probing endpoints...")
		g.probeEndpoints(validConfigs, result)
	}

	result.ChainsProcessed = len(validConfigs)

	// Step 5: Generate the router market config
	log.Println("Generating market config...")
	marketConfig, err := g.marketConv.Convert(validConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to market config: %w", err)
	}

	if g.config.MarketOutputPath != "" {
		if err := g.writeMarketConfig(marketConfig); err != nil {
			return nil, fmt.Errorf("failed to write market config: %w", err)
		}
		result.MarketConfigPath = g.config.MarketOutputPath
		log.Printf("Written to %s", g.config.MarketOutputPath)
	}

	// Step 6: Generate the client config
	log.Println("Generating client config...")
	clientConfig, err := g.clientConv.Convert(validConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to client config: %w", err)
	}

	if g.config.ClientOutputPath != "" {
		if err := g.writeClientConfig(clientConfig); err != nil {
			return nil, fmt.Errorf("failed to write client config: %w", err)
		}
		result.ClientConfigPath = g.config.ClientOutputPath
		log.Printf("Written to %s", g.config.ClientOutputPath)
	}

	log.Println("Config generation complete!")
	return result, nil
}

func (g *Generator) fetchTokenList(chainIDs []uint64) (tokenlist.Index, error) {
	// Determine cache path
	cachePath := g.config.LocalTokenListPath
	if cachePath == "" {
		currentDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		cachePath = filepath.Join(currentDir, "token-list")
	}

	// Download the list if not using local data
	if !g.config.UseLocalTokenList {
		if err := os.RemoveAll(cachePath); err != nil {
			return nil, fmt.Errorf("failed to clear token list cache: %w", err)
		}

		if err := tokenlist.TokenListGitDownload(cachePath); err != nil {
			return nil, fmt.Errorf("failed to download token list: %w", err)
		}
	}

	// Process the downloaded list
	index, err := tokenlist.ProcessTokenList(cachePath, chainIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to process token list: %w", err)
	}

	return index, nil
}

// enrichTokens fills missing symbol, decimals, and logo fields from the
// downloaded token list for tokens declared with enrich = true.
func (g *Generator) enrichTokens(
	configs map[uint64]*input.MarketInput,
	index tokenlist.Index,
	result *GenerateResult,
) {
	for chainID, config := range configs {
		for i := range config.Tokens {
			token := &config.Tokens[i]
			if !token.Enrich {
				continue
			}

			listed, ok := index.Lookup(chainID, token.Address)
			if !ok {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("chain %d: token %s requested enrichment but is not listed", chainID, token.Address))
				continue
			}

			if token.Symbol == "" {
				token.Symbol = listed.Symbol
			}
			if token.Decimals == 0 {
				token.Decimals = listed.Decimals
			} else if token.Decimals != listed.Decimals {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("chain %d: token %s declares %d decimals, token list says %d",
						chainID, token.Address, token.Decimals, listed.Decimals))
			}
			if token.LogoURI == "" {
				token.LogoURI = listed.LogoURI
			}
		}
	}
}

// probeEndpoints removes RPC endpoints and sidecar URLs that fail the deep
// health checks, so the generated config only carries endpoints the router
// can actually use.
func (g *Generator) probeEndpoints(configs map[uint64]*input.MarketInput, result *GenerateResult) {
	for chainID, config := range configs {
		if len(config.Chain.RPCs) > 0 {
			healthy := probe.ProbeRPCEndpoints(
				config.Chain.RPCs, chainID, probeRetryAttempts, probeRetryDelay, probeTimeout)

			kept := make([]input.APIEndpoint, 0, len(config.Chain.RPCs))
			for _, rpc := range config.Chain.RPCs {
				if healthy[rpc.URL] {
					kept = append(kept, rpc)
				} else {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("chain %d: dropped unhealthy RPC endpoint %s", chainID, rpc.URL))
				}
			}
			config.Chain.RPCs = kept

			if len(kept) == 0 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("chain %d: no healthy RPC endpoints remain", chainID))
			}
		}

		for i := range config.Venues {
			venue := &config.Venues[i]
			if !venue.IsSidecar() {
				continue
			}

			healthy := probe.ProbeSidecars(venue.ID, venue.SidecarURLs, probeTimeout)
			kept := make([]string, 0, len(venue.SidecarURLs))
			for _, url := range venue.SidecarURLs {
				if healthy[url] {
					kept = append(kept, url)
				} else {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("chain %d: venue %s dropped unhealthy quote API %s", chainID, venue.ID, url))
				}
			}
			venue.SidecarURLs = kept

			if len(kept) == 0 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("chain %d: venue %s has no healthy quote APIs remaining", chainID, venue.ID))
			}
		}
	}
}

func (g *Generator) writeMarketConfig(config *output.MarketConfig) error {
	dir := filepath.Dir(g.config.MarketOutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	format := g.config.MarketOutputFormat
	if format == FormatAuto || format == "" {
		format = formatFromExtension(g.config.MarketOutputPath)
	}

	var data []byte
	var err error

	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		data, err = toml.Marshal(config)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal market config: %w", err)
	}

	return os.WriteFile(g.config.MarketOutputPath, data, 0644)
}

func (g *Generator) writeClientConfig(config *output.ClientConfig) error {
	dir := filepath.Dir(g.config.ClientOutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	format := g.config.ClientOutputFormat
	if format == FormatAuto || format == "" {
		format = formatFromExtension(g.config.ClientOutputPath)
	}

	var data []byte
	var err error

	switch format {
	case FormatTOML:
		data, err = toml.Marshal(config)
	default:
		// Default to JSON for client config (better for frontend)
		data, err = json.MarshalIndent(config, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}

	return os.WriteFile(g.config.ClientOutputPath, data, 0644)
}

// formatFromExtension determines output format from file extension.
func formatFromExtension(path string) OutputFormat {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatTOML // Default to TOML
	}
}

// GenerateMarketOnly generates only the router market configuration.
func (g *Generator) GenerateMarketOnly() (*output.MarketConfig, error) {
	inputConfigs, err := g.inputLoader.LoadAllConfigs(g.config.InputDir)
	if err != nil {
		return nil, err
	}

	if _, err := g.inputValidator.ValidateAll(inputConfigs); err != nil {
		return nil, err
	}

	return g.marketConv.Convert(inputConfigs)
}

// GenerateClientOnly generates only the client configuration.
func (g *Generator) GenerateClientOnly() (*output.ClientConfig, error) {
	inputConfigs, err := g.inputLoader.LoadAllConfigs(g.config.InputDir)
	if err != nil {
		return nil, err
	}

	if _, err := g.inputValidator.ValidateAll(inputConfigs); err != nil {
		return nil, err
	}

	return g.clientConv.Convert(inputConfigs)
}
