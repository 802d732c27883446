// Command generate runs the config generation pipeline to transform
// human-readable market configs into generated configs for the router backend
// and frontend client.
//
// Usage:
//
//	go run ./config_manager/cmd/generate \
//	  --input ./market_configs \
//	  --market-output ./generated/market_config.toml \
//	  --client-output ./generated/client_config.json
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prism-dex/router-engine/config_manager/pipeline"
)

func main() {
	// Define command-line flags
	inputDir := flag.String("input", "./market_configs", "Directory containing human-readable market configs")
	marketOutput := flag.String("market-output", "./generated/market_config.toml", "Output path for router market config")
	clientOutput := flag.String("client-output", "./generated/client_config.json", "Output path for client config")
	marketFormat := flag.String("market-format", "auto", "Market output format: auto, toml, json")
	clientFormat := flag.String("client-format", "auto", "Client output format: auto, toml, json")
	tokenListCache := flag.String("tokenlist-cache", "", "Path to cache token list data (optional)")
	logoBase := flag.String("logo-base", "", "Base URL for token logos in the client config")
	skipNetwork := flag.Bool("skip-network", false, "Skip network probing of endpoints")
	useCache := flag.Bool("use-cache", false, "Use cached token list data instead of downloading fresh")
	skipTokenList := flag.Bool("skip-tokenlist", false, "Skip token list enrichment entirely")
	validate := flag.Bool("validate-only", false, "Only validate configs, don't generate")

	flag.Parse()

	// Validate inputs
	if _, err := os.Stat(*inputDir); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: input directory does not exist: %s\n", *inputDir)
		os.Exit(1)
	}

	config := pipeline.GeneratorConfig{
		InputDir:              *inputDir,
		MarketOutputPath:      *marketOutput,
		ClientOutputPath:      *clientOutput,
		MarketOutputFormat:    parseFormat(*marketFormat),
		ClientOutputFormat:    parseFormat(*clientFormat),
		LocalTokenListPath:    *tokenListCache,
		LogoBaseURL:           *logoBase,
		SkipNetworkValidation: *skipNetwork,
		UseLocalTokenList:     *useCache,
		SkipTokenList:         *skipTokenList,
	}

	if *validate {
		config.MarketOutputPath = ""
		config.ClientOutputPath = ""
	}

	generator := pipeline.NewGenerator(config)

	fmt.Println("Starting config generation pipeline...")
	fmt.Println()

	result, err := generator.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error while generating configs: %v\n", err)
		os.Exit(1)
	}

	// Print summary
	fmt.Println("\nSummary:")
	fmt.Printf("Chains processed: %d\n", result.ChainsProcessed)

	if len(result.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, warning := range result.Warnings {
			fmt.Printf("\t- %s\n", warning)
		}
	}

	// Print validation failures
	hasFailures := false
	for chainID, valResult := range result.ValidationResults {
		if !valResult.IsValid {
			hasFailures = true
			fmt.Printf("chain %d: validation failed\n", chainID)
		}
	}

	if hasFailures {
		fmt.Println("\nSome chains failed validation. Check the errors above.")
		os.Exit(1)
	}

	if !*validate {
		fmt.Println("\nOutput files:")
		if result.MarketConfigPath != "" {
			fmt.Printf("\tMarket: %s\n", result.MarketConfigPath)
		}
		if result.ClientConfigPath != "" {
			fmt.Printf("\tClient: %s\n", result.ClientConfigPath)
		}
	}

	fmt.Println("\nFinished the generation pipeline!")
}

func parseFormat(s string) pipeline.OutputFormat {
	switch strings.ToLower(s) {
	case "toml":
		return pipeline.FormatTOML
	case "json":
		return pipeline.FormatJSON
	default:
		return pipeline.FormatAuto
	}
}
