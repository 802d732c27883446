package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Loader loads and parses human-readable market configuration files.
type Loader struct{}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadMarketConfig loads a single chain's market configuration from a TOML file.
func (l *Loader) LoadMarketConfig(filePath string) (*MarketInput, error) {
	if !strings.HasSuffix(filePath, ".toml") {
		return nil, fmt.Errorf("config file must be a .toml file: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var config MarketInput
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return &config, nil
}

// LoadAllConfigs loads all market configurations from a directory.
// Returns a map of chain ID to MarketInput.
func (l *Loader) LoadAllConfigs(dirPath string) (map[uint64]*MarketInput, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory %s: %w", dirPath, err)
	}

	configs := make(map[uint64]*MarketInput)
	var errs []error

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		config, err := l.LoadMarketConfig(filePath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}

		if config.Chain.ID == 0 {
			errs = append(errs, fmt.Errorf("%s: missing chain.id", entry.Name()))
			continue
		}

		if _, exists := configs[config.Chain.ID]; exists {
			errs = append(errs, fmt.Errorf("%s: duplicate chain ID %d", entry.Name(), config.Chain.ID))
			continue
		}

		configs[config.Chain.ID] = config
	}

	if len(errs) > 0 {
		// Log errors but don't fail - allow partial loading
		for _, e := range errs {
			fmt.Printf("Warning: %v\n", e)
		}
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no valid market configurations found in %s", dirPath)
	}

	return configs, nil
}

// GetEnrichChainIDs returns the chain IDs that declare at least one token
// with enrich set. These are the chains the token list download must cover.
func (l *Loader) GetEnrichChainIDs(configs map[uint64]*MarketInput) []uint64 {
	chainIDs := make([]uint64, 0, len(configs))
	for chainID, config := range configs {
		for _, token := range config.Tokens {
			if token.Enrich {
				chainIDs = append(chainIDs, chainID)
				break
			}
		}
	}
	return chainIDs
}
