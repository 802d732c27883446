package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prism-dex/router-engine/config_manager/input"
)

// ClientConfig is the trimmed config served to web clients. It carries only
// what a frontend needs to render token pickers and venue filters.
type ClientConfig struct {
	Version     string        `json:"version"`
	GeneratedAt string        `json:"generated_at"`
	Chains      []ClientChain `json:"chains"`
}

// ClientChain is one chain as seen by the frontend.
type ClientChain struct {
	ChainID uint64        `json:"chain_id"`
	Name    string        `json:"name"`
	Tokens  []ClientToken `json:"tokens"`
	Venues  []ClientVenue `json:"venues"`
}

// ClientToken is the frontend view of a routable token.
type ClientToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logo_uri,omitempty"`
}

// ClientVenue is the frontend view of a venue, for allowlist pickers.
type ClientVenue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClientConverter converts validated market inputs to the client config format.
type ClientConverter struct {
	logoBaseURL string
}

// ClientConverterOption configures the client converter.
type ClientConverterOption func(*ClientConverter)

// WithLogoBaseURL prefixes relative token logo paths with the given base URL.
func WithLogoBaseURL(base string) ClientConverterOption {
	return func(c *ClientConverter) {
		c.logoBaseURL = strings.TrimSuffix(base, "/")
	}
}

// NewClientConverter creates a new client converter.
func NewClientConverter(opts ...ClientConverterOption) *ClientConverter {
	c := &ClientConverter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert transforms the per-chain market inputs into a client config.
func (c *ClientConverter) Convert(configs map[uint64]*input.MarketInput) (*ClientConfig, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no chains to convert")
	}

	chainIDs := make([]uint64, 0, len(configs))
	for chainID := range configs {
		chainIDs = append(chainIDs, chainID)
	}
	sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

	config := &ClientConfig{
		Version:     configVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Chains:      make([]ClientChain, 0, len(configs)),
	}

	for _, chainID := range chainIDs {
		chain := configs[chainID]
		clientChain := ClientChain{
			ChainID: chain.Chain.ID,
			Name:    chain.Chain.Name,
			Tokens:  make([]ClientToken, 0, len(chain.Tokens)),
			Venues:  make([]ClientVenue, 0, len(chain.Venues)),
		}

		for _, token := range chain.Tokens {
			clientChain.Tokens = append(clientChain.Tokens, ClientToken{
				Address:  token.Address,
				Symbol:   token.Symbol,
				Decimals: token.Decimals,
				LogoURI:  c.logoURI(token.LogoURI),
			})
		}

		for _, venue := range chain.Venues {
			clientChain.Venues = append(clientChain.Venues, ClientVenue{
				ID:   venue.ID,
				Name: venue.Name,
			})
		}

		config.Chains = append(config.Chains, clientChain)
	}

	return config, nil
}

func (c *ClientConverter) logoURI(uri string) string {
	if uri == "" || c.logoBaseURL == "" {
		return uri
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return c.logoBaseURL + "/" + strings.TrimPrefix(uri, "/")
}
