// Package tokenlist downloads published ERC-20 token lists and indexes them
// for the enrichment step of the generation pipeline.
package tokenlist

import "strings"

// ListedToken is one entry of a published token list file.
type ListedToken struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// listFile is the wrapped token list format (tokenlists.org schema). Files
// in the source tree are plain arrays, built lists carry this envelope.
type listFile struct {
	Name   string        `json:"name"`
	Tokens []ListedToken `json:"tokens"`
}

// Index maps chain ID to lowercase token address to the listed entry.
type Index map[uint64]map[string]ListedToken

// Lookup returns the listed entry for a token address on a chain.
// Address matching is case-insensitive.
func (idx Index) Lookup(chainID uint64, address string) (ListedToken, bool) {
	chainTokens, ok := idx[chainID]
	if !ok {
		return ListedToken{}, false
	}
	token, ok := chainTokens[strings.ToLower(address)]
	return token, ok
}

// Count returns the total number of indexed tokens across all chains.
func (idx Index) Count() int {
	total := 0
	for _, chainTokens := range idx {
		total += len(chainTokens)
	}
	return total
}
