package tokenlist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// TokenListGitDownload downloads the Uniswap default token list from the
// GitHub repository
//
// Params:
//   - dst: the directory to download the token list to
//
// Returns:
//   - error: if the token list cannot be downloaded
func TokenListGitDownload(dst string) error {
	// format for using go getter
	url := "github.com/Uniswap/default-token-list//src/tokens"
	deadline := time.Now().Add(120 * time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	opts := getter.Client{
		Ctx:  ctx,
		Src:  url,
		Dst:  dst,
		Mode: getter.ClientModeDir,
		Detectors: []getter.Detector{
			&getter.GitHubDetector{},
		},
		Getters: map[string]getter.Getter{
			"git": &getter.GitGetter{},
		},
	}
	fmt.Printf("Downloading token list from %s to %s\n", url, dst)
	err := opts.Get()

	if err != nil {
		return fmt.Errorf("failed to download token list: %w", err)
	}
	return nil
}

// ProcessTokenList reads the downloaded token list files and indexes the
// entries for the requested chains
//
// Params:
//   - dst: the directory to read the token list from, this is the directory
//     where the list is downloaded to
//   - chainIDs: the chain IDs to index, entries for other chains are skipped
//
// Returns:
//   - Index: the indexed token entries keyed by chain ID and address
//   - error: if the token list cannot be read or processed
func ProcessTokenList(dst string, chainIDs []uint64) (Index, error) {
	wanted := make(map[uint64]bool, len(chainIDs))
	for _, chainID := range chainIDs {
		wanted[chainID] = true
	}

	index := make(Index)
	files, err := os.ReadDir(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		filePath := fmt.Sprintf("%s/%s", dst, file.Name())
		jsonFile, err := os.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		body, err := io.ReadAll(jsonFile)
		if err := jsonFile.Close(); err != nil {
			log.Printf("failed to close file: %v", err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}

		entries, err := parseListFile(body)
		if err != nil {
			log.Printf("skipping %s: %v", file.Name(), err)
			continue
		}

		for _, entry := range entries {
			if len(wanted) > 0 && !wanted[entry.ChainID] {
				continue
			}
			if entry.Address == "" {
				continue
			}
			chainTokens, ok := index[entry.ChainID]
			if !ok {
				chainTokens = make(map[string]ListedToken)
				index[entry.ChainID] = chainTokens
			}
			chainTokens[strings.ToLower(entry.Address)] = entry
		}
	}
	return index, nil
}

// parseListFile accepts both the plain array layout used in the source tree
// and the wrapped tokenlists.org envelope used by built lists.
func parseListFile(body []byte) ([]ListedToken, error) {
	var entries []ListedToken
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}

	var wrapped listFile
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("not a recognized token list format: %w", err)
	}
	return wrapped.Tokens, nil
}
