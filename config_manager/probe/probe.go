package probe

import (
	"crypto/rand"
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prism-dex/router-engine/config_manager/input"
)

/*
The probe package runs an in depth validation of the endpoints declared in
the market configs before they are written into the generated config.

A static config check cannot tell a healthy endpoint from a stale mirror or
an endpoint that silently serves a different network. Instead of dropping an
endpoint on the first disagreement the probe scores each one and only
removes those that fall below the threshold, so a single flaky response does
not cost an operator their endpoint.
*/

const mismatchPenalty = 10

// Endpoints that drop below this score are removed from the generated config.
const validThreshold = 60

// Allowed lag behind the highest observed block before penalties apply.
const maxHeightLag = 500

// Header samples are drawn from this many recent blocks.
const sampleWindow = 1024
const sampleCount = 7

type rpcHealth struct {
	Endpoint input.APIEndpoint
	points   int
	valid    bool
	chainID  *uint64
	height   *uint64
	headers  map[uint64]*BlockHeader
}

// getMostCommonValue returns the key with the highest count in the map
func getMostCommonValue[T comparable](counts map[T]int) T {
	if len(counts) == 0 {
		return *new(T)
	}

	maxCount := 0
	var mostCommon T
	for key, count := range counts {
		if count > maxCount {
			maxCount = count
			mostCommon = key
		}
	}
	return mostCommon
}

// getMaxHeight returns the maximum value from a slice of heights
func getMaxHeight(heights []uint64) uint64 {
	if len(heights) == 0 {
		return 0
	}

	max := heights[0]
	for _, h := range heights {
		if h > max {
			max = h
		}
	}
	return max
}

/*
ProbeRPCEndpoints validates the JSON-RPC endpoints for one chain and returns
the set of healthy URLs.

Parameters:
- endpoints - the endpoints declared in the market config
- declaredChainID - the chain ID the config declares, endpoints must agree
- retryAttempts - the number of retry attempts to perform
- retryDelay - the delay between retry attempts
- timeout - the timeout for each request
*/
func ProbeRPCEndpoints(
	endpoints []input.APIEndpoint,
	declaredChainID uint64,
	retryAttempts int,
	retryDelay time.Duration,
	timeout time.Duration,
) map[string]bool {
	healthyEndpoints := make(map[string]bool)
	validities := initRPCHealth(endpoints)

	// Step 1: Collect chain ID and height from all endpoints
	heights := collectBasicData(&validities, declaredChainID, retryAttempts, retryDelay, timeout)

	// Step 2: Determine the consensus height and penalize laggards
	maxHeight := getMaxHeight(heights)
	filterByHeight(&validities, maxHeight)

	// Step 3: Declare the blocks that will be used to validate the endpoints
	blocks := sampleHeights(maxHeight)

	// Step 4: Fetch the block headers from the endpoints
	fetchBlockHeaders(&validities, retryAttempts, retryDelay, timeout, blocks)

	// Step 5: Validate the headers against the majority consensus
	validateHeaders(&validities)

	// Step 6: Return the healthy endpoints
	for _, endpoint := range validities {
		if endpoint.valid {
			healthyEndpoints[endpoint.Endpoint.URL] = true
		}
	}

	return healthyEndpoints
}

func initRPCHealth(endpoints []input.APIEndpoint) map[string]rpcHealth {
	validities := make(map[string]rpcHealth, len(endpoints))
	for _, endpoint := range endpoints {
		validities[endpoint.URL] = rpcHealth{
			Endpoint: endpoint,
			points:   100,
			valid:    true,
		}
	}
	return validities
}

func collectBasicData(
	validities *map[string]rpcHealth,
	declaredChainID uint64,
	retryAttempts int,
	retryDelay time.Duration,
	timeout time.Duration,
) []uint64 {
	heights := make([]uint64, 0, len(*validities))
	for url, endpoint := range *validities {
		c := NewRPCClient(retryAttempts, retryDelay, timeout)
		chainID, err := c.QueryChainID(url)
		if err != nil {
			log.Printf("failed to query chain id for %s: %v", url, err)
			endpoint.valid = false
			(*validities)[url] = endpoint
			continue
		}
		if chainID != declaredChainID {
			log.Printf("endpoint %s serves chain %d, config declares %d, marked invalid",
				url, chainID, declaredChainID)
			endpoint.valid = false
			(*validities)[url] = endpoint
			continue
		}
		height, err := c.QueryBlockNumber(url)
		if err != nil {
			log.Printf("failed to query block number for %s: %v", url, err)
			endpoint.valid = false
			(*validities)[url] = endpoint
			continue
		}
		endpoint.chainID = &chainID
		endpoint.height = &height
		(*validities)[url] = endpoint

		heights = append(heights, height)
	}
	return heights
}

func filterByHeight(validities *map[string]rpcHealth, maxHeight uint64) {
	for url, endpoint := range *validities {
		if !endpoint.valid || endpoint.height == nil {
			continue
		}
		if *endpoint.height+maxHeightLag < maxHeight {
			endpoint.points -= mismatchPenalty
			log.Printf("endpoint %s is behind by more than %d blocks, minus %d points",
				url, maxHeightLag, mismatchPenalty)
			(*validities)[url] = endpoint
		}
	}
}

func sampleHeights(maxHeight uint64) []uint64 {
	window := uint64(sampleWindow)
	if maxHeight < window {
		window = maxHeight
	}
	if window == 0 {
		return nil
	}

	blocks := make([]uint64, sampleCount)
	for i := range blocks {
		randomInt, err := rand.Int(rand.Reader, big.NewInt(int64(window)))
		if err != nil {
			log.Fatalf("Failed to generate random integer: %v", err)
		}
		blocks[i] = maxHeight - randomInt.Uint64()
	}
	return blocks
}

func fetchBlockHeaders(
	validities *map[string]rpcHealth,
	retryAttempts int,
	retryDelay time.Duration,
	timeout time.Duration,
	heights []uint64,
) {
	for url, endpoint := range *validities {
		if !endpoint.valid {
			continue
		}

		wg := sync.WaitGroup{}
		wg.Add(len(heights))
		mu := sync.Mutex{}
		headers := make(map[uint64]*BlockHeader)
		for _, height := range heights {
			go func(height uint64) {
				defer wg.Done()
				c := NewRPCClient(retryAttempts, retryDelay, timeout)
				header, err := c.QueryBlockHeader(url, height)
				if err != nil {
					log.Printf("failed to get block header for %s at height %d: %v", url, height, err)
					mu.Lock()
					headers[height] = nil
					mu.Unlock()
					return
				}
				mu.Lock()
				headers[height] = header
				mu.Unlock()
			}(height)
		}
		wg.Wait()
		endpoint.headers = headers
		(*validities)[url] = endpoint
	}
}

type headerTracker struct {
	hash             map[string]int
	parentHash       map[string]int
	stateRoot        map[string]int
	transactionsRoot map[string]int
	receiptsRoot     map[string]int
	miner            map[string]int
	timestamp        map[string]int
}

type headerConsensus struct {
	hash             string
	parentHash       string
	stateRoot        string
	transactionsRoot string
	receiptsRoot     string
	miner            string
	timestamp        string
}

func validateHeaders(validities *map[string]rpcHealth) {
	// Build tracker for consensus - need to initialize maps for each height
	tracker := make(map[uint64]headerTracker)
	for _, endpoint := range *validities {
		if !endpoint.valid {
			continue
		}
		for height, header := range endpoint.headers {
			if header == nil {
				continue
			}
			if _, exists := tracker[height]; !exists {
				tracker[height] = headerTracker{
					hash:             make(map[string]int),
					parentHash:       make(map[string]int),
					stateRoot:        make(map[string]int),
					transactionsRoot: make(map[string]int),
					receiptsRoot:     make(map[string]int),
					miner:            make(map[string]int),
					timestamp:        make(map[string]int),
				}
			}

			t := tracker[height]
			t.hash[header.Hash]++
			t.parentHash[header.ParentHash]++
			t.stateRoot[header.StateRoot]++
			t.transactionsRoot[header.TransactionsRoot]++
			t.receiptsRoot[header.ReceiptsRoot]++
			t.miner[header.Miner]++
			t.timestamp[header.Timestamp]++
			tracker[height] = t
		}
	}

	// Build consensus map from tracker data
	consensusMap := make(map[uint64]headerConsensus)
	for height, t := range tracker {
		consensusMap[height] = headerConsensus{
			hash:             getMostCommonValue(t.hash),
			parentHash:       getMostCommonValue(t.parentHash),
			stateRoot:        getMostCommonValue(t.stateRoot),
			transactionsRoot: getMostCommonValue(t.transactionsRoot),
			receiptsRoot:     getMostCommonValue(t.receiptsRoot),
			miner:            getMostCommonValue(t.miner),
			timestamp:        getMostCommonValue(t.timestamp),
		}
	}

	// Validate each endpoint against the consensus
	for url, endpoint := range *validities {
		if !endpoint.valid {
			continue
		}

		for height, header := range endpoint.headers {
			if header == nil {
				endpoint.points -= mismatchPenalty
				log.Printf("Missing block header for %s at height %d, minus %d points",
					url, height, mismatchPenalty)
				continue
			}

			consensus, exists := consensusMap[height]
			if !exists {
				continue
			}

			checks := []struct {
				name     string
				expected string
				actual   string
			}{
				{"hash", consensus.hash, header.Hash},
				{"parentHash", consensus.parentHash, header.ParentHash},
				{"stateRoot", consensus.stateRoot, header.StateRoot},
				{"transactionsRoot", consensus.transactionsRoot, header.TransactionsRoot},
				{"receiptsRoot", consensus.receiptsRoot, header.ReceiptsRoot},
				{"miner", consensus.miner, header.Miner},
				{"timestamp", consensus.timestamp, header.Timestamp},
			}

			for _, check := range checks {
				if check.expected != check.actual {
					endpoint.points -= mismatchPenalty
					log.Printf("Mismatch found for %s at height %d (%s): expected %v, got %v, minus %d points",
						url, height, check.name, check.expected, check.actual, mismatchPenalty)
				}
			}
		}

		// Mark as invalid if points dropped below threshold
		if endpoint.points < validThreshold {
			endpoint.valid = false
			log.Printf("Endpoint %s marked invalid due to low points: %d", url, endpoint.points)
		}

		(*validities)[url] = endpoint
	}
}

type sidecarHealth struct {
	Status string `json:"status"`
}

/*
ProbeSidecars checks each quote API URL of a sidecar venue and returns the
set of healthy URLs. A sidecar is healthy when its healthcheck endpoint
answers 200 with a healthy status.

Parameters:
- venueID - the venue the URLs belong to, used only for logging
- urls - the quote API base URLs to check
- timeout - the timeout for each request
*/
func ProbeSidecars(venueID string, urls []string, timeout time.Duration) map[string]bool {
	client := &http.Client{Timeout: timeout}
	healthy := make(map[string]bool)

	for _, url := range urls {
		resp, err := client.Get(strings.TrimSuffix(url, "/") + "/healthcheck")
		if err != nil {
			log.Printf("venue %s: quote API %s is not reachable: %v", venueID, url, err)
			continue
		}

		var health sidecarHealth
		decodeErr := json.NewDecoder(resp.Body).Decode(&health)
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			log.Printf("venue %s: quote API %s returned status %d", venueID, url, resp.StatusCode)
			continue
		}
		if decodeErr != nil {
			log.Printf("venue %s: quote API %s returned an unreadable healthcheck: %v", venueID, url, decodeErr)
			continue
		}
		if health.Status != "healthy" {
			log.Printf("venue %s: quote API %s reports status %q", venueID, url, health.Status)
			continue
		}

		healthy[url] = true
	}

	return healthy
}
