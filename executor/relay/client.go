// Package relay submits transaction bundles to MEV relays over JSON-RPC
// with failover support. A client keeps one primary relay and an ordered
// list of backups, switching away from an unreachable primary and restoring
// it once a background health check sees it recover.
//
// Failover covers transport failures only. A relay that answers and rejects
// the bundle is authoritative: the rejection is surfaced immediately and the
// bundle is never resubmitted.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/prism-dex/router-engine/executor/models"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "relay").Logger()
}

// FailoverConfig controls retry and failover behavior.
type FailoverConfig struct {
	// MaxRetries is how many times a transport failure is retried on the
	// current relay before failing over.
	MaxRetries int
	// RetryDelay is the initial delay between retries; it doubles with each
	// retry.
	RetryDelay time.Duration
	// HealthCheckInterval is how often the primary relay is probed while a
	// backup is active.
	HealthCheckInterval time.Duration
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// DefaultFailoverConfig returns sensible defaults.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          200 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             5 * time.Second,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sendBundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

type sendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

// Client is an MEV relay client with endpoint failover.
type Client struct {
	httpClient *http.Client
	primaryURL string
	backupURLs []string
	currentURL string
	mu         sync.RWMutex

	healthChecker *healthChecker
	config        FailoverConfig
}

type healthChecker struct {
	client    *Client
	stopCh    chan struct{}
	stoppedCh chan struct{}
	isRunning bool
	mu        sync.Mutex
}

// NewClient creates a client for a single relay.
func NewClient(relayURL string) *Client {
	return NewClientWithFailover(relayURL, nil, DefaultFailoverConfig())
}

// NewClientWithFailover creates a client with backup relays. Invalid backup
// URLs are skipped with a warning.
func NewClientWithFailover(primaryURL string, backupURLs []string, config FailoverConfig) *Client {
	if _, err := url.Parse(primaryURL); err != nil {
		log.Fatal().Err(err).Str("url", primaryURL).Msg("Failed to parse primary relay URL")
		return nil
	}

	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if _, err := url.Parse(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup relay URL, skipping")
			continue
		}
		validBackups = append(validBackups, u)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		primaryURL: primaryURL,
		backupURLs: validBackups,
		currentURL: primaryURL,
		config:     config,
	}

	if len(validBackups) > 0 {
		client.startHealthChecker()
	}

	log.Info().
		Str("primary", primaryURL).
		Int("backups", len(validBackups)).
		Msg("Relay client initialized")
	return client
}

// SendBundle submits a bundle of 0x-prefixed transactions targeting
// blockNumber and returns the hash the relay assigned to it. A rejection by
// the relay wraps ErrExecution and is final: the bundle must not be
// resubmitted.
func (c *Client) SendBundle(ctx context.Context, txs []string, blockNumber uint64) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("%w: cannot submit an empty bundle", models.ErrExecution)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_sendBundle",
		Params: []any{sendBundleParams{
			Txs:         txs,
			BlockNumber: hexutil.EncodeUint64(blockNumber),
		}},
		ID: 1,
	}

	body, err := c.doRequestWithFailover(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: relay unreachable: %w", models.ErrExecution, err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to decode relay response: %w", models.ErrExecution, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: relay rejected bundle: %s (code %d)",
			models.ErrExecution, resp.Error.Message, resp.Error.Code)
	}

	var result sendBundleResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("%w: failed to decode bundle hash: %w", models.ErrExecution, err)
	}
	if result.BundleHash == "" {
		return "", fmt.Errorf("%w: relay returned no bundle hash", models.ErrExecution)
	}
	return result.BundleHash, nil
}

// Close stops the health checker.
func (c *Client) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

func (c *Client) startHealthChecker() {
	c.healthChecker = &healthChecker{
		client:    c,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	c.healthChecker.start()
}

func (h *healthChecker) start() {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	go func() {
		defer close(h.stoppedCh)
		ticker := time.NewTicker(h.client.config.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.checkAndRestore()
			}
		}
	}()
}

func (h *healthChecker) stop() {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = false
	h.mu.Unlock()

	close(h.stopCh)
	<-h.stoppedCh
}

// checkAndRestore moves the client back to the primary relay once it is
// healthy again.
func (h *healthChecker) checkAndRestore() {
	h.client.mu.RLock()
	currentURL := h.client.currentURL
	primaryURL := h.client.primaryURL
	h.client.mu.RUnlock()

	if currentURL == primaryURL {
		return
	}

	if h.client.isEndpointHealthy(primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = primaryURL
		h.client.mu.Unlock()
		log.Info().Str("url", primaryURL).Msg("Restored primary relay")
	}
}

func (c *Client) isEndpointHealthy(endpoint string) bool {
	resp, err := c.httpClient.Get(endpoint + "/healthcheck")
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Relay health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) getCurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// failover switches to the next healthy relay, starting after the current
// one and wrapping around through the primary.
func (c *Client) failover() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	allURLs := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := -1
	for i, u := range allURLs {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}

	for i := 1; i <= len(allURLs); i++ {
		nextURL := allURLs[(currentIdx+i)%len(allURLs)]
		if nextURL == c.currentURL {
			continue
		}
		if c.isEndpointHealthy(nextURL) {
			c.currentURL = nextURL
			log.Info().Str("url", nextURL).Msg("Failover to relay")
			return true
		}
	}

	log.Warn().Str("url", c.currentURL).Msg("All relays unhealthy, staying on current")
	return false
}

// doRequestWithFailover performs a JSON-RPC POST with retry on the current
// relay, then a single attempt on a failover relay. Only transport failures
// reach the retry path; a decodable response body is returned to the caller
// whatever it contains.
func (c *Client) doRequestWithFailover(ctx context.Context, req rpcRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay request: %w", err)
	}

	var lastErr error
	retryDelay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		body, err := c.doPost(ctx, c.getCurrentURL(), payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}

	if len(c.backupURLs) > 0 && c.failover() {
		body, err := c.doPost(ctx, c.getCurrentURL(), payload)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}

	return nil, lastErr
}

func (c *Client) doPost(ctx context.Context, fullURL string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
