package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	chainIDMethod     = "eth_chainId"
	blockNumberMethod = "eth_blockNumber"
	blockByNumber     = "eth_getBlockByNumber"
)

// RPCClient is a minimal EVM JSON-RPC client with retry support, used only
// for endpoint probing during config generation.
type RPCClient struct {
	Client        *http.Client
	RetryAttempts int
	RetryDelay    time.Duration
}

func NewRPCClient(retryAttempts int, retryDelay time.Duration, timeout time.Duration) *RPCClient {
	return &RPCClient{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return fmt.Errorf("redirect not allowed (count=%d) to %s", len(via), req.URL.String())
			},
		},
		RetryAttempts: retryAttempts,
		RetryDelay:    retryDelay,
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

// BlockHeader carries the consensus-relevant fields of an EVM block header.
type BlockHeader struct {
	Hash             string `json:"hash"`
	ParentHash       string `json:"parentHash"`
	StateRoot        string `json:"stateRoot"`
	TransactionsRoot string `json:"transactionsRoot"`
	ReceiptsRoot     string `json:"receiptsRoot"`
	Miner            string `json:"miner"`
	Number           string `json:"number"`
	Timestamp        string `json:"timestamp"`
}

func (c *RPCClient) performRequest(url, method string, params []any, result any) error {
	requestBody, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request body for method %s: %w", method, err)
	}

	// perform the request
	resp, err := c.Client.Post(url, "application/json", bytes.NewBuffer(requestBody))
	if err != nil {
		retryAttempt := 0
		for retryAttempt < c.RetryAttempts {
			resp, err = c.Client.Post(url, "application/json", bytes.NewBuffer(requestBody))
			if err == nil {
				break
			}
			retryAttempt++
			time.Sleep(c.RetryDelay)
		}
		if err != nil {
			return fmt.Errorf("failed to perform request %s method %s: %w", url, method, err)
		}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error from %s method %s: %d %s", url, method, envelope.Error.Code, envelope.Error.Message)
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// QueryChainID returns the chain ID reported by the endpoint.
func (c *RPCClient) QueryChainID(url string) (uint64, error) {
	var hexID string
	if err := c.performRequest(url, chainIDMethod, nil, &hexID); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(hexID)
}

// QueryBlockNumber returns the latest block height reported by the endpoint.
func (c *RPCClient) QueryBlockNumber(url string) (uint64, error) {
	var hexNumber string
	if err := c.performRequest(url, blockNumberMethod, nil, &hexNumber); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(hexNumber)
}

// QueryBlockHeader returns the header fields at the given height.
func (c *RPCClient) QueryBlockHeader(url string, height uint64) (*BlockHeader, error) {
	var header BlockHeader
	if err := c.performRequest(url, blockByNumber, []any{hexutil.EncodeUint64(height), false}, &header); err != nil {
		return nil, err
	}
	if header.Hash == "" {
		return nil, fmt.Errorf("endpoint %s returned no block at height %d", url, height)
	}
	return &header, nil
}
