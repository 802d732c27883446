// Package models defines the wire types of the router HTTP API.
package models

import (
	"github.com/prism-dex/router-engine/router/engine"
)

// QuoteRequest is the POST /v1/quote body. It extends the engine request
// with execution fields: when Execute is set the best route is ABI-encoded
// for Recipient with the given unix deadline.
type QuoteRequest struct {
	ChainID  uint64   `json:"chain_id"`
	TokenIn  string   `json:"token_in"`
	TokenOut string   `json:"token_out"`
	AmountIn string   `json:"amount_in"`
	Slippage float64  `json:"slippage"`
	Venues   []string `json:"exchanges,omitempty"`

	Execute   bool   `json:"execute,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Deadline  uint64 `json:"deadline,omitempty"`
}

// Engine converts the API request to the optimizer request.
func (r QuoteRequest) Engine() engine.QuoteRequest {
	return engine.QuoteRequest{
		ChainID:  r.ChainID,
		TokenIn:  r.TokenIn,
		TokenOut: r.TokenOut,
		AmountIn: r.AmountIn,
		Slippage: r.Slippage,
		Venues:   r.Venues,
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// TokenListResponse is the GET /v1/tokens reply.
type TokenListResponse struct {
	ChainID uint64         `json:"chain_id"`
	Tokens  []engine.Token `json:"tokens"`
}

// VenueListResponse is the GET /v1/venues reply.
type VenueListResponse struct {
	ChainID uint64         `json:"chain_id"`
	Venues  []engine.Venue `json:"venues"`
}

// HealthResponse is the GET /healthcheck reply.
type HealthResponse struct {
	Status  string   `json:"status"`
	Service string   `json:"service"`
	Chains  []uint64 `json:"chains,omitempty"`
}
