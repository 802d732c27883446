package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prism-dex/router-engine/router/engine"
	"github.com/prism-dex/router-engine/router/models"
)

// RouterServer holds the handler dependencies for the quote API.
type RouterServer struct {
	router   *engine.Router
	registry *engine.Registry
	chains   []uint64
}

// NewRouterServer creates the handler set over an optimizer and its
// registry. chains lists the chain IDs the service routes on, for the
// health endpoint.
func NewRouterServer(router *engine.Router, registry *engine.Registry, chains []uint64) *RouterServer {
	return &RouterServer{
		router:   router,
		registry: registry,
		chains:   chains,
	}
}

// Quote handles POST /v1/quote.
//
// Returns:
// - 400: malformed body or config-level problems (unknown token, bad amount)
// - 422: searchable request with no acceptable route (liquidity, impact)
// - 502: every venue upstream failed
// - 200: ranked routes, with calldata when execute was requested
func (s *RouterServer) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON: "+err.Error())
		return
	}

	response, err := s.router.FindRoutes(r.Context(), req.Engine())
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}

	if req.Execute {
		calldata, err := engine.BuildSwapCalldata(&response.Routes[0], req.Recipient, req.Deadline)
		if err != nil {
			status, code := statusForError(err)
			writeError(w, status, code, err.Error())
			return
		}
		response.TxCalldata = calldata
	}

	writeJSON(w, http.StatusOK, response)
}

// Tokens handles GET /v1/tokens?chain_id=N.
func (s *RouterServer) Tokens(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.TokenListResponse{
		ChainID: chainID,
		Tokens:  s.registry.TokensOnChain(chainID),
	})
}

// Venues handles GET /v1/venues?chain_id=N.
func (s *RouterServer) Venues(w http.ResponseWriter, r *http.Request) {
	chainID, ok := chainIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.VenueListResponse{
		ChainID: chainID,
		Venues:  s.registry.VenuesOnChain(chainID),
	})
}

// Healthcheck handles GET /healthcheck.
func (s *RouterServer) Healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Service: "prism-router",
		Chains:  s.chains,
	})
}

func chainIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("chain_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chain_id query parameter is required")
		return 0, false
	}
	chainID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chain", "chain_id must be a positive integer")
		return 0, false
	}
	return chainID, true
}

// statusForError maps optimizer sentinels to HTTP statuses. Config problems
// are the caller's fault, liquidity and impact are valid requests the market
// cannot serve, chain errors are upstream failures.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrConfig):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, engine.ErrInsufficientLiquidity):
		return http.StatusUnprocessableEntity, "insufficient_liquidity"
	case errors.Is(err, engine.ErrPriceImpactTooHigh):
		return http.StatusUnprocessableEntity, "price_impact_too_high"
	case errors.Is(err, engine.ErrChain):
		return http.StatusBadGateway, "chain_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Code: code})
}
