package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"github.com/prism-dex/router-engine/executor/htlc"
	"github.com/prism-dex/router-engine/executor/mev"
	"github.com/prism-dex/router-engine/executor/models"
	"github.com/prism-dex/router-engine/executor/relay"
)

// ExecutorServer holds the handler dependencies for the execution API.
type ExecutorServer struct {
	obfuscator  *mev.Obfuscator
	store       *mev.Store
	relay       *relay.Client
	coordinator *htlc.Coordinator
}

// NewExecutorServer creates the handler set over the bundle pipeline and
// the swap coordinator.
func NewExecutorServer(obfuscator *mev.Obfuscator, store *mev.Store, relayClient *relay.Client, coordinator *htlc.Coordinator) *ExecutorServer {
	return &ExecutorServer{
		obfuscator:  obfuscator,
		store:       store,
		relay:       relayClient,
		coordinator: coordinator,
	}
}

// SubmitBundle handles POST /v1/bundle.
//
// The transaction is obfuscated into a decoy bundle and sent to the relay
// exactly once. A relay rejection is recorded and returned as 502; the
// bundle is never resubmitted.
func (s *ExecutorServer) SubmitBundle(w http.ResponseWriter, r *http.Request) {
	var req models.BundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON: "+err.Error())
		return
	}

	tx, err := hexutil.Decode(req.Tx)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tx", "tx must be 0x-prefixed hex: "+err.Error())
		return
	}
	if len(tx) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_tx", "tx must not be empty")
		return
	}
	if req.TargetBlock == 0 {
		writeError(w, http.StatusBadRequest, "invalid_target_block", "target_block is required")
		return
	}

	obfuscated, err := s.obfuscator.Obfuscate(tx)
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}

	bundle := mev.BuildBundle(obfuscated, req.TargetBlock)
	s.store.Add(bundle)

	relayHash, err := s.relay.SendBundle(r.Context(), bundle.Txs, bundle.TargetBlock)
	if err != nil {
		if markErr := s.store.MarkRejected(bundle.ID, err.Error()); markErr != nil {
			Logger.Error().Err(markErr).Str("bundle", bundle.ID).Msg("Failed to record rejection")
		}
		writeError(w, http.StatusBadGateway, "relay_error", err.Error())
		return
	}

	if err := s.store.MarkSubmitted(bundle.ID, relayHash); err != nil {
		Logger.Error().Err(err).Str("bundle", bundle.ID).Msg("Failed to record submission")
	}

	writeJSON(w, http.StatusOK, models.BundleResponse{
		BundleID:        bundle.ID,
		RelayBundleHash: relayHash,
		TxCount:         len(bundle.Txs),
		TargetBlock:     bundle.TargetBlock,
	})
}

// BundleStatus handles GET /v1/bundle/{id}.
func (s *ExecutorServer) BundleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bundle, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown bundle "+id)
		return
	}
	writeJSON(w, http.StatusOK, models.BundleStatusResponse{
		BundleID:        bundle.ID,
		State:           string(bundle.State),
		TxCount:         len(bundle.Txs),
		TargetBlock:     bundle.TargetBlock,
		RelayBundleHash: bundle.RelayBundleHash,
		CreatedAt:       bundle.CreatedAt,
	})
}

// InitiateSwap handles POST /v1/swaps.
func (s *ExecutorServer) InitiateSwap(w http.ResponseWriter, r *http.Request) {
	var req models.SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON: "+err.Error())
		return
	}

	hash, err := htlc.ParseHash(req.SecretHash)
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a decimal string in base units")
		return
	}

	rec, err := s.coordinator.Initiate(r.Context(), htlc.InitiateParams{
		SourceChain: req.SourceChain,
		DestChain:   req.DestChain,
		SecretHash:  hash,
		Amount:      amount,
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		Expiration:  req.Expiration,
	})
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, swapResponse(rec))
}

// SwapStatus handles GET /v1/swaps/{id}.
func (s *ExecutorServer) SwapStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.coordinator.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown swap "+id)
		return
	}
	writeJSON(w, http.StatusOK, swapResponse(rec))
}

// ClaimSwap handles POST /v1/swaps/{id}/claim.
func (s *ExecutorServer) ClaimSwap(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON: "+err.Error())
		return
	}

	secret, err := htlc.ParseSecret(req.Secret)
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}

	rec, err := s.coordinator.Claim(r.Context(), chi.URLParam(r, "id"), secret)
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, swapResponse(rec))
}

// RefundSwap handles POST /v1/swaps/{id}/refund.
func (s *ExecutorServer) RefundSwap(w http.ResponseWriter, r *http.Request) {
	rec, err := s.coordinator.Refund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, swapResponse(rec))
}

// Healthcheck handles GET /healthcheck.
func (s *ExecutorServer) Healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Service: "prism-executor",
	})
}

func swapResponse(rec htlc.SwapRecord) models.SwapResponse {
	return models.SwapResponse{
		SwapID:        rec.ID,
		State:         string(rec.State),
		SourceChain:   rec.SourceChain,
		DestChain:     rec.DestChain,
		BridgeAddress: rec.BridgeAddress,
		SecretHash:    hexutil.Encode(rec.SecretHash[:]),
		Secret:        rec.Secret,
		Amount:        rec.Amount.String(),
		Sender:        rec.Sender,
		Recipient:     rec.Recipient,
		Expiration:    rec.Expiration,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// statusForError maps execution sentinels to HTTP statuses. Config problems
// are the caller's fault, execution conflicts are valid requests the state
// machine refuses, chain errors are upstream failures.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrConfig):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, models.ErrExecution):
		return http.StatusUnprocessableEntity, "execution_failed"
	case errors.Is(err, models.ErrChain):
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
