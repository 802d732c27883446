package models

import "time"

// BundleRequest is the POST /v1/bundle body. Tx is the signed transaction
// as 0x-prefixed hex; TargetBlock is the block the relay should aim for.
type BundleRequest struct {
	Tx          string `json:"tx"`
	TargetBlock uint64 `json:"target_block"`
}

// BundleResponse is the reply to a successful bundle submission.
type BundleResponse struct {
	BundleID        string `json:"bundle_id"`
	RelayBundleHash string `json:"relay_bundle_hash"`
	TxCount         int    `json:"tx_count"`
	TargetBlock     uint64 `json:"target_block"`
}

// BundleStatusResponse is the GET /v1/bundle/{id} reply.
type BundleStatusResponse struct {
	BundleID        string    `json:"bundle_id"`
	State           string    `json:"state"`
	TxCount         int       `json:"tx_count"`
	TargetBlock     uint64    `json:"target_block"`
	RelayBundleHash string    `json:"relay_bundle_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SwapRequest is the POST /v1/swaps body. SecretHash is the 0x-prefixed
// SHA-256 digest of the claimant's secret; Amount is a decimal string in
// the source asset's base units.
type SwapRequest struct {
	SourceChain string    `json:"source_chain"`
	DestChain   string    `json:"dest_chain"`
	SecretHash  string    `json:"secret_hash"`
	Amount      string    `json:"amount"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Expiration  time.Time `json:"expiration"`
}

// SwapResponse mirrors a swap record. Every swap endpoint replies with it.
// Secret is set once the swap is claimed, so the counterparty watcher can
// unlock the far side.
type SwapResponse struct {
	SwapID        string    `json:"swap_id"`
	State         string    `json:"state"`
	SourceChain   string    `json:"source_chain"`
	DestChain     string    `json:"dest_chain"`
	BridgeAddress string    `json:"bridge_address"`
	SecretHash    string    `json:"secret_hash"`
	Secret        string    `json:"secret,omitempty"`
	Amount        string    `json:"amount"`
	Sender        string    `json:"sender"`
	Recipient     string    `json:"recipient"`
	Expiration    time.Time `json:"expiration"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ClaimRequest is the POST /v1/swaps/{id}/claim body. Secret is the
// 0x-prefixed preimage of the swap's secret hash.
type ClaimRequest struct {
	Secret string `json:"secret"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the GET /healthcheck reply.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
