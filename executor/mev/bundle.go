package mev

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prism-dex/router-engine/executor/models"
)

// BundleState tracks a bundle through its relay lifecycle.
type BundleState string

const (
	// StateCreated means the bundle is built but not yet sent to a relay.
	StateCreated BundleState = "created"
	// StateSubmitted means a relay accepted the bundle.
	StateSubmitted BundleState = "submitted"
	// StateRejected means the relay refused the bundle. Terminal; the
	// executor never resubmits a rejected bundle.
	StateRejected BundleState = "rejected"
)

// Bundle is an obfuscated transaction set bound for a relay. Txs hold the
// 0x-prefixed hex encodings in submission order; exactly one of them is the
// real transaction and the store does not know which.
type Bundle struct {
	ID              string
	Txs             []string
	TargetBlock     uint64
	State           BundleState
	RelayBundleHash string
	RejectReason    string
	CreatedAt       time.Time
}

// BuildBundle wraps an obfuscated transaction set into a Bundle aimed at
// targetBlock.
func BuildBundle(txs [][]byte, targetBlock uint64) *Bundle {
	encoded := make([]string, len(txs))
	for i, tx := range txs {
		encoded[i] = hexutil.Encode(tx)
	}
	return &Bundle{
		ID:          uuid.NewString(),
		Txs:         encoded,
		TargetBlock: targetBlock,
		State:       StateCreated,
		CreatedAt:   time.Now().UTC(),
	}
}

// Store keeps submitted bundles in memory for status queries and cleanup.
type Store struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle
	now     func() time.Time
}

// NewStore returns an empty bundle store.
func NewStore() *Store {
	return &Store{
		bundles: make(map[string]*Bundle),
		now:     time.Now,
	}
}

// SetClock replaces the store's time source. Tests use it to age bundles
// without sleeping.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add records a bundle. Re-adding an ID overwrites the previous entry.
func (s *Store) Add(b *Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.ID] = b
}

// Get returns a copy of the bundle with the given ID.
func (s *Store) Get(id string) (Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[id]
	if !ok {
		return Bundle{}, false
	}
	return *b, true
}

// MarkSubmitted moves a bundle to StateSubmitted and records the hash the
// relay assigned to it.
func (s *Store) MarkSubmitted(id, relayBundleHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok {
		return fmt.Errorf("%w: unknown bundle %s", models.ErrConfig, id)
	}
	b.State = StateSubmitted
	b.RelayBundleHash = relayBundleHash
	return nil
}

// MarkRejected moves a bundle to StateRejected with the relay's reason.
func (s *Store) MarkRejected(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[id]
	if !ok {
		return fmt.Errorf("%w: unknown bundle %s", models.ErrConfig, id)
	}
	b.State = StateRejected
	b.RejectReason = reason
	return nil
}

// CleanupExpired drops bundles older than maxAge and reports how many were
// removed. Target blocks pass within seconds, so aged-out entries are only
// of forensic interest.
func (s *Store) CleanupExpired(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, b := range s.bundles {
		if b.CreatedAt.Before(cutoff) {
			delete(s.bundles, id)
			removed++
		}
	}
	return removed
}

// StoreStats is a point-in-time census of the store by state.
type StoreStats struct {
	Created   int
	Submitted int
	Rejected  int
	Total     int
}

// Stats counts the stored bundles by state.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := StoreStats{Total: len(s.bundles)}
	for _, b := range s.bundles {
		switch b.State {
		case StateCreated:
			stats.Created++
		case StateSubmitted:
			stats.Submitted++
		case StateRejected:
			stats.Rejected++
		}
	}
	return stats
}

// RegisterStoreMetrics exposes the bundle store census on reg.
func RegisterStoreMetrics(reg prometheus.Registerer, store *Store) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "executor_bundles",
			Help: "Bundles held in the store, all states.",
		}, func() float64 {
			return float64(store.Stats().Total)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "executor_bundles_submitted",
			Help: "Stored bundles accepted by a relay.",
		}, func() float64 {
			return float64(store.Stats().Submitted)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "executor_bundles_rejected",
			Help: "Stored bundles refused by a relay.",
		}, func() float64 {
			return float64(store.Stats().Rejected)
		}),
	)
}
