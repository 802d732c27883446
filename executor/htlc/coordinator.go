package htlc

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/prism-dex/router-engine/executor/models"
)

// SwapState is a swap's position in the lifecycle. Claimed and Refunded are
// terminal and mutually exclusive; no transition leaves either.
type SwapState string

const (
	// StateInitiated means funds are locked and the swap awaits a claim or
	// refund.
	StateInitiated SwapState = "initiated"
	// StateClaimed means the claimant revealed the preimage before
	// expiration.
	StateClaimed SwapState = "claimed"
	// StateRefunded means the lock expired unclaimed and the sender took
	// the funds back.
	StateRefunded SwapState = "refunded"
)

// SwapRecord is a point-in-time copy of a swap. Coordinator methods return
// copies; mutating one has no effect on the stored swap.
type SwapRecord struct {
	ID            string
	State         SwapState
	SourceChain   string
	DestChain     string
	BridgeAddress string
	SecretHash    [SecretSize]byte
	// Secret is the revealed preimage, hex encoded. Set on claim; the
	// counterparty watcher reads it to unlock the far side.
	Secret     string
	Amount     *big.Int
	Sender     string
	Recipient  string
	Expiration time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InitiateParams carries everything needed to open a swap.
type InitiateParams struct {
	SourceChain string
	DestChain   string
	SecretHash  [SecretSize]byte
	Amount      *big.Int
	Sender      string
	Recipient   string
	Expiration  time.Time
}

// LockFunc submits the on-chain lock for a new swap. It runs before the
// record is stored; returning an error aborts the initiate and no record is
// kept.
type LockFunc func(ctx context.Context, record SwapRecord) error

type swapEntry struct {
	mu  sync.Mutex
	rec SwapRecord
}

// Coordinator runs the swap state machine over an in-memory record store.
// The store lock guards the map only; each swap carries its own lock, so
// transitions on different swaps never contend.
type Coordinator struct {
	bridges *Bridges
	mu      sync.RWMutex
	entries map[string]*swapEntry
	now     func() time.Time
	lock    LockFunc
}

// NewCoordinator returns a coordinator using the given bridge registry.
func NewCoordinator(bridges *Bridges) *Coordinator {
	return &Coordinator{
		bridges: bridges,
		entries: make(map[string]*swapEntry),
		now:     time.Now,
	}
}

// SetClock replaces the coordinator's time source. Tests use it to cross
// expiration boundaries without sleeping.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetLockFunc installs the on-chain lock submitter. Without one, initiate
// records swaps without touching a chain.
func (c *Coordinator) SetLockFunc(fn LockFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock = fn
}

func (c *Coordinator) clock() func() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Initiate opens a swap: it resolves the bridge for the chain pair, submits
// the lock, and stores the record in StateInitiated. A missing bridge is a
// configuration error; a failed lock submission is a chain error and leaves
// no record behind.
func (c *Coordinator) Initiate(ctx context.Context, params InitiateParams) (SwapRecord, error) {
	if params.SecretHash == ([SecretSize]byte{}) {
		return SwapRecord{}, fmt.Errorf("%w: swap requires a secret hash", models.ErrConfig)
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return SwapRecord{}, fmt.Errorf("%w: swap amount must be positive", models.ErrConfig)
	}

	now := c.clock()()
	if !params.Expiration.After(now) {
		return SwapRecord{}, fmt.Errorf("%w: swap expiration %s is not in the future",
			models.ErrConfig, params.Expiration.Format(time.RFC3339))
	}

	bridgeAddr, ok := c.bridges.Lookup(params.SourceChain, params.DestChain)
	if !ok {
		return SwapRecord{}, fmt.Errorf("%w: no bridge registered for %s -> %s",
			models.ErrConfig, params.SourceChain, params.DestChain)
	}

	rec := SwapRecord{
		ID:            uuid.NewString(),
		State:         StateInitiated,
		SourceChain:   params.SourceChain,
		DestChain:     params.DestChain,
		BridgeAddress: bridgeAddr,
		SecretHash:    params.SecretHash,
		Amount:        params.Amount,
		Sender:        params.Sender,
		Recipient:     params.Recipient,
		Expiration:    params.Expiration,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	c.mu.RLock()
	lock := c.lock
	c.mu.RUnlock()
	if lock != nil {
		if err := lock(ctx, rec); err != nil {
			return SwapRecord{}, fmt.Errorf("%w: lock submission failed: %w", models.ErrChain, err)
		}
	}

	c.mu.Lock()
	c.entries[rec.ID] = &swapEntry{rec: rec}
	c.mu.Unlock()
	return rec, nil
}

// Claim reveals the preimage and collects an initiated swap. The secret
// must hash to the lock and the claim must land before expiration; any
// failed check leaves the record untouched.
func (c *Coordinator) Claim(ctx context.Context, id string, secret [SecretSize]byte) (SwapRecord, error) {
	entry, err := c.entry(id)
	if err != nil {
		return SwapRecord{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.rec.State != StateInitiated {
		return SwapRecord{}, fmt.Errorf("%w: cannot claim swap %s in state %s",
			models.ErrExecution, id, entry.rec.State)
	}

	now := c.clock()()
	if !now.Before(entry.rec.Expiration) {
		return SwapRecord{}, fmt.Errorf("%w: claim window for swap %s closed at %s",
			models.ErrExecution, id, entry.rec.Expiration.Format(time.RFC3339))
	}
	if HashSecret(secret) != entry.rec.SecretHash {
		return SwapRecord{}, fmt.Errorf("%w: secret does not hash to the lock of swap %s",
			models.ErrExecution, id)
	}

	entry.rec.State = StateClaimed
	entry.rec.Secret = hexutil.Encode(secret[:])
	entry.rec.UpdatedAt = now
	return entry.rec, nil
}

// Refund returns an initiated swap's funds to the sender. Valid only once
// the expiration has passed; an early refund leaves the record untouched.
func (c *Coordinator) Refund(ctx context.Context, id string) (SwapRecord, error) {
	entry, err := c.entry(id)
	if err != nil {
		return SwapRecord{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.rec.State != StateInitiated {
		return SwapRecord{}, fmt.Errorf("%w: cannot refund swap %s in state %s",
			models.ErrExecution, id, entry.rec.State)
	}

	now := c.clock()()
	if now.Before(entry.rec.Expiration) {
		return SwapRecord{}, fmt.Errorf("%w: swap %s is refundable from %s",
			models.ErrExecution, id, entry.rec.Expiration.Format(time.RFC3339))
	}

	entry.rec.State = StateRefunded
	entry.rec.UpdatedAt = now
	return entry.rec, nil
}

// Get returns a copy of the swap with the given ID.
func (c *Coordinator) Get(id string) (SwapRecord, bool) {
	entry, err := c.entry(id)
	if err != nil {
		return SwapRecord{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.rec, true
}

func (c *Coordinator) entry(id string) (*swapEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown swap %s", models.ErrConfig, id)
	}
	return entry, nil
}

// SwapStats is a point-in-time census of the store by state.
type SwapStats struct {
	Initiated int
	Claimed   int
	Refunded  int
	Total     int
}

// Stats counts the stored swaps by state.
func (c *Coordinator) Stats() SwapStats {
	c.mu.RLock()
	entries := make([]*swapEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	stats := SwapStats{Total: len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		state := e.rec.State
		e.mu.Unlock()
		switch state {
		case StateInitiated:
			stats.Initiated++
		case StateClaimed:
			stats.Claimed++
		case StateRefunded:
			stats.Refunded++
		}
	}
	return stats
}
