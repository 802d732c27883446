package engine

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
)

// shardCount fixes the number of lock stripes in the registry. Power of two
// so the shard index is a cheap mask.
const shardCount = 32

type tokenShard struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

type venueShard struct {
	mu       sync.RWMutex
	venues   map[string]Venue
	adapters map[string]VenueClient
}

// Registry owns the Token and Venue records and the venue -> adapter
// binding. Storage is striped across fixed shards keyed by FNV-1a of the
// record key, so concurrent registrations of different keys never block
// each other and a read never blocks on a write to a different key.
type Registry struct {
	tokenShards [shardCount]*tokenShard
	venueShards [shardCount]*venueShard
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.tokenShards {
		r.tokenShards[i] = &tokenShard{tokens: make(map[string]Token)}
		r.venueShards[i] = &venueShard{
			venues:   make(map[string]Venue),
			adapters: make(map[string]VenueClient),
		}
	}
	return r
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() & (shardCount - 1))
}

// RegisterToken adds a token. Registering the identical record again is
// idempotent; registering a conflicting record for the same identity fails
// with ErrConfig.
func (r *Registry) RegisterToken(token Token) error {
	if token.Address == "" {
		return fmt.Errorf("%w: token address is empty", ErrConfig)
	}
	key := token.Key()
	shard := r.tokenShards[shardIndex(key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.tokens[key]; ok {
		if existing.Symbol != token.Symbol || existing.Decimals != token.Decimals {
			return fmt.Errorf("%w: token %s already registered with different metadata", ErrConfig, key)
		}
		return nil
	}
	shard.tokens[key] = token
	return nil
}

// RegisterVenue adds a venue together with its adapter. Duplicate venue IDs
// fail with ErrConfig.
func (r *Registry) RegisterVenue(venue Venue, adapter VenueClient) error {
	if venue.ID == "" {
		return fmt.Errorf("%w: venue id is empty", ErrConfig)
	}
	if adapter == nil {
		return fmt.Errorf("%w: venue %s has no adapter", ErrConfig, venue.ID)
	}
	shard := r.venueShards[shardIndex(venue.ID)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.venues[venue.ID]; ok {
		return fmt.Errorf("%w: venue %s already registered", ErrConfig, venue.ID)
	}
	shard.venues[venue.ID] = venue
	shard.adapters[venue.ID] = adapter
	return nil
}

// Token looks up a token by chain and address.
func (r *Registry) Token(chainID uint64, address string) (Token, bool) {
	key := TokenKey(chainID, address)
	shard := r.tokenShards[shardIndex(key)]

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	token, ok := shard.tokens[key]
	return token, ok
}

// Venue looks up a venue descriptor by ID.
func (r *Registry) Venue(id string) (Venue, bool) {
	shard := r.venueShards[shardIndex(id)]

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	venue, ok := shard.venues[id]
	return venue, ok
}

// Adapter looks up the adapter bound to a venue ID.
func (r *Registry) Adapter(id string) (VenueClient, bool) {
	shard := r.venueShards[shardIndex(id)]

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	adapter, ok := shard.adapters[id]
	return adapter, ok
}

// TokensOnChain returns all tokens registered on a chain, ordered by
// address for deterministic iteration.
func (r *Registry) TokensOnChain(chainID uint64) []Token {
	var out []Token
	for _, shard := range r.tokenShards {
		shard.mu.RLock()
		for _, token := range shard.tokens {
			if token.ChainID == chainID {
				out = append(out, token)
			}
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// VenuesOnChain returns all venues registered on a chain, ordered by ID.
func (r *Registry) VenuesOnChain(chainID uint64) []Venue {
	var out []Venue
	for _, shard := range r.venueShards {
		shard.mu.RLock()
		for _, venue := range shard.venues {
			if venue.ChainID == chainID {
				out = append(out, venue)
			}
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CloseAdapters closes every registered adapter. Called on shutdown.
func (r *Registry) CloseAdapters() {
	for _, shard := range r.venueShards {
		shard.mu.Lock()
		for _, adapter := range shard.adapters {
			adapter.Close()
		}
		shard.mu.Unlock()
	}
}
