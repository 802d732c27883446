package engine

import (
	"fmt"
)

// MarketPair declares that a venue makes a market for a token pair, one
// entry per configured pool. BuildGraph compiles these into the edge set
// the optimizer searches.
type MarketPair struct {
	VenueID  string
	ChainID  uint64
	TokenA   string
	TokenB   string
	FeeTiers []uint32
}

// Edge is one directed graph edge: swapping From into To on one venue at
// one fee tier. A pair with N fee tiers contributes N parallel edges per
// direction.
type Edge struct {
	VenueID string
	FeeTier *uint32
	From    string // token key
	To      string // token key
}

// Key identifies the edge for pruning and de-duplication.
func (e Edge) Key() string {
	tier := "-"
	if e.FeeTier != nil {
		tier = fmt.Sprintf("%d", *e.FeeTier)
	}
	return fmt.Sprintf("%s|%s|%s->%s", e.VenueID, tier, e.From, e.To)
}

// RouteGraph is the per-chain token graph the optimizer searches. Nodes are
// registered tokens, edges are (venue, fee tier) pairs. Built once from the
// market config and read-only afterwards, so traversal needs no locking.
type RouteGraph struct {
	chainID   uint64
	adjacency map[string][]Edge // token key -> outgoing edges
	tokens    map[string]Token  // token key -> token
	edgeCount int
}

// NewRouteGraph creates an empty graph for one chain.
func NewRouteGraph(chainID uint64) *RouteGraph {
	return &RouteGraph{
		chainID:   chainID,
		adjacency: make(map[string][]Edge),
		tokens:    make(map[string]Token),
	}
}

// BuildGraph compiles the market pairs for this graph's chain into directed
// edges. Pairs on other chains are skipped; pairs referencing unregistered
// tokens or venues fail the build.
func (g *RouteGraph) BuildGraph(pairs []MarketPair, registry *Registry) error {
	for _, pair := range pairs {
		if pair.ChainID != g.chainID {
			continue
		}

		tokenA, ok := registry.Token(pair.ChainID, pair.TokenA)
		if !ok {
			return fmt.Errorf("%w: market pair references unregistered token %s on chain %d",
				ErrConfig, pair.TokenA, pair.ChainID)
		}
		tokenB, ok := registry.Token(pair.ChainID, pair.TokenB)
		if !ok {
			return fmt.Errorf("%w: market pair references unregistered token %s on chain %d",
				ErrConfig, pair.TokenB, pair.ChainID)
		}
		if _, ok := registry.Venue(pair.VenueID); !ok {
			return fmt.Errorf("%w: market pair references unregistered venue %s",
				ErrConfig, pair.VenueID)
		}

		g.tokens[tokenA.Key()] = tokenA
		g.tokens[tokenB.Key()] = tokenB

		tiers := pair.FeeTiers
		if len(tiers) == 0 {
			g.addEdgePair(pair.VenueID, nil, tokenA.Key(), tokenB.Key())
			continue
		}
		for _, tier := range tiers {
			t := tier
			g.addEdgePair(pair.VenueID, &t, tokenA.Key(), tokenB.Key())
		}
	}
	return nil
}

func (g *RouteGraph) addEdgePair(venueID string, feeTier *uint32, keyA, keyB string) {
	g.adjacency[keyA] = append(g.adjacency[keyA], Edge{
		VenueID: venueID, FeeTier: feeTier, From: keyA, To: keyB,
	})
	g.adjacency[keyB] = append(g.adjacency[keyB], Edge{
		VenueID: venueID, FeeTier: feeTier, From: keyB, To: keyA,
	})
	g.edgeCount += 2
}

// EdgesFrom returns the outgoing edges of a token node. The returned slice
// is owned by the graph; callers must not mutate it.
func (g *RouteGraph) EdgesFrom(tokenKey string) []Edge {
	return g.adjacency[tokenKey]
}

// HasToken reports whether the token appears in the graph at all.
func (g *RouteGraph) HasToken(tokenKey string) bool {
	_, ok := g.adjacency[tokenKey]
	return ok
}

// TokenByKey resolves a token key back to its record.
func (g *RouteGraph) TokenByKey(tokenKey string) (Token, bool) {
	token, ok := g.tokens[tokenKey]
	return token, ok
}

// ChainID returns the chain this graph was built for.
func (g *RouteGraph) ChainID() uint64 {
	return g.chainID
}

// Size returns node and edge counts, for startup logging.
func (g *RouteGraph) Size() (nodes, edges int) {
	return len(g.adjacency), g.edgeCount
}
