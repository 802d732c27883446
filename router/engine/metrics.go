package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prism-dex/router-engine/router/pricecache"
)

// Metrics holds the optimizer's prometheus instruments. A nil *Metrics is
// valid and records nothing, which keeps tests quiet.
type Metrics struct {
	quotes   *prometheus.CounterVec
	duration prometheus.Histogram
	hops     prometheus.Histogram
	probed   prometheus.Counter
	pruned   prometheus.Counter
}

// NewMetrics builds and registers the optimizer instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_quotes_total",
			Help: "Quote requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_quote_duration_seconds",
			Help:    "End to end quote latency.",
			Buckets: prometheus.DefBuckets,
		}),
		hops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_best_route_hops",
			Help:    "Hop count of the top ranked route.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		probed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_edges_probed_total",
			Help: "Edges submitted to the probe phase.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_edges_pruned_total",
			Help: "Edges dropped during probing.",
		}),
	}
	reg.MustRegister(m.quotes, m.duration, m.hops, m.probed, m.pruned)
	return m
}

// RegisterCacheMetrics exposes the price cache counters on reg.
func RegisterCacheMetrics(reg prometheus.Registerer, cache *pricecache.Cache) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "router_price_cache_entries",
			Help: "Live entries in the price cache, expired included.",
		}, func() float64 {
			return float64(cache.Stats().Entries)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "router_price_cache_hits_total",
			Help: "Price cache lookups served from a fresh entry.",
		}, func() float64 {
			return float64(cache.Stats().Hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "router_price_cache_misses_total",
			Help: "Price cache lookups that fell through to a venue.",
		}, func() float64 {
			return float64(cache.Stats().Misses)
		}),
	)
}

func (m *Metrics) quoteFinished(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) edgesProbed(probed, pruned int) {
	if m == nil {
		return
	}
	m.probed.Add(float64(probed))
	m.pruned.Add(float64(pruned))
}

func (m *Metrics) routeRanked(best *SwapRoute) {
	if m == nil {
		return
	}
	m.hops.Observe(float64(best.Hops()))
}
