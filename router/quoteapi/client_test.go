package quoteapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/prism-dex/router-engine/router/quoteapi"
)

const (
	fixtureTokenIn  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	fixtureTokenOut = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func testFailoverConfig() quoteapi.FailoverConfig {
	return quoteapi.FailoverConfig{
		MaxRetries:          1,
		RetryDelay:          time.Millisecond,
		HealthCheckInterval: time.Hour,
		Timeout:             2 * time.Second,
	}
}

// quoteBackend fakes a venue quote API. healthy gates both the healthcheck
// and the quote path; quoteCalls counts only quote requests served while
// healthy.
func quoteBackend(healthy *atomic.Bool, quoteCalls *atomic.Int64, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthcheck" {
			if healthy.Load() {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		quoteCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestClient_GetQuote(t *testing.T) {
	var sawQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount_in":"1000000","amount_out":"998500","price_impact":0.0012,"effective_fee_bps":30}`))
	}))
	defer srv.Close()

	client := quoteapi.NewClientWithFailover(srv.URL, nil, testFailoverConfig())
	defer client.Close()

	quote, err := client.GetQuote(context.Background(), fixtureTokenIn, fixtureTokenOut, "1000000")
	assert.NoError(t, err)
	assert.Equal(t, quote.AmountIn, "1000000")
	assert.Equal(t, quote.AmountOut, "998500")
	assert.Equal(t, quote.PriceImpact, 0.0012)
	assert.Equal(t, quote.EffectiveFee, uint32(30))
	assert.Nil(t, quote.FeeTier)

	query, _ := sawQuery.Load().(url.Values)
	assert.Equal(t, query.Get("token_in"), fixtureTokenIn)
	assert.Equal(t, query.Get("token_out"), fixtureTokenOut)
	assert.Equal(t, query.Get("amount"), "1000000")

	// if all goes well
	t.Logf("Get quote test passed")
}

func TestClient_GetReserves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reserve_in":"100000000000","reserve_out":"50000000000000000000","fee_tier":500}`))
	}))
	defer srv.Close()

	client := quoteapi.NewClientWithFailover(srv.URL, nil, testFailoverConfig())
	defer client.Close()

	reserves, err := client.GetReserves(context.Background(), fixtureTokenIn, fixtureTokenOut)
	assert.NoError(t, err)
	assert.Equal(t, reserves.ReserveIn, "100000000000")
	assert.Equal(t, reserves.ReserveOut, "50000000000000000000")
	assert.NotNil(t, reserves.FeeTier)
	assert.Equal(t, *reserves.FeeTier, uint32(500))

	// if all goes well
	t.Logf("Get reserves test passed")
}

func TestClient_FailoverOnPrimaryFailure(t *testing.T) {
	var primaryCalls atomic.Int64
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthcheck" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	var backupHealthy atomic.Bool
	backupHealthy.Store(true)
	var backupCalls atomic.Int64
	backup := httptest.NewServer(quoteBackend(&backupHealthy, &backupCalls,
		`{"amount_in":"500","amount_out":"497","price_impact":0.002,"effective_fee_bps":25}`))
	defer backup.Close()

	client := quoteapi.NewClientWithFailover(primary.URL, []string{backup.URL}, testFailoverConfig())
	defer client.Close()

	quote, err := client.GetQuote(context.Background(), fixtureTokenIn, fixtureTokenOut, "500")
	assert.NoError(t, err)
	assert.Equal(t, quote.AmountOut, "497")

	// Initial attempt plus one retry on the failing primary, then one
	// request on the backup.
	assert.Equal(t, primaryCalls.Load(), int64(2))
	assert.Equal(t, backupCalls.Load(), int64(1))

	// if all goes well
	t.Logf("Failover test passed")
}

func TestClient_PrimaryRestoration(t *testing.T) {
	quoteBody := `{"amount_in":"10","amount_out":"9","price_impact":0.001,"effective_fee_bps":30}`

	var primaryHealthy atomic.Bool
	var primaryCalls atomic.Int64
	primary := httptest.NewServer(quoteBackend(&primaryHealthy, &primaryCalls, quoteBody))
	defer primary.Close()

	var backupHealthy atomic.Bool
	backupHealthy.Store(true)
	var backupCalls atomic.Int64
	backup := httptest.NewServer(quoteBackend(&backupHealthy, &backupCalls, quoteBody))
	defer backup.Close()

	cfg := testFailoverConfig()
	cfg.HealthCheckInterval = 20 * time.Millisecond
	client := quoteapi.NewClientWithFailover(primary.URL, []string{backup.URL}, cfg)
	defer client.Close()

	// Drive the client onto the backup while the primary is down.
	_, err := client.GetQuote(context.Background(), fixtureTokenIn, fixtureTokenOut, "10")
	assert.NoError(t, err)
	assert.Equal(t, primaryCalls.Load(), int64(0))
	assert.Equal(t, backupCalls.Load(), int64(1))

	// Once the primary recovers, the background health check should route
	// requests back to it.
	primaryHealthy.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for primaryCalls.Load() == 0 && time.Now().Before(deadline) {
		_, _ = client.GetQuote(context.Background(), fixtureTokenIn, fixtureTokenOut, "10")
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, primaryCalls.Load() > 0)

	// if all goes well
	t.Logf("Primary restoration test passed")
}

func TestClient_HTTPErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown pair", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testFailoverConfig()
	cfg.MaxRetries = 0
	client := quoteapi.NewClientWithFailover(srv.URL, nil, cfg)
	defer client.Close()

	_, err := client.GetQuote(context.Background(), fixtureTokenIn, fixtureTokenOut, "1")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "HTTP 404"))

	// if all goes well
	t.Logf("HTTP error test passed")
}
