package probe

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prism-dex/router-engine/config_manager/input"
)

func makeHeader(fields map[string]string) *BlockHeader {
	return &BlockHeader{
		Hash:             fields["hash"],
		ParentHash:       fields["parentHash"],
		StateRoot:        fields["stateRoot"],
		TransactionsRoot: fields["transactionsRoot"],
		ReceiptsRoot:     fields["receiptsRoot"],
		Miner:            fields["miner"],
		Timestamp:        fields["timestamp"],
	}
}

func baseHeaderFields() map[string]string {
	return map[string]string{
		"hash":             "h",
		"parentHash":       "ph",
		"stateRoot":        "sr",
		"transactionsRoot": "tr",
		"receiptsRoot":     "rr",
		"miner":            "m",
		"timestamp":        "ts",
	}
}

func makeRPCHealth(url string, pts int, valid bool, headers map[uint64]*BlockHeader) rpcHealth {
	return rpcHealth{
		Endpoint: input.APIEndpoint{URL: url},
		points:   pts,
		valid:    valid,
		headers:  headers,
	}
}

func TestValidateHeaders_PenalizesMissingHeader(t *testing.T) {
	h := uint64(100)

	a := makeRPCHealth("https://a", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})
	b := makeRPCHealth("https://b", 100, true, map[uint64]*BlockHeader{
		h: nil,
	})

	m := map[string]rpcHealth{"a": a, "b": b}

	validateHeaders(&m)

	if m["a"].points != 100 {
		t.Fatalf("endpoint a points = %d, want 100", m["a"].points)
	}
	if got := m["b"].points; got != 90 {
		t.Fatalf("endpoint b points = %d, want 90 (missing header penalty)", got)
	}
	if !m["b"].valid {
		t.Fatalf("endpoint b should remain valid with 90 points")
	}
}

func TestValidateHeaders_PenalizesMismatchedFields(t *testing.T) {
	h := uint64(101)

	// Endpoint A has the consensus values
	a := makeRPCHealth("https://a", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})
	// Endpoint B mismatches stateRoot and miner
	fieldsB := baseHeaderFields()
	fieldsB["stateRoot"] = "sr-mismatch"
	fieldsB["miner"] = "m-mismatch"
	b := makeRPCHealth("https://b", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(fieldsB),
	})

	m := map[string]rpcHealth{"a": a, "b": b}
	validateHeaders(&m)

	if m["a"].points != 100 {
		t.Fatalf("endpoint a points = %d, want 100", m["a"].points)
	}
	if got := m["b"].points; got != 80 {
		t.Fatalf("endpoint b points = %d, want 80 (two mismatches)", got)
	}
}

func TestValidateHeaders_MarksInvalidBelowThreshold(t *testing.T) {
	h := uint64(102)

	// Two agreeing endpoints set the consensus against c
	a := makeRPCHealth("https://a", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})
	b := makeRPCHealth("https://b", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})

	// Endpoint C mismatches 5 fields so it drops to 50 and becomes invalid
	fieldsC := baseHeaderFields()
	fieldsC["hash"] = "x1"
	fieldsC["parentHash"] = "x2"
	fieldsC["stateRoot"] = "x3"
	fieldsC["receiptsRoot"] = "x4"
	fieldsC["miner"] = "x5"
	c := makeRPCHealth("https://c", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(fieldsC),
	})

	m := map[string]rpcHealth{"a": a, "b": b, "c": c}
	validateHeaders(&m)

	if m["c"].points >= validThreshold || m["c"].valid {
		t.Fatalf("endpoint c should be invalid with points < %d, got points=%d valid=%v",
			validThreshold, m["c"].points, m["c"].valid)
	}
}

func TestValidateHeaders_SkipsAlreadyInvalidEndpoints(t *testing.T) {
	h := uint64(103)

	// Valid endpoint to form consensus
	a := makeRPCHealth("https://a", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})

	// Invalid endpoint should be skipped entirely and remain unchanged
	fieldsBad := baseHeaderFields()
	fieldsBad["hash"] = "other"
	bad := makeRPCHealth("https://bad", 55, false, map[uint64]*BlockHeader{
		h: makeHeader(fieldsBad),
	})

	m := map[string]rpcHealth{"a": a, "bad": bad}
	validateHeaders(&m)

	if m["bad"].points != 55 {
		t.Fatalf("invalid endpoint should be skipped; points changed to %d", m["bad"].points)
	}
	if m["bad"].valid {
		t.Fatalf("invalid endpoint should remain invalid")
	}
}

func TestValidateHeaders_ConsensusUsesMostCommon(t *testing.T) {
	h := uint64(104)

	// Two endpoints agree on the hash, one disagrees
	e1 := makeRPCHealth("https://e1", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})
	e2 := makeRPCHealth("https://e2", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(baseHeaderFields()),
	})
	fields3 := baseHeaderFields()
	fields3["hash"] = "fork"
	e3 := makeRPCHealth("https://e3", 100, true, map[uint64]*BlockHeader{
		h: makeHeader(fields3),
	})

	m := map[string]rpcHealth{"e1": e1, "e2": e2, "e3": e3}
	validateHeaders(&m)

	if m["e1"].points != 100 || m["e2"].points != 100 {
		t.Fatalf("endpoints e1/e2 should match consensus and keep 100 points, got %d/%d",
			m["e1"].points, m["e2"].points)
	}
	if got := m["e3"].points; got != 90 {
		t.Fatalf("endpoint e3 should be penalized 10 for the hash mismatch, got %d", got)
	}
}

func TestFilterByHeight(t *testing.T) {
	maxHeight := uint64(10_000)

	current := uint64(10_000)
	slightlyBehind := uint64(10_000 - maxHeightLag)
	farBehind := uint64(10_000 - maxHeightLag - 1)

	a := makeRPCHealth("https://a", 100, true, nil)
	a.height = &current
	b := makeRPCHealth("https://b", 100, true, nil)
	b.height = &slightlyBehind
	c := makeRPCHealth("https://c", 100, true, nil)
	c.height = &farBehind

	m := map[string]rpcHealth{"a": a, "b": b, "c": c}
	filterByHeight(&m, maxHeight)

	if m["a"].points != 100 || m["b"].points != 100 {
		t.Fatalf("endpoints within the lag window should keep 100 points, got %d/%d",
			m["a"].points, m["b"].points)
	}
	if got := m["c"].points; got != 90 {
		t.Fatalf("laggard should be penalized 10 points, got %d", got)
	}
}

func TestSampleHeights(t *testing.T) {
	maxHeight := uint64(20_000_000)

	blocks := sampleHeights(maxHeight)
	if len(blocks) != sampleCount {
		t.Fatalf("expected %d sampled heights, got %d", sampleCount, len(blocks))
	}
	for _, b := range blocks {
		if b > maxHeight || b <= maxHeight-sampleWindow {
			t.Errorf("sampled height %d outside window (%d, %d]", b, maxHeight-sampleWindow, maxHeight)
		}
	}

	// A chain shorter than the window samples from what exists
	blocks = sampleHeights(10)
	for _, b := range blocks {
		if b > 10 {
			t.Errorf("sampled height %d beyond chain tip 10", b)
		}
	}

	if got := sampleHeights(0); got != nil {
		t.Errorf("expected no samples for an empty chain, got %v", got)
	}
}

func TestGetMostCommonValue(t *testing.T) {
	counts := map[string]int{"a": 3, "b": 1, "c": 2}
	if got := getMostCommonValue(counts); got != "a" {
		t.Errorf("getMostCommonValue() = %q, want a", got)
	}
	if got := getMostCommonValue(map[string]int{}); got != "" {
		t.Errorf("getMostCommonValue(empty) = %q, want zero value", got)
	}
}

func TestGetMaxHeight(t *testing.T) {
	if got := getMaxHeight([]uint64{5, 42, 17}); got != 42 {
		t.Errorf("getMaxHeight() = %d, want 42", got)
	}
	if got := getMaxHeight(nil); got != 0 {
		t.Errorf("getMaxHeight(nil) = %d, want 0", got)
	}
}

func TestProbeSidecars(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	}))
	defer healthy.Close()

	degraded := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"starting"}`)
	}))
	defer degraded.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	urls := []string{healthy.URL + "/", degraded.URL, down.URL, "http://127.0.0.1:1"}
	result := ProbeSidecars("odos", urls, 2*time.Second)

	if len(result) != 1 {
		t.Fatalf("expected 1 healthy sidecar, got %d: %v", len(result), result)
	}
	if !result[healthy.URL+"/"] {
		t.Errorf("healthy sidecar missing from result: %v", result)
	}
}
