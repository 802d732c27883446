package pricecache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/assert"

	"github.com/prism-dex/router-engine/router/pricecache"
)

const (
	keyUSDC = "1:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	keyWETH = "1:0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func TestCache_PutGet(t *testing.T) {
	cache := pricecache.New(2 * time.Second)

	_, ok := cache.Get(keyUSDC, keyWETH)
	assert.False(t, ok)

	// 1 USDC buys 0.0005 WETH.
	cache.Put(keyUSDC, keyWETH, decimal.RequireFromString("0.0005"))

	price, ok := cache.Get(keyUSDC, keyWETH)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("0.0005")))

	stats := cache.Stats()
	assert.Equal(t, stats.Entries, uint64(1))
	assert.Equal(t, stats.Hits, uint64(1))
	assert.Equal(t, stats.Misses, uint64(1))

	// if all goes well
	t.Logf("Put/Get test passed")
}

func TestCache_InvertedLookup(t *testing.T) {
	cache := pricecache.New(2 * time.Second)

	cache.Put(keyUSDC, keyWETH, decimal.RequireFromString("0.0005"))

	// The reverse direction is served from the same slot.
	price, ok := cache.Get(keyWETH, keyUSDC)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(2000)))

	// One slot, not two.
	assert.Equal(t, cache.Stats().Entries, uint64(1))

	// Writing the reverse direction overwrites the same slot.
	cache.Put(keyWETH, keyUSDC, decimal.NewFromInt(2500))
	price, ok = cache.Get(keyUSDC, keyWETH)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("0.0004")))
	assert.Equal(t, cache.Stats().Entries, uint64(1))

	// if all goes well
	t.Logf("Inverted lookup test passed")
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := pricecache.New(2 * time.Second)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	cache.Put(keyUSDC, keyWETH, decimal.RequireFromString("0.0005"))

	// Fresh inside the TTL.
	now = now.Add(1999 * time.Millisecond)
	_, ok := cache.Get(keyUSDC, keyWETH)
	assert.True(t, ok)

	// Stale once the TTL has fully elapsed.
	now = now.Add(time.Millisecond)
	_, ok = cache.Get(keyUSDC, keyWETH)
	assert.False(t, ok)

	// A fresh write revives the slot.
	cache.Put(keyUSDC, keyWETH, decimal.RequireFromString("0.00051"))
	_, ok = cache.Get(keyUSDC, keyWETH)
	assert.True(t, ok)

	// if all goes well
	t.Logf("TTL expiry test passed")
}

func TestCache_Purge(t *testing.T) {
	cache := pricecache.New(2 * time.Second)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	cache.Put(keyUSDC, keyWETH, decimal.RequireFromString("0.0005"))
	cache.Put(keyUSDC, "1:0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", decimal.RequireFromString("0.000016"))

	now = now.Add(3 * time.Second)
	cache.Put(keyUSDC, "1:0x6b175474e89094c44da98b954eedeac495271d0f", decimal.NewFromInt(1))

	removed := cache.Purge()
	assert.Equal(t, removed, 2)
	assert.Equal(t, cache.Stats().Entries, uint64(1))

	// if all goes well
	t.Logf("Purge test passed")
}

func TestCache_LastWriterWins(t *testing.T) {
	cache := pricecache.New(10 * time.Second)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Put(keyUSDC, keyWETH, decimal.New(int64(n), -4))
				cache.Get(keyUSDC, keyWETH)
			}
		}(i)
	}
	wg.Wait()

	// Whatever raced last, the slot holds one of the written values.
	price, ok := cache.Get(keyUSDC, keyWETH)
	assert.True(t, ok)
	matched := false
	for i := 1; i <= 8; i++ {
		if price.Equal(decimal.New(int64(i), -4)) {
			matched = true
		}
	}
	assert.True(t, matched)
	assert.Equal(t, cache.Stats().Entries, uint64(1))

	// if all goes well
	t.Logf("Last writer wins test passed")
}

func TestCache_ManyPairs(t *testing.T) {
	cache := pricecache.New(time.Minute)

	for i := 0; i < 50; i++ {
		cache.Put(keyUSDC, fmt.Sprintf("1:0x%040x", i), decimal.NewFromInt(int64(i+1)))
	}
	assert.Equal(t, cache.Stats().Entries, uint64(50))

	for i := 0; i < 50; i++ {
		price, ok := cache.Get(keyUSDC, fmt.Sprintf("1:0x%040x", i))
		assert.True(t, ok)
		assert.True(t, price.Equal(decimal.NewFromInt(int64(i+1))))
	}

	// if all goes well
	t.Logf("Many pairs test passed")
}
