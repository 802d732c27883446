package mev_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/prism-dex/router-engine/executor/mev"
	"github.com/prism-dex/router-engine/executor/models"
)

func TestBuildBundle(t *testing.T) {
	txs := [][]byte{{0x02, 0x01}, {0x02, 0x02}, {0x02, 0x03}}

	bundle := mev.BuildBundle(txs, 19_000_000)

	assert.True(t, bundle.ID != "")
	assert.Equal(t, bundle.State, mev.StateCreated)
	assert.Equal(t, bundle.TargetBlock, uint64(19_000_000))
	assert.Equal(t, len(bundle.Txs), 3)
	for _, tx := range bundle.Txs {
		assert.True(t, strings.HasPrefix(tx, "0x02"))
	}
	assert.Equal(t, bundle.Txs[2], "0x0203")

	// if all goes well
	t.Logf("Build bundle test passed")
}

func TestStore_Lifecycle(t *testing.T) {
	store := mev.NewStore()

	bundle := mev.BuildBundle([][]byte{{0x02, 0xaa}}, 100)
	store.Add(bundle)

	got, ok := store.Get(bundle.ID)
	assert.True(t, ok)
	assert.Equal(t, got.State, mev.StateCreated)

	assert.NoError(t, store.MarkSubmitted(bundle.ID, "0xfeed"))
	got, ok = store.Get(bundle.ID)
	assert.True(t, ok)
	assert.Equal(t, got.State, mev.StateSubmitted)
	assert.Equal(t, got.RelayBundleHash, "0xfeed")

	rejected := mev.BuildBundle([][]byte{{0x02, 0xbb}}, 101)
	store.Add(rejected)
	assert.NoError(t, store.MarkRejected(rejected.ID, "bundle reverted"))
	got, ok = store.Get(rejected.ID)
	assert.True(t, ok)
	assert.Equal(t, got.State, mev.StateRejected)
	assert.Equal(t, got.RejectReason, "bundle reverted")

	stats := store.Stats()
	assert.Equal(t, stats.Total, 2)
	assert.Equal(t, stats.Submitted, 1)
	assert.Equal(t, stats.Rejected, 1)
	assert.Equal(t, stats.Created, 0)

	// if all goes well
	t.Logf("Store lifecycle test passed")
}

func TestStore_UnknownBundle(t *testing.T) {
	store := mev.NewStore()

	_, ok := store.Get("missing")
	assert.False(t, ok)

	err := store.MarkSubmitted("missing", "0x1")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfig))

	err = store.MarkRejected("missing", "nope")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfig))

	// if all goes well
	t.Logf("Unknown bundle test passed")
}

func TestStore_CleanupExpired(t *testing.T) {
	store := mev.NewStore()

	// BuildBundle stamps wall time, so the fake clock runs relative to it.
	now := time.Now().UTC()
	store.SetClock(func() time.Time { return now })

	old1 := mev.BuildBundle([][]byte{{0x02, 0x01}}, 100)
	old2 := mev.BuildBundle([][]byte{{0x02, 0x02}}, 101)
	store.Add(old1)
	store.Add(old2)

	now = now.Add(2 * time.Hour)
	fresh := mev.BuildBundle([][]byte{{0x02, 0x03}}, 102)
	fresh.CreatedAt = now
	store.Add(fresh)

	removed := store.CleanupExpired(time.Hour)
	assert.Equal(t, removed, 2)

	_, ok := store.Get(old1.ID)
	assert.False(t, ok)
	_, ok = store.Get(fresh.ID)
	assert.True(t, ok)
	assert.Equal(t, store.Stats().Total, 1)

	// if all goes well
	t.Logf("Cleanup test passed")
}
