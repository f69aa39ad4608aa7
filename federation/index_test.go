package federation

import (
	"context"
	"testing"
	"time"

	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex() *Index {
	return NewIndex(sessionstore.NewMemory(), time.Hour)
}

func sampleLocation(id string) types.FederationLocation {
	return types.FederationLocation{
		ArtifactID: id,
		SandboxID:  "sbx-1",
		SessionID:  "sess-1",
		GridKey:    "grid/sbx-1/sess-1/" + id,
		Size:       128,
		Mime:       "text/plain",
		StoredAt:   time.Unix(0, 0),
	}
}

func TestIndexRegisterAndLocate(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	require.NoError(t, idx.Register(ctx, sampleLocation("art1")))

	loc, found, err := idx.Locate(ctx, "art1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "sbx-1", loc.SandboxID)
	assert.Equal(t, "sess-1", loc.SessionID)
}

func TestIndexLocateMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	_, found, err := idx.Locate(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexUnregisterRemovesAllIndexes(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	require.NoError(t, idx.Register(ctx, sampleLocation("art1")))

	ok, err := idx.Unregister(ctx, "art1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := idx.Locate(ctx, "art1")
	require.NoError(t, err)
	assert.False(t, found)

	sessionLocs, err := idx.SessionLocations(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, sessionLocs)
}

func TestIndexUnregisterUnknownReturnsFalse(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	ok, err := idx.Unregister(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexSessionLocationsAcrossSandboxes(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	loc1 := sampleLocation("art1")
	loc2 := sampleLocation("art2")
	loc2.SandboxID = "sbx-2"

	require.NoError(t, idx.Register(ctx, loc1))
	require.NoError(t, idx.Register(ctx, loc2))

	locs, err := idx.SessionLocations(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestIndexSandboxArtifactsRespectsLimit(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, idx.Register(ctx, sampleLocation(id)))
	}

	locs, err := idx.SandboxArtifacts(ctx, "sbx-1", 2)
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestIndexStatsCountsRegistrationsAndUnregistrations(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	require.NoError(t, idx.Register(ctx, sampleLocation("art1")))
	require.NoError(t, idx.Register(ctx, sampleLocation("art2")))
	_, err := idx.Unregister(ctx, "art1")
	require.NoError(t, err)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.ArtifactsRegistered)
	assert.EqualValues(t, 1, stats.ArtifactsUnregistered)
	assert.Equal(t, 1, stats.TotalArtifacts)
}

func TestDefaultTTLUsedWhenNonPositive(t *testing.T) {
	idx := NewIndex(sessionstore.NewMemory(), 0)
	assert.Equal(t, DefaultTTL, idx.ttl)
}
