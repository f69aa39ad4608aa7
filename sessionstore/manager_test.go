package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerAllocateValidateGet(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), 0)

	id, err := m.Allocate(ctx, "user-1", 60, map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ok, err := m.Validate(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "v", sess.CustomMetadata["k"])
}

func TestManagerValidateMissingSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), 0)

	ok, err := m.Validate(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerDefaultTTLApplied(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), 0)

	id, err := m.Allocate(ctx, "", 0, nil)
	require.NoError(t, err)

	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTLSeconds*time.Second), sess.ExpiresAt, 2*time.Second)
}

func TestManagerExtendNoOpIfAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), 0)
	require.NoError(t, m.Extend(ctx, "nope", 60))
}

func TestManagerExtendExtendsExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), 0)
	id, err := m.Allocate(ctx, "", 60, nil)
	require.NoError(t, err)

	before, err := m.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, m.Extend(ctx, id, 3600))
	after, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.ExpiresAt.After(before.ExpiresAt))
}

func TestManagerUpdateMetadataMerges(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), 0)
	id, err := m.Allocate(ctx, "", 60, map[string]interface{}{"a": 1})
	require.NoError(t, err)

	require.NoError(t, m.UpdateMetadata(ctx, id, map[string]interface{}{"b": 2}))
	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sess.CustomMetadata["a"])
	assert.EqualValues(t, 2, sess.CustomMetadata["b"])
}

func TestManagerCanonicalPrefix(t *testing.T) {
	m := NewManager("sbx1", NewMemory(), 0)
	assert.Equal(t, "grid/sbx1/sess-abc/", m.CanonicalPrefix("abc"))
}

func TestManagerCacheInvalidatedOnMutation(t *testing.T) {
	ctx := context.Background()
	m := NewManager("sbx1", NewMemory(), time.Minute)
	id, err := m.Allocate(ctx, "", 60, nil)
	require.NoError(t, err)

	_, err = m.Get(ctx, id) // populate cache
	require.NoError(t, err)

	require.NoError(t, m.UpdateMetadata(ctx, id, map[string]interface{}{"x": "y"}))
	sess, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "y", sess.CustomMetadata["x"])
}
