package sessionstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	p, err := NewRedis(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, mr
}

func TestRedisGetSetExDelete(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestRedis(t)

	_, ok, err := p.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.SetEx(ctx, "k1", []byte("v1"), 0))
	v, ok, err := p.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))

	require.NoError(t, p.Delete(ctx, "k1"))
	_, ok, err = p.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSetExExpiry(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestRedis(t)

	require.NoError(t, p.SetEx(ctx, "ttl", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := p.Get(ctx, "ttl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKeysScan(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestRedis(t)

	require.NoError(t, p.SetEx(ctx, "grid/sbx1/sess-a/x", []byte("1"), 0))
	require.NoError(t, p.SetEx(ctx, "grid/sbx1/sess-b/y", []byte("2"), 0))
	require.NoError(t, p.SetEx(ctx, "grid/sbx2/sess-a/z", []byte("3"), 0))

	keys, err := p.Keys(ctx, "grid/sbx1/*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRedisSetOperations(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestRedis(t)

	require.NoError(t, p.SAdd(ctx, "idx", "a", "b", "c"))
	members, err := p.SMembers(ctx, "idx")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, members)

	require.NoError(t, p.SRem(ctx, "idx", "b"))
	members, err = p.SMembers(ctx, "idx")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, members)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url://###")
	assert.Error(t, err)
}
