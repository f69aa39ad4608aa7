package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutGetHeadObject(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	etag, err := m.PutObject(ctx, "b1", "k1", []byte("hello"), "text/plain", map[string]string{"artifact_id": "a1"})
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	body, meta, err := m.GetObject(ctx, "b1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), meta.ContentLength)
	assert.Equal(t, "a1", meta.Metadata["artifact_id"])

	head, err := m.HeadObject(ctx, "b1", "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), head.ContentLength)
}

func TestMemoryGetObjectMissingKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _, err := m.GetObject(ctx, "b1", "missing")
	assert.True(t, errors.Is(err, ErrNoSuchKey))
}

func TestMemoryDeleteObjectIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.DeleteObject(ctx, "b1", "missing"))
}

func TestMemoryListObjectsV2PrefixAndTruncation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
		_, err := m.PutObject(ctx, "bucket", k, []byte("x"), "", nil)
		require.NoError(t, err)
	}

	res, err := m.ListObjectsV2(ctx, "bucket", "a/", 0)
	require.NoError(t, err)
	assert.Len(t, res.Contents, 3)
	assert.False(t, res.IsTruncated)

	res, err = m.ListObjectsV2(ctx, "bucket", "a/", 2)
	require.NoError(t, err)
	assert.Len(t, res.Contents, 2)
	assert.True(t, res.IsTruncated)
}

func TestMemoryCopyObject(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.PutObject(ctx, "b", "src", []byte("payload"), "text/plain", map[string]string{"m": "1"})
	require.NoError(t, err)

	_, err = m.CopyObject(ctx, "b", "src", "dst")
	require.NoError(t, err)

	body, meta, err := m.GetObject(ctx, "b", "dst")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "1", meta.Metadata["m"])
}

func TestMemoryDeleteObjectsBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _ = m.PutObject(ctx, "b", "k1", []byte("1"), "", nil)
	_, _ = m.PutObject(ctx, "b", "k2", []byte("2"), "", nil)

	res, err := m.DeleteObjects(ctx, "b", []string{"k1", "k2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, res.Deleted)

	_, _, err = m.GetObject(ctx, "b", "k1")
	assert.True(t, errors.Is(err, ErrNoSuchKey))
}

func TestMemoryMultipartRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	uploadID, err := m.CreateMultipartUpload(ctx, "b", "big-object")
	require.NoError(t, err)

	etag1, err := m.UploadPart(ctx, "b", "big-object", uploadID, 1, []byte("part-one-"))
	require.NoError(t, err)
	etag2, err := m.UploadPart(ctx, "b", "big-object", uploadID, 2, []byte("part-two"))
	require.NoError(t, err)

	_, err = m.CompleteMultipartUpload(ctx, "b", "big-object", uploadID, []CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)

	body, _, err := m.GetObject(ctx, "b", "big-object")
	require.NoError(t, err)
	assert.Equal(t, "part-one-part-two", string(body))
}

func TestMemoryAbortMultipartUpload(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	uploadID, err := m.CreateMultipartUpload(ctx, "b", "key")
	require.NoError(t, err)
	require.NoError(t, m.AbortMultipartUpload(ctx, "b", "key", uploadID))

	_, err = m.UploadPart(ctx, "b", "key", uploadID, 1, []byte("x"))
	assert.Error(t, err)
}
