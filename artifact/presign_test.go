package artifact

import (
	"context"
	"testing"

	"github.com/evalgo/gridstore/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignExistingArtifact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{Data: []byte("x"), Mime: "text/plain", Summary: "s"})
	require.NoError(t, err)

	url, err := s.PresignShort(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

// TestPresignMissingArtifactNotFound matches spec.md §9's directive that
// presigning a nonexistent object raises ArtifactNotFound for every
// adapter.
func TestPresignMissingArtifactNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Presign(ctx, "does-not-exist", 900)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindArtifactNotFound))
}

func TestPresignUploadThenRegister(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	artifactID, url, err := s.PresignUpload(ctx, PresignUploadInput{
		SessionID: "s1",
		Filename:  "f.bin",
		Mime:      "application/octet-stream",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	// metadata isn't finalized until RegisterUploaded is called
	_, err = s.Metadata(ctx, artifactID)
	require.Error(t, err)

	require.NoError(t, s.RegisterUploaded(ctx, artifactID, 1024, "deadbeef"))

	meta, err := s.Metadata(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), meta.Bytes)
	assert.Equal(t, "f.bin", meta.Filename)
}
