package artifact

import (
	"context"
	"testing"

	"github.com/evalgo/gridstore/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCrossSessionCopyMoveWriteDenied is testable property 3 from
// spec.md §8: cross-session copy_file, move_file, and
// write_file(overwrite_artifact_id=…) all fail AccessDenied.
func TestCrossSessionCopyMoveWriteDenied(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{
		Data:      []byte("orig"),
		Mime:      "text/plain",
		Summary:   "s",
		SessionID: "s1",
	})
	require.NoError(t, err)

	_, err = s.CopyFile(ctx, id, "", "s2", nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	err = s.MoveFile(ctx, id, "new.txt", "s2")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	_, err = s.WriteFile(ctx, WriteInput{
		Content:             []byte("overwritten"),
		Filename:            "x.txt",
		Mime:                "text/plain",
		Summary:             "s",
		SessionID:           "s2",
		OverwriteArtifactID: id,
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	// Original bytes are unchanged after all the refused mutations.
	data, err := s.Retrieve(ctx, id, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), data)
}

func TestSameSessionCopyMoveSucceed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{
		Data:      []byte("orig"),
		Mime:      "text/plain",
		Summary:   "s",
		SessionID: "s1",
	})
	require.NoError(t, err)

	copyID, err := s.CopyFile(ctx, id, "copy.txt", "s1", nil)
	require.NoError(t, err)
	assert.NotEqual(t, id, copyID)

	copyData, err := s.Retrieve(ctx, copyID, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), copyData)

	err = s.MoveFile(ctx, id, "renamed.txt", "s1")
	require.NoError(t, err)
	meta, err := s.Metadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", meta.Filename)
}

func TestExtendTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{Data: []byte("x"), Mime: "text/plain", Summary: "s", TTL: 60})
	require.NoError(t, err)

	err = s.ExtendTTL(ctx, id, 30)
	require.NoError(t, err)

	meta, err := s.Metadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 90, meta.TTL)
}

func TestUpdateMetadataPatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{Data: []byte("x"), Mime: "text/plain", Summary: "orig"})
	require.NoError(t, err)

	err = s.UpdateMetadata(ctx, id, UpdateInput{Summary: "updated", Meta: map[string]interface{}{"k": "v"}})
	require.NoError(t, err)

	meta, err := s.Metadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "updated", meta.Summary)
	assert.Equal(t, "v", meta.Meta["k"])

	// object bytes are untouched by a metadata-only patch
	data, err := s.Retrieve(ctx, id, "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
