package artifact

import (
	"context"
	"testing"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		SandboxID: "sbx-test",
		Bucket:    "artifacts",
		Storage:   objectstore.NewMemory(),
		Sessions:  sessionstore.NewMemory(),
	})
	require.NoError(t, err)
	return s
}

// TestStoreRetrieveRoundTrip is scenario S1 from spec.md §8: blob
// store/retrieve with memory storage + memory sessions.
func TestStoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{
		Data:    []byte("hello"),
		Mime:    "text/plain",
		Summary: "s",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	data, err := s.Retrieve(ctx, id, "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	meta, err := s.Metadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Bytes)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b982", meta.SHA256)
}

// TestCrossSessionRetrieveDenied is scenario S2.
func TestCrossSessionRetrieveDenied(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{
		Data:      []byte("x"),
		Mime:      "text/plain",
		Summary:   "s",
		SessionID: "s1",
		Scope:     types.ScopeSession,
	})
	require.NoError(t, err)

	_, err = s.Retrieve(ctx, id, "s2", "")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	data, err := s.Retrieve(ctx, id, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestUserScopeRequiresUserID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Store(ctx, StoreInput{
		Data:    []byte("x"),
		Mime:    "text/plain",
		Summary: "s",
		Scope:   types.ScopeUser,
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindMissingUserID))
}

func TestUserScopeIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{
		Data:    []byte("u-data"),
		Mime:    "text/plain",
		Summary: "s",
		Scope:   types.ScopeUser,
		UserID:  "alice",
	})
	require.NoError(t, err)

	_, err = s.Retrieve(ctx, id, "", "bob")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	data, err := s.Retrieve(ctx, id, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("u-data"), data)
}

func TestSandboxScopeAlwaysReadableButNotPubliclyDeletable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{
		Data:    []byte("shared"),
		Mime:    "text/plain",
		Summary: "s",
		Scope:   types.ScopeSandbox,
	})
	require.NoError(t, err)

	data, err := s.Retrieve(ctx, id, "anyone", "anyone")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), data)

	_, err = s.Delete(ctx, id, "")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindAccessDenied))

	ok, err := s.DeleteAdmin(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestDeleteMakesArtifactGone is testable property 5.
func TestDeleteMakesArtifactGone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Store(ctx, StoreInput{Data: []byte("x"), Mime: "text/plain", Summary: "s"})
	require.NoError(t, err)

	ok, err := s.Delete(ctx, id, "")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Retrieve(ctx, id, "", "")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindArtifactNotFound))
}

func TestDeleteAbsentArtifactIsFalseNotError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Delete(ctx, "nonexistent", "")
	require.NoError(t, err)
	assert.False(t, ok)
}
