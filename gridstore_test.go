package gridstore

import (
	"context"
	"testing"
	"time"

	"github.com/evalgo/gridstore/artifact"
	"github.com/evalgo/gridstore/config"
	"github.com/evalgo/gridstore/federation"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/sessionstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(sandboxID string) config.StoreConfig {
	return config.StoreConfig{
		SandboxID:         sandboxID,
		StorageProvider:   config.ProviderMemory,
		SessionProvider:   config.SessionProviderMemory,
		Bucket:            "artifacts",
		MaxRetries:        config.DefaultMaxRetries,
		DefaultTTLSeconds: config.DefaultTTLSeconds,
		FederationEnabled: true,
		FederationTTLDays: config.DefaultFederationTTLDays,
	}
}

func TestOpenWiresEveryCollaborator(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, testConfig("sbx-a"))
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store.Artifacts)
	assert.NotNil(t, store.Namespaces)
	assert.NotNil(t, store.Multipart)
	assert.NotNil(t, store.Streaming)
	assert.NotNil(t, store.Federation)
	assert.NotNil(t, store.SessionMgr)

	id, err := store.Artifacts.Store(ctx, artifact.StoreInput{
		Data:    []byte("hello"),
		Mime:    "text/plain",
		Summary: "s",
	})
	require.NoError(t, err)

	data, err := store.Artifacts.Retrieve(ctx, id, "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

// TestFederationLocateAcrossSandboxes is scenario S6 from spec.md §8: two
// sandboxes sharing one session provider (their federation metadata store)
// but owning independent storage providers. Sandbox A stores an artifact
// with federation enabled; sandbox B's own FederationIndex — a distinct
// *federation.Index instance, bound only by the shared session provider —
// must still locate it back to sandbox A.
func TestFederationLocateAcrossSandboxes(t *testing.T) {
	ctx := context.Background()
	sharedSessions := sessionstore.NewMemory()
	defer sharedSessions.Close()

	fedA := federation.NewIndex(sharedSessions, 30*24*time.Hour)
	fedB := federation.NewIndex(sharedSessions, 30*24*time.Hour)

	artifactsA, err := artifact.New(artifact.Config{
		SandboxID:         "A",
		Bucket:            "artifacts",
		Storage:           objectstore.NewMemory(),
		Sessions:          sharedSessions,
		Federation:        fedA,
		DefaultTTLSeconds: config.DefaultTTLSeconds,
		MaxRetries:        config.DefaultMaxRetries,
	})
	require.NoError(t, err)

	id, err := artifactsA.Store(ctx, artifact.StoreInput{
		Data:    []byte("federated"),
		Mime:    "text/plain",
		Summary: "s",
		Scope:   "sandbox",
	})
	require.NoError(t, err)

	loc, found, err := fedB.Locate(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "A", loc.SandboxID)
}
