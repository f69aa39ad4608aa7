// Package federation tracks which sandbox owns which artifact, so a
// session's artifacts can be located even when several sandboxes share the
// same session/metadata backing store. It is grounded on
// original_source/src/chuk_artifacts/federation/manager.py, generalized
// from the original's "sadd if available, else JSON-encoded set" fallback
// to gridstore's sessionstore.Provider, which exposes native sets on every
// backend (memory and Redis alike), so the fallback path does not exist
// here.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/types"
)

// DefaultTTL mirrors the original's 30-day federation record lifetime.
const DefaultTTL = 30 * 24 * time.Hour

func artifactKey(artifactID string) string { return "federation:artifact:" + artifactID }
func sessionKey(sessionID string) string    { return "federation:session:" + sessionID }
func sandboxKey(sandboxID string) string    { return "federation:sandbox:" + sandboxID }

const statsKey = "federation:stats"

// Index is a cross-sandbox registry of artifact locations, backed by any
// sessionstore.Provider (memory or Redis).
type Index struct {
	provider sessionstore.Provider
	ttl      time.Duration
}

// NewIndex constructs a federation Index. ttl <= 0 uses DefaultTTL.
func NewIndex(provider sessionstore.Provider, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Index{provider: provider, ttl: ttl}
}

// Register records the location of a newly stored artifact and indexes it
// under its session and sandbox for later lookup.
func (idx *Index) Register(ctx context.Context, loc types.FederationLocation) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("federation: marshal location %q: %w", loc.ArtifactID, err)
	}
	if err := idx.provider.SetEx(ctx, artifactKey(loc.ArtifactID), data, idx.ttl); err != nil {
		return fmt.Errorf("federation: store location %q: %w", loc.ArtifactID, err)
	}
	if err := idx.provider.SAdd(ctx, sessionKey(loc.SessionID), loc.ArtifactID); err != nil {
		return fmt.Errorf("federation: index session %q: %w", loc.SessionID, err)
	}
	if err := idx.provider.SAdd(ctx, sandboxKey(loc.SandboxID), loc.ArtifactID); err != nil {
		return fmt.Errorf("federation: index sandbox %q: %w", loc.SandboxID, err)
	}
	idx.bumpStat(ctx, "artifacts_registered")
	return nil
}

// Locate returns the recorded location of an artifact, or found=false if it
// has no federation record (or the record expired).
func (idx *Index) Locate(ctx context.Context, artifactID string) (loc types.FederationLocation, found bool, err error) {
	data, ok, err := idx.provider.Get(ctx, artifactKey(artifactID))
	if err != nil {
		return types.FederationLocation{}, false, fmt.Errorf("federation: locate %q: %w", artifactID, err)
	}
	if !ok {
		return types.FederationLocation{}, false, nil
	}
	if err := json.Unmarshal(data, &loc); err != nil {
		return types.FederationLocation{}, false, fmt.Errorf("federation: decode location %q: %w", artifactID, err)
	}
	return loc, true, nil
}

// Unregister removes an artifact's federation record and its session/sandbox
// index entries. Returns false if the artifact had no record.
func (idx *Index) Unregister(ctx context.Context, artifactID string) (bool, error) {
	loc, found, err := idx.Locate(ctx, artifactID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := idx.provider.Delete(ctx, artifactKey(artifactID)); err != nil {
		return false, fmt.Errorf("federation: delete location %q: %w", artifactID, err)
	}
	if err := idx.provider.SRem(ctx, sessionKey(loc.SessionID), artifactID); err != nil {
		return false, fmt.Errorf("federation: deindex session %q: %w", loc.SessionID, err)
	}
	if err := idx.provider.SRem(ctx, sandboxKey(loc.SandboxID), artifactID); err != nil {
		return false, fmt.Errorf("federation: deindex sandbox %q: %w", loc.SandboxID, err)
	}
	idx.bumpStat(ctx, "artifacts_unregistered")
	return true, nil
}

// SessionLocations lists every artifact location registered under a
// session, across whichever sandboxes registered them.
func (idx *Index) SessionLocations(ctx context.Context, sessionID string) ([]types.FederationLocation, error) {
	ids, err := idx.provider.SMembers(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("federation: list session %q: %w", sessionID, err)
	}
	return idx.resolveAll(ctx, ids)
}

// SandboxArtifacts lists up to limit artifact locations registered under a
// sandbox. limit <= 0 means unlimited.
func (idx *Index) SandboxArtifacts(ctx context.Context, sandboxID string, limit int) ([]types.FederationLocation, error) {
	ids, err := idx.provider.SMembers(ctx, sandboxKey(sandboxID))
	if err != nil {
		return nil, fmt.Errorf("federation: list sandbox %q: %w", sandboxID, err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return idx.resolveAll(ctx, ids)
}

func (idx *Index) resolveAll(ctx context.Context, ids []string) ([]types.FederationLocation, error) {
	locs := make([]types.FederationLocation, 0, len(ids))
	for _, id := range ids {
		loc, found, err := idx.Locate(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// statsSnapshot is the JSON-on-the-wire shape of federation:stats, mirroring
// the original's freeform stats dict with the two counters it actually
// accumulates.
type statsSnapshot struct {
	ArtifactsRegistered   int64     `json:"artifacts_registered"`
	ArtifactsUnregistered int64     `json:"artifacts_unregistered"`
	CreatedAt             time.Time `json:"created_at"`
	LastUpdated           time.Time `json:"last_updated"`
}

func (idx *Index) bumpStat(ctx context.Context, stat string) {
	var snap statsSnapshot
	data, ok, err := idx.provider.Get(ctx, statsKey)
	if err == nil && ok {
		_ = json.Unmarshal(data, &snap)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = timeNow()
	}
	switch stat {
	case "artifacts_registered":
		snap.ArtifactsRegistered++
	case "artifacts_unregistered":
		snap.ArtifactsUnregistered++
	}
	snap.LastUpdated = timeNow()
	if encoded, err := json.Marshal(snap); err == nil {
		_ = idx.provider.SetEx(ctx, statsKey, encoded, idx.ttl)
	}
}

// Stats returns a best-effort snapshot of federation activity, including
// real-time counts drawn from the session/sandbox/artifact key prefixes.
func (idx *Index) Stats(ctx context.Context) (types.FederationStats, error) {
	var snap statsSnapshot
	data, ok, err := idx.provider.Get(ctx, statsKey)
	if err != nil {
		return types.FederationStats{}, fmt.Errorf("federation: read stats: %w", err)
	}
	if ok {
		_ = json.Unmarshal(data, &snap)
	}

	artifactKeys, err := idx.provider.Keys(ctx, "federation:artifact:*")
	if err != nil {
		return types.FederationStats{}, fmt.Errorf("federation: count artifacts: %w", err)
	}
	sessionKeys, err := idx.provider.Keys(ctx, "federation:session:*")
	if err != nil {
		return types.FederationStats{}, fmt.Errorf("federation: count sessions: %w", err)
	}
	sandboxKeys, err := idx.provider.Keys(ctx, "federation:sandbox:*")
	if err != nil {
		return types.FederationStats{}, fmt.Errorf("federation: count sandboxes: %w", err)
	}

	return types.FederationStats{
		TotalArtifacts:        len(artifactKeys),
		TotalSessions:         len(sessionKeys),
		TotalSandboxes:        len(sandboxKeys),
		ArtifactsRegistered:   snap.ArtifactsRegistered,
		ArtifactsUnregistered: snap.ArtifactsUnregistered,
		CreatedAt:             snap.CreatedAt,
		LastUpdated:           snap.LastUpdated,
		Timestamp:             timeNow(),
	}, nil
}

// timeNow is a seam over time.Now so tests can assert monotonic ordering
// without depending on wall-clock resolution.
var timeNow = time.Now
