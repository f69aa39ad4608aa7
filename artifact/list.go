package artifact

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/types"
)

// allMetadata scans every artifact:* record in the session/metadata
// provider and decodes it. This is, as spec.md §9 explicitly accepts,
// O(N) in the total number of metadata records over the memory provider;
// Redis's SCAN-backed Keys implementation pays the same cost but against
// a store built for it.
func (s *Store) allMetadata(ctx context.Context) ([]types.ArtifactMetadata, error) {
	keys, err := s.sessions.Keys(ctx, "artifact:*")
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "artifact: list metadata keys", err)
	}
	out := make([]types.ArtifactMetadata, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := s.sessions.Get(ctx, key)
		if err != nil || !ok {
			continue // expired between Keys and Get; not an error, just gone
		}
		var meta types.ArtifactMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoredAt.Before(out[j].StoredAt) })
	return out, nil
}

// ListBySession enumerates metadata records belonging to session_id, up
// to limit (0 means the default of 100 per spec.md §4.3.1).
func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int) ([]types.ArtifactMetadata, error) {
	if limit <= 0 {
		limit = 100
	}
	all, err := s.allMetadata(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.ArtifactMetadata, 0, limit)
	for _, meta := range all {
		if meta.SessionID != sessionID {
			continue
		}
		out = append(out, meta)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListByPrefix filters a session's artifacts by filename prefix.
func (s *Store) ListByPrefix(ctx context.Context, sessionID, prefix string, limit int) ([]types.ArtifactMetadata, error) {
	bySession, err := s.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	out := make([]types.ArtifactMetadata, 0, limit)
	for _, meta := range bySession {
		if prefix != "" && !strings.HasPrefix(meta.Filename, prefix) {
			continue
		}
		out = append(out, meta)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetDirectoryContents filters a session's artifacts by a directory-style
// filename prefix (e.g. "reports/" matches "reports/q1.pdf").
func (s *Store) GetDirectoryContents(ctx context.Context, sessionID, dir string) ([]types.ArtifactMetadata, error) {
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return s.ListByPrefix(ctx, sessionID, dir, 0)
}

// SearchFilter is the conjunction of predicates Search applies. Empty
// fields are not filtered on.
type SearchFilter struct {
	UserID     string
	SessionID  string
	Scope      types.Scope
	MimePrefix string
	MetaFilter map[string]interface{}
}

// Search scans the metadata index filtered by every supplied predicate.
// MetaFilter entries are matched by equality against the artifact's meta
// map.
func (s *Store) Search(ctx context.Context, filter SearchFilter) ([]types.ArtifactMetadata, error) {
	all, err := s.allMetadata(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.ArtifactMetadata, 0)
	for _, meta := range all {
		if filter.UserID != "" && meta.OwnerID != filter.UserID {
			continue
		}
		if filter.SessionID != "" && meta.SessionID != filter.SessionID {
			continue
		}
		if filter.Scope != "" && meta.Scope != filter.Scope {
			continue
		}
		if filter.MimePrefix != "" && !strings.HasPrefix(meta.Mime, filter.MimePrefix) {
			continue
		}
		if !matchesMetaFilter(meta.Meta, filter.MetaFilter) {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

func matchesMetaFilter(actual, want map[string]interface{}) bool {
	for k, v := range want {
		av, ok := actual[k]
		if !ok || av != v {
			return false
		}
	}
	return true
}
