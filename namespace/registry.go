// Package namespace implements NamespaceRegistry, the unified "everything
// is VFS" abstraction spec.md §4.4 describes: a BLOB namespace holds a
// single payload plus a metadata sidecar, a WORKSPACE namespace holds an
// arbitrarily deep object tree, and both share the same grid addressing
// and scope rules the artifact coordinator uses.
//
// It is grounded on the same coordinator shape as the artifact package
// (one objectstore.Provider bound to one sessionstore.Provider under a
// sandbox identity) and, for its tree operations, on the teacher's
// filesystem-walking helpers in common/utils.go, generalized from local
// paths to grid-key prefixes.
package namespace

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/grid"
	"github.com/evalgo/gridstore/idgen"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/types"
)

// BlobDataObject and BlobMetaObject are the two fixed leaf objects a BLOB
// namespace contains, per spec.md §3.
const (
	BlobDataObject = "_data"
	BlobMetaObject = "_meta.json"
)

// CheckpointsDir is the reserved sub-prefix checkpoint snapshots live
// under, excluded from ordinary namespace listings and from restore's
// live-object deletion pass.
const CheckpointsDir = "_checkpoints"

// Config binds a Registry's collaborators, matching the artifact
// coordinator's own Config shape.
type Config struct {
	SandboxID string
	Bucket    string

	Storage  objectstore.Provider
	Sessions sessionstore.Provider

	DefaultTTLSeconds int
}

// Registry is the NamespaceRegistry coordinator.
type Registry struct {
	sandboxID string
	bucket    string

	storage  objectstore.Provider
	sessions sessionstore.Provider

	defaultTTLSeconds int
}

// NewRegistry constructs a Registry from cfg.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.SandboxID == "" {
		return nil, errs.New(errs.KindConfigurationError, "namespace: sandbox_id is required")
	}
	if cfg.Storage == nil {
		return nil, errs.New(errs.KindConfigurationError, "namespace: storage provider is required")
	}
	if cfg.Sessions == nil {
		return nil, errs.New(errs.KindConfigurationError, "namespace: session provider is required")
	}
	ttl := cfg.DefaultTTLSeconds
	if ttl <= 0 {
		ttl = sessionstore.DefaultSessionTTLSeconds
	}
	return &Registry{
		sandboxID:         cfg.SandboxID,
		bucket:            cfg.Bucket,
		storage:           cfg.Storage,
		sessions:          cfg.Sessions,
		defaultTTLSeconds: ttl,
	}, nil
}

func namespaceKey(nsID string) string { return "namespace:" + nsID }

func scopeMarker(scope types.Scope, sessionID, userID string) (string, error) {
	switch scope {
	case types.ScopeSession:
		if sessionID == "" {
			return "", errs.New(errs.KindConfigurationError, "namespace: session_id is required to build a session-scoped path")
		}
		return grid.SessionScopeMarker(sessionID), nil
	case types.ScopeUser:
		if userID == "" {
			return "", errs.New(errs.KindMissingUserID, "namespace: user_id is required for scope=user")
		}
		return grid.UserScopeMarker(userID), nil
	case types.ScopeSandbox:
		return grid.SandboxScopeMarker, nil
	default:
		return "", errs.New(errs.KindConfigurationError, "namespace: unknown scope "+string(scope))
	}
}

// CreateNamespace allocates a namespace_id, computes its grid path exactly
// as the artifact coordinator does for an artifact id, and persists the
// namespace record. providerType is descriptive metadata only; the actual
// storage backend is whichever Provider the Registry was built with.
func (r *Registry) CreateNamespace(ctx context.Context, nsType types.NamespaceType, scope types.Scope, name, userID, sessionID, providerType string) (types.NamespaceInfo, error) {
	marker, err := scopeMarker(scope, sessionID, userID)
	if err != nil {
		return types.NamespaceInfo{}, err
	}
	nsID := idgen.New("ns")
	gridPath := grid.Build(r.sandboxID, marker, nsID, "")

	info := types.NamespaceInfo{
		NamespaceID:  nsID,
		Type:         nsType,
		Name:         name,
		Scope:        scope,
		SandboxID:    r.sandboxID,
		SessionID:    sessionID,
		UserID:       userID,
		GridPath:     gridPath,
		ProviderType: providerType,
		CreatedAt:    timeNow(),
	}
	if err := r.writeInfo(ctx, info); err != nil {
		return types.NamespaceInfo{}, err
	}
	return info, nil
}

func (r *Registry) writeInfo(ctx context.Context, info types.NamespaceInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "namespace: encode namespace record", err)
	}
	ttl := time.Duration(r.defaultTTLSeconds) * time.Second
	if err := r.sessions.SetEx(ctx, namespaceKey(info.NamespaceID), raw, ttl); err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "namespace: write namespace record", err)
	}
	return nil
}

// Info returns a namespace's registered record.
func (r *Registry) Info(ctx context.Context, nsID string) (types.NamespaceInfo, error) {
	raw, ok, err := r.sessions.Get(ctx, namespaceKey(nsID))
	if err != nil {
		return types.NamespaceInfo{}, errs.Wrap(errs.KindProviderError, "namespace: read namespace record", err)
	}
	if !ok {
		return types.NamespaceInfo{}, errs.New(errs.KindArtifactNotFound, "namespace: "+nsID+" not found")
	}
	var info types.NamespaceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return types.NamespaceInfo{}, errs.Wrap(errs.KindProviderError, "namespace: decode namespace record", err)
	}
	return info, nil
}

func objectKey(gridPath, subPath string) string {
	subPath = strings.TrimPrefix(subPath, "/")
	if subPath == "" {
		return gridPath
	}
	return gridPath + "/" + subPath
}

// WriteNamespace writes data into a namespace. For a BLOB namespace, path
// must be empty: the payload goes to the fixed _data object and a _meta.json
// sidecar is refreshed alongside it. For a WORKSPACE namespace, path names
// the object to write within the namespace's tree.
func (r *Registry) WriteNamespace(ctx context.Context, nsID string, data []byte, path string) error {
	info, err := r.Info(ctx, nsID)
	if err != nil {
		return err
	}

	if info.Type == types.NamespaceBlob {
		if path != "" && path != BlobDataObject {
			return errs.New(errs.KindConfigurationError, "namespace: BLOB namespaces accept no path argument")
		}
		if _, err := r.storage.PutObject(ctx, r.bucket, objectKey(info.GridPath, BlobDataObject), data, "application/octet-stream", nil); err != nil {
			return errs.Wrap(errs.KindProviderError, "namespace: write blob data", err)
		}
		meta := map[string]interface{}{"bytes": len(data), "updated_at": timeNow()}
		encoded, _ := json.Marshal(meta)
		if _, err := r.storage.PutObject(ctx, r.bucket, objectKey(info.GridPath, BlobMetaObject), encoded, "application/json", nil); err != nil {
			return errs.Wrap(errs.KindProviderError, "namespace: write blob meta", err)
		}
		return nil
	}

	if path == "" {
		return errs.New(errs.KindConfigurationError, "namespace: WORKSPACE namespaces require a path argument")
	}
	if _, err := r.storage.PutObject(ctx, r.bucket, objectKey(info.GridPath, path), data, "application/octet-stream", nil); err != nil {
		return errs.Wrap(errs.KindProviderError, "namespace: write workspace object", err)
	}
	return nil
}

// ReadNamespace is WriteNamespace's read-side symmetric counterpart.
func (r *Registry) ReadNamespace(ctx context.Context, nsID, path string) ([]byte, error) {
	info, err := r.Info(ctx, nsID)
	if err != nil {
		return nil, err
	}
	leaf := path
	if info.Type == types.NamespaceBlob {
		leaf = BlobDataObject
	}
	body, _, err := r.storage.GetObject(ctx, r.bucket, objectKey(info.GridPath, leaf))
	if err != nil {
		if err == objectstore.ErrNoSuchKey {
			return nil, errs.Wrap(errs.KindArtifactNotFound, "namespace: object not found", err)
		}
		return nil, errs.Wrap(errs.KindProviderError, "namespace: read object", err)
	}
	return body, nil
}

// ListNamespaces enumerates namespace records, optionally filtered by
// session, user, and type. Like artifact.ListBySession, this is an O(N)
// scan over every registered namespace, accepted per spec.md §9.
func (r *Registry) ListNamespaces(ctx context.Context, sessionID, userID string, nsType types.NamespaceType) ([]types.NamespaceInfo, error) {
	keys, err := r.sessions.Keys(ctx, "namespace:*")
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "namespace: list namespace keys", err)
	}
	out := make([]types.NamespaceInfo, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := r.sessions.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var info types.NamespaceInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			continue
		}
		if sessionID != "" && info.SessionID != sessionID {
			continue
		}
		if userID != "" && info.UserID != userID {
			continue
		}
		if nsType != "" && info.Type != nsType {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DestroyNamespace deletes every object under the namespace's grid path
// (including any checkpoint snapshots), then the namespace record itself.
func (r *Registry) DestroyNamespace(ctx context.Context, nsID string) error {
	info, err := r.Info(ctx, nsID)
	if err != nil {
		if errs.IsKind(err, errs.KindArtifactNotFound) {
			return nil
		}
		return err
	}
	if err := r.deleteAllUnder(ctx, info.GridPath+"/"); err != nil {
		return err
	}
	if err := r.sessions.Delete(ctx, namespaceKey(nsID)); err != nil {
		return errs.Wrap(errs.KindProviderError, "namespace: delete namespace record", err)
	}
	return nil
}

// deleteAllUnder removes every object under prefix, paginating through
// ListObjectsV2 until the listing is exhausted.
func (r *Registry) deleteAllUnder(ctx context.Context, prefix string) error {
	for {
		result, err := r.storage.ListObjectsV2(ctx, r.bucket, prefix, 0)
		if err != nil {
			return errs.Wrap(errs.KindProviderError, "namespace: list objects for delete", err)
		}
		if len(result.Contents) == 0 {
			return nil
		}
		keys := make([]string, 0, len(result.Contents))
		for _, obj := range result.Contents {
			keys = append(keys, obj.Key)
		}
		if _, err := r.storage.DeleteObjects(ctx, r.bucket, keys); err != nil {
			return errs.Wrap(errs.KindProviderError, "namespace: batch delete objects", err)
		}
		if !result.IsTruncated {
			return nil
		}
	}
}

var timeNow = time.Now
