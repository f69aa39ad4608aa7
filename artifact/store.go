// Package artifact implements the ArtifactStore coordinator: the public
// operation set spec.md §4.3 describes, binding one objectstore.Provider
// (the object-level backend) to one sessionstore.Provider (the TTL'd
// metadata/session backend) under a single sandbox identity.
//
// It is grounded on the teacher's own top-level coordination style —
// coordinator/coordinator.go's phase-driven orchestration and
// statemanager/manager.go's "validate, then mutate two collaborators,
// roll back on partial failure" shape — generalized from orchestrating
// deploy phases to orchestrating one object-store put/get plus one
// metadata-store setex/get per operation.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalgo/gridstore/common"
	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/federation"
	"github.com/evalgo/gridstore/grid"
	"github.com/evalgo/gridstore/idgen"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/types"
	"github.com/evalgo/gridstore/version"
)

// MaxSingleShotBytes bounds data accepted by Store in one call, per
// spec.md §4.3.1 ("data ≤ 5 GiB for single-shot").
const MaxSingleShotBytes = 5 * 1024 * 1024 * 1024

// Config binds the collaborators and tunables an ArtifactStore
// coordinates, matching spec.md §4.3's construction contract.
type Config struct {
	SandboxID string
	Bucket    string

	Storage  objectstore.Provider
	Sessions sessionstore.Provider

	// SessionManager is built automatically over Sessions when nil.
	SessionManager *sessionstore.Manager

	// Federation is optional; when nil, federation registration is
	// skipped silently (equivalent to federation_enabled=false).
	Federation *federation.Index

	DefaultTTLSeconds int
	MaxRetries        int
}

// Store is the ArtifactStore coordinator bound to one sandbox identity.
type Store struct {
	sandboxID string
	bucket    string

	storage        objectstore.Provider
	sessions       sessionstore.Provider
	sessionManager *sessionstore.Manager
	federation     *federation.Index

	defaultTTLSeconds int
	retry             retryPolicy

	log *common.ContextLogger
}

// New constructs a Store from cfg, defaulting DefaultTTLSeconds and
// MaxRetries to the values spec.md §6 names when unset.
func New(cfg Config) (*Store, error) {
	if cfg.SandboxID == "" {
		return nil, errs.New(errs.KindConfigurationError, "artifact: sandbox_id is required")
	}
	if cfg.Storage == nil {
		return nil, errs.New(errs.KindConfigurationError, "artifact: storage provider is required")
	}
	if cfg.Sessions == nil {
		return nil, errs.New(errs.KindConfigurationError, "artifact: session provider is required")
	}

	ttl := cfg.DefaultTTLSeconds
	if ttl <= 0 {
		ttl = sessionstore.DefaultSessionTTLSeconds
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	sessionManager := cfg.SessionManager
	if sessionManager == nil {
		sessionManager = sessionstore.NewManager(cfg.SandboxID, cfg.Sessions, 5*time.Second)
	}

	return &Store{
		sandboxID:         cfg.SandboxID,
		bucket:            cfg.Bucket,
		storage:           cfg.Storage,
		sessions:          cfg.Sessions,
		sessionManager:    sessionManager,
		federation:        cfg.Federation,
		defaultTTLSeconds: ttl,
		retry:             retryPolicy{maxRetries: maxRetries},
		log:               common.ServiceLogger("artifact.Store", version.GetGridstoreVersion()).WithField("sandbox_id", cfg.SandboxID),
	}, nil
}

// SandboxID returns the sandbox this store is bound to.
func (s *Store) SandboxID() string { return s.sandboxID }

func metadataKey(artifactID string) string { return "artifact:" + artifactID }

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// scopeMarker returns the grid scope marker for scope, resolving the
// session/user id that marker embeds.
func scopeMarker(scope types.Scope, sessionID, userID string) (string, error) {
	switch scope {
	case types.ScopeSession:
		if sessionID == "" {
			return "", errs.New(errs.KindConfigurationError, "artifact: session_id is required to build a session-scoped key")
		}
		return grid.SessionScopeMarker(sessionID), nil
	case types.ScopeUser:
		if userID == "" {
			return "", errs.New(errs.KindMissingUserID, "artifact: user_id is required for scope=user")
		}
		return grid.UserScopeMarker(userID), nil
	case types.ScopeSandbox:
		return grid.SandboxScopeMarker, nil
	default:
		return "", errs.New(errs.KindConfigurationError, fmt.Sprintf("artifact: unknown scope %q", scope))
	}
}

// checkScope enforces spec.md §4.3.1's scope check, shared by Retrieve,
// Delete, and every other read/write path gated on caller identity.
func checkScope(meta types.ArtifactMetadata, sessionID, userID string) error {
	switch meta.Scope {
	case types.ScopeSession:
		if sessionID != "" && sessionID != meta.SessionID {
			return errs.New(errs.KindAccessDenied, "artifact: session_id does not match artifact owner session")
		}
	case types.ScopeUser:
		if userID == "" || userID != meta.OwnerID {
			return errs.New(errs.KindAccessDenied, "artifact: user_id does not match artifact owner")
		}
	case types.ScopeSandbox:
		// always allow read
	}
	return nil
}

func (s *Store) readMetadata(ctx context.Context, artifactID string) (types.ArtifactMetadata, error) {
	raw, ok, err := s.sessions.Get(ctx, metadataKey(artifactID))
	if err != nil {
		return types.ArtifactMetadata{}, errs.Wrap(errs.KindProviderError, "artifact: read metadata", err)
	}
	if !ok {
		return types.ArtifactMetadata{}, errs.New(errs.KindArtifactNotFound, "artifact: "+artifactID+" not found")
	}
	var meta types.ArtifactMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return types.ArtifactMetadata{}, errs.Wrap(errs.KindProviderError, "artifact: decode metadata", err)
	}
	return meta, nil
}

func (s *Store) writeMetadata(ctx context.Context, meta types.ArtifactMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "artifact: encode metadata", err)
	}
	ttl := time.Duration(meta.TTL) * time.Second
	if err := s.sessions.SetEx(ctx, metadataKey(meta.ArtifactID), raw, ttl); err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "artifact: write metadata", err)
	}
	return nil
}

func (s *Store) deleteMetadata(ctx context.Context, artifactID string) error {
	if err := s.sessions.Delete(ctx, metadataKey(artifactID)); err != nil {
		return errs.Wrap(errs.KindProviderError, "artifact: delete metadata", err)
	}
	return nil
}

// registerFederation registers loc in the federation index if one is
// configured. Federation errors are logged and swallowed per spec.md §7
// (FederationError is never fatal to the primary operation).
func (s *Store) registerFederation(ctx context.Context, meta types.ArtifactMetadata) {
	if s.federation == nil {
		return
	}
	loc := types.FederationLocation{
		ArtifactID: meta.ArtifactID,
		SandboxID:  s.sandboxID,
		SessionID:  meta.SessionID,
		GridKey:    meta.Key,
		Size:       meta.Bytes,
		Mime:       meta.Mime,
		StoredAt:   meta.StoredAt,
		Checksum:   meta.SHA256,
	}
	if err := s.federation.Register(ctx, loc); err != nil {
		s.log.WithError(err).WithField("artifact_id", meta.ArtifactID).Warn("artifact: federation registration failed, continuing")
	}
}

func (s *Store) unregisterFederation(ctx context.Context, artifactID string) {
	if s.federation == nil {
		return
	}
	if _, err := s.federation.Unregister(ctx, artifactID); err != nil {
		s.log.WithError(err).WithField("artifact_id", artifactID).Warn("artifact: federation unregistration failed, continuing")
	}
}

// StoreInput is the full set of optional inputs to Store, matching
// spec.md §4.3.1's store(...) signature.
type StoreInput struct {
	Data      []byte
	Mime      string
	Summary   string
	Meta      map[string]interface{}
	Filename  string
	SessionID string
	UserID    string
	Scope     types.Scope // defaults to ScopeSession when empty
	TTL       int         // seconds; defaults to the store's DefaultTTLSeconds
}

// Store persists data under a freshly allocated artifact id and returns
// it. See spec.md §4.3.1.
func (s *Store) Store(ctx context.Context, in StoreInput) (string, error) {
	if len(in.Data) > MaxSingleShotBytes {
		return "", errs.New(errs.KindConfigurationError, "artifact: data exceeds single-shot size limit")
	}
	if in.Mime == "" {
		return "", errs.New(errs.KindConfigurationError, "artifact: mime is required")
	}
	scope := in.Scope
	if scope == "" {
		scope = types.ScopeSession
	}
	if scope == types.ScopeUser && in.UserID == "" {
		return "", errs.New(errs.KindMissingUserID, "artifact: user_id is required when scope=user")
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.defaultTTLSeconds
	}

	sessionID := in.SessionID
	if scope == types.ScopeSession && sessionID == "" {
		allocated, err := s.sessionManager.Allocate(ctx, in.UserID, ttl, nil)
		if err != nil {
			return "", err
		}
		sessionID = allocated
	}

	marker, err := scopeMarker(scope, sessionID, in.UserID)
	if err != nil {
		return "", err
	}

	artifactID := idgen.New("artifact")
	key := grid.Build(s.sandboxID, marker, artifactID, "")
	checksum := sha256Hex(in.Data)

	err = s.retry.withRetry(ctx, func() error {
		_, putErr := s.storage.PutObject(ctx, s.bucket, key, in.Data, in.Mime, map[string]string{
			"artifact_id": artifactID,
			"session_id":  sessionID,
			"sandbox_id":  s.sandboxID,
		})
		return mapProviderErr(putErr)
	})
	if err != nil {
		return "", err
	}

	meta := types.ArtifactMetadata{
		ArtifactID:      artifactID,
		SessionID:       sessionID,
		SandboxID:       s.sandboxID,
		Scope:           scope,
		OwnerID:         in.UserID,
		Key:             key,
		Mime:            in.Mime,
		Bytes:           int64(len(in.Data)),
		SHA256:          checksum,
		Summary:         in.Summary,
		Filename:        in.Filename,
		Meta:            in.Meta,
		StoredAt:        timeNow(),
		TTL:             ttl,
		StorageProvider: providerName(s.storage),
		SessionProvider: providerName(s.sessions),
	}

	if err := s.writeMetadata(ctx, meta); err != nil {
		// best-effort rollback of the object we just wrote
		_ = s.storage.DeleteObject(ctx, s.bucket, key)
		return "", err
	}

	s.registerFederation(ctx, meta)
	return artifactID, nil
}

// Retrieve reads an artifact's bytes after enforcing the scope check.
// See spec.md §4.3.1.
func (s *Store) Retrieve(ctx context.Context, artifactID, sessionID, userID string) ([]byte, error) {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if err := checkScope(meta, sessionID, userID); err != nil {
		return nil, err
	}

	var body []byte
	err = s.retry.withRetry(ctx, func() error {
		b, _, getErr := s.storage.GetObject(ctx, s.bucket, meta.Key)
		if mapped := mapProviderErr(getErr); mapped != nil {
			return mapped
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Metadata returns an artifact's metadata record with no scope check,
// matching spec.md §4.3.1 ("metadata carries no payload").
func (s *Store) Metadata(ctx context.Context, artifactID string) (types.ArtifactMetadata, error) {
	return s.readMetadata(ctx, artifactID)
}

// Exists reports whether an artifact's metadata record is present.
func (s *Store) Exists(ctx context.Context, artifactID string) (bool, error) {
	_, err := s.readMetadata(ctx, artifactID)
	if errs.IsKind(err, errs.KindArtifactNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an artifact's object then its metadata. Sandbox-scoped
// artifacts can only be deleted through an admin-level path (DeleteAdmin),
// per spec.md §3's scope definition.
func (s *Store) Delete(ctx context.Context, artifactID, userID string) (bool, error) {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		if errs.IsKind(err, errs.KindArtifactNotFound) {
			return false, nil
		}
		return false, err
	}
	if meta.Scope == types.ScopeSandbox {
		return false, errs.New(errs.KindAccessDenied, "artifact: sandbox-scoped artifacts require the admin delete path")
	}
	if err := checkScope(meta, "", userID); err != nil {
		return false, err
	}
	return s.deleteArtifact(ctx, meta)
}

// DeleteAdmin deletes any artifact regardless of scope, including
// sandbox-scoped ones. It performs no scope check: callers are
// responsible for their own authorization above this layer.
func (s *Store) DeleteAdmin(ctx context.Context, artifactID string) (bool, error) {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		if errs.IsKind(err, errs.KindArtifactNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.deleteArtifact(ctx, meta)
}

func (s *Store) deleteArtifact(ctx context.Context, meta types.ArtifactMetadata) (bool, error) {
	err := s.retry.withRetry(ctx, func() error {
		return mapProviderErr(s.storage.DeleteObject(ctx, s.bucket, meta.Key))
	})
	if err != nil {
		return false, err
	}
	if err := s.deleteMetadata(ctx, meta.ArtifactID); err != nil {
		return false, err
	}
	s.unregisterFederation(ctx, meta.ArtifactID)
	return true, nil
}

// mapProviderErr translates objectstore sentinel errors into the errs
// taxonomy so retry/scope logic above doesn't need to know about
// objectstore internals.
func mapProviderErr(err error) error {
	if err == nil {
		return nil
	}
	if err == objectstore.ErrNoSuchKey || err == objectstore.ErrNoSuchBucket {
		return errs.Wrap(errs.KindArtifactNotFound, "artifact: object not found", err)
	}
	return errs.Wrap(errs.KindProviderError, "artifact: provider error", err)
}

func providerName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}

var timeNow = time.Now
