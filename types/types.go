// Package types holds the data-model structs shared across gridstore's
// components: sessions, artifact metadata, namespaces, checkpoints,
// multipart uploads, and federation locations. Keeping them here (rather
// than in the packages that operate on them) lets the coordinator, the
// namespace registry, the multipart manager, and the federation index
// depend on the same structs without an import cycle.
package types

import "time"

// Scope decides which segment of a grid key carries the isolation marker
// and who may read/write an artifact or namespace.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeUser    Scope = "user"
	ScopeSandbox Scope = "sandbox"
)

// SessionStatus is the lifecycle state of a Session record.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// Session is a time-bounded context used as a secondary isolation unit and
// as the TTL owner for ephemeral, session-scoped artifacts.
type Session struct {
	SessionID      string                 `json:"session_id"`
	UserID         string                 `json:"user_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ExpiresAt      time.Time              `json:"expires_at"`
	Status         SessionStatus          `json:"status"`
	CustomMetadata map[string]interface{} `json:"custom_metadata,omitempty"`
}

// Valid reports whether the session is usable right now: its record
// exists, its status is active, and its expiry has not passed.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Status == SessionActive && now.Before(s.ExpiresAt)
}

// ArtifactMetadata is the record stored in the session/metadata provider
// alongside (never instead of) the object payload itself.
type ArtifactMetadata struct {
	ArtifactID      string                 `json:"artifact_id"`
	SessionID       string                 `json:"session_id,omitempty"`
	SandboxID       string                 `json:"sandbox_id"`
	Scope           Scope                  `json:"scope"`
	OwnerID         string                 `json:"owner_id,omitempty"`
	Key             string                 `json:"key"`
	Mime            string                 `json:"mime"`
	Bytes           int64                  `json:"bytes"`
	SHA256          string                 `json:"sha256"`
	Summary         string                 `json:"summary"`
	Filename        string                 `json:"filename,omitempty"`
	Meta            map[string]interface{} `json:"meta,omitempty"`
	StoredAt        time.Time              `json:"stored_at"`
	TTL             int                    `json:"ttl"`
	StorageProvider string                 `json:"storage_provider"`
	SessionProvider string                 `json:"session_provider"`
}

// NamespaceType distinguishes a single-blob namespace from a multi-file
// workspace namespace. Both share the same grid and scope rules; only the
// shape of the contained tree differs.
type NamespaceType string

const (
	NamespaceBlob      NamespaceType = "BLOB"
	NamespaceWorkspace NamespaceType = "WORKSPACE"
)

// NamespaceInfo describes a namespace (BLOB or WORKSPACE) registered
// through NamespaceRegistry.CreateNamespace.
type NamespaceInfo struct {
	NamespaceID  string        `json:"namespace_id"`
	Type         NamespaceType `json:"type"`
	Name         string        `json:"name,omitempty"`
	Scope        Scope         `json:"scope"`
	SandboxID    string        `json:"sandbox_id"`
	SessionID    string        `json:"session_id,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	GridPath     string        `json:"grid_path"`
	ProviderType string        `json:"provider_type"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Checkpoint is an immutable, named snapshot of a namespace's full
// contents at a point in time.
type Checkpoint struct {
	CheckpointID string    `json:"checkpoint_id"`
	NamespaceID  string    `json:"namespace_id"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	SnapshotRef  string    `json:"snapshot_ref"`
}

// MultipartState is the terminal/non-terminal state of a multipart upload.
type MultipartState string

const (
	MultipartOpen      MultipartState = "open"
	MultipartCompleted MultipartState = "completed"
	MultipartAborted   MultipartState = "aborted"
)

// UploadedPart is one completed part of a multipart upload.
type UploadedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}

// MultipartUpload is the full state of one multipart upload in progress.
type MultipartUpload struct {
	UploadID      string                 `json:"upload_id"`
	ArtifactID    string                 `json:"artifact_id"`
	SessionID     string                 `json:"session_id,omitempty"`
	Scope         Scope                  `json:"scope"`
	OwnerID       string                 `json:"owner_id,omitempty"`
	Mime          string                 `json:"mime"`
	Filename      string                 `json:"filename,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
	Key           string                 `json:"key"`
	PartsUploaded map[int]UploadedPart   `json:"parts_uploaded"`
	State         MultipartState         `json:"state"`
	InitiatedAt   time.Time              `json:"initiated_at"`
	TTL           int                    `json:"ttl"`
}

// PartSizeFloor is the minimum size (bytes) every part but the last must
// meet, matching the S3 multipart contract.
const PartSizeFloor = 5 * 1024 * 1024

// MaxParts is the largest part number a multipart upload may reach.
const MaxParts = 10_000

// FederationLocation records where one artifact physically lives so any
// sandbox sharing the same session/metadata provider can discover it.
type FederationLocation struct {
	ArtifactID string    `json:"artifact_id"`
	SandboxID  string    `json:"sandbox_id"`
	SessionID  string    `json:"session_id"`
	GridKey    string    `json:"grid_key"`
	Size       int64     `json:"size"`
	Mime       string    `json:"mime"`
	StoredAt   time.Time `json:"stored_at"`
	Checksum   string    `json:"checksum,omitempty"`
}

// FederationStats is a best-effort snapshot of federation index activity.
type FederationStats struct {
	TotalArtifacts       int       `json:"total_artifacts"`
	TotalSessions        int       `json:"total_sessions"`
	TotalSandboxes       int       `json:"total_sandboxes"`
	ArtifactsRegistered  int64     `json:"artifacts_registered"`
	ArtifactsUnregistered int64    `json:"artifacts_unregistered"`
	CreatedAt            time.Time `json:"created_at"`
	LastUpdated          time.Time `json:"last_updated"`
	Timestamp            time.Time `json:"timestamp"`
}
