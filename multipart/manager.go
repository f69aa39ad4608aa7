// Package multipart implements the large-object upload state machine:
// none -> open -> completed | aborted. It is grounded on the flow traced
// by original_source/examples/multipart_demo.py (initiate, get a presigned
// URL per part, complete with the client-reported ETags, or abort) and on
// the part-size/part-count invariants enumerated there (5 MiB floor except
// the last part, 10,000 parts max), backed by types.PartSizeFloor and
// types.MaxParts.
package multipart

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/federation"
	"github.com/evalgo/gridstore/idgen"
	"github.com/evalgo/gridstore/objectstore"
	"github.com/evalgo/gridstore/sessionstore"
	"github.com/evalgo/gridstore/types"
)

func stateKey(uploadID string) string { return "multipart:" + uploadID }

// DefaultStateTTLSeconds bounds how long an open upload's tracking record
// survives in the session store before it is treated as abandoned.
const DefaultStateTTLSeconds = 86400

// InitRequest describes a new multipart upload to start.
type InitRequest struct {
	Filename  string
	Mime      string
	Scope     types.Scope
	OwnerID   string
	SessionID string
	Key       string // destination grid key the completed object will occupy
	TTL       int
	Meta      map[string]interface{}
}

// Manager drives the multipart upload state machine. It pairs an
// objectstore.Provider (which performs the actual S3-shaped multipart
// calls) with a sessionstore.Provider (which tracks the upload's
// client-visible state across the open window and, on Complete, the
// resulting artifact's metadata record in the same "artifact:{id}"
// keyspace artifact.Store uses).
type Manager struct {
	sandboxID  string
	bucket     string
	storage    objectstore.Provider
	sessions   sessionstore.Provider
	federation *federation.Index
}

// NewManager constructs a multipart Manager. federation may be nil, in
// which case Complete skips federation registration silently (equivalent
// to federation_enabled=false).
func NewManager(bucket string, storage objectstore.Provider, sessions sessionstore.Provider) *Manager {
	return &Manager{bucket: bucket, storage: storage, sessions: sessions}
}

// WithFederation returns a copy of m that registers completed uploads in
// idx. Kept as a fluent setter rather than a NewManager parameter so
// existing call sites (and the zero-federation case) don't need updating.
func (m *Manager) WithFederation(idx *federation.Index) *Manager {
	clone := *m
	clone.federation = idx
	return &clone
}

// WithSandboxID sets the sandbox id stamped onto completed uploads'
// artifact metadata and federation registrations.
func (m *Manager) WithSandboxID(sandboxID string) *Manager {
	clone := *m
	clone.sandboxID = sandboxID
	return &clone
}

func artifactMetadataKey(artifactID string) string { return "artifact:" + artifactID }

// Initiate opens a new multipart upload and returns its upload id together
// with the artifact id that will be assigned once it completes.
func (m *Manager) Initiate(ctx context.Context, req InitRequest) (*types.MultipartUpload, error) {
	artifactID := idgen.New("artifact")
	key := req.Key
	if key == "" {
		return nil, errs.New(errs.KindConfigurationError, "multipart: destination key is required")
	}

	providerUploadID, err := m.storage.CreateMultipartUpload(ctx, m.bucket, key)
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "multipart: create multipart upload", err)
	}

	upload := &types.MultipartUpload{
		UploadID:      idgen.New("upload"),
		ArtifactID:    artifactID,
		Scope:         req.Scope,
		OwnerID:       req.OwnerID,
		SessionID:     req.SessionID,
		Mime:          req.Mime,
		Filename:      req.Filename,
		Meta:          req.Meta,
		Key:           key,
		PartsUploaded: make(map[int]types.UploadedPart),
		State:         types.MultipartOpen,
		InitiatedAt:   timeNow(),
		TTL:           req.TTL,
	}

	if err := m.save(ctx, upload, providerUploadID); err != nil {
		_ = m.storage.AbortMultipartUpload(ctx, m.bucket, key, providerUploadID)
		return nil, err
	}
	return upload, nil
}

// record is the on-disk shape tracked per upload: the client-facing
// types.MultipartUpload plus the provider's own opaque upload id, which
// callers never see.
type record struct {
	Upload           types.MultipartUpload `json:"upload"`
	ProviderUploadID string                `json:"provider_upload_id"`
}

func (m *Manager) save(ctx context.Context, upload *types.MultipartUpload, providerUploadID string) error {
	rec := record{Upload: *upload, ProviderUploadID: providerUploadID}
	data, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(errs.KindProviderError, "multipart: marshal upload state", err)
	}
	ttl := time.Duration(DefaultStateTTLSeconds) * time.Second
	if err := m.sessions.SetEx(ctx, stateKey(upload.UploadID), data, ttl); err != nil {
		return errs.Wrap(errs.KindProviderError, "multipart: persist upload state", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, uploadID string) (*record, error) {
	data, ok, err := m.sessions.Get(ctx, stateKey(uploadID))
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "multipart: read upload state", err)
	}
	if !ok {
		return nil, errs.New(errs.KindUploadNotOpen, "multipart: unknown upload "+uploadID)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "multipart: decode upload state", err)
	}
	return &rec, nil
}

// PartUploadURL returns a presigned PUT URL the client uses to upload one
// part directly to the storage provider. The upload must still be open.
func (m *Manager) PartUploadURL(ctx context.Context, uploadID string, partNumber int, expirySeconds int64) (string, error) {
	if partNumber < 1 || partNumber > types.MaxParts {
		return "", errs.New(errs.KindInvalidPartSequence, fmt.Sprintf("multipart: part number %d out of range", partNumber))
	}
	rec, err := m.load(ctx, uploadID)
	if err != nil {
		return "", err
	}
	if rec.Upload.State != types.MultipartOpen {
		return "", errs.New(errs.KindUploadNotOpen, "multipart: upload "+uploadID+" is not open")
	}
	url, err := m.storage.GeneratePresignedURL(ctx, m.bucket, rec.Upload.Key, "put_object", expirySeconds)
	if err != nil {
		return "", errs.Wrap(errs.KindProviderError, "multipart: presign part upload", err)
	}
	return url, nil
}

// RecordPart marks a part as uploaded once the client confirms the ETag it
// received from the presigned PUT. This lets the manager validate part
// ordering and size rules before Complete is called.
func (m *Manager) RecordPart(ctx context.Context, uploadID string, part types.UploadedPart) error {
	if part.PartNumber < 1 || part.PartNumber > types.MaxParts {
		return errs.New(errs.KindInvalidPartSequence, fmt.Sprintf("multipart: part number %d out of range", part.PartNumber))
	}
	rec, err := m.load(ctx, uploadID)
	if err != nil {
		return err
	}
	if rec.Upload.State != types.MultipartOpen {
		return errs.New(errs.KindUploadNotOpen, "multipart: upload "+uploadID+" is not open")
	}
	rec.Upload.PartsUploaded[part.PartNumber] = part
	return m.save(ctx, &rec.Upload, rec.ProviderUploadID)
}

// validateParts enforces the spec's size/contiguity rules: part numbers
// must be contiguous starting at 1, and every part but the last must be at
// least types.PartSizeFloor bytes.
func validateParts(parts []types.UploadedPart) error {
	sorted := make([]types.UploadedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	for i, p := range sorted {
		if p.PartNumber != i+1 {
			return errs.New(errs.KindInvalidPartSequence, fmt.Sprintf("multipart: expected part %d, got %d", i+1, p.PartNumber))
		}
		isLast := i == len(sorted)-1
		if !isLast && p.Size > 0 && p.Size < types.PartSizeFloor {
			return errs.New(errs.KindPartTooSmall, fmt.Sprintf("multipart: part %d is %d bytes, below the %d byte floor", p.PartNumber, p.Size, types.PartSizeFloor))
		}
	}
	return nil
}

// Complete finalizes a multipart upload given the client-reported parts,
// and returns the artifact id the assembled object is now stored under.
func (m *Manager) Complete(ctx context.Context, uploadID string, parts []types.UploadedPart, summary string) (string, error) {
	rec, err := m.load(ctx, uploadID)
	if err != nil {
		return "", err
	}
	if rec.Upload.State != types.MultipartOpen {
		return "", errs.New(errs.KindUploadNotOpen, "multipart: upload "+uploadID+" is not open")
	}
	if err := validateParts(parts); err != nil {
		return "", err
	}

	completed := make([]objectstore.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, objectstore.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	if _, err := m.storage.CompleteMultipartUpload(ctx, m.bucket, rec.Upload.Key, rec.ProviderUploadID, completed); err != nil {
		return "", errs.Wrap(errs.KindProviderError, "multipart: complete upload", err)
	}

	rec.Upload.State = types.MultipartCompleted
	var totalBytes int64
	for _, p := range parts {
		rec.Upload.PartsUploaded[p.PartNumber] = p
		totalBytes += p.Size
	}
	if err := m.save(ctx, &rec.Upload, rec.ProviderUploadID); err != nil {
		return "", err
	}

	meta := types.ArtifactMetadata{
		ArtifactID: rec.Upload.ArtifactID,
		SessionID:  rec.Upload.SessionID,
		SandboxID:  m.sandboxID,
		Scope:      rec.Upload.Scope,
		OwnerID:    rec.Upload.OwnerID,
		Key:        rec.Upload.Key,
		Mime:       rec.Upload.Mime,
		Bytes:      totalBytes,
		Summary:    summary,
		Filename:   rec.Upload.Filename,
		Meta:       rec.Upload.Meta,
		StoredAt:   timeNow(),
		TTL:        rec.Upload.TTL,
	}
	if err := m.writeArtifactMetadata(ctx, meta); err != nil {
		return "", err
	}
	m.registerFederation(ctx, meta)
	return rec.Upload.ArtifactID, nil
}

func (m *Manager) writeArtifactMetadata(ctx context.Context, meta types.ArtifactMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "multipart: encode artifact metadata", err)
	}
	ttl := time.Duration(meta.TTL) * time.Second
	if err := m.sessions.SetEx(ctx, artifactMetadataKey(meta.ArtifactID), data, ttl); err != nil {
		return errs.Wrap(errs.KindMetadataWriteFailed, "multipart: write artifact metadata", err)
	}
	return nil
}

// registerFederation registers the completed upload in the federation
// index if one is configured. Federation errors are swallowed per
// spec.md §7 (FederationError is never fatal to the primary operation).
func (m *Manager) registerFederation(ctx context.Context, meta types.ArtifactMetadata) {
	if m.federation == nil {
		return
	}
	loc := types.FederationLocation{
		ArtifactID: meta.ArtifactID,
		SandboxID:  m.sandboxID,
		SessionID:  meta.SessionID,
		GridKey:    meta.Key,
		Size:       meta.Bytes,
		Mime:       meta.Mime,
		StoredAt:   meta.StoredAt,
	}
	_ = m.federation.Register(ctx, loc)
}

// Abort cancels an open upload, releasing any staged parts at the storage
// provider. Aborting an already-terminal upload is a no-op that returns
// false; the spec treats repeated aborts as harmless.
func (m *Manager) Abort(ctx context.Context, uploadID string) (bool, error) {
	rec, err := m.load(ctx, uploadID)
	if err != nil {
		if errs.IsKind(err, errs.KindUploadNotOpen) {
			return false, nil
		}
		return false, err
	}
	if rec.Upload.State != types.MultipartOpen {
		return false, nil
	}
	if err := m.storage.AbortMultipartUpload(ctx, m.bucket, rec.Upload.Key, rec.ProviderUploadID); err != nil {
		return false, errs.Wrap(errs.KindProviderError, "multipart: abort upload", err)
	}
	rec.Upload.State = types.MultipartAborted
	if err := m.save(ctx, &rec.Upload, rec.ProviderUploadID); err != nil {
		return false, err
	}
	return true, nil
}

// Status returns the current tracked state of an upload.
func (m *Manager) Status(ctx context.Context, uploadID string) (*types.MultipartUpload, error) {
	rec, err := m.load(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	return &rec.Upload, nil
}

var timeNow = time.Now
