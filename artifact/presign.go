package artifact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/grid"
	"github.com/evalgo/gridstore/idgen"
	"github.com/evalgo/gridstore/types"
)

// Presign duration presets named in spec.md §4.3.1.
const (
	PresignShortSeconds  = 900
	PresignMediumSeconds = 3600
	PresignLongSeconds   = 86400
)

// Presign returns a time-bounded download URL for an existing artifact.
// Per spec.md §9, presigning a nonexistent object raises ArtifactNotFound
// uniformly across every adapter; the coordinator enforces this with a
// HeadObject check rather than relying on adapter-specific behavior.
func (s *Store) Presign(ctx context.Context, artifactID string, durationSeconds int64) (string, error) {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		return "", err
	}
	if _, headErr := s.storage.HeadObject(ctx, s.bucket, meta.Key); headErr != nil {
		return "", mapProviderErr(headErr)
	}
	url, err := s.storage.GeneratePresignedURL(ctx, s.bucket, meta.Key, "get_object", durationSeconds)
	if err != nil {
		return "", errs.Wrap(errs.KindProviderError, "artifact: presign download", err)
	}
	return url, nil
}

// PresignShort/Medium/Long wrap Presign with the fixed duration presets.
func (s *Store) PresignShort(ctx context.Context, artifactID string) (string, error) {
	return s.Presign(ctx, artifactID, PresignShortSeconds)
}

func (s *Store) PresignMedium(ctx context.Context, artifactID string) (string, error) {
	return s.Presign(ctx, artifactID, PresignMediumSeconds)
}

func (s *Store) PresignLong(ctx context.Context, artifactID string) (string, error) {
	return s.Presign(ctx, artifactID, PresignLongSeconds)
}

// pendingUpload is the record kept between PresignUpload and
// RegisterUploaded, analogous to the multipart manager's own open-state
// record but for a single-shot presigned PUT.
type pendingUpload struct {
	ArtifactID string                 `json:"artifact_id"`
	Key        string                 `json:"key"`
	SessionID  string                 `json:"session_id"`
	UserID     string                 `json:"user_id,omitempty"`
	Scope      types.Scope            `json:"scope"`
	Mime       string                 `json:"mime"`
	Filename   string                 `json:"filename,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

func pendingKey(artifactID string) string { return "pending-upload:" + artifactID }

// PresignUploadInput describes a reservation for a client-driven upload.
type PresignUploadInput struct {
	SessionID       string
	Filename        string
	Mime            string
	DurationSeconds int64
}

// PresignUpload reserves an artifact id and returns a presigned PUT URL.
// The caller must follow up with RegisterUploaded once the upload
// completes; federation registration happens only after that call, per
// spec.md §4.3.1.
func (s *Store) PresignUpload(ctx context.Context, in PresignUploadInput) (artifactID, url string, err error) {
	duration := in.DurationSeconds
	if duration <= 0 {
		duration = PresignShortSeconds
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID, err = s.sessionManager.Allocate(ctx, "", s.defaultTTLSeconds, nil)
		if err != nil {
			return "", "", err
		}
	}

	artifactID = idgen.New("artifact")
	key := grid.Build(s.sandboxID, grid.SessionScopeMarker(sessionID), artifactID, "")

	url, err = s.storage.GeneratePresignedURL(ctx, s.bucket, key, "put_object", duration)
	if err != nil {
		return "", "", errs.Wrap(errs.KindProviderError, "artifact: presign upload", err)
	}

	pending := pendingUpload{
		ArtifactID: artifactID,
		Key:        key,
		SessionID:  sessionID,
		Scope:      types.ScopeSession,
		Mime:       in.Mime,
		Filename:   in.Filename,
	}
	raw, encErr := json.Marshal(pending)
	if encErr != nil {
		return "", "", errs.Wrap(errs.KindProviderError, "artifact: encode pending upload", encErr)
	}
	if err := s.sessions.SetEx(ctx, pendingKey(artifactID), raw, time.Duration(duration)*time.Second); err != nil {
		return "", "", errs.Wrap(errs.KindProviderError, "artifact: persist pending upload", err)
	}
	return artifactID, url, nil
}

// PresignShortUpload/MediumUpload/LongUpload wrap PresignUpload with the
// fixed duration presets.
func (s *Store) PresignShortUpload(ctx context.Context, sessionID, filename, mime string) (string, string, error) {
	return s.PresignUpload(ctx, PresignUploadInput{SessionID: sessionID, Filename: filename, Mime: mime, DurationSeconds: PresignShortSeconds})
}

func (s *Store) PresignMediumUpload(ctx context.Context, sessionID, filename, mime string) (string, string, error) {
	return s.PresignUpload(ctx, PresignUploadInput{SessionID: sessionID, Filename: filename, Mime: mime, DurationSeconds: PresignMediumSeconds})
}

func (s *Store) PresignLongUpload(ctx context.Context, sessionID, filename, mime string) (string, string, error) {
	return s.PresignUpload(ctx, PresignUploadInput{SessionID: sessionID, Filename: filename, Mime: mime, DurationSeconds: PresignLongSeconds})
}

// RegisterUploaded finalizes the metadata record for an artifact uploaded
// through a PresignUpload URL, once the caller knows its size (and,
// optionally, its checksum).
func (s *Store) RegisterUploaded(ctx context.Context, artifactID string, size int64, sha256 string) error {
	raw, ok, err := s.sessions.Get(ctx, pendingKey(artifactID))
	if err != nil {
		return errs.Wrap(errs.KindProviderError, "artifact: read pending upload", err)
	}
	if !ok {
		return errs.New(errs.KindArtifactNotFound, "artifact: no pending upload for "+artifactID)
	}
	var pending pendingUpload
	if err := json.Unmarshal(raw, &pending); err != nil {
		return errs.Wrap(errs.KindProviderError, "artifact: decode pending upload", err)
	}

	meta := types.ArtifactMetadata{
		ArtifactID:      pending.ArtifactID,
		SessionID:       pending.SessionID,
		SandboxID:       s.sandboxID,
		Scope:           pending.Scope,
		OwnerID:         pending.UserID,
		Key:             pending.Key,
		Mime:            pending.Mime,
		Bytes:           size,
		SHA256:          sha256,
		Filename:        pending.Filename,
		Meta:            pending.Meta,
		StoredAt:        timeNow(),
		TTL:             s.defaultTTLSeconds,
		StorageProvider: providerName(s.storage),
		SessionProvider: providerName(s.sessions),
	}
	if err := s.writeMetadata(ctx, meta); err != nil {
		return err
	}
	_ = s.sessions.Delete(ctx, pendingKey(artifactID))
	s.registerFederation(ctx, meta)
	return nil
}
