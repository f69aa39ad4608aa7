package artifact

import (
	"context"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/types"
)

// UpdateInput patches an existing artifact's object and/or metadata.
// Zero-value fields are left unchanged except Meta, which replaces the
// stored map wholesale when non-nil (matching a metadata PATCH, not a
// deep merge, since the spec names no merge semantics for this call).
type UpdateInput struct {
	Data     []byte // nil leaves the object body unchanged
	HasData  bool
	Mime     string
	Summary  string
	Meta     map[string]interface{}
	Filename string
}

// UpdateFile rewrites an artifact's object at its existing grid key and
// updates its metadata, writing the metadata last so a failed object
// write never leaves stale metadata pointing at the old bytes while
// claiming new ones. See spec.md §4.3.1.
func (s *Store) UpdateFile(ctx context.Context, artifactID string, in UpdateInput) error {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		return err
	}

	if in.HasData {
		checksum := sha256Hex(in.Data)
		err := s.retry.withRetry(ctx, func() error {
			_, putErr := s.storage.PutObject(ctx, s.bucket, meta.Key, in.Data, mimeOr(in.Mime, meta.Mime), map[string]string{
				"artifact_id": artifactID,
				"session_id":  meta.SessionID,
				"sandbox_id":  s.sandboxID,
			})
			return mapProviderErr(putErr)
		})
		if err != nil {
			return err
		}
		meta.Bytes = int64(len(in.Data))
		meta.SHA256 = checksum
	}
	if in.Mime != "" {
		meta.Mime = in.Mime
	}
	if in.Summary != "" {
		meta.Summary = in.Summary
	}
	if in.Meta != nil {
		meta.Meta = in.Meta
	}
	if in.Filename != "" {
		meta.Filename = in.Filename
	}

	return s.writeMetadata(ctx, meta)
}

func mimeOr(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// UpdateMetadata applies a metadata-only patch (no object rewrite).
func (s *Store) UpdateMetadata(ctx context.Context, artifactID string, in UpdateInput) error {
	in.HasData = false
	return s.UpdateFile(ctx, artifactID, in)
}

// ExtendTTL re-writes an artifact's metadata record with its TTL
// extended by additionalSeconds. It does not extend the object's
// provider-side TTL, since providers don't offer one universally.
func (s *Store) ExtendTTL(ctx context.Context, artifactID string, additionalSeconds int) error {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		return err
	}
	meta.TTL += additionalSeconds
	return s.writeMetadata(ctx, meta)
}

// CopyFile allocates a new artifact id and copies bytes within the same
// session. Cross-session copies are refused per the security invariant
// in spec.md §7 — the call fails before mutating any state.
func (s *Store) CopyFile(ctx context.Context, artifactID, newFilename, targetSessionID string, newMeta map[string]interface{}) (string, error) {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		return "", err
	}
	if targetSessionID != "" && meta.Scope == types.ScopeSession && targetSessionID != meta.SessionID {
		return "", errs.New(errs.KindAccessDenied, "artifact: cross-session copy is not permitted")
	}

	body, _, getErr := s.storage.GetObject(ctx, s.bucket, meta.Key)
	if mapped := mapProviderErr(getErr); mapped != nil {
		return "", mapped
	}

	in := StoreInput{
		Data:      body,
		Mime:      meta.Mime,
		Summary:   meta.Summary,
		Meta:      newMeta,
		Filename:  chooseFilename(newFilename, meta.Filename),
		SessionID: meta.SessionID,
		UserID:    meta.OwnerID,
		Scope:     meta.Scope,
		TTL:       meta.TTL,
	}
	if newMeta == nil {
		in.Meta = meta.Meta
	}
	return s.Store(ctx, in)
}

// MoveFile renames an artifact's filename in place; the grid key never
// changes. Cross-session moves are refused, matching CopyFile.
func (s *Store) MoveFile(ctx context.Context, artifactID, newFilename, newSessionID string) error {
	meta, err := s.readMetadata(ctx, artifactID)
	if err != nil {
		return err
	}
	if newSessionID != "" && meta.Scope == types.ScopeSession && newSessionID != meta.SessionID {
		return errs.New(errs.KindAccessDenied, "artifact: cross-session move is not permitted")
	}
	if newFilename == "" {
		return nil
	}
	meta.Filename = newFilename
	return s.writeMetadata(ctx, meta)
}

func chooseFilename(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// WriteInput is the convenience form of Store used by WriteFile.
type WriteInput struct {
	Content             []byte
	Filename            string
	Mime                string
	Summary             string
	SessionID           string
	OverwriteArtifactID string
	Meta                map[string]interface{}
}

// WriteFile is a convenience wrapper over Store (or, when
// OverwriteArtifactID is set, over UpdateFile) matching spec.md §4.3.1.
// Overwriting an artifact that belongs to a different session fails with
// AccessDenied.
func (s *Store) WriteFile(ctx context.Context, in WriteInput) (string, error) {
	if in.OverwriteArtifactID != "" {
		meta, err := s.readMetadata(ctx, in.OverwriteArtifactID)
		if err != nil {
			return "", err
		}
		if meta.Scope == types.ScopeSession && in.SessionID != "" && in.SessionID != meta.SessionID {
			return "", errs.New(errs.KindAccessDenied, "artifact: cross-session overwrite is not permitted")
		}
		err = s.UpdateFile(ctx, in.OverwriteArtifactID, UpdateInput{
			Data:     in.Content,
			HasData:  true,
			Mime:     in.Mime,
			Summary:  in.Summary,
			Meta:     in.Meta,
			Filename: in.Filename,
		})
		if err != nil {
			return "", err
		}
		return in.OverwriteArtifactID, nil
	}

	return s.Store(ctx, StoreInput{
		Data:      in.Content,
		Mime:      in.Mime,
		Summary:   in.Summary,
		Meta:      in.Meta,
		Filename:  in.Filename,
		SessionID: in.SessionID,
		Scope:     types.ScopeSession,
	})
}

// ReadFile retrieves an artifact's bytes, matching spec.md §4.3.1's
// retrieve + decode convenience.
func (s *Store) ReadFile(ctx context.Context, artifactID, sessionID, userID string) ([]byte, error) {
	return s.Retrieve(ctx, artifactID, sessionID, userID)
}

// ReadFileText retrieves an artifact's bytes and decodes them as UTF-8
// text. gridstore supports only UTF-8 decoding, since none of the
// example pack's dependencies offer a general text-encoding conversion
// library and the spec treats serialization specifics as out of scope
// (spec.md §1).
func (s *Store) ReadFileText(ctx context.Context, artifactID, sessionID, userID string) (string, error) {
	data, err := s.Retrieve(ctx, artifactID, sessionID, userID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
