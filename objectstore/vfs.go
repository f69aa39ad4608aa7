package objectstore

import "context"

// VFS wraps another Provider behind a distinct type so construction can
// be driven by one of the spec's vfs-* configuration values
// ("vfs-memory", "vfs-filesystem", "vfs-s3", "vfs-sqlite") without the
// rest of gridstore caring: every method is a direct pass-through to the
// wrapped Provider.
//
// This is grounded on original_source/tests/providers/test_vfs_adapter.py
// (see SPEC_FULL.md §B.1): the original VFS adapter is a thin wrapper
// around one of the other storage technologies, not a fourth one. The
// "vfs-sqlite" value is accepted but has no dedicated sqlite-backed
// object store in the example pack (mattn/go-sqlite3 appears only in an
// unrelated example repo, not the teacher) — it is wired to Filesystem
// rooted at the directory containing the configured sqlite path, which
// is documented in DESIGN.md as a deliberate simplification.
type VFS struct {
	delegate Provider
	kind     string
}

var _ Provider = (*VFS)(nil)

// NewVFS wraps delegate, tagging it with kind ("vfs-memory", etc.) purely
// for diagnostics; all behavior is delegate's.
func NewVFS(kind string, delegate Provider) *VFS {
	return &VFS{delegate: delegate, kind: kind}
}

// Kind reports the configured vfs-* provider kind this adapter was built
// with.
func (v *VFS) Kind() string { return v.kind }

func (v *VFS) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	return v.delegate.PutObject(ctx, bucket, key, body, contentType, metadata)
}

func (v *VFS) GetObject(ctx context.Context, bucket, key string) ([]byte, ObjectMeta, error) {
	return v.delegate.GetObject(ctx, bucket, key)
}

func (v *VFS) HeadObject(ctx context.Context, bucket, key string) (ObjectMeta, error) {
	return v.delegate.HeadObject(ctx, bucket, key)
}

func (v *VFS) HeadBucket(ctx context.Context, bucket string) error {
	return v.delegate.HeadBucket(ctx, bucket)
}

func (v *VFS) ListObjectsV2(ctx context.Context, bucket, prefix string, maxKeys int) (ListResult, error) {
	return v.delegate.ListObjectsV2(ctx, bucket, prefix, maxKeys)
}

func (v *VFS) DeleteObject(ctx context.Context, bucket, key string) error {
	return v.delegate.DeleteObject(ctx, bucket, key)
}

func (v *VFS) DeleteObjects(ctx context.Context, bucket string, keys []string) (DeleteResult, error) {
	return v.delegate.DeleteObjects(ctx, bucket, keys)
}

func (v *VFS) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) (string, error) {
	return v.delegate.CopyObject(ctx, bucket, srcKey, dstKey)
}

func (v *VFS) GeneratePresignedURL(ctx context.Context, bucket, key, operation string, expiry int64) (string, error) {
	return v.delegate.GeneratePresignedURL(ctx, bucket, key, operation, expiry)
}

func (v *VFS) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	return v.delegate.CreateMultipartUpload(ctx, bucket, key)
}

func (v *VFS) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body []byte) (string, error) {
	return v.delegate.UploadPart(ctx, bucket, key, uploadID, partNumber, body)
}

func (v *VFS) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error) {
	return v.delegate.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
}

func (v *VFS) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	return v.delegate.AbortMultipartUpload(ctx, bucket, key, uploadID)
}
