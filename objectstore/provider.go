// Package objectstore provides the pluggable object-storage abstraction
// gridstore's artifact coordinator puts bytes through: memory, local
// filesystem, S3-compatible (including IBM Cloud Object Storage), and a
// thin VFS pass-through adapter.
//
// The interface is named in S3-API terms, per the spec, because that is
// the lowest common denominator every adapter can satisfy; it is grounded
// on the teacher's storage.S3Client interface (storage/s3_interface.go)
// and its hand-rolled MockS3Client (storage/s3_mock.go) — the same
// narrow-interface-plus-mock shape, generalized from an AWS-SDK-shaped
// client interface to gridstore's own Provider contract so every backend
// (not just S3) can satisfy it.
package objectstore

import "context"

// ObjectMeta is the metadata returned by Head and carried alongside Body
// on Get.
type ObjectMeta struct {
	ContentLength int64
	ContentType   string
	Metadata      map[string]string
	ETag          string
}

// ListedObject is one entry returned by List.
type ListedObject struct {
	Key  string
	Size int64
}

// ListResult is the result of a prefix listing, mirroring ListObjectsV2.
type ListResult struct {
	Contents    []ListedObject
	KeyCount    int
	IsTruncated bool
}

// DeleteResult reports which keys a batch DeleteObjects actually removed.
type DeleteResult struct {
	Deleted []string
}

// PresignedURLExpiry bounds controlled by the coordinator (§4.3.1 presign
// variants): short/medium/long presets live there, not here.

// Provider is the minimal contract every storage backend satisfies.
// It intentionally mirrors the S3 wire surface named in the spec so the
// S3 adapter is close to a direct pass-through and every other adapter
// (memory, filesystem, vfs) only has to emulate that same shape.
type Provider interface {
	// PutObject stores body under key, returning an ETag.
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) (etag string, err error)

	// GetObject returns the full object body and metadata.
	GetObject(ctx context.Context, bucket, key string) (body []byte, meta ObjectMeta, err error)

	// HeadObject returns metadata without the body.
	HeadObject(ctx context.Context, bucket, key string) (meta ObjectMeta, err error)

	// HeadBucket checks the bucket/root directory exists, creating it if
	// the backend supports idempotent creation (filesystem, memory).
	HeadBucket(ctx context.Context, bucket string) error

	// ListObjectsV2 lists keys under prefix, capped at maxKeys (0 means
	// the backend's default page size).
	ListObjectsV2(ctx context.Context, bucket, prefix string, maxKeys int) (ListResult, error)

	// DeleteObject removes key. Deleting an absent key is not an error.
	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteObjects removes multiple keys in one call.
	DeleteObjects(ctx context.Context, bucket string, keys []string) (DeleteResult, error)

	// CopyObject copies srcKey to dstKey within the same bucket.
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) (etag string, err error)

	// GeneratePresignedURL returns a signed, time-limited URL for the
	// given operation ("get_object" or "put_object").
	GeneratePresignedURL(ctx context.Context, bucket, key, operation string, expiry int64) (string, error)

	// Multipart is the multipart upload surface. Backends without native
	// multipart support (memory, filesystem) emulate it with in-process
	// part buffering.
	Multipart
}

// Multipart is the create/upload-part/complete/abort surface every
// Provider exposes so multipart.Manager can drive any backend uniformly.
type Multipart interface {
	CreateMultipartUpload(ctx context.Context, bucket, key string) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body []byte) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (etag string, err error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
}

// CompletedPart identifies one part in a CompleteMultipartUpload call.
type CompletedPart struct {
	PartNumber int
	ETag       string
}
