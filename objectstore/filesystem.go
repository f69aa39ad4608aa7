package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Filesystem is a Provider that stores objects as plain files under a
// root directory, one subdirectory per bucket. It follows the teacher's
// local-file handling idiom from storage/s3aws.go (MinioGetObject):
// os.MkdirAll before write, io.Copy for streaming, no intermediate
// buffering for the bytes themselves.
//
// This adapter is intentionally stdlib-only: no library in the example
// pack wraps "plain directory as an object store" behind an S3-shaped
// API, so there is nothing to wire here beyond os/io/filepath.
type Filesystem struct {
	root string

	mu        sync.Mutex
	multipart map[string]*fsMultipartUpload
}

type fsMultipartUpload struct {
	bucket, key string
	dir         string
}

// NewFilesystem constructs a Filesystem provider rooted at root. root is
// created if absent.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create fs root %q: %w", root, err)
	}
	return &Filesystem{root: root, multipart: make(map[string]*fsMultipartUpload)}, nil
}

func (f *Filesystem) objectPath(bucket, key string) string {
	return filepath.Join(f.root, bucket, filepath.FromSlash(key))
}

func (f *Filesystem) metaPath(bucket, key string) string {
	return f.objectPath(bucket, key) + ".meta"
}

func (f *Filesystem) PutObject(_ context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	path := f.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: mkdir for %q: %w", key, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("objectstore: write %q: %w", key, err)
	}
	if err := f.writeMeta(bucket, key, contentType, metadata); err != nil {
		return "", err
	}
	return etagOf(body), nil
}

func (f *Filesystem) writeMeta(bucket, key, contentType string, metadata map[string]string) error {
	var b strings.Builder
	b.WriteString(contentType)
	b.WriteString("\n")
	for k, v := range metadata {
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	return os.WriteFile(f.metaPath(bucket, key), []byte(b.String()), 0o644)
}

func (f *Filesystem) readMeta(bucket, key string) (contentType string, metadata map[string]string) {
	metadata = make(map[string]string)
	data, err := os.ReadFile(f.metaPath(bucket, key))
	if err != nil {
		return "", metadata
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 {
		contentType = lines[0]
	}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		}
	}
	return contentType, metadata
}

func (f *Filesystem) GetObject(_ context.Context, bucket, key string) ([]byte, ObjectMeta, error) {
	path := f.objectPath(bucket, key)
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ObjectMeta{}, ErrNoSuchKey
	}
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("objectstore: read %q: %w", key, err)
	}
	contentType, metadata := f.readMeta(bucket, key)
	return body, ObjectMeta{
		ContentLength: int64(len(body)),
		ContentType:   contentType,
		Metadata:      metadata,
		ETag:          etagOf(body),
	}, nil
}

func (f *Filesystem) HeadObject(_ context.Context, bucket, key string) (ObjectMeta, error) {
	path := f.objectPath(bucket, key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ObjectMeta{}, ErrNoSuchKey
	}
	if err != nil {
		return ObjectMeta{}, fmt.Errorf("objectstore: stat %q: %w", key, err)
	}
	contentType, metadata := f.readMeta(bucket, key)
	return ObjectMeta{ContentLength: info.Size(), ContentType: contentType, Metadata: metadata}, nil
}

func (f *Filesystem) HeadBucket(_ context.Context, bucket string) error {
	return os.MkdirAll(filepath.Join(f.root, bucket), 0o755)
}

func (f *Filesystem) ListObjectsV2(_ context.Context, bucket, prefix string, maxKeys int) (ListResult, error) {
	root := filepath.Join(f.root, bucket)
	var keys []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("objectstore: list %q: %w", prefix, err)
	}
	sort.Strings(keys)

	truncated := false
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
		truncated = true
	}

	out := make([]ListedObject, 0, len(keys))
	for _, k := range keys {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(k)))
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		out = append(out, ListedObject{Key: k, Size: size})
	}
	return ListResult{Contents: out, KeyCount: len(out), IsTruncated: truncated}, nil
}

func (f *Filesystem) DeleteObject(_ context.Context, bucket, key string) error {
	path := f.objectPath(bucket, key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: delete %q: %w", key, err)
	}
	_ = os.Remove(f.metaPath(bucket, key))
	return nil
}

func (f *Filesystem) DeleteObjects(ctx context.Context, bucket string, keys []string) (DeleteResult, error) {
	deleted := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := f.DeleteObject(ctx, bucket, k); err != nil {
			return DeleteResult{Deleted: deleted}, err
		}
		deleted = append(deleted, k)
	}
	return DeleteResult{Deleted: deleted}, nil
}

func (f *Filesystem) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) (string, error) {
	body, meta, err := f.GetObject(ctx, bucket, srcKey)
	if err != nil {
		return "", err
	}
	return f.PutObject(ctx, bucket, dstKey, body, meta.ContentType, meta.Metadata)
}

// GeneratePresignedURL returns a "file://" URL; there is no signing
// authority for plain disk storage, so the URL is a direct path usable
// only by gridstore's own in-process presign round trip.
func (f *Filesystem) GeneratePresignedURL(_ context.Context, bucket, key, operation string, expiry int64) (string, error) {
	return fmt.Sprintf("file://%s?op=%s&expires_in=%d", f.objectPath(bucket, key), operation, expiry), nil
}

func (f *Filesystem) CreateMultipartUpload(_ context.Context, bucket, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploadID := fmt.Sprintf("mpu-%d", len(f.multipart)+1)
	dir := filepath.Join(f.root, ".multipart", uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("objectstore: create multipart staging dir: %w", err)
	}
	f.multipart[uploadID] = &fsMultipartUpload{bucket: bucket, key: key, dir: dir}
	return uploadID, nil
}

func (f *Filesystem) UploadPart(_ context.Context, _, _, uploadID string, partNumber int, body []byte) (string, error) {
	f.mu.Lock()
	upload, ok := f.multipart[uploadID]
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("objectstore: unknown upload %q", uploadID)
	}
	path := filepath.Join(upload.dir, fmt.Sprintf("part-%06d", partNumber))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("objectstore: write part %d: %w", partNumber, err)
	}
	return etagOf(body), nil
}

func (f *Filesystem) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error) {
	f.mu.Lock()
	upload, ok := f.multipart[uploadID]
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("objectstore: unknown upload %q", uploadID)
	}

	path := f.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: mkdir for %q: %w", key, err)
	}
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("objectstore: create %q: %w", key, err)
	}
	defer out.Close()

	for _, p := range parts {
		partPath := filepath.Join(upload.dir, fmt.Sprintf("part-%06d", p.PartNumber))
		in, err := os.Open(partPath)
		if err != nil {
			return "", fmt.Errorf("objectstore: open part %d: %w", p.PartNumber, err)
		}
		_, copyErr := io.Copy(out, in)
		in.Close()
		if copyErr != nil {
			return "", fmt.Errorf("objectstore: assemble part %d: %w", p.PartNumber, copyErr)
		}
	}

	f.mu.Lock()
	delete(f.multipart, uploadID)
	f.mu.Unlock()
	_ = os.RemoveAll(upload.dir)

	body, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("objectstore: read assembled object: %w", err)
	}
	return etagOf(body), nil
}

func (f *Filesystem) AbortMultipartUpload(_ context.Context, _, _, uploadID string) error {
	f.mu.Lock()
	upload, ok := f.multipart[uploadID]
	delete(f.multipart, uploadID)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return os.RemoveAll(upload.dir)
}
