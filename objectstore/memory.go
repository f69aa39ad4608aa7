package objectstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memoryObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	etag        string
}

type memoryMultipartUpload struct {
	key   string
	parts map[int][]byte
}

// Memory is a Provider backed by an in-process map, grounded on the
// teacher's MockS3Client (storage/s3_mock.go): the same
// bucket/objects-map shape, generalized from a test double into a real,
// usable backend for single-process deployments and tests.
type Memory struct {
	mu        sync.RWMutex
	buckets   map[string]bool
	objects   map[string]map[string]*memoryObject // bucket -> key -> object
	multipart map[string]*memoryMultipartUpload    // uploadID -> upload

	// PutCount, GetCount, DeleteCount support debug/test assertions about
	// call volume, mirroring the teacher mock's *Called bookkeeping.
	PutCount    int
	GetCount    int
	DeleteCount int
}

// NewMemory constructs an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{
		buckets:   make(map[string]bool),
		objects:   make(map[string]map[string]*memoryObject),
		multipart: make(map[string]*memoryMultipartUpload),
	}
}

func etagOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}

func (m *Memory) bucketObjects(bucket string) map[string]*memoryObject {
	objs, ok := m.objects[bucket]
	if !ok {
		objs = make(map[string]*memoryObject)
		m.objects[bucket] = objs
	}
	return objs
}

func (m *Memory) PutObject(_ context.Context, bucket, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	stored := make([]byte, len(body))
	copy(stored, body)
	etag := etagOf(stored)
	m.bucketObjects(bucket)[key] = &memoryObject{
		body:        stored,
		contentType: contentType,
		metadata:    metadata,
		etag:        etag,
	}
	m.PutCount++
	return etag, nil
}

func (m *Memory) GetObject(_ context.Context, bucket, key string) ([]byte, ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCount++
	obj, ok := m.bucketObjects(bucket)[key]
	if !ok {
		return nil, ObjectMeta{}, ErrNoSuchKey
	}
	out := make([]byte, len(obj.body))
	copy(out, obj.body)
	return out, ObjectMeta{
		ContentLength: int64(len(obj.body)),
		ContentType:   obj.contentType,
		Metadata:      obj.metadata,
		ETag:          obj.etag,
	}, nil
}

func (m *Memory) HeadObject(_ context.Context, bucket, key string) (ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objs, ok := m.objects[bucket]
	if !ok {
		return ObjectMeta{}, ErrNoSuchKey
	}
	obj, ok := objs[key]
	if !ok {
		return ObjectMeta{}, ErrNoSuchKey
	}
	return ObjectMeta{
		ContentLength: int64(len(obj.body)),
		ContentType:   obj.contentType,
		Metadata:      obj.metadata,
		ETag:          obj.etag,
	}, nil
}

func (m *Memory) HeadBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	return nil
}

func (m *Memory) ListObjectsV2(_ context.Context, bucket, prefix string, maxKeys int) (ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objs := m.objects[bucket]
	var keys []string
	for k := range objs {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	truncated := false
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
		truncated = true
	}

	out := make([]ListedObject, 0, len(keys))
	for _, k := range keys {
		out = append(out, ListedObject{Key: k, Size: int64(len(objs[k].body))})
	}
	return ListResult{Contents: out, KeyCount: len(out), IsTruncated: truncated}, nil
}

func (m *Memory) DeleteObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCount++
	delete(m.bucketObjects(bucket), key)
	return nil
}

func (m *Memory) DeleteObjects(_ context.Context, bucket string, keys []string) (DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objs := m.bucketObjects(bucket)
	deleted := make([]string, 0, len(keys))
	for _, k := range keys {
		delete(objs, k)
		deleted = append(deleted, k)
	}
	m.DeleteCount += len(keys)
	return DeleteResult{Deleted: deleted}, nil
}

func (m *Memory) CopyObject(_ context.Context, bucket, srcKey, dstKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objs := m.bucketObjects(bucket)
	src, ok := objs[srcKey]
	if !ok {
		return "", ErrNoSuchKey
	}
	body := make([]byte, len(src.body))
	copy(body, src.body)
	meta := make(map[string]string, len(src.metadata))
	for k, v := range src.metadata {
		meta[k] = v
	}
	dst := &memoryObject{body: body, contentType: src.contentType, metadata: meta, etag: etagOf(body)}
	objs[dstKey] = dst
	return dst.etag, nil
}

// GeneratePresignedURL returns a synthetic "memory://" URL encoding the
// operation and expiry; there is no real network endpoint for an
// in-process provider, so the URL is only usable by gridstore's own
// presign/register_uploaded round trip in tests.
func (m *Memory) GeneratePresignedURL(_ context.Context, bucket, key, operation string, expiry int64) (string, error) {
	return fmt.Sprintf("memory://%s/%s?op=%s&expires_in=%d", bucket, key, operation, expiry), nil
}

func (m *Memory) CreateMultipartUpload(_ context.Context, _, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	uploadID := fmt.Sprintf("mpu-%x", buf)
	m.multipart[uploadID] = &memoryMultipartUpload{key: key, parts: make(map[int][]byte)}
	return uploadID, nil
}

func (m *Memory) UploadPart(_ context.Context, _, _, uploadID string, partNumber int, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, ok := m.multipart[uploadID]
	if !ok {
		return "", fmt.Errorf("objectstore: unknown upload %q", uploadID)
	}
	stored := make([]byte, len(body))
	copy(stored, body)
	upload.parts[partNumber] = stored
	return etagOf(stored), nil
}

func (m *Memory) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, parts []CompletedPart) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, ok := m.multipart[uploadID]
	if !ok {
		return "", fmt.Errorf("objectstore: unknown upload %q", uploadID)
	}
	var full []byte
	for _, p := range parts {
		full = append(full, upload.parts[p.PartNumber]...)
	}
	m.buckets[bucket] = true
	etag := etagOf(full)
	m.bucketObjects(bucket)[key] = &memoryObject{body: full, etag: etag}
	delete(m.multipart, uploadID)
	return etag, nil
}

func (m *Memory) AbortMultipartUpload(_ context.Context, _, _, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.multipart, uploadID)
	return nil
}
