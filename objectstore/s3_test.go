package objectstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3Client is a hand-rolled double for s3API, grounded directly on the
// teacher's MockS3Client (storage/s3_mock.go): the same in-memory
// Objects map keyed by object key, the same "return NoSuchKey/NoSuchBucket
// when absent" behavior, extended with the delete/copy/multipart
// operations s3API additionally needs.
type fakeS3Client struct {
	buckets map[string]bool
	objects map[string]*types.Object
	bodies  map[string][]byte
	meta    map[string]map[string]string
	parts   map[string]map[int32][]byte
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{
		buckets: make(map[string]bool),
		objects: make(map[string]*types.Object),
		bodies:  make(map[string][]byte),
		meta:    make(map[string]map[string]string),
		parts:   make(map[string]map[int32][]byte),
	}
}

func (f *fakeS3Client) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.buckets[aws.ToString(params.Bucket)] {
		return &s3.HeadBucketOutput{}, nil
	}
	return nil, &types.NoSuchBucket{}
}

func (f *fakeS3Client) CreateBucket(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.buckets[aws.ToString(params.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	body, _ := io.ReadAll(params.Body)
	f.bodies[key] = body
	f.meta[key] = params.Metadata
	return &s3.PutObjectOutput{ETag: aws.String("\"etag-" + key + "\"")}, nil
}

func (f *fakeS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	body, ok := f.bodies[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata:      f.meta[key],
	}, nil
}

func (f *fakeS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)
	body, ok := f.bodies[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body))), Metadata: f.meta[key]}, nil
}

func (f *fakeS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for k, body := range f.bodies {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			contents = append(contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(body)))})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents, KeyCount: aws.Int32(int32(len(contents)))}, nil
}

func (f *fakeS3Client) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.bodies, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3Client) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	var deleted []types.DeletedObject
	for _, o := range params.Delete.Objects {
		delete(f.bodies, aws.ToString(o.Key))
		deleted = append(deleted, types.DeletedObject{Key: o.Key})
	}
	return &s3.DeleteObjectsOutput{Deleted: deleted}, nil
}

func (f *fakeS3Client) CopyObject(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := aws.ToString(params.CopySource)
	// CopySource is "bucket/key"; tests use a single-segment bucket name.
	for i := 0; i < len(src); i++ {
		if src[i] == '/' {
			src = src[i+1:]
			break
		}
	}
	body, ok := f.bodies[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	dst := aws.ToString(params.Key)
	f.bodies[dst] = body
	f.meta[dst] = f.meta[src]
	return &s3.CopyObjectOutput{CopyObjectResult: &types.CopyObjectResult{ETag: aws.String("\"etag-" + dst + "\"")}}, nil
}

func (f *fakeS3Client) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	uploadID := "upload-" + aws.ToString(params.Key)
	f.parts[uploadID] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(uploadID)}, nil
}

func (f *fakeS3Client) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	body, _ := io.ReadAll(params.Body)
	f.parts[aws.ToString(params.UploadId)][aws.ToInt32(params.PartNumber)] = body
	return &s3.UploadPartOutput{ETag: aws.String("\"part-etag\"")}, nil
}

func (f *fakeS3Client) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	uploadID := aws.ToString(params.UploadId)
	var full []byte
	for _, p := range params.MultipartUpload.Parts {
		full = append(full, f.parts[uploadID][aws.ToInt32(p.PartNumber)]...)
	}
	key := aws.ToString(params.Key)
	f.bodies[key] = full
	delete(f.parts, uploadID)
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String("\"etag-" + key + "\"")}, nil
}

func (f *fakeS3Client) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) error {
	delete(f.parts, aws.ToString(params.UploadId))
	return nil
}

func newTestS3(client s3API) *S3 {
	return &S3{client: client}
}

func TestS3PutGetHeadObject(t *testing.T) {
	ctx := context.Background()
	s := newTestS3(newFakeS3Client())

	_, err := s.PutObject(ctx, "bucket", "grid/sbx/sess-x/art1", []byte("hello"), "text/plain", map[string]string{"artifact_id": "art1"})
	require.NoError(t, err)

	body, meta, err := s.GetObject(ctx, "bucket", "grid/sbx/sess-x/art1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "art1", meta.Metadata["artifact_id"])

	head, err := s.HeadObject(ctx, "bucket", "grid/sbx/sess-x/art1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), head.ContentLength)
}

func TestS3GetObjectMissingMapsToErrNoSuchKey(t *testing.T) {
	ctx := context.Background()
	s := newTestS3(newFakeS3Client())
	_, _, err := s.GetObject(ctx, "bucket", "missing")
	assert.ErrorIs(t, err, ErrNoSuchKey)
}

func TestS3HeadBucketCreatesWhenAbsent(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3Client()
	s := newTestS3(fake)
	require.NoError(t, s.HeadBucket(ctx, "new-bucket"))
	assert.True(t, fake.buckets["new-bucket"])
}

func TestS3CopyObject(t *testing.T) {
	ctx := context.Background()
	s := newTestS3(newFakeS3Client())
	_, err := s.PutObject(ctx, "bucket", "src", []byte("payload"), "text/plain", nil)
	require.NoError(t, err)

	_, err = s.CopyObject(ctx, "bucket", "src", "dst")
	require.NoError(t, err)

	body, _, err := s.GetObject(ctx, "bucket", "dst")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestS3DeleteObjectsBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestS3(newFakeS3Client())
	_, _ = s.PutObject(ctx, "bucket", "k1", []byte("1"), "", nil)
	_, _ = s.PutObject(ctx, "bucket", "k2", []byte("2"), "", nil)

	res, err := s.DeleteObjects(ctx, "bucket", []string{"k1", "k2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, res.Deleted)
}

func TestS3MultipartRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestS3(newFakeS3Client())

	uploadID, err := s.CreateMultipartUpload(ctx, "bucket", "big-object")
	require.NoError(t, err)

	etag1, err := s.UploadPart(ctx, "bucket", "big-object", uploadID, 1, []byte("part-one-"))
	require.NoError(t, err)
	etag2, err := s.UploadPart(ctx, "bucket", "big-object", uploadID, 2, []byte("part-two"))
	require.NoError(t, err)

	_, err = s.CompleteMultipartUpload(ctx, "bucket", "big-object", uploadID, []CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)

	body, _, err := s.GetObject(ctx, "bucket", "big-object")
	require.NoError(t, err)
	assert.Equal(t, "part-one-part-two", string(body))
}

func TestS3AbortMultipartUpload(t *testing.T) {
	ctx := context.Background()
	s := newTestS3(newFakeS3Client())
	uploadID, err := s.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)
	assert.NoError(t, s.AbortMultipartUpload(ctx, "bucket", "key", uploadID))
}
