package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photosync/internal/syncerr"
)

// fakeS3 is an in-memory bucket. Func fields override individual calls.
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string

	PutObjectFunc  func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	HeadBucketFunc func(ctx context.Context, params *s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.PutObjectFunc != nil {
		return f.PutObjectFunc(ctx, params)
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = body
	f.contentTypes[aws.ToString(params.Key)] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.HeadBucketFunc != nil {
		return f.HeadBucketFunc(ctx, params)
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3UploadDownloadDelete(t *testing.T) {
	fake := newFakeS3()
	client := newS3WithAPI(fake, "bucket", "photos")
	ctx := context.Background()

	key, err := client.Upload(ctx, "P100", jpegHeader)
	require.NoError(t, err)
	assert.Equal(t, "photos/P100.jpg", key)
	assert.Equal(t, "image/jpeg", fake.contentTypes[key])

	data, err := client.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, data)

	exists, err := client.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	deleted, err := client.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = client.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = client.Download(ctx, key)
	assert.True(t, syncerr.IsNotFound(err), "expected not found, got %v", err)
}

func TestS3UploadClassifiesThrottling(t *testing.T) {
	fake := newFakeS3()
	fake.PutObjectFunc = func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}
	}
	client := newS3WithAPI(fake, "bucket", "photos")

	_, err := client.Upload(context.Background(), "P1", []byte("x"))
	require.Error(t, err)
	assert.True(t, syncerr.IsTransient(err), "expected transient, got %v", err)
}

func TestS3PingFailsOnMissingBucket(t *testing.T) {
	fake := newFakeS3()
	fake.HeadBucketFunc = func(context.Context, *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "NoSuchBucket"}
	}
	client := newS3WithAPI(fake, "missing", "photos")

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, syncerr.IsPermanent(err), "expected permanent, got %v", err)
}

func TestClassifyS3(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind syncerr.Kind
	}{
		{"no such key", &types.NoSuchKey{}, syncerr.KindNotFound},
		{"api not found", &smithy.GenericAPIError{Code: "NotFound"}, syncerr.KindNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, syncerr.KindPermanent},
		{"internal error", &smithy.GenericAPIError{Code: "InternalError"}, syncerr.KindTransient},
		{"http 503", &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}},
			Err:      errors.New("unavailable"),
		}, syncerr.KindTransient},
		{"deadline", context.DeadlineExceeded, syncerr.KindTransient},
		{"other", errors.New("boom"), syncerr.KindPermanent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyS3("op", "photos/A.jpg", tc.err)
			assert.Equal(t, tc.kind, syncerr.KindOf(err))
			assert.ErrorIs(t, err, tc.err)
		})
	}
	assert.NoError(t, classifyS3("op", "k", nil))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	assert.True(t, syncerr.IsValidation(err), "expected validation error, got %v", err)
}
