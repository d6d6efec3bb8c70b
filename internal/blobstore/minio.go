package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"photosync/internal/syncerr"
)

// MinioOptions configures the MinIO backend.
type MinioOptions struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Minio stores objects on an S3-compatible MinIO server.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ Client = (*Minio)(nil)

// NewMinio connects to a MinIO endpoint with static credentials.
func NewMinio(opts MinioOptions) (*Minio, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, syncerr.Validationf("newMinio", "blob.endpoint is required for the minio backend")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, syncerr.Validationf("newMinio", "blob.bucket is required for the minio backend")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(opts.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, syncerr.Validation("newMinio", err)
	}
	return &Minio{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Upload puts data under the key derived from id.
func (m *Minio) Upload(ctx context.Context, id string, data []byte) (string, error) {
	key, err := ObjectKey(m.prefix, id)
	if err != nil {
		return "", err
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ContentType(data)})
	if err != nil {
		return "", classifyMinio("upload", key, err)
	}
	return key, nil
}

// Download fetches the object at key.
func (m *Minio) Download(ctx context.Context, key string) ([]byte, error) {
	clean, err := validatePath("download", key)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinio("download", clean, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	// GetObject is lazy; a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinio("download", clean, err)
	}
	return data, nil
}

// Delete removes the object at key and reports whether it existed.
func (m *Minio) Delete(ctx context.Context, key string) (bool, error) {
	exists, err := m.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}
	clean, _ := validatePath("delete", key)
	if err := m.client.RemoveObject(ctx, m.bucket, clean, minio.RemoveObjectOptions{}); err != nil {
		return false, classifyMinio("delete", clean, err)
	}
	return true, nil
}

// Exists stats the object at key.
func (m *Minio) Exists(ctx context.Context, key string) (bool, error) {
	clean, err := validatePath("exists", key)
	if err != nil {
		return false, err
	}
	if _, err := m.client.StatObject(ctx, m.bucket, clean, minio.StatObjectOptions{}); err != nil {
		classified := classifyMinio("exists", clean, err)
		if syncerr.IsNotFound(classified) {
			return false, nil
		}
		return false, classified
	}
	return true, nil
}

// Ping checks that the bucket exists.
func (m *Minio) Ping(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return classifyMinio("ping", m.bucket, err)
	}
	if !ok {
		return syncerr.Permanent("ping", fmt.Errorf("bucket %s does not exist", m.bucket))
	}
	return nil
}

// classifyMinio maps MinIO client errors onto the sync error taxonomy.
func classifyMinio(op, key string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("minio %s: %w", key, err)

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return syncerr.NotFound(op, wrapped)
	case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return syncerr.Permanent(op, wrapped)
	case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
		return syncerr.Transient(op, wrapped)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return syncerr.NotFound(op, wrapped)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return syncerr.Transient(op, wrapped)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return syncerr.Transient(op, wrapped)
	}
	return syncerr.Permanent(op, wrapped)
}
