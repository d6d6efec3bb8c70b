package blobstore

import (
	"context"
	"strings"

	"photosync/internal/syncerr"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Settings selects and configures a backend.
type Settings struct {
	Backend        string
	Prefix         string
	LocalRoot      string
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// New builds the backend named by s.Backend.
func New(ctx context.Context, s Settings) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case "", BackendLocal:
		return NewLocal(s.LocalRoot, s.Prefix)
	case BackendS3:
		return NewS3(ctx, S3Options{
			Bucket:         s.Bucket,
			Prefix:         s.Prefix,
			Region:         s.Region,
			Endpoint:       s.Endpoint,
			AccessKey:      s.AccessKey,
			SecretKey:      s.SecretKey,
			ForcePathStyle: s.ForcePathStyle,
		})
	case BackendMinio:
		return NewMinio(MinioOptions{
			Endpoint:  s.Endpoint,
			Bucket:    s.Bucket,
			Prefix:    s.Prefix,
			Region:    s.Region,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			UseSSL:    s.UseSSL,
		})
	default:
		return nil, syncerr.Validationf("newBlobStore", "unknown blob backend %q (valid: local, s3, minio)", s.Backend)
	}
}
