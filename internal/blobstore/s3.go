package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"photosync/internal/syncerr"
)

const defaultRegion = "us-east-1"

// s3API is the subset of the S3 client used here, kept small so tests can fake it.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options configures the S3 backend. Empty credentials fall back to the
// default AWS credential chain.
type S3Options struct {
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3 stores objects in an S3 bucket.
type S3 struct {
	api    s3API
	bucket string
	prefix string
}

var _ Client = (*S3)(nil)

// NewS3 builds an S3 backend from the default AWS config plus opts. SDK level
// retries are disabled; callers wrap the client in NewRetrying.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, syncerr.Validationf("newS3", "blob.bucket is required for the s3 backend")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, syncerr.Validation("newS3", fmt.Errorf("load aws config: %w", err))
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	cfg.RetryMaxAttempts = 1

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return newS3WithAPI(client, opts.Bucket, opts.Prefix), nil
}

func newS3WithAPI(api s3API, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: prefix}
}

// Upload puts data under the key derived from id.
func (c *S3) Upload(ctx context.Context, id string, data []byte) (string, error) {
	key, err := ObjectKey(c.prefix, id)
	if err != nil {
		return "", err
	}
	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType(data)),
	})
	if err != nil {
		return "", classifyS3("upload", key, err)
	}
	return key, nil
}

// Download fetches the object at key.
func (c *S3) Download(ctx context.Context, key string) ([]byte, error) {
	clean, err := validatePath("download", key)
	if err != nil {
		return nil, err
	}
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(clean),
	})
	if err != nil {
		return nil, classifyS3("download", clean, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, syncerr.Transient("download", fmt.Errorf("read %s: %w", clean, err))
	}
	return data, nil
}

// Delete removes the object at key. S3 deletes are idempotent, so existence
// is checked first to report whether anything was removed.
func (c *S3) Delete(ctx context.Context, key string) (bool, error) {
	exists, err := c.Exists(ctx, key)
	if err != nil || !exists {
		return false, err
	}
	clean, _ := validatePath("delete", key)
	_, err = c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(clean),
	})
	if err != nil {
		return false, classifyS3("delete", clean, err)
	}
	return true, nil
}

// Exists issues a HEAD request for key.
func (c *S3) Exists(ctx context.Context, key string) (bool, error) {
	clean, err := validatePath("exists", key)
	if err != nil {
		return false, err
	}
	_, err = c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(clean),
	})
	if err != nil {
		classified := classifyS3("exists", clean, err)
		if syncerr.IsNotFound(classified) {
			return false, nil
		}
		return false, classified
	}
	return true, nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (c *S3) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return classifyS3("ping", c.bucket, err)
	}
	return nil
}

var s3TransientCodes = map[string]struct{}{
	"RequestTimeout":           {},
	"RequestTimeTooSkewed":     {},
	"SlowDown":                 {},
	"Throttling":               {},
	"ThrottlingException":      {},
	"TooManyRequestsException": {},
	"InternalError":            {},
	"ServiceUnavailable":       {},
}

// classifyS3 maps SDK errors onto the sync error taxonomy.
func classifyS3(op, key string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("s3 %s: %w", key, err)

	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return syncerr.NotFound(op, wrapped)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "NoSuchKey" || code == "NotFound":
			return syncerr.NotFound(op, wrapped)
		case code == "NoSuchBucket" || code == "AccessDenied" || code == "InvalidAccessKeyId" || code == "SignatureDoesNotMatch":
			return syncerr.Permanent(op, wrapped)
		}
		if _, ok := s3TransientCodes[code]; ok {
			return syncerr.Transient(op, wrapped)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == 404:
			return syncerr.NotFound(op, wrapped)
		case status == 429 || status >= 500:
			return syncerr.Transient(op, wrapped)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return syncerr.Transient(op, wrapped)
	}
	return syncerr.Permanent(op, wrapped)
}
