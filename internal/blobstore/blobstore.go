// Package blobstore implements the remote copy of photo payloads. Objects are
// keyed by a path derived from the record code; backends exist for a local
// directory tree, AWS S3 and S3-compatible MinIO servers.
package blobstore

import (
	"context"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"photosync/internal/syncerr"
)

const (
	DefaultPrefix    = "photos"
	objectExtension  = ".jpg"
	defaultMIMEType  = "application/octet-stream"
	maxObjectKeySize = 1024
)

// Client is the blob store contract used by the transfer pipelines.
type Client interface {
	// Upload stores data for the record id and returns the object path.
	Upload(ctx context.Context, id string, data []byte) (string, error)
	// Download returns the object bytes. Missing objects fail with a NotFound error.
	Download(ctx context.Context, path string) ([]byte, error)
	// Delete removes the object and reports whether it existed.
	Delete(ctx context.Context, path string) (bool, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// ObjectKey derives the object path for a record code.
func ObjectKey(prefix, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", syncerr.Validationf("objectKey", "blob id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", syncerr.Validationf("objectKey", "invalid blob id %q", id)
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	key := id + objectExtension
	if prefix != "" {
		key = path.Join(prefix, key)
	}
	if len(key) > maxObjectKeySize {
		return "", syncerr.Validationf("objectKey", "object key exceeds %d bytes", maxObjectKeySize)
	}
	return key, nil
}

// ContentType sniffs the MIME type of an object payload.
func ContentType(data []byte) string {
	if len(data) == 0 {
		return defaultMIMEType
	}
	return mimetype.Detect(data).String()
}

func validatePath(op, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", syncerr.Validationf(op, "blob path is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", syncerr.Validationf(op, "blob path must be relative")
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", syncerr.Validationf(op, "invalid blob path %q", key)
	}
	return clean, nil
}
