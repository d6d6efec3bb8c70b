package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"photosync/internal/syncerr"
)

// Local stores objects as files under a root directory. It backs the
// "local" blob backend and is used for tests and single-host setups.
type Local struct {
	root   string
	prefix string
}

// NewLocal creates a local store rooted at root.
func NewLocal(root, prefix string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, syncerr.Validationf("newLocal", "local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs, prefix: prefix}, nil
}

var _ Client = (*Local)(nil)

// Root returns the absolute directory holding the objects.
func (l *Local) Root() string {
	return l.root
}

// Upload writes data through a temp file and renames it into place, replacing
// any previous object for id.
func (l *Local) Upload(ctx context.Context, id string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", syncerr.Transient("upload", err)
	}
	key, err := ObjectKey(l.prefix, id)
	if err != nil {
		return "", err
	}
	dst := l.pathFromKey(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", syncerr.Permanent("upload", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, "tmp"), "put-*")
	if err != nil {
		return "", syncerr.Permanent("upload", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.ReadFrom(bytes.NewReader(data)); err != nil {
		cleanup()
		return "", syncerr.Permanent("upload", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", syncerr.Permanent("upload", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return "", syncerr.Permanent("upload", err)
	}
	return key, nil
}

// Download reads the object at key.
func (l *Local) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, syncerr.Transient("download", err)
	}
	clean, err := validatePath("download", key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.pathFromKey(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, syncerr.NotFound("download", fmt.Errorf("blob %s: %w", clean, syncerr.ErrNotFound))
	}
	if err != nil {
		return nil, syncerr.Permanent("download", err)
	}
	return data, nil
}

// Delete removes the object at key. Missing files report false.
func (l *Local) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, syncerr.Transient("delete", err)
	}
	clean, err := validatePath("delete", key)
	if err != nil {
		return false, err
	}
	err = os.Remove(l.pathFromKey(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, syncerr.Permanent("delete", err)
	}
	return true, nil
}

// Exists reports whether an object is stored at key.
func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, syncerr.Transient("exists", err)
	}
	clean, err := validatePath("exists", key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(l.pathFromKey(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, syncerr.Permanent("exists", err)
	}
	return info.Mode().IsRegular(), nil
}

// Ping checks that the root is still a writable directory.
func (l *Local) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return syncerr.Transient("ping", err)
	}
	info, err := os.Stat(l.root)
	if err != nil {
		return syncerr.Permanent("ping", err)
	}
	if !info.IsDir() {
		return syncerr.Permanent("ping", fmt.Errorf("%s is not a directory", l.root))
	}
	probe, err := os.CreateTemp(filepath.Join(l.root, "tmp"), "ping-*")
	if err != nil {
		return syncerr.Permanent("ping", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func (l *Local) pathFromKey(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}
