// Package filestore is the local filesystem side of the sync: it lists import
// candidates, reads and writes payloads, hashes content and archives
// processed files.
package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"golang.org/x/crypto/blake2b"

	"photosync/internal/syncerr"
)

const (
	HashSHA256  = "sha256"
	HashBLAKE2b = "blake2b"

	maxArchiveAttempts = 1000
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
}

var registerExifParsers sync.Once

// Store performs filesystem operations for the pipelines.
type Store struct {
	algorithm string
}

// New returns a Store hashing with algorithm (sha256 when empty).
func New(algorithm string) (*Store, error) {
	alg, err := ParseHashAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return &Store{algorithm: alg}, nil
}

// ParseHashAlgorithm normalises a configured digest name.
func ParseHashAlgorithm(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", HashSHA256:
		return HashSHA256, nil
	case HashBLAKE2b, "blake2b-256":
		return HashBLAKE2b, nil
	default:
		return "", syncerr.Validationf("hashAlgorithm", "unsupported hash algorithm %q (valid: sha256, blake2b)", raw)
	}
}

// Algorithm returns the digest used by Hash.
func (s *Store) Algorithm() string {
	return s.algorithm
}

// ListImages returns the JPEG files directly inside dir, sorted by name.
// Extensions match case-insensitively; subdirectories are not descended.
func (s *Store) ListImages(dir string) ([]string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, syncerr.Validationf("listImages", "directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, syncerr.Validation("listImages", err)
	}
	if !info.IsDir() {
		return nil, syncerr.Validationf("listImages", "%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, syncerr.Permanent("listImages", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadAll returns the bytes of the file at path.
func (s *Store) ReadAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, syncerr.NotFound("readAll", err)
		}
		return nil, syncerr.Permanent("readAll", err)
	}
	return data, nil
}

// WriteAll writes data to dir/name through a temp file, replacing any
// existing file, and returns the final path.
func (s *Store) WriteAll(dir, name string, data []byte) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", syncerr.Validationf("writeAll", "directory is required")
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", syncerr.Validationf("writeAll", "invalid file name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", syncerr.Permanent("writeAll", err)
	}

	dst := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", syncerr.Permanent("writeAll", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", syncerr.Permanent("writeAll", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", syncerr.Permanent("writeAll", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", syncerr.Permanent("writeAll", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", syncerr.Permanent("writeAll", err)
	}
	return dst, nil
}

// Archive moves the file at path into archiveDir and returns its new path.
// An existing file of the same name is never overwritten; the moved file gets
// a numeric suffix instead (name_1.jpg, name_2.jpg, ...).
func (s *Store) Archive(path, archiveDir string) (string, error) {
	archiveDir = strings.TrimSpace(archiveDir)
	if archiveDir == "" {
		return "", syncerr.Validationf("archive", "archive directory is required")
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", syncerr.Permanent("archive", err)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i < maxArchiveAttempts; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		dst := filepath.Join(archiveDir, name)
		err := moveExclusive(path, dst)
		if err == nil {
			return dst, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", syncerr.Permanent("archive", err)
	}
	return "", syncerr.Permanent("archive", fmt.Errorf("no free name for %s in %s", base, archiveDir))
}

// moveExclusive moves src to dst, failing with fs.ErrExist when dst is taken.
func moveExclusive(src, dst string) error {
	linkErr := os.Link(src, dst)
	if linkErr == nil {
		return os.Remove(src)
	}
	if errors.Is(linkErr, fs.ErrExist) {
		return linkErr
	}
	if errors.Is(linkErr, fs.ErrNotExist) {
		return linkErr
	}

	// Hard links are unavailable across devices and on some filesystems.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// Hash returns the lowercase hex digest of data.
func (s *Store) Hash(data []byte) string {
	var h hash.Hash
	if s.algorithm == HashBLAKE2b {
		// Only fails for an invalid key, and no key is passed.
		h, _ = blake2b.New256(nil)
	} else {
		h = sha256.New()
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureTime returns the EXIF DateTime of a JPEG payload, or nil when the
// payload carries no readable EXIF block.
func CaptureTime(data []byte) *time.Time {
	registerExifParsers.Do(func() {
		exif.RegisterParsers(mknote.All...)
	})
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	tm, err := x.DateTime()
	if err != nil || tm.IsZero() {
		return nil
	}
	utc := tm.UTC()
	return &utc
}

// CodeFromPath derives a record code from a file name by stripping its
// directory and extension.
func CodeFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
