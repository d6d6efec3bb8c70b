// Package pipeline moves photo payloads between the filesystem, the ledger
// and the blob store. Candidates are processed one at a time; a failing item
// is recorded and the batch carries on.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"photosync/internal/blobstore"
	"photosync/internal/store"
	"photosync/internal/syncerr"
)

const (
	StageImport   = "import"
	StageExport   = "export"
	StageUpload   = "upload"
	StageDownload = "download"
)

// Files is the filesystem surface the pipelines need.
type Files interface {
	ListImages(dir string) ([]string, error)
	ReadAll(path string) ([]byte, error)
	WriteAll(dir, name string, data []byte) (string, error)
	Archive(path, archiveDir string) (string, error)
	Hash(data []byte) string
}

// Deps are the collaborators of a Runner. Blobs may be nil when only import
// and export are used.
type Deps struct {
	Repo   store.PhotoRepository
	Blobs  blobstore.Client
	Files  Files
	Logger *slog.Logger
	Now    func() time.Time
}

// Runner executes the transfer pipelines.
type Runner struct {
	repo   store.PhotoRepository
	blobs  blobstore.Client
	files  Files
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Runner.
func New(deps Deps) (*Runner, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("pipeline: ledger repository is required")
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("pipeline: file store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		repo:   deps.Repo,
		blobs:  deps.Blobs,
		files:  deps.Files,
		logger: logger.With("component", "pipeline"),
		now:    now,
	}, nil
}

func (r *Runner) clock() time.Time {
	return r.now().UTC()
}

// checkLedger verifies the ledger is reachable before a batch starts.
func (r *Runner) checkLedger(ctx context.Context) error {
	if err := r.repo.Ping(ctx); err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	return nil
}

// checkBlobStore verifies both the ledger and the blob store.
func (r *Runner) checkBlobStore(ctx context.Context) error {
	if r.blobs == nil {
		return syncerr.Validationf("blobCheck", "blob store is not configured")
	}
	if err := r.checkLedger(ctx); err != nil {
		return err
	}
	if err := r.blobs.Ping(ctx); err != nil {
		return fmt.Errorf("blob store unreachable: %w", err)
	}
	return nil
}

func (r *Runner) finish(b *BatchResult, start time.Time, success bool) {
	b.Success = success
	b.Duration = r.clock().Sub(start)
	r.logger.Info("stage finished",
		"stage", b.Stage,
		"found", b.Found,
		"succeeded", b.Succeeded,
		"failed", b.Failed,
		"skipped", b.Skipped,
		"duplicates", b.Duplicates,
		"archived", b.Archived,
		"success", b.Success,
	)
}
