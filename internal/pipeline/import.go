package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"photosync/internal/blobstore"
	"photosync/internal/filestore"
	"photosync/internal/models"
	"photosync/internal/syncerr"
)

const (
	DefaultArchiveWorkers = 4
	sourceDescriptorFile  = "FILE:"
)

// ImportOptions configures one import run.
type ImportOptions struct {
	Dir string
	// ArchiveDir receives imported files. Empty disables archiving.
	ArchiveDir string
	// DuplicatesDir receives files rejected as duplicates. Empty leaves them in place.
	DuplicatesDir  string
	HashEnabled    bool
	DuplicateCheck bool
	ArchiveWorkers int
}

type archiveJob struct {
	item int
	path string
	dir  string
}

// importRun carries the state of one import across its phases.
type importRun struct {
	opts   ImportOptions
	result BatchResult
	jobs   []archiveJob
}

// Import reads every JPEG in opts.Dir into the ledger, then archives the
// processed files with a bounded worker pool.
func (r *Runner) Import(ctx context.Context, opts ImportOptions) (BatchResult, error) {
	run := &importRun{opts: opts, result: newBatch(StageImport)}
	start := r.clock()

	if strings.TrimSpace(opts.Dir) == "" {
		err := syncerr.Validationf("import", "import directory is required")
		run.result.abort(err)
		return run.result, err
	}
	if err := r.checkLedger(ctx); err != nil {
		run.result.abort(err)
		return run.result, err
	}
	paths, err := r.files.ListImages(opts.Dir)
	if err != nil {
		run.result.abort(err)
		return run.result, err
	}
	run.result.Found = len(paths)
	r.logger.Info("import started", "dir", opts.Dir, "found", len(paths))

	for _, path := range paths {
		r.importFile(ctx, run, path)
	}

	// Archiving starts only after every upsert has completed.
	r.archive(run)

	r.finish(&run.result, start, run.result.Succeeded > 0 || run.result.Found == 0)
	return run.result, nil
}

// ImportCandidates reports how many files an import of dir would process.
func (r *Runner) ImportCandidates(dir string) (int, error) {
	if strings.TrimSpace(dir) == "" {
		return 0, syncerr.Validationf("import", "import directory is required")
	}
	paths, err := r.files.ListImages(dir)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

func (r *Runner) importFile(ctx context.Context, run *importRun, path string) {
	item := ItemResult{Path: path}
	code := filestore.CodeFromPath(path)
	if code == "" {
		run.result.skip(item, "empty code")
		return
	}
	item.Code = code

	data, err := r.files.ReadAll(path)
	if err != nil {
		r.logger.Warn("import read failed", "code", code, "path", path, "err", err)
		run.result.fail(item, err)
		return
	}
	if len(data) == 0 {
		run.result.skip(item, "empty file")
		return
	}

	var hash string
	if run.opts.HashEnabled {
		hash = r.files.Hash(data)
	}
	if hash != "" && run.opts.DuplicateCheck {
		dup, err := r.repo.FindDuplicateByHash(ctx, hash, code)
		if err != nil {
			r.logger.Warn("duplicate check failed", "code", code, "err", err)
			run.result.fail(item, err)
			return
		}
		if dup != nil {
			r.logger.Info("duplicate content", "code", code, "duplicate_of", dup.Code)
			idx := run.result.duplicate(item, dup.Code)
			if run.opts.DuplicatesDir != "" {
				run.jobs = append(run.jobs, archiveJob{item: idx, path: path, dir: run.opts.DuplicatesDir})
			}
			return
		}
	}

	now := r.clock()
	size := int64(len(data))
	rec := models.PhotoRecord{
		Code:              code,
		ImageData:         data,
		ContentHash:       hash,
		ContentType:       blobstore.ContentType(data),
		ByteSize:          &size,
		ImportedAt:        &now,
		ContentModifiedAt: &now,
		TakenAt:           filestore.CaptureTime(data),
		SourceDescriptor:  sourceDescriptorFile + path,
		SourceFileName:    filepath.Base(path),
	}
	ok, err := r.repo.Upsert(ctx, &rec)
	if err == nil && !ok {
		err = syncerr.Permanent("upsert", fmt.Errorf("no ledger row affected for %s", code))
	}
	if err != nil {
		r.logger.Warn("import upsert failed", "code", code, "err", err)
		run.result.fail(item, err)
		return
	}

	idx := run.result.succeed(item)
	if run.opts.ArchiveDir != "" {
		run.jobs = append(run.jobs, archiveJob{item: idx, path: path, dir: run.opts.ArchiveDir})
	}
}

// archive moves processed files concurrently. Failures are logged only and
// never change the outcome of the import.
func (r *Runner) archive(run *importRun) {
	if len(run.jobs) == 0 {
		return
	}
	workers := run.opts.ArchiveWorkers
	if workers <= 0 {
		workers = DefaultArchiveWorkers
	}

	var (
		mu       sync.Mutex
		archived int
		g        errgroup.Group
	)
	g.SetLimit(workers)
	for _, job := range run.jobs {
		g.Go(func() error {
			dst, err := r.files.Archive(job.path, job.dir)
			if err != nil {
				r.logger.Warn("archive failed", "path", job.path, "dir", job.dir, "err", err)
				return nil
			}
			mu.Lock()
			archived++
			run.result.Items[job.item].ArchivedTo = dst
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	run.result.Archived = archived
}
