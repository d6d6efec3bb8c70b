package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photosync/internal/models"
	"photosync/internal/rules"
	"photosync/internal/syncerr"
)

// ExportOptions configures one export run.
type ExportOptions struct {
	Dir         string
	Incremental bool
	Force       bool
	Template    FilenameTemplate
}

// Export writes ledger payloads into opts.Dir and stamps their export time.
// Remote-only records are skipped; records without any payload fail.
func (r *Runner) Export(ctx context.Context, opts ExportOptions) (BatchResult, error) {
	result := newBatch(StageExport)
	start := r.clock()

	if strings.TrimSpace(opts.Dir) == "" {
		err := syncerr.Validationf("export", "export directory is required")
		result.abort(err)
		return result, err
	}
	if err := r.checkLedger(ctx); err != nil {
		result.abort(err)
		return result, err
	}
	candidates, err := r.exportCandidates(ctx, opts)
	if err != nil {
		result.abort(err)
		return result, err
	}
	result.Found = len(candidates)
	r.logger.Info("export started", "dir", opts.Dir, "found", len(candidates),
		"incremental", opts.Incremental, "force", opts.Force)

	// One timestamp for the whole run so template dates and tracking agree.
	now := r.clock()
	for _, rec := range candidates {
		item := ItemResult{Code: rec.Code}
		if opts.Incremental && !opts.Force && !rules.NeedsExport(rec) {
			result.skip(item, "already exported")
			continue
		}
		switch {
		case rec.HasImageData():
		case rec.HasBlobPath():
			result.skip(item, "remote only")
			continue
		default:
			result.fail(item, syncerr.Validationf("export", "record %s has no payload to export", rec.Code))
			continue
		}

		path, err := r.exportRecord(ctx, opts, rec, now)
		item.Path = path
		if err != nil {
			r.logger.Warn("export failed", "code", rec.Code, "err", err)
			result.fail(item, err)
			continue
		}
		result.succeed(item)
	}

	r.finish(&result, start, result.Succeeded > 0 || result.Found == 0)
	return result, nil
}

// ExportCandidates reports how many records an export with opts would select.
func (r *Runner) ExportCandidates(ctx context.Context, opts ExportOptions) (int, error) {
	candidates, err := r.exportCandidates(ctx, opts)
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}

func (r *Runner) exportCandidates(ctx context.Context, opts ExportOptions) ([]models.PhotoRecord, error) {
	if !opts.Incremental || opts.Force {
		return r.repo.FindAll(ctx)
	}
	return r.repo.FindNeedingExport(ctx)
}

func (r *Runner) exportRecord(ctx context.Context, opts ExportOptions, rec models.PhotoRecord, now time.Time) (string, error) {
	name, err := opts.Template.Render(rec.Code, now)
	if err != nil {
		return "", err
	}
	path, err := r.files.WriteAll(opts.Dir, name, rec.ImageData)
	if err != nil {
		return "", err
	}
	ok, err := r.repo.UpdateExportTracking(ctx, rec.Code, now)
	if err != nil {
		return path, err
	}
	if !ok {
		return path, syncerr.NotFound("updateExportTracking", fmt.Errorf("record %s vanished during export", rec.Code))
	}
	return path, nil
}
