package pipeline

import (
	"context"
	"fmt"

	"photosync/internal/models"
	"photosync/internal/rules"
	"photosync/internal/syncerr"
)

// UploadOptions configures one upload run.
type UploadOptions struct {
	// Force re-uploads dirty records that already have a blob path.
	Force bool
}

// Upload pushes local payloads to the blob store and records their paths.
func (r *Runner) Upload(ctx context.Context, opts UploadOptions) (BatchResult, error) {
	result := newBatch(StageUpload)
	start := r.clock()

	if err := r.checkBlobStore(ctx); err != nil {
		result.abort(err)
		return result, err
	}
	candidates, err := r.uploadCandidates(ctx, opts)
	if err != nil {
		result.abort(err)
		return result, err
	}
	result.Found = len(candidates)
	r.logger.Info("upload started", "found", len(candidates), "force", opts.Force)

	for _, rec := range candidates {
		item := ItemResult{Code: rec.Code}
		if !rec.HasImageData() {
			result.skip(item, "no local image data")
			continue
		}
		if !opts.selects(rec) {
			result.skip(item, "already uploaded")
			continue
		}
		path, err := r.uploadRecord(ctx, opts, rec)
		item.Path = path
		if err != nil {
			r.logger.Warn("upload failed", "code", rec.Code, "err", err)
			result.fail(item, err)
			continue
		}
		result.succeed(item)
	}

	r.finish(&result, start, result.Succeeded > 0 || result.Failed == 0)
	return result, nil
}

// UploadCandidates reports how many records an upload with opts would select.
func (r *Runner) UploadCandidates(ctx context.Context, opts UploadOptions) (int, error) {
	candidates, err := r.uploadCandidates(ctx, opts)
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}

// selects is the per-record rule behind the candidate query: a missing blob,
// or with Force a dirty record that still holds its bytes.
func (o UploadOptions) selects(rec models.PhotoRecord) bool {
	if o.Force {
		return rules.NeedsUpload(rec)
	}
	return rules.MissingBlob(rec)
}

func (r *Runner) uploadCandidates(ctx context.Context, opts UploadOptions) ([]models.PhotoRecord, error) {
	if opts.Force {
		return r.repo.FindNeedingBlobSync(ctx)
	}
	return r.repo.FindMissingBlobPath(ctx)
}

func (r *Runner) uploadRecord(ctx context.Context, opts UploadOptions, rec models.PhotoRecord) (string, error) {
	if opts.Force && rec.HasBlobPath() {
		if _, err := r.blobs.Delete(ctx, rec.BlobPath); err != nil {
			r.logger.Warn("old blob delete failed", "code", rec.Code, "blob_path", rec.BlobPath, "err", err)
		}
	}
	path, err := r.blobs.Upload(ctx, rec.Code, rec.ImageData)
	if err != nil {
		return "", err
	}
	ok, err := r.repo.UpdateBlobPath(ctx, rec.Code, path)
	if err != nil {
		return path, err
	}
	if !ok {
		return path, syncerr.NotFound("updateBlobPath", fmt.Errorf("record %s vanished during upload", rec.Code))
	}
	return path, nil
}

// Download pulls payloads for remote-only records into the ledger.
func (r *Runner) Download(ctx context.Context) (BatchResult, error) {
	result := newBatch(StageDownload)
	start := r.clock()

	if err := r.checkBlobStore(ctx); err != nil {
		result.abort(err)
		return result, err
	}
	candidates, err := r.repo.FindMissingImageData(ctx)
	if err != nil {
		result.abort(err)
		return result, err
	}
	result.Found = len(candidates)
	r.logger.Info("download started", "found", len(candidates))

	for _, rec := range candidates {
		item := ItemResult{Code: rec.Code, Path: rec.BlobPath}
		if !rules.NeedsDownload(rec) {
			reason := "already local"
			if !rec.HasBlobPath() {
				reason = "no blob path"
			}
			result.skip(item, reason)
			continue
		}
		if err := r.downloadRecord(ctx, rec); err != nil {
			r.logger.Warn("download failed", "code", rec.Code, "blob_path", rec.BlobPath, "err", err)
			result.fail(item, err)
			continue
		}
		result.succeed(item)
	}

	r.finish(&result, start, result.Succeeded > 0 || result.Failed == 0)
	return result, nil
}

// DownloadCandidates reports how many records a download would select.
func (r *Runner) DownloadCandidates(ctx context.Context) (int, error) {
	candidates, err := r.repo.FindMissingImageData(ctx)
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}

func (r *Runner) downloadRecord(ctx context.Context, rec models.PhotoRecord) error {
	data, err := r.blobs.Download(ctx, rec.BlobPath)
	if err != nil {
		return err
	}
	ok, err := r.repo.UpdateImageData(ctx, rec.Code, data, r.files.Hash(data))
	if err != nil {
		return err
	}
	if !ok {
		return syncerr.NotFound("updateImageData", fmt.Errorf("record %s vanished during download", rec.Code))
	}
	return nil
}
