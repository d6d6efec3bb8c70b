package store

import (
	"context"
	"time"

	"photosync/internal/models"
	"photosync/internal/retry"
	"photosync/internal/rules"
)

// Retrying decorates a PhotoRepository so transient failures are retried
// with backoff before they reach the pipelines.
type Retrying struct {
	next   PhotoRepository
	policy retry.Policy
}

// NewRetrying wraps next with policy.
func NewRetrying(next PhotoRepository, policy retry.Policy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

var _ PhotoRepository = (*Retrying)(nil)

func (r *Retrying) Ping(ctx context.Context) error {
	return r.policy.Do(ctx, "ping", r.next.Ping)
}

func (r *Retrying) Upsert(ctx context.Context, rec *models.PhotoRecord) (bool, error) {
	return retry.Value(ctx, r.policy, "upsert", func(ctx context.Context) (bool, error) {
		return r.next.Upsert(ctx, rec)
	})
}

func (r *Retrying) FindByCode(ctx context.Context, code string) (*models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findByCode", func(ctx context.Context) (*models.PhotoRecord, error) {
		return r.next.FindByCode(ctx, code)
	})
}

func (r *Retrying) FindAll(ctx context.Context) ([]models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findAll", r.next.FindAll)
}

func (r *Retrying) FindMissingBlobPath(ctx context.Context) ([]models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findMissingBlobPath", r.next.FindMissingBlobPath)
}

func (r *Retrying) FindMissingImageData(ctx context.Context) ([]models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findMissingImageData", r.next.FindMissingImageData)
}

func (r *Retrying) FindNeedingExport(ctx context.Context) ([]models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findNeedingExport", r.next.FindNeedingExport)
}

func (r *Retrying) FindNeedingBlobSync(ctx context.Context) ([]models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findNeedingBlobSync", r.next.FindNeedingBlobSync)
}

func (r *Retrying) FindDuplicateByHash(ctx context.Context, hash, excludeCode string) (*models.PhotoRecord, error) {
	return retry.Value(ctx, r.policy, "findDuplicateByHash", func(ctx context.Context) (*models.PhotoRecord, error) {
		return r.next.FindDuplicateByHash(ctx, hash, excludeCode)
	})
}

func (r *Retrying) UpdateBlobPath(ctx context.Context, code, blobPath string) (bool, error) {
	return retry.Value(ctx, r.policy, "updateBlobPath", func(ctx context.Context) (bool, error) {
		return r.next.UpdateBlobPath(ctx, code, blobPath)
	})
}

func (r *Retrying) UpdateImageData(ctx context.Context, code string, data []byte, hash string) (bool, error) {
	return retry.Value(ctx, r.policy, "updateImageData", func(ctx context.Context) (bool, error) {
		return r.next.UpdateImageData(ctx, code, data, hash)
	})
}

func (r *Retrying) UpdateExportTracking(ctx context.Context, code string, at time.Time) (bool, error) {
	return retry.Value(ctx, r.policy, "updateExportTracking", func(ctx context.Context) (bool, error) {
		return r.next.UpdateExportTracking(ctx, code, at)
	})
}

func (r *Retrying) UpdateImportTracking(ctx context.Context, code string, tr rules.ImportTracking) (bool, error) {
	return retry.Value(ctx, r.policy, "updateImportTracking", func(ctx context.Context) (bool, error) {
		return r.next.UpdateImportTracking(ctx, code, tr)
	})
}

func (r *Retrying) ClearField(ctx context.Context, field models.Field) (int64, error) {
	return retry.Value(ctx, r.policy, "clearField", func(ctx context.Context) (int64, error) {
		return r.next.ClearField(ctx, field)
	})
}

func (r *Retrying) CountField(ctx context.Context, field models.Field) (int64, error) {
	return retry.Value(ctx, r.policy, "countField", func(ctx context.Context) (int64, error) {
		return r.next.CountField(ctx, field)
	})
}

func (r *Retrying) SummaryStats(ctx context.Context) (models.StatusSnapshot, error) {
	return retry.Value(ctx, r.policy, "summaryStats", r.next.SummaryStats)
}
