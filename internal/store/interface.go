package store

import (
	"context"
	"time"

	"photosync/internal/models"
	"photosync/internal/rules"
)

// PhotoRepository is the ledger contract the pipelines depend on. Every
// operation is keyed by the record code and is atomic on its own.
type PhotoRepository interface {
	Ping(ctx context.Context) error

	Upsert(ctx context.Context, rec *models.PhotoRecord) (bool, error)
	FindByCode(ctx context.Context, code string) (*models.PhotoRecord, error)
	FindAll(ctx context.Context) ([]models.PhotoRecord, error)
	FindMissingBlobPath(ctx context.Context) ([]models.PhotoRecord, error)
	FindMissingImageData(ctx context.Context) ([]models.PhotoRecord, error)
	FindNeedingExport(ctx context.Context) ([]models.PhotoRecord, error)
	FindNeedingBlobSync(ctx context.Context) ([]models.PhotoRecord, error)
	FindDuplicateByHash(ctx context.Context, hash, excludeCode string) (*models.PhotoRecord, error)

	UpdateBlobPath(ctx context.Context, code, blobPath string) (bool, error)
	UpdateImageData(ctx context.Context, code string, data []byte, hash string) (bool, error)
	UpdateExportTracking(ctx context.Context, code string, at time.Time) (bool, error)
	UpdateImportTracking(ctx context.Context, code string, tr rules.ImportTracking) (bool, error)

	ClearField(ctx context.Context, field models.Field) (int64, error)
	CountField(ctx context.Context, field models.Field) (int64, error)
	SummaryStats(ctx context.Context) (models.StatusSnapshot, error)
}

var _ PhotoRepository = (*Store)(nil)
