package store

import (
	"context"
	"database/sql"

	"photosync/internal/models"
)

const summarySQL = `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN ` + hasImageDataSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN ` + hasBlobPathSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN NOT ` + hasImageDataSQL + ` AND NOT ` + hasBlobPathSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN ` + hasImageDataSQL + ` AND NOT ` + hasBlobPathSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN NOT ` + hasImageDataSQL + ` AND ` + hasBlobPathSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN ` + hasImageDataSQL + ` AND ` + hasBlobPathSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN blob_sync_pending = 1 AND ` + hasImageDataSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN ` + needsExportSQL + ` THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(COALESCE(byte_size, 0)), 0),
  COUNT(imported_at), MIN(imported_at), MAX(imported_at),
  COUNT(exported_at), MIN(exported_at), MAX(exported_at),
  COUNT(blob_uploaded_at), MIN(blob_uploaded_at), MAX(blob_uploaded_at)
FROM photos
`

const duplicateHashGroupsSQL = `
SELECT COUNT(*) FROM (
  SELECT content_hash FROM photos
  WHERE content_hash IS NOT NULL
  GROUP BY content_hash
  HAVING COUNT(*) > 1
)
`

// SummaryStats aggregates ledger counts and transfer time ranges.
func (s *Store) SummaryStats(ctx context.Context) (models.StatusSnapshot, error) {
	var snap models.StatusSnapshot
	var importMin, importMax, exportMin, exportMax, uploadMin, uploadMax sql.NullString

	err := s.db.QueryRowContext(ctx, summarySQL).Scan(
		&snap.TotalRecords,
		&snap.WithImageData,
		&snap.WithBlobPath,
		&snap.Empty,
		&snap.LocalOnly,
		&snap.RemoteOnly,
		&snap.Hybrid,
		&snap.PendingBlobSync,
		&snap.NeedingExport,
		&snap.TotalBytes,
		&snap.Imports.Count, &importMin, &importMax,
		&snap.Exports.Count, &exportMin, &exportMax,
		&snap.Uploads.Count, &uploadMin, &uploadMax,
	)
	if err != nil {
		return snap, classify("summaryStats", err)
	}

	ranges := []struct {
		stats    *models.TransferStats
		min, max sql.NullString
	}{
		{&snap.Imports, importMin, importMax},
		{&snap.Exports, exportMin, exportMax},
		{&snap.Uploads, uploadMin, uploadMax},
	}
	for _, r := range ranges {
		if r.stats.Earliest, err = parseNullTime(r.min); err != nil {
			return snap, classify("summaryStats", err)
		}
		if r.stats.Latest, err = parseNullTime(r.max); err != nil {
			return snap, classify("summaryStats", err)
		}
	}

	if err := s.db.QueryRowContext(ctx, duplicateHashGroupsSQL).Scan(&snap.DuplicateHashes); err != nil {
		return snap, classify("summaryStats", err)
	}
	return snap, nil
}
