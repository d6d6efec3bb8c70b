package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"photosync/internal/models"
	"photosync/internal/rules"
	"photosync/internal/syncerr"
)

// Fixed-width so that TEXT comparison in SQL orders timestamps correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const photoColumns = "code, image_data, blob_path, content_hash, content_type, byte_size, created_at, record_modified_at, content_modified_at, imported_at, exported_at, blob_uploaded_at, taken_at, blob_sync_pending, source_descriptor, source_file_name"

const savePhotoSQL = `
INSERT INTO photos (` + photoColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
  image_data = excluded.image_data,
  blob_path = excluded.blob_path,
  content_hash = excluded.content_hash,
  content_type = excluded.content_type,
  byte_size = excluded.byte_size,
  record_modified_at = excluded.record_modified_at,
  content_modified_at = excluded.content_modified_at,
  imported_at = excluded.imported_at,
  exported_at = excluded.exported_at,
  blob_uploaded_at = excluded.blob_uploaded_at,
  taken_at = excluded.taken_at,
  blob_sync_pending = excluded.blob_sync_pending,
  source_descriptor = excluded.source_descriptor,
  source_file_name = excluded.source_file_name
`

// Presence and staleness predicates shared by the queries below. They mirror
// PhotoRecord.HasImageData, PhotoRecord.HasBlobPath and rules.NeedsExport.
const (
	hasImageDataSQL = `(image_data IS NOT NULL AND length(image_data) > 0)`
	hasBlobPathSQL  = `(blob_path IS NOT NULL AND trim(blob_path, char(32, 9, 10, 11, 12, 13)) <> '')`
	needsExportSQL  = `(exported_at IS NULL
   OR (record_modified_at IS NOT NULL AND record_modified_at > exported_at)
   OR (content_modified_at IS NOT NULL AND content_modified_at > exported_at))`
)

const (
	selectByCodeSQL = `SELECT ` + photoColumns + ` FROM photos WHERE code = ?`
	selectAllSQL    = `SELECT ` + photoColumns + ` FROM photos ORDER BY code`

	selectMissingBlobPathSQL = `SELECT ` + photoColumns + ` FROM photos
WHERE ` + hasImageDataSQL + ` AND NOT ` + hasBlobPathSQL + `
ORDER BY code`

	selectMissingImageDataSQL = `SELECT ` + photoColumns + ` FROM photos
WHERE NOT ` + hasImageDataSQL + ` AND ` + hasBlobPathSQL + `
ORDER BY code`

	selectNeedingExportSQL = `SELECT ` + photoColumns + ` FROM photos
WHERE ` + needsExportSQL + `
ORDER BY code`

	selectNeedingBlobSyncSQL = `SELECT ` + photoColumns + ` FROM photos
WHERE blob_sync_pending = 1 AND ` + hasImageDataSQL + `
ORDER BY code`

	selectDuplicateByHashSQL = `SELECT ` + photoColumns + ` FROM photos
WHERE content_hash = ? AND code <> ?
ORDER BY created_at, code
LIMIT 1`
)

var clearFieldSQL = map[models.Field]string{
	models.FieldImageData: `UPDATE photos SET image_data = NULL WHERE image_data IS NOT NULL`,
	models.FieldBlobPath:  `UPDATE photos SET blob_path = NULL, blob_sync_pending = 0 WHERE blob_path IS NOT NULL`,
}

var countFieldSQL = map[models.Field]string{
	models.FieldImageData: `SELECT COUNT(*) FROM photos WHERE image_data IS NOT NULL`,
	models.FieldBlobPath:  `SELECT COUNT(*) FROM photos WHERE blob_path IS NOT NULL`,
}

// Upsert inserts rec when its code is new, otherwise merges its populated
// fields into the existing row.
func (s *Store) Upsert(ctx context.Context, rec *models.PhotoRecord) (bool, error) {
	if rec == nil {
		return false, syncerr.Validationf("upsert", "record is required")
	}
	code := strings.TrimSpace(rec.Code)
	if code == "" {
		return false, syncerr.Validationf("upsert", "record code is required")
	}
	incoming := *rec
	incoming.Code = code

	return s.mutate(ctx, "upsert", code, func(existing *models.PhotoRecord) (*models.PhotoRecord, error) {
		merged := rules.Merge(existing, incoming, s.clock())
		return &merged, nil
	})
}

// FindByCode returns the record for code, or nil when absent.
func (s *Store) FindByCode(ctx context.Context, code string) (*models.PhotoRecord, error) {
	rec, err := scanPhoto(s.db.QueryRowContext(ctx, selectByCodeSQL, code))
	if err != nil {
		return nil, classify("findByCode", err)
	}
	return rec, nil
}

// FindAll returns every record ordered by code.
func (s *Store) FindAll(ctx context.Context) ([]models.PhotoRecord, error) {
	return s.queryPhotos(ctx, "findAll", selectAllSQL)
}

// FindMissingBlobPath returns upload candidates: local bytes, no blob path.
func (s *Store) FindMissingBlobPath(ctx context.Context) ([]models.PhotoRecord, error) {
	return s.queryPhotos(ctx, "findMissingBlobPath", selectMissingBlobPathSQL)
}

// FindMissingImageData returns download candidates: blob path, no local bytes.
func (s *Store) FindMissingImageData(ctx context.Context) ([]models.PhotoRecord, error) {
	return s.queryPhotos(ctx, "findMissingImageData", selectMissingImageDataSQL)
}

// FindNeedingExport returns records never exported or changed since export.
func (s *Store) FindNeedingExport(ctx context.Context) ([]models.PhotoRecord, error) {
	return s.queryPhotos(ctx, "findNeedingExport", selectNeedingExportSQL)
}

// FindNeedingBlobSync returns dirty records that still hold local bytes.
func (s *Store) FindNeedingBlobSync(ctx context.Context) ([]models.PhotoRecord, error) {
	return s.queryPhotos(ctx, "findNeedingBlobSync", selectNeedingBlobSyncSQL)
}

// FindDuplicateByHash returns the oldest record with exactly this hash whose
// code differs from excludeCode, or nil.
func (s *Store) FindDuplicateByHash(ctx context.Context, hash, excludeCode string) (*models.PhotoRecord, error) {
	if hash == "" {
		return nil, nil
	}
	rec, err := scanPhoto(s.db.QueryRowContext(ctx, selectDuplicateByHashSQL, hash, excludeCode))
	if err != nil {
		return nil, classify("findDuplicateByHash", err)
	}
	return rec, nil
}

// UpdateBlobPath records a completed upload and clears the dirty flag.
func (s *Store) UpdateBlobPath(ctx context.Context, code, blobPath string) (bool, error) {
	if strings.TrimSpace(blobPath) == "" {
		return false, syncerr.Validationf("updateBlobPath", "blob path is required")
	}
	return s.mutateExisting(ctx, "updateBlobPath", code, func(rec models.PhotoRecord) models.PhotoRecord {
		return rules.ApplyUpload(rec, blobPath, s.clock())
	})
}

// UpdateImageData replaces the local payload, dirtying records already
// uploaded. hash is the digest of data; an empty hash clears the stored one
// rather than leaving it describing the old bytes.
func (s *Store) UpdateImageData(ctx context.Context, code string, data []byte, hash string) (bool, error) {
	if len(data) == 0 {
		return false, syncerr.Validationf("updateImageData", "image data is required")
	}
	return s.mutateExisting(ctx, "updateImageData", code, func(rec models.PhotoRecord) models.PhotoRecord {
		return rules.ApplyContentChange(rec, data, hash, s.clock())
	})
}

// UpdateExportTracking stamps the last successful export.
func (s *Store) UpdateExportTracking(ctx context.Context, code string, at time.Time) (bool, error) {
	return s.mutateExisting(ctx, "updateExportTracking", code, func(rec models.PhotoRecord) models.PhotoRecord {
		return rules.ApplyExport(rec, at.UTC())
	})
}

// UpdateImportTracking stamps the last successful import and its provenance.
func (s *Store) UpdateImportTracking(ctx context.Context, code string, tr rules.ImportTracking) (bool, error) {
	tr.At = tr.At.UTC()
	return s.mutateExisting(ctx, "updateImportTracking", code, func(rec models.PhotoRecord) models.PhotoRecord {
		return rules.ApplyImport(rec, tr)
	})
}

// ClearField nulls one clearable column on every row and reports how many
// rows held a value.
func (s *Store) ClearField(ctx context.Context, field models.Field) (int64, error) {
	stmt, ok := clearFieldSQL[field]
	if !ok {
		return 0, &syncerr.InvalidFieldError{Field: string(field)}
	}
	res, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, classify("clearField", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, classify("clearField", err)
	}
	return affected, nil
}

// CountField reports how many rows hold a value in a clearable column.
func (s *Store) CountField(ctx context.Context, field models.Field) (int64, error) {
	stmt, ok := countFieldSQL[field]
	if !ok {
		return 0, &syncerr.InvalidFieldError{Field: string(field)}
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, stmt).Scan(&count); err != nil {
		return 0, classify("countField", err)
	}
	return count, nil
}

// mutateExisting applies fn to the stored record for code. Missing codes
// report false without error.
func (s *Store) mutateExisting(ctx context.Context, op, code string, fn func(models.PhotoRecord) models.PhotoRecord) (bool, error) {
	if strings.TrimSpace(code) == "" {
		return false, syncerr.Validationf(op, "record code is required")
	}
	return s.mutate(ctx, op, code, func(existing *models.PhotoRecord) (*models.PhotoRecord, error) {
		if existing == nil {
			return nil, nil
		}
		next := fn(*existing)
		return &next, nil
	})
}

// mutate runs a read-modify-write of one row inside a transaction. A nil
// result from fn leaves the row untouched.
func (s *Store) mutate(ctx context.Context, op, code string, fn func(*models.PhotoRecord) (*models.PhotoRecord, error)) (changed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classify(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := scanPhoto(tx.QueryRowContext(ctx, selectByCodeSQL, code))
	if err != nil {
		return false, classify(op, err)
	}
	next, err := fn(existing)
	if err != nil {
		return false, err
	}
	if next == nil {
		_ = tx.Rollback()
		return false, nil
	}

	res, err := tx.ExecContext(ctx, savePhotoSQL, photoArgs(*next)...)
	if err != nil {
		return false, classify(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, classify(op, err)
	}
	if err = tx.Commit(); err != nil {
		return false, classify(op, err)
	}
	return affected > 0, nil
}

func (s *Store) queryPhotos(ctx context.Context, op, query string, args ...any) ([]models.PhotoRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	photos := []models.PhotoRecord{}
	for rows.Next() {
		rec, err := scanPhoto(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		if rec != nil {
			photos = append(photos, *rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return photos, nil
}

func photoArgs(rec models.PhotoRecord) []any {
	var size any
	if rec.ByteSize != nil {
		size = *rec.ByteSize
	}
	pending := 0
	if rec.BlobSyncPending {
		pending = 1
	}
	return []any{
		rec.Code,
		nullBytes(rec.ImageData),
		nullIfEmpty(strings.TrimSpace(rec.BlobPath)),
		nullIfEmpty(rec.ContentHash),
		nullIfEmpty(rec.ContentType),
		size,
		formatTime(rec.CreatedAt),
		nullTime(rec.RecordModifiedAt),
		nullTime(rec.ContentModifiedAt),
		nullTime(rec.ImportedAt),
		nullTime(rec.ExportedAt),
		nullTime(rec.BlobUploadedAt),
		nullTime(rec.TakenAt),
		pending,
		nullIfEmpty(rec.SourceDescriptor),
		nullIfEmpty(rec.SourceFileName),
	}
}

func scanPhoto(scanner interface {
	Scan(dest ...any) error
}) (*models.PhotoRecord, error) {
	var rec models.PhotoRecord
	var imageData []byte
	var blobPath, contentHash, contentType, sourceDescriptor, sourceFileName sql.NullString
	var byteSize sql.NullInt64
	var createdAt string
	var recordModifiedAt, contentModifiedAt, importedAt, exportedAt, blobUploadedAt, takenAt sql.NullString
	var pending int

	if err := scanner.Scan(
		&rec.Code,
		&imageData,
		&blobPath,
		&contentHash,
		&contentType,
		&byteSize,
		&createdAt,
		&recordModifiedAt,
		&contentModifiedAt,
		&importedAt,
		&exportedAt,
		&blobUploadedAt,
		&takenAt,
		&pending,
		&sourceDescriptor,
		&sourceFileName,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rec.ImageData = imageData
	rec.BlobPath = blobPath.String
	rec.ContentHash = contentHash.String
	rec.ContentType = contentType.String
	rec.SourceDescriptor = sourceDescriptor.String
	rec.SourceFileName = sourceFileName.String
	rec.BlobSyncPending = pending != 0
	if byteSize.Valid {
		size := byteSize.Int64
		rec.ByteSize = &size
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", rec.Code, err)
	}
	rec.CreatedAt = created

	for _, field := range []struct {
		raw sql.NullString
		dst **time.Time
	}{
		{recordModifiedAt, &rec.RecordModifiedAt},
		{contentModifiedAt, &rec.ContentModifiedAt},
		{importedAt, &rec.ImportedAt},
		{exportedAt, &rec.ExportedAt},
		{blobUploadedAt, &rec.BlobUploadedAt},
		{takenAt, &rec.TakenAt},
	} {
		parsed, err := parseNullTime(field.raw)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp for %s: %w", rec.Code, err)
		}
		*field.dst = parsed
	}

	return &rec, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// An empty payload is stored as NULL so that it reads as absent everywhere.
func nullBytes(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
