// Package rules holds the pure sync decisions: which records need which
// transfer, and how a record's tracking metadata changes after one.
//
// Nothing here performs I/O. Callers inject "now" so every transition is
// deterministic under test.
package rules

import (
	"time"

	"photosync/internal/models"
)

// StorageModeOf derives where the record's bytes live from field presence.
func StorageModeOf(rec models.PhotoRecord) models.StorageMode {
	local, remote := rec.HasImageData(), rec.HasBlobPath()
	switch {
	case local && remote:
		return models.StorageHybrid
	case local:
		return models.StorageLocalOnly
	case remote:
		return models.StorageRemoteOnly
	default:
		return models.StorageEmpty
	}
}

// NeedsExport is true when the record was never exported, or its row or
// content changed after the last export.
func NeedsExport(rec models.PhotoRecord) bool {
	if rec.ExportedAt == nil {
		return true
	}
	return after(rec.RecordModifiedAt, *rec.ExportedAt) || after(rec.ContentModifiedAt, *rec.ExportedAt)
}

// NeedsUpload is true when local content changed after the last upload.
func NeedsUpload(rec models.PhotoRecord) bool {
	return rec.BlobSyncPending && rec.HasImageData()
}

// MissingBlob is the normal upload candidate: local bytes, no remote copy.
func MissingBlob(rec models.PhotoRecord) bool {
	return rec.HasImageData() && !rec.HasBlobPath()
}

// NeedsDownload is the download candidate: a remote copy, no local bytes.
func NeedsDownload(rec models.PhotoRecord) bool {
	return rec.HasBlobPath() && !rec.HasImageData()
}

// ExportStatusOf derives the export half of the record state.
func ExportStatusOf(rec models.PhotoRecord) models.ExportStatus {
	switch {
	case rec.ExportedAt == nil:
		return models.NeverExported
	case NeedsExport(rec):
		return models.ExportNeeded
	default:
		return models.ExportCurrent
	}
}

// BlobSyncStatusOf derives the blob half of the record state.
func BlobSyncStatusOf(rec models.PhotoRecord) models.BlobSyncStatus {
	switch {
	case !rec.HasBlobPath():
		return models.NotInBlob
	case rec.BlobSyncPending:
		return models.SyncNeeded
	default:
		return models.Synced
	}
}

// Classify returns the full derived state of rec.
func Classify(rec models.PhotoRecord) models.SyncState {
	return models.SyncState{
		Code:     rec.Code,
		Storage:  StorageModeOf(rec),
		Export:   ExportStatusOf(rec),
		BlobSync: BlobSyncStatusOf(rec),
	}
}

func after(t *time.Time, ref time.Time) bool {
	return t != nil && t.After(ref)
}
