package rules

import (
	"time"

	"photosync/internal/models"
)

// ImportTracking is the provenance recorded by a successful import.
type ImportTracking struct {
	At               time.Time
	SourceDescriptor string
	SourceFileName   string
	ContentHash      string
	ByteSize         int64
}

// Merge computes the row an upsert leaves behind. A nil existing record means
// insert. Populated fields are never overwritten with empty ones, and the code
// never changes.
func Merge(existing *models.PhotoRecord, incoming models.PhotoRecord, now time.Time) models.PhotoRecord {
	if existing == nil {
		out := cloneRecord(incoming)
		if out.CreatedAt.IsZero() {
			out.CreatedAt = now
		}
		out.RecordModifiedAt = nil
		if !out.HasBlobPath() {
			out.BlobSyncPending = false
		}
		return out
	}

	out := cloneRecord(*existing)
	contentChanged := incoming.HasImageData() && contentDiffers(*existing, incoming)

	if incoming.HasImageData() {
		out.ImageData = cloneBytes(incoming.ImageData)
	}
	if incoming.HasBlobPath() {
		out.BlobPath = incoming.BlobPath
	}
	mergeString(&out.ContentHash, incoming.ContentHash)
	mergeString(&out.ContentType, incoming.ContentType)
	mergeString(&out.SourceDescriptor, incoming.SourceDescriptor)
	mergeString(&out.SourceFileName, incoming.SourceFileName)
	mergeTime(&out.ContentModifiedAt, incoming.ContentModifiedAt)
	mergeTime(&out.ImportedAt, incoming.ImportedAt)
	mergeTime(&out.ExportedAt, incoming.ExportedAt)
	mergeTime(&out.BlobUploadedAt, incoming.BlobUploadedAt)
	mergeTime(&out.TakenAt, incoming.TakenAt)
	if incoming.ByteSize != nil {
		size := *incoming.ByteSize
		out.ByteSize = &size
	}
	if incoming.BlobSyncPending || (contentChanged && out.HasBlobPath()) {
		out.BlobSyncPending = true
	}

	modified := now
	out.RecordModifiedAt = &modified
	return out
}

// ApplyImport records a successful import. Content is considered modified at
// the import time.
func ApplyImport(rec models.PhotoRecord, tr ImportTracking) models.PhotoRecord {
	out := cloneRecord(rec)
	at := tr.At
	out.ImportedAt = &at
	out.ContentModifiedAt = &at
	mergeString(&out.SourceDescriptor, tr.SourceDescriptor)
	mergeString(&out.SourceFileName, tr.SourceFileName)
	mergeString(&out.ContentHash, tr.ContentHash)
	if tr.ByteSize > 0 {
		size := tr.ByteSize
		out.ByteSize = &size
	}
	return out
}

// ApplyUpload records a successful blob upload and clears the dirty flag.
func ApplyUpload(rec models.PhotoRecord, blobPath string, now time.Time) models.PhotoRecord {
	out := cloneRecord(rec)
	out.BlobPath = blobPath
	at := now
	out.BlobUploadedAt = &at
	out.BlobSyncPending = false
	return out
}

// ApplyContentChange replaces the local payload and its digest. A record that
// already has a remote copy becomes dirty.
func ApplyContentChange(rec models.PhotoRecord, data []byte, hash string, now time.Time) models.PhotoRecord {
	out := cloneRecord(rec)
	out.ImageData = cloneBytes(data)
	out.ContentHash = hash
	size := int64(len(data))
	out.ByteSize = &size
	at := now
	out.ContentModifiedAt = &at
	out.BlobSyncPending = out.HasBlobPath()
	return out
}

// ApplyExport records a successful export at the given time.
func ApplyExport(rec models.PhotoRecord, at time.Time) models.PhotoRecord {
	out := cloneRecord(rec)
	exported := at
	out.ExportedAt = &exported
	return out
}

func contentDiffers(existing, incoming models.PhotoRecord) bool {
	if existing.ContentHash != "" && incoming.ContentHash != "" {
		return existing.ContentHash != incoming.ContentHash
	}
	if !existing.HasImageData() {
		return true
	}
	return string(existing.ImageData) != string(incoming.ImageData)
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func mergeTime(dst **time.Time, value *time.Time) {
	if value != nil {
		t := *value
		*dst = &t
	}
}

func cloneRecord(rec models.PhotoRecord) models.PhotoRecord {
	out := rec
	out.ImageData = cloneBytes(rec.ImageData)
	if rec.ByteSize != nil {
		size := *rec.ByteSize
		out.ByteSize = &size
	}
	out.RecordModifiedAt = cloneTime(rec.RecordModifiedAt)
	out.ContentModifiedAt = cloneTime(rec.ContentModifiedAt)
	out.ImportedAt = cloneTime(rec.ImportedAt)
	out.ExportedAt = cloneTime(rec.ExportedAt)
	out.BlobUploadedAt = cloneTime(rec.BlobUploadedAt)
	out.TakenAt = cloneTime(rec.TakenAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
