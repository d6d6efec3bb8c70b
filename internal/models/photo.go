package models

import (
	"fmt"
	"strings"
	"time"
)

// PhotoRecord is one ledger row, keyed by its unique business code.
type PhotoRecord struct {
	Code              string     `json:"code" yaml:"code"`
	ImageData         []byte     `json:"-" yaml:"-"`
	BlobPath          string     `json:"blob_path,omitempty" yaml:"blob_path,omitempty"`
	ContentHash       string     `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	ContentType       string     `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ByteSize          *int64     `json:"byte_size,omitempty" yaml:"byte_size,omitempty"`
	CreatedAt         time.Time  `json:"created_at" yaml:"created_at"`
	RecordModifiedAt  *time.Time `json:"record_modified_at,omitempty" yaml:"record_modified_at,omitempty"`
	ContentModifiedAt *time.Time `json:"content_modified_at,omitempty" yaml:"content_modified_at,omitempty"`
	ImportedAt        *time.Time `json:"imported_at,omitempty" yaml:"imported_at,omitempty"`
	ExportedAt        *time.Time `json:"exported_at,omitempty" yaml:"exported_at,omitempty"`
	BlobUploadedAt    *time.Time `json:"blob_uploaded_at,omitempty" yaml:"blob_uploaded_at,omitempty"`
	TakenAt           *time.Time `json:"taken_at,omitempty" yaml:"taken_at,omitempty"`
	BlobSyncPending   bool       `json:"blob_sync_pending" yaml:"blob_sync_pending"`
	SourceDescriptor  string     `json:"source_descriptor,omitempty" yaml:"source_descriptor,omitempty"`
	SourceFileName    string     `json:"source_file_name,omitempty" yaml:"source_file_name,omitempty"`
}

// HasImageData reports whether the record carries a local payload. A
// zero-length payload counts as absent.
func (r PhotoRecord) HasImageData() bool {
	return len(r.ImageData) > 0
}

// HasBlobPath reports whether the record references a blob store object.
// A blank path counts as absent.
func (r PhotoRecord) HasBlobPath() bool {
	return strings.TrimSpace(r.BlobPath) != ""
}

// Field names a bulk-clearable ledger column.
type Field string

const (
	FieldImageData Field = "imageData"
	FieldBlobPath  Field = "blobPath"
)

var clearableFields = map[string]Field{
	"imagedata":  FieldImageData,
	"image_data": FieldImageData,
	"blobpath":   FieldBlobPath,
	"blob_path":  FieldBlobPath,
}

// ParseField resolves a user supplied field name. Both camelCase and
// snake_case spellings are accepted, case-insensitively.
func ParseField(raw string) (Field, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", fmt.Errorf("field is required")
	}
	field, ok := clearableFields[value]
	if !ok {
		return "", fmt.Errorf("invalid field: %s", raw)
	}
	return field, nil
}

// Valid reports whether f is one of the clearable fields.
func (f Field) Valid() bool {
	return f == FieldImageData || f == FieldBlobPath
}

func (f Field) String() string {
	return string(f)
}
