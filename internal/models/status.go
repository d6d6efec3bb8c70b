package models

import "time"

// TransferStats summarises one transfer kind across the ledger.
type TransferStats struct {
	Count    int64      `json:"count" yaml:"count"`
	Earliest *time.Time `json:"earliest,omitempty" yaml:"earliest,omitempty"`
	Latest   *time.Time `json:"latest,omitempty" yaml:"latest,omitempty"`
}

// StatusSnapshot is the fixed operator report over the whole ledger.
type StatusSnapshot struct {
	TotalRecords    int64         `json:"total_records" yaml:"total_records"`
	WithImageData   int64         `json:"with_image_data" yaml:"with_image_data"`
	WithBlobPath    int64         `json:"with_blob_path" yaml:"with_blob_path"`
	Empty           int64         `json:"empty" yaml:"empty"`
	LocalOnly       int64         `json:"local_only" yaml:"local_only"`
	RemoteOnly      int64         `json:"remote_only" yaml:"remote_only"`
	Hybrid          int64         `json:"hybrid" yaml:"hybrid"`
	PendingBlobSync int64         `json:"pending_blob_sync" yaml:"pending_blob_sync"`
	NeedingExport   int64         `json:"needing_export" yaml:"needing_export"`
	DuplicateHashes int64         `json:"duplicate_hashes" yaml:"duplicate_hashes"`
	TotalBytes      int64         `json:"total_bytes" yaml:"total_bytes"`
	Imports         TransferStats `json:"imports" yaml:"imports"`
	Exports         TransferStats `json:"exports" yaml:"exports"`
	Uploads         TransferStats `json:"uploads" yaml:"uploads"`
}
