package models

// StorageMode classifies where a record's bytes currently live.
type StorageMode int

const (
	StorageEmpty StorageMode = iota
	StorageLocalOnly
	StorageRemoteOnly
	StorageHybrid
)

func (m StorageMode) String() string {
	switch m {
	case StorageLocalOnly:
		return "local_only"
	case StorageRemoteOnly:
		return "remote_only"
	case StorageHybrid:
		return "hybrid"
	default:
		return "empty"
	}
}

// MarshalText renders the mode by name for JSON and YAML output.
func (m StorageMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ExportStatus describes a record's position in the export cycle.
type ExportStatus int

const (
	NeverExported ExportStatus = iota
	ExportNeeded
	ExportCurrent
)

func (s ExportStatus) String() string {
	switch s {
	case ExportNeeded:
		return "export_needed"
	case ExportCurrent:
		return "export_current"
	default:
		return "never_exported"
	}
}

func (s ExportStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BlobSyncStatus describes a record's position in the upload cycle.
type BlobSyncStatus int

const (
	NotInBlob BlobSyncStatus = iota
	SyncNeeded
	Synced
)

func (s BlobSyncStatus) String() string {
	switch s {
	case SyncNeeded:
		return "sync_needed"
	case Synced:
		return "synced"
	default:
		return "not_in_blob"
	}
}

func (s BlobSyncStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SyncState is the derived per-record state. It is never persisted.
type SyncState struct {
	Code     string         `json:"code" yaml:"code"`
	Storage  StorageMode    `json:"storage" yaml:"storage"`
	Export   ExportStatus   `json:"export" yaml:"export"`
	BlobSync BlobSyncStatus `json:"blob_sync" yaml:"blob_sync"`
}
