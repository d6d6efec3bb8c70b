package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports applied and pending migrations.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version" yaml:"current_version"`
	AvailableVersion int             `json:"available_version" yaml:"available_version"`
	Applied          []MigrationInfo `json:"applied" yaml:"applied"`
	Pending          []MigrationInfo `json:"pending" yaml:"pending"`
}

// MigrationInfo describes a single migration. AppliedAt is empty while pending.
type MigrationInfo struct {
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
	AppliedAt   string `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: photos ledger keyed by code",
		SQL: `
CREATE TABLE IF NOT EXISTS photos (
  code TEXT PRIMARY KEY,
  image_data BLOB,
  blob_path TEXT,
  content_hash TEXT,
  byte_size INTEGER,
  created_at TEXT NOT NULL,
  record_modified_at TEXT,
  content_modified_at TEXT,
  imported_at TEXT,
  exported_at TEXT,
  blob_uploaded_at TEXT,
  blob_sync_pending INTEGER NOT NULL DEFAULT 0,
  source_descriptor TEXT,
  source_file_name TEXT
);

CREATE INDEX IF NOT EXISTS idx_photos_content_hash ON photos(content_hash);
CREATE INDEX IF NOT EXISTS idx_photos_blob_path ON photos(blob_path);
CREATE INDEX IF NOT EXISTS idx_photos_exported_at ON photos(exported_at);
`,
	},
	{
		Version:     2,
		Description: "add taken_at and content_type columns",
		SQL: `
ALTER TABLE photos ADD COLUMN taken_at TEXT;
ALTER TABLE photos ADD COLUMN content_type TEXT;
`,
	},
	{
		Version:     3,
		Description: "partial index for pending blob sync",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_photos_blob_sync_pending ON photos(code) WHERE blob_sync_pending = 1;
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

func migrationsTableExists(db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&n)
	return n > 0, err
}

// appliedMigrations returns applied_at keyed by version. A ledger that was
// never migrated has none.
func appliedMigrations(db *sql.DB) (map[int]string, error) {
	exists, err := migrationsTableExists(db)
	if err != nil || !exists {
		return map[int]string{}, err
	}
	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[int]string{}
	for rows.Next() {
		var (
			version   int
			appliedAt string
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, err
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

func currentVersion(db *sql.DB) (int, error) {
	applied, err := appliedMigrations(db)
	if err != nil {
		return 0, err
	}
	current := 0
	for version := range applied {
		current = max(current, version)
	}
	return current, nil
}

// runMigrations applies all pending migrations in order, each in its own
// transaction, stamping them with now.
func runMigrations(db *sql.DB, now func() time.Time) error {
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range sortedMigrations() {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(db, m, now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration, at time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, m.Version, formatTime(at)); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan reports the migration state of db. It only reads; a fresh
// database is reported as version 0 with everything pending.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	applied, err := appliedMigrations(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{Applied: []MigrationInfo{}, Pending: []MigrationInfo{}}
	for _, m := range sortedMigrations() {
		status.AvailableVersion = m.Version
		info := MigrationInfo{Version: m.Version, Description: m.Description}
		if at, ok := applied[m.Version]; ok {
			info.AppliedAt = at
			status.CurrentVersion = m.Version
			status.Applied = append(status.Applied, info)
			continue
		}
		status.Pending = append(status.Pending, info)
	}
	return status, nil
}
