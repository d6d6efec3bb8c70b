package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"photosync/internal/syncerr"
)

// ErrSchemaOutdated reports a ledger that needs migrations before it can be
// read by this build.
var ErrSchemaOutdated = errors.New("ledger schema is out of date")

// OpenPreview opens the ledger at path for dry runs. Nothing is written to
// disk: no migrations run, no journal mode is set, and every connection is
// query-only. A ledger with pending migrations is rejected with
// ErrSchemaOutdated. When path does not exist yet the preview runs against an
// empty in-memory ledger at the current schema.
func OpenPreview(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return openEmptyPreview(opts)
	case err != nil:
		return nil, syncerr.Permanent("openPreview", err)
	case info.IsDir():
		return nil, syncerr.Validationf("openPreview", "db path %s is a directory", path)
	}

	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn+"&_pragma=query_only(1)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	plan, err := MigrationPlan(db)
	if err != nil {
		_ = db.Close()
		return nil, classify("openPreview", err)
	}
	if len(plan.Pending) > 0 {
		_ = db.Close()
		return nil, syncerr.Validation("openPreview", fmt.Errorf("%w: %s is at version %d of %d",
			ErrSchemaOutdated, path, plan.CurrentVersion, plan.AvailableVersion))
	}
	return newStore(db, opts), nil
}

func openEmptyPreview(opts []Option) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each new connection to :memory: is a separate empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	st := newStore(db, opts)
	if err := runMigrations(db, st.now); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func newStore(db *sql.DB, opts []Option) *Store {
	st := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(st)
	}
	return st
}
