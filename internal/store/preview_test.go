package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"photosync/internal/models"
	"photosync/internal/syncerr"
)

func TestOpenPreviewMissingLedgerWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	st, err := OpenPreview(path)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	all, err := st.FindAll(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty ledger, got %d records err=%v", len(all), err)
	}
	if _, err := st.SummaryStats(context.Background()); err != nil {
		t.Fatalf("summary stats: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected nothing on disk, found %d entries (first %s)", len(entries), entries[0].Name())
	}
}

func TestOpenPreviewRejectsOutdatedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		t.Fatalf("create migrations table: %v", err)
	}
	if err := applyMigration(db, sortedMigrations()[0], migrationClock()); err != nil {
		t.Fatalf("apply first migration: %v", err)
	}

	_, err = OpenPreview(path)
	if !errors.Is(err, ErrSchemaOutdated) || !syncerr.IsValidation(err) {
		t.Fatalf("expected outdated schema validation error, got %v", err)
	}
	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != sortedMigrations()[0].Version {
		t.Fatalf("preview must not migrate, schema moved to version %d", version)
	}
}

func TestOpenPreviewIsQueryOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustUpsert(t, st, models.PhotoRecord{Code: "A", ImageData: []byte("a")})
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	preview, err := OpenPreview(path)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	defer preview.Close()
	mustFind(t, preview, "A")
	if _, err := preview.Upsert(context.Background(), &models.PhotoRecord{Code: "B", ImageData: []byte("b")}); err == nil {
		t.Fatal("expected preview ledger to reject writes")
	}
	if n, err := preview.CountField(context.Background(), models.FieldImageData); err != nil || n != 1 {
		t.Fatalf("expected one record untouched, got %d err=%v", n, err)
	}
}

func TestOpenPreviewRejectsDirectory(t *testing.T) {
	if _, err := OpenPreview(t.TempDir()); !syncerr.IsValidation(err) {
		t.Fatalf("expected validation error for directory path, got %v", err)
	}
}
