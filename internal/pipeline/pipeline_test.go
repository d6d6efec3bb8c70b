package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"photosync/internal/blobstore"
	"photosync/internal/filestore"
	"photosync/internal/models"
	"photosync/internal/store"
	"photosync/internal/syncerr"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	st     *store.Store
	blobs  *blobstore.Local
	files  *filestore.Store
	clock  *testClock
	inDir  string
	outDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)}
	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, "ledger.db"), store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocal(filepath.Join(root, "blobs"), "photos")
	if err != nil {
		t.Fatalf("new local blobs: %v", err)
	}
	files, err := filestore.New(filestore.HashSHA256)
	if err != nil {
		t.Fatalf("new filestore: %v", err)
	}
	inDir := filepath.Join(root, "in")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return &fixture{st: st, blobs: blobs, files: files, clock: clock, inDir: inDir, outDir: filepath.Join(root, "out")}
}

func (f *fixture) runner(t *testing.T, blobs blobstore.Client, files Files) *Runner {
	t.Helper()
	if blobs == nil {
		blobs = f.blobs
	}
	if files == nil {
		files = f.files
	}
	r, err := New(Deps{Repo: f.st, Blobs: blobs, Files: files, Now: f.clock.Now})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func (f *fixture) writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(f.inDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func defaultImport(dir string) ImportOptions {
	return ImportOptions{Dir: dir, HashEnabled: true, DuplicateCheck: true, ArchiveWorkers: 2}
}

func mustRecord(t *testing.T, st *store.Store, code string) *models.PhotoRecord {
	t.Helper()
	rec, err := st.FindByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("find %s: %v", code, err)
	}
	if rec == nil {
		t.Fatalf("expected record %s", code)
	}
	return rec
}

func assertCounts(t *testing.T, res BatchResult, found, succeeded, failed, skipped int) {
	t.Helper()
	if res.Found != found || res.Succeeded != succeeded || res.Failed != failed || res.Skipped != skipped {
		t.Fatalf("%s: expected found=%d succeeded=%d failed=%d skipped=%d, got found=%d succeeded=%d failed=%d skipped=%d (items %+v)",
			res.Stage, found, succeeded, failed, skipped, res.Found, res.Succeeded, res.Failed, res.Skipped, res.Items)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	payloads := map[string][]byte{
		"P1": {0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3},
		"P2": {0xFF, 0xD8, 0xFF, 0xE0, 4, 5, 6, 7},
	}
	for code, data := range payloads {
		f.writeInput(t, code+".jpg", data)
	}

	opts := defaultImport(f.inDir)
	opts.ArchiveDir = filepath.Join(f.inDir, "archive")
	res, err := r.Import(ctx, opts)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	assertCounts(t, res, 2, 2, 0, 0)
	if !res.Success || res.Archived != 2 {
		t.Fatalf("expected success with 2 archived, got %+v", res)
	}
	for code := range payloads {
		if _, err := os.Stat(filepath.Join(f.inDir, code+".jpg")); !os.IsNotExist(err) {
			t.Fatalf("expected %s moved to archive", code)
		}
		rec := mustRecord(t, f.st, code)
		if rec.SourceDescriptor != "FILE:"+filepath.Join(f.inDir, code+".jpg") {
			t.Fatalf("unexpected source descriptor %q", rec.SourceDescriptor)
		}
		if rec.ImportedAt == nil || rec.ContentModifiedAt == nil || rec.ContentHash == "" {
			t.Fatalf("expected import tracking on %s, got %+v", code, rec)
		}
		if rec.ContentType != "image/jpeg" {
			t.Fatalf("expected image/jpeg content type, got %q", rec.ContentType)
		}
	}

	exp, err := r.Export(ctx, ExportOptions{Dir: f.outDir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	assertCounts(t, exp, 2, 2, 0, 0)
	for code, data := range payloads {
		got, err := os.ReadFile(filepath.Join(f.outDir, code+".jpg"))
		if err != nil {
			t.Fatalf("read export %s: %v", code, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("export of %s is not byte-identical", code)
		}
		if mustRecord(t, f.st, code).ExportedAt == nil {
			t.Fatalf("expected exported_at on %s", code)
		}
	}
}

func TestImportDuplicateDetection(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	f.writeInput(t, "A.jpg", []byte("same-bytes"))
	f.writeInput(t, "B.jpg", []byte("same-bytes"))

	opts := defaultImport(f.inDir)
	opts.DuplicatesDir = filepath.Join(f.inDir, "dupes")
	res, err := r.Import(ctx, opts)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	assertCounts(t, res, 2, 1, 0, 0)
	if res.Duplicates != 1 || !res.Success {
		t.Fatalf("expected one duplicate and success, got %+v", res)
	}
	if res.Items[1].Code != "B" || res.Items[1].DuplicateOf != "A" {
		t.Fatalf("expected B reported as duplicate of A, got %+v", res.Items[1])
	}
	if _, err := os.Stat(filepath.Join(opts.DuplicatesDir, "B.jpg")); err != nil {
		t.Fatalf("expected B moved to duplicates dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.inDir, "A.jpg")); err != nil {
		t.Fatalf("A must stay in place without an archive dir: %v", err)
	}

	all, err := f.st.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 1 || all[0].Code != "A" {
		t.Fatalf("expected exactly one ledger row for A, got %+v", all)
	}
}

func TestImportEmptyFolderAndEmptyFiles(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()

	res, err := r.Import(ctx, defaultImport(f.inDir))
	if err != nil {
		t.Fatalf("import empty: %v", err)
	}
	if !res.Success || res.Found != 0 {
		t.Fatalf("empty folder must succeed, got %+v", res)
	}

	f.writeInput(t, "zero.jpg", nil)
	f.writeInput(t, ".jpg", []byte("no code"))
	res, err = r.Import(ctx, defaultImport(f.inDir))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	assertCounts(t, res, 2, 0, 0, 2)
	if res.Success {
		t.Fatal("a batch with files but no successes must not succeed")
	}
}

func TestImportRequiresDirectory(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	if _, err := r.Import(context.Background(), ImportOptions{}); !syncerr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// flakyFiles fails reads for one path.
type flakyFiles struct {
	Files
	failPath string
}

func (f *flakyFiles) ReadAll(path string) ([]byte, error) {
	if path == f.failPath {
		return nil, syncerr.Permanent("readAll", errors.New("corrupt file"))
	}
	return f.Files.ReadAll(path)
}

func TestImportPartialIsolation(t *testing.T) {
	f := newFixture(t)
	f.writeInput(t, "A.jpg", []byte("a"))
	bad := f.writeInput(t, "B.jpg", []byte("b"))
	f.writeInput(t, "C.jpg", []byte("c"))
	r := f.runner(t, nil, &flakyFiles{Files: f.files, failPath: bad})

	res, err := r.Import(context.Background(), defaultImport(f.inDir))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	assertCounts(t, res, 3, 2, 1, 0)
	if !res.Success {
		t.Fatal("partial failure must still succeed")
	}
	if res.Items[1].Outcome != OutcomeFailed || res.Items[1].ErrorKind != "permanent" {
		t.Fatalf("expected B failed with permanent kind, got %+v", res.Items[1])
	}
	for _, code := range []string{"A", "C"} {
		mustRecord(t, f.st, code)
	}
	if got, _ := f.st.FindByCode(context.Background(), "B"); got != nil {
		t.Fatal("failed file must not create a record")
	}
}

// failingArchiveFiles never archives.
type failingArchiveFiles struct {
	Files
}

func (failingArchiveFiles) Archive(string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestArchiveFailureDoesNotFailImport(t *testing.T) {
	f := newFixture(t)
	f.writeInput(t, "A.jpg", []byte("a"))
	r := f.runner(t, nil, failingArchiveFiles{Files: f.files})

	opts := defaultImport(f.inDir)
	opts.ArchiveDir = filepath.Join(f.inDir, "archive")
	res, err := r.Import(context.Background(), opts)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !res.Success || res.Succeeded != 1 || res.Archived != 0 {
		t.Fatalf("expected success with nothing archived, got %+v", res)
	}
}

func TestIncrementalExportMonotonicity(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	f.writeInput(t, "A.jpg", []byte("a"))
	f.writeInput(t, "B.jpg", []byte("b"))
	if _, err := r.Import(ctx, defaultImport(f.inDir)); err != nil {
		t.Fatalf("import: %v", err)
	}

	f.clock.Advance(time.Minute)
	first, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Incremental: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	assertCounts(t, first, 2, 2, 0, 0)

	f.clock.Advance(time.Minute)
	second, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Incremental: true})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	assertCounts(t, second, 0, 0, 0, 0)
	if !second.Success {
		t.Fatal("zero candidates must succeed")
	}

	forced, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Incremental: true, Force: true})
	if err != nil {
		t.Fatalf("forced export: %v", err)
	}
	assertCounts(t, forced, 2, 2, 0, 0)

	f.clock.Advance(time.Minute)
	if _, err := f.st.UpdateImageData(ctx, "A", []byte("a2"), ""); err != nil {
		t.Fatalf("update image data: %v", err)
	}
	third, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Incremental: true})
	if err != nil {
		t.Fatalf("third export: %v", err)
	}
	assertCounts(t, third, 1, 1, 0, 0)
}

func TestExportSkipsRemoteOnlyAndFailsEmpty(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	for _, rec := range []models.PhotoRecord{
		{Code: "E"},
		{Code: "L", ImageData: []byte("local")},
		{Code: "R", BlobPath: "photos/R.jpg"},
	} {
		if _, err := f.st.Upsert(ctx, &rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	res, err := r.Export(ctx, ExportOptions{Dir: f.outDir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	assertCounts(t, res, 3, 1, 1, 1)
	if !res.Success {
		t.Fatal("expected success with one exported record")
	}
	if mustRecord(t, f.st, "R").ExportedAt != nil {
		t.Fatal("skipped record must not be stamped as exported")
	}
}

func TestExportUsesFilenameTemplate(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	if _, err := f.st.Upsert(ctx, &models.PhotoRecord{Code: "A", ImageData: []byte("a")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	tmpl, err := ParseFilenameTemplate("{Date:yyyy-MM-dd}_{Code}.jpg")
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	res, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Template: tmpl})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("expected one export, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(f.outDir, "2024-05-17_A.jpg")); err != nil {
		t.Fatalf("expected templated file name: %v", err)
	}
}

func TestUploadDirtyFlagAndForceResync(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	f.writeInput(t, "A.jpg", []byte("v1"))
	if _, err := r.Import(ctx, defaultImport(f.inDir)); err != nil {
		t.Fatalf("import: %v", err)
	}

	up, err := r.Upload(ctx, UploadOptions{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assertCounts(t, up, 1, 1, 0, 0)
	rec := mustRecord(t, f.st, "A")
	if rec.BlobPath != "photos/A.jpg" || rec.BlobSyncPending || rec.BlobUploadedAt == nil {
		t.Fatalf("unexpected state after upload: %+v", rec)
	}

	if _, err := f.st.UpdateImageData(ctx, "A", []byte("v2"), ""); err != nil {
		t.Fatalf("update image data: %v", err)
	}
	if !mustRecord(t, f.st, "A").BlobSyncPending {
		t.Fatal("local change after upload must dirty the record")
	}

	normal, err := r.Upload(ctx, UploadOptions{})
	if err != nil {
		t.Fatalf("normal upload: %v", err)
	}
	assertCounts(t, normal, 0, 0, 0, 0)

	forced, err := r.Upload(ctx, UploadOptions{Force: true})
	if err != nil {
		t.Fatalf("forced upload: %v", err)
	}
	assertCounts(t, forced, 1, 1, 0, 0)
	if mustRecord(t, f.st, "A").BlobSyncPending {
		t.Fatal("forced upload must clear the dirty flag")
	}
	data, err := f.blobs.Download(ctx, "photos/A.jpg")
	if err != nil {
		t.Fatalf("download blob: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("expected re-uploaded content v2, got %q", data)
	}
}

// brokenDeleteBlobs fails every delete.
type brokenDeleteBlobs struct {
	blobstore.Client
}

func (brokenDeleteBlobs) Delete(context.Context, string) (bool, error) {
	return false, syncerr.Transient("delete", errors.New("connection reset"))
}

func TestForceUploadIgnoresDeleteFailure(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, brokenDeleteBlobs{Client: f.blobs}, nil)
	ctx := context.Background()
	rec := models.PhotoRecord{Code: "A", ImageData: []byte("v1"), BlobPath: "photos/A.jpg"}
	if _, err := f.st.Upsert(ctx, &rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := f.st.UpdateImageData(ctx, "A", []byte("v2"), ""); err != nil {
		t.Fatalf("update image data: %v", err)
	}

	res, err := r.Upload(ctx, UploadOptions{Force: true})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assertCounts(t, res, 1, 1, 0, 0)
}

// rejectingBlobs fails uploads for one code and passes everything else through.
type rejectingBlobs struct {
	blobstore.Client
	code string
}

func (b rejectingBlobs) Upload(ctx context.Context, code string, data []byte) (string, error) {
	if code == b.code {
		return "", syncerr.Transient("upload", errors.New("503 slow down"))
	}
	return b.Client.Upload(ctx, code, data)
}

func TestUploadPartialIsolation(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, rejectingBlobs{Client: f.blobs, code: "B"}, nil)
	ctx := context.Background()
	for _, code := range []string{"A", "B", "C"} {
		if _, err := f.st.Upsert(ctx, &models.PhotoRecord{Code: code, ImageData: []byte(code)}); err != nil {
			t.Fatalf("upsert %s: %v", code, err)
		}
	}

	res, err := r.Upload(ctx, UploadOptions{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assertCounts(t, res, 3, 2, 1, 0)
	if !res.Success {
		t.Fatalf("one failed upload must not fail the batch: %+v", res)
	}
	if res.Items[1].Code != "B" || res.Items[1].ErrorKind != "transient" {
		t.Fatalf("expected transient failure for B, got %+v", res.Items[1])
	}
	if mustRecord(t, f.st, "B").HasBlobPath() {
		t.Fatal("failed upload must leave B without a blob path")
	}
	for _, code := range []string{"A", "C"} {
		if !mustRecord(t, f.st, code).HasBlobPath() {
			t.Fatalf("expected %s uploaded", code)
		}
	}
}

// unreachableBlobs fails the connectivity check.
type unreachableBlobs struct {
	blobstore.Client
}

func (unreachableBlobs) Ping(context.Context) error {
	return syncerr.Transient("ping", errors.New("no route to host"))
}

func TestUploadPrecheckFailsWholeOperation(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, unreachableBlobs{Client: f.blobs}, nil)
	if _, err := f.st.Upsert(context.Background(), &models.PhotoRecord{Code: "A", ImageData: []byte("a")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := r.Upload(context.Background(), UploadOptions{})
	if err == nil {
		t.Fatal("expected precheck error")
	}
	if res.Success || res.Error == "" || res.Found != 0 {
		t.Fatalf("expected aborted result, got %+v", res)
	}
	if mustRecord(t, f.st, "A").HasBlobPath() {
		t.Fatal("aborted upload must not touch records")
	}
}

func TestDownloadRestoresClearedImageData(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	f.writeInput(t, "A.jpg", []byte("payload-a"))
	f.writeInput(t, "B.jpg", []byte("payload-b"))
	if _, err := r.Import(ctx, defaultImport(f.inDir)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := r.Upload(ctx, UploadOptions{}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := f.st.ClearField(ctx, models.FieldImageData); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.blobs.Delete(ctx, "photos/B.jpg"); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	res, err := r.Download(ctx)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	assertCounts(t, res, 2, 1, 1, 0)
	if res.Items[1].ErrorKind != "not_found" {
		t.Fatalf("expected not_found for missing blob, got %+v", res.Items[1])
	}
	if got := mustRecord(t, f.st, "A").ImageData; string(got) != "payload-a" {
		t.Fatalf("expected restored payload, got %q", got)
	}
}

func TestDownloadRefreshesContentHash(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	path, err := f.blobs.Upload(ctx, "R", []byte("fresh"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	if _, err := f.st.Upsert(ctx, &models.PhotoRecord{Code: "R", BlobPath: path, ContentHash: "stale"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := r.Download(ctx)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	assertCounts(t, res, 1, 1, 0, 0)
	if got, want := mustRecord(t, f.st, "R").ContentHash, f.files.Hash([]byte("fresh")); got != want {
		t.Fatalf("expected hash of downloaded bytes %q, got %q", want, got)
	}

	f.writeInput(t, "Z.jpg", []byte("fresh"))
	imp, err := r.Import(ctx, defaultImport(f.inDir))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imp.Duplicates != 1 || imp.Items[0].DuplicateOf != "R" {
		t.Fatalf("expected Z reported as duplicate of R, got %+v", imp)
	}
}

// emptyBlobs serves zero-length payloads.
type emptyBlobs struct {
	blobstore.Client
}

func (emptyBlobs) Download(context.Context, string) ([]byte, error) {
	return []byte{}, nil
}

func TestDownloadRejectsEmptyPayload(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, emptyBlobs{Client: f.blobs}, nil)
	ctx := context.Background()
	if _, err := f.st.Upsert(ctx, &models.PhotoRecord{Code: "R", BlobPath: "photos/R.jpg"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := r.Download(ctx)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	assertCounts(t, res, 1, 0, 1, 0)
	if res.Items[0].ErrorKind != "validation" {
		t.Fatalf("expected validation failure, got %+v", res.Items[0])
	}
	if n, err := r.DownloadCandidates(ctx); err != nil || n != 1 {
		t.Fatalf("R must stay a download candidate: %d err=%v", n, err)
	}
}

// widenedRepo hands every pipeline the whole ledger as its candidate set, so
// each per-record decision has to come from the rules themselves.
type widenedRepo struct {
	*store.Store
}

func (w widenedRepo) FindMissingBlobPath(ctx context.Context) ([]models.PhotoRecord, error) {
	return w.FindAll(ctx)
}

func (w widenedRepo) FindNeedingBlobSync(ctx context.Context) ([]models.PhotoRecord, error) {
	return w.FindAll(ctx)
}

func (w widenedRepo) FindMissingImageData(ctx context.Context) ([]models.PhotoRecord, error) {
	return w.FindAll(ctx)
}

func (w widenedRepo) FindNeedingExport(ctx context.Context) ([]models.PhotoRecord, error) {
	return w.FindAll(ctx)
}

func assertReasons(t *testing.T, res BatchResult, want ...string) {
	t.Helper()
	if len(res.Items) != len(want) {
		t.Fatalf("%s: expected %d items, got %+v", res.Stage, len(want), res.Items)
	}
	for i, reason := range want {
		if res.Items[i].Reason != reason {
			t.Fatalf("%s: item %s: expected reason %q, got %q", res.Stage, res.Items[i].Code, reason, res.Items[i].Reason)
		}
	}
}

func TestPipelinesApplyRulesPerRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := New(Deps{Repo: widenedRepo{Store: f.st}, Blobs: f.blobs, Files: f.files, Now: f.clock.Now})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	remote, err := f.blobs.Upload(ctx, "R", []byte("r"))
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}
	for _, rec := range []models.PhotoRecord{
		{Code: "E"},
		{Code: "H", ImageData: []byte("h"), BlobPath: "photos/H.jpg"},
		{Code: "L", ImageData: []byte("l")},
		{Code: "R", BlobPath: remote},
	} {
		if _, err := f.st.Upsert(ctx, &rec); err != nil {
			t.Fatalf("upsert %s: %v", rec.Code, err)
		}
	}

	f.clock.Advance(time.Minute)
	if _, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Incremental: true}); err != nil {
		t.Fatalf("export: %v", err)
	}
	f.clock.Advance(time.Minute)
	again, err := r.Export(ctx, ExportOptions{Dir: f.outDir, Incremental: true})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	assertCounts(t, again, 4, 0, 1, 3)
	assertReasons(t, again, again.Items[0].Reason, "already exported", "already exported", "remote only")

	up, err := r.Upload(ctx, UploadOptions{})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	assertCounts(t, up, 4, 1, 0, 3)
	assertReasons(t, up, "no local image data", "already uploaded", "", "no local image data")

	down, err := r.Download(ctx)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	assertCounts(t, down, 4, 1, 0, 3)
	assertReasons(t, down, "no blob path", "already local", "already local", "")
	if string(mustRecord(t, f.st, "R").ImageData) != "r" {
		t.Fatal("expected R downloaded")
	}
}

func TestFieldResetAndReimport(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	want := map[string]string{"A": "alpha", "B": "bravo", "C": "charlie"}
	for code, body := range want {
		f.writeInput(t, code+".jpg", []byte(body))
	}
	if _, err := r.Import(ctx, defaultImport(f.inDir)); err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := f.st.ClearField(ctx, models.FieldImageData); err != nil {
		t.Fatalf("clear: %v", err)
	}
	res, err := r.Import(ctx, defaultImport(f.inDir))
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	assertCounts(t, res, 3, 3, 0, 0)

	all, err := f.st.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(all))
	}
	for _, rec := range all {
		if string(rec.ImageData) != want[rec.Code] {
			t.Fatalf("record %s: expected %q, got %q", rec.Code, want[rec.Code], rec.ImageData)
		}
	}
}

func TestCandidateCountsDoNotMutate(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil, nil)
	ctx := context.Background()
	f.writeInput(t, "A.jpg", []byte("a"))

	n, err := r.ImportCandidates(f.inDir)
	if err != nil || n != 1 {
		t.Fatalf("import candidates: %d err=%v", n, err)
	}
	if all, _ := f.st.FindAll(ctx); len(all) != 0 {
		t.Fatal("counting candidates must not import")
	}
	if _, err := f.st.Upsert(ctx, &models.PhotoRecord{Code: "R", BlobPath: "photos/R.jpg"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n, err := r.DownloadCandidates(ctx); err != nil || n != 1 {
		t.Fatalf("download candidates: %d err=%v", n, err)
	}
	if n, err := r.UploadCandidates(ctx, UploadOptions{}); err != nil || n != 0 {
		t.Fatalf("upload candidates: %d err=%v", n, err)
	}
	if n, err := r.ExportCandidates(ctx, ExportOptions{Incremental: true}); err != nil || n != 1 {
		t.Fatalf("export candidates: %d err=%v", n, err)
	}
}
