package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"photosync/internal/blobstore"
	"photosync/internal/config"
	"photosync/internal/filestore"
	"photosync/internal/pipeline"
	"photosync/internal/store"
	"photosync/internal/workflow"
)

const lockFileSuffix = ".lock"

// errRunActive reports that another process holds the run lock.
var errRunActive = errors.New("another photosync run is active")

// engine is the wired sync stack for one command invocation.
type engine struct {
	repo     store.PhotoRepository
	blobs    blobstore.Client
	runner   *pipeline.Runner
	workflow *workflow.Orchestrator
}

type engineOptions struct {
	// blobs opens the configured blob store. Import and export leave it nil.
	blobs bool
}

// withEngine holds the run lock beside the ledger for the lifetime of fn so
// that only one sync run mutates the ledger at a time.
func withEngine(ctx context.Context, cfg *config.Config, opts engineOptions, fn func(*engine) error) error {
	unlock, err := acquireRunLock(cfg.DBPath)
	if err != nil {
		return err
	}
	defer unlock()

	eng, cleanup, err := openEngine(ctx, cfg, opts, store.Open)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(eng)
}

// withPreview wires the stack for a dry run. It takes no run lock, opens no
// blob store and leaves the ledger file untouched.
func withPreview(ctx context.Context, cfg *config.Config, fn func(*engine) error) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	eng, cleanup, err := openEngine(ctx, cfg, engineOptions{}, store.OpenPreview)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(eng)
}

// withLedger opens the ledger for read-only reporting. No run lock is taken.
func withLedger(cfg *config.Config, fn func(*store.Store) error) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func acquireRunLock(dbPath string) (func(), error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	lock := flock.New(dbPath + lockFileSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", errRunActive, lock.Path())
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Default().Warn("release run lock failed", "path", lock.Path(), "err", err)
		}
	}, nil
}

func openEngine(ctx context.Context, cfg *config.Config, opts engineOptions, open func(string, ...store.Option) (*store.Store, error)) (*engine, func(), error) {
	logger := slog.Default()
	policy := cfg.RetryPolicy()
	policy.Logger = logger

	logger.Debug("opening ledger", "path", cfg.DBPath)
	st, err := open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = st.Close() }

	eng := &engine{repo: store.NewRetrying(st, policy)}

	if opts.blobs {
		client, err := blobstore.New(ctx, cfg.BlobSettings())
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		eng.blobs = blobstore.NewRetrying(client, policy)
	}

	files, err := filestore.New(cfg.Import.HashAlgorithm)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	eng.runner, err = pipeline.New(pipeline.Deps{Repo: eng.repo, Blobs: eng.blobs, Files: files, Logger: logger})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	eng.workflow = workflow.New(eng.repo, eng.runner, workflow.WithLogger(logger))
	return eng, cleanup, nil
}
