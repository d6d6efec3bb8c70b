package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeoutMS   = 5000
	maxOpenConns           = 1
	maxIdleConns           = 1
	defaultConnMaxLifetime = 5 * time.Minute

	busyTimeoutEnvKey     = "PHOTOSYNC_DB_BUSY_TIMEOUT_MS"
	connMaxLifetimeEnvKey = "PHOTOSYNC_DB_CONN_MAX_LIFETIME"
)

// Store is the SQLite-backed photo ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option customises a Store at open time.
type Option func(*Store)

// WithClock injects the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the SQLite database and applies pending migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	st := newStore(db, opts)
	if err := runMigrations(db, st.now); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the ledger is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger is not open")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", intFromEnv(busyTimeoutEnvKey, defaultBusyTimeoutMS)),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Single writer; one connection keeps transactions serialised.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(durationFromEnv(connMaxLifetimeEnvKey, defaultConnMaxLifetime))

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	// Recycled pool connections must inherit the busy timeout too.
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", intFromEnv(busyTimeoutEnvKey, defaultBusyTimeoutMS)))
	u := url.URL{Scheme: "file", Path: path, RawQuery: q.Encode()}
	return u.String(), nil
}

func intFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
