package store

import (
	"context"
	"database/sql/driver"
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"photosync/internal/syncerr"
)

// classify maps driver errors onto the sync error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if syncerr.KindOf(err) != syncerr.KindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return syncerr.Transient(op, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_PROTOCOL, sqlite3.SQLITE_CANTOPEN:
			return syncerr.Transient(op, err)
		}
	}
	return syncerr.Permanent(op, err)
}
