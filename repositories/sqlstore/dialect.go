package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/upb/authd/repositories"
)

// Dialect adapts the shared statements to one storage engine.
type Dialect interface {
	// Name is the human readable engine name
	Name() string
	// DriverName is the database/sql driver the pool is opened with
	DriverName() string
	// GooseDialect is the dialect name goose expects
	GooseDialect() string
	// classify maps an engine specific error onto a store kind, or nil when
	// the error is not engine specific.
	classify(err error) error
}

// Supported dialects
var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string         { return "postgres" }
func (postgresDialect) DriverName() string   { return "postgres" }
func (postgresDialect) GooseDialect() string { return "postgres" }

func (postgresDialect) classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case "23505", "23503": // unique_violation, foreign_key_violation
		return repositories.ErrConflict
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return repositories.ErrTemporary
	}
	switch pqErr.Code.Class() {
	case "08", "53", "57": // connection exception, insufficient resources, operator intervention
		return repositories.ErrTemporary
	}
	return repositories.ErrFatal
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string         { return "sqlite" }
func (sqliteDialect) DriverName() string   { return "sqlite3" }
func (sqliteDialect) GooseDialect() string { return "sqlite3" }

func (sqliteDialect) classify(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintForeignKey:
		return repositories.ErrConflict
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return repositories.ErrTemporary
	}
	return repositories.ErrFatal
}

// wrapErr turns a driver error into a *repositories.StoreError. sql.ErrNoRows
// becomes ErrNotFound; connectivity failures are temporary regardless of engine.
func (db *DB) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *repositories.StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.NotFound(op)
	}
	return repositories.NewStoreError(classify(db.dialect, err), op, err)
}

func classify(d Dialect, err error) error {
	if kind := d.classify(err); kind != nil {
		return kind
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return repositories.ErrTemporary
	}
	return repositories.ErrFatal
}
