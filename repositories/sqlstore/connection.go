// Package sqlstore implements the repositories contracts over database/sql.
// One set of statements serves both PostgreSQL and SQLite; the Dialect only
// decides how driver errors map onto the store error kinds.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/upb/authd/config"
	"go.uber.org/zap"
)

// SQLite DSN parameters.
const (
	sqliteBusyTimeout = "5000" // 5 seconds
	sqliteJournalMode = "WAL"
)

// DB wraps the sql.DB connection pool together with its dialect and clock.
type DB struct {
	*sql.DB
	dialect Dialect
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewDB opens a connection pool for the configured driver and verifies it.
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	return NewDBWithClock(cfg, clockwork.NewRealClock(), logger)
}

// NewDBWithClock is NewDB with the clock used for row timestamps.
func NewDBWithClock(cfg config.DatabaseConfig, clock clockwork.Clock, logger *zap.Logger) (*DB, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)

	switch cfg.Driver {
	case config.DriverSQLite:
		dialect = SQLite
		db, err = sql.Open(dialect.DriverName(), sqliteDSN(cfg.DSN()))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	default:
		dialect = Postgres
		db, err = sql.Open(dialect.DriverName(), cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("driver", dialect.Name()),
		zap.String("connection", cfg.LogString()))

	return Wrap(db, dialect, clock, logger), nil
}

// Wrap builds a DB around an already opened pool. Tests use it with sqlmock
// and a fake clock.
func Wrap(db *sql.DB, dialect Dialect, clock clockwork.Clock, logger *zap.Logger) *DB {
	return &DB{
		DB:      db,
		dialect: dialect,
		clock:   clock,
		logger:  logger,
	}
}

// Dialect returns the dialect the pool was opened with
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// now returns the store timestamp for a write. Microsecond precision matches
// what both engines round-trip.
func (db *DB) now() time.Time {
	return db.clock.Now().UTC().Truncate(time.Microsecond)
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// sqliteDSN appends the WAL, busy timeout and foreign key pragmas unless the
// caller already supplied query parameters.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	params := url.Values{}
	params.Set("_journal_mode", sqliteJournalMode)
	params.Set("_busy_timeout", sqliteBusyTimeout)
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}
