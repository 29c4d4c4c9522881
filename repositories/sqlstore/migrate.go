package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// embedMigrations contains the per-dialect SQL migration files.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// MigrationCommand is a goose command understood by Migrate.
type MigrationCommand string

const (
	MigrateUp     MigrationCommand = "up"
	MigrateDown   MigrationCommand = "down"
	MigrateStatus MigrationCommand = "status"
)

// Migrate runs a goose command against the embedded migrations of the pool's dialect.
func (db *DB) Migrate(ctx context.Context, cmd MigrationCommand) error {
	dir := "migrations/" + db.dialect.Name()
	if _, err := fs.Stat(embedMigrations, dir); err != nil {
		return fmt.Errorf("no migrations for dialect %s: %w", db.dialect.Name(), err)
	}
	migrations, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.Dialect(db.dialect.GooseDialect()), db.DB, migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	switch cmd {
	case MigrateUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		for _, r := range results {
			db.logger.Info("migration applied",
				zap.Int64("version", r.Source.Version),
				zap.Duration("duration", r.Duration))
		}
	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		db.logger.Info("migration rolled back", zap.Int64("version", r.Source.Version))
	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, s := range statuses {
			db.logger.Info("migration status",
				zap.Int64("version", s.Source.Version),
				zap.String("state", string(s.State)),
				zap.Time("applied_at", s.AppliedAt))
		}
	default:
		return fmt.Errorf("unknown migration command %q", cmd)
	}
	return nil
}
