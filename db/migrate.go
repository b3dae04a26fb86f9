package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/logger"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

var dialects = map[string]database.Dialect{
	config.DriverMySQL:  database.DialectMySQL,
	config.DriverSQLite: database.DialectSQLite3,
}

// Migrate applies all pending migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dialect, ok := dialects[driver]
	if !ok {
		return logger.LogErr(fmt.Errorf("no migrations for driver %q", driver))
	}

	migrationFS, err := fs.Sub(embedMigrations, "migrations/"+driver)
	if err != nil {
		return logger.LogErr(fmt.Errorf("open migrations for %s: %w", driver, err))
	}

	provider, err := goose.NewProvider(dialect, db, migrationFS)
	if err != nil {
		return logger.LogErr(fmt.Errorf("create goose provider: %w", err))
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return logger.LogErr(fmt.Errorf("apply migrations: %w", err))
	}
	for _, r := range results {
		logger.Info("applied migration %s in %s", r.Source.Path, r.Duration)
	}

	return nil
}
