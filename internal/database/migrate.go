package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies pending up-migrations for the turns table before the
// archive takes writes.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating turn archive schema: %w", err)
	}

	ver, dirty, _ := m.Version()
	if dirty {
		slog.Warn("turn archive schema is dirty, inspect before writing", "version", ver)
	}
	slog.Info("turn archive schema up to date", "version", ver)
	return nil
}
