package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"worklog-platform/pkg/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations to a PostgreSQL database
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator wraps db with the embedded migration set.
// Closing the migrator is not needed; the underlying connection belongs to the caller.
func NewMigrator(db *sql.DB, logger *logging.StructuredLogger) (*Migrator, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: logger}

	return &Migrator{m: m}, nil
}

// Up runs all pending migrations. Being at the latest version is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Version returns the applied version and dirty flag; 0, false when nothing has been applied
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Force sets the recorded version without running migrations, to recover from a dirty state
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force migration to version %d failed: %w", version, err)
	}
	return nil
}

// Migrate runs the embedded migrations up on the open connection
func (p *PostgresDB) Migrate() error {
	mg, err := NewMigrator(p.db.DB, p.logger)
	if err != nil {
		return err
	}
	return mg.Up()
}

type migrateLogger struct {
	logger *logging.StructuredLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(context.Background(), "[MIGRATE] "+fmt.Sprintf(format, v...), logging.Fields{})
}

func (l *migrateLogger) Verbose() bool {
	return false
}
