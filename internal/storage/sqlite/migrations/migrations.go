// Package migrations has the task archive schema and applies it with golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/cmdpool/internal/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// MigratorConfig is the configuration for the Migrator.
type MigratorConfig struct {
	DB *sql.DB
	// MigrationsTable is the table migrate tracks the schema version in.
	MigrationsTable string
	Logger          log.Logger
}

func (c *MigratorConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.MigrationsTable == "" {
		c.MigrationsTable = "schema_migrations"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.sqlite.Migrator"})
	return nil
}

// Migrator applies the archive schema migrations to a SQLite database.
type Migrator struct {
	db     *sql.DB
	table  string
	logger log.Logger
}

// NewMigrator creates a new migrator instance.
func NewMigrator(cfg MigratorConfig) (*Migrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Migrator{
		db:     cfg.DB,
		table:  cfg.MigrationsTable,
		logger: cfg.Logger,
	}, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.apply(ctx, "up", (*migrate.Migrate).Up)
}

// Down reverts all migrations.
func (m *Migrator) Down(ctx context.Context) error {
	return m.apply(ctx, "down", (*migrate.Migrate).Down)
}

// Version returns the applied schema version, 0 when no migration has been applied.
// A dirty schema is an error: a previous migration failed half way.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	var version uint
	err := m.with(ctx, func(inst *migrate.Migrate) error {
		v, dirty, err := inst.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not get schema version: %w", err)
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", v)
		}
		version = v
		return nil
	})

	return version, err
}

func (m *Migrator) apply(ctx context.Context, direction string, fn func(*migrate.Migrate) error) error {
	return m.with(ctx, func(inst *migrate.Migrate) error {
		err := fn(inst)
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Debugf("Schema already %s to date", direction)
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not run %s migrations: %w", direction, err)
		}

		m.logger.Debugf("Migrations %s applied", direction)
		return nil
	})
}

// with runs fn with a migrate instance over the embedded migrations. The
// database is not closed afterwards, it belongs to the caller.
func (m *Migrator) with(ctx context.Context, fn func(*migrate.Migrate) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	driver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{MigrationsTable: m.table})
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("could not create fs: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Errorf("could not close fs: %s", err)
		}
	}()

	inst, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}
	inst.Log = migrateLogger{logger: m.logger}

	return fn(inst)
}

// migrateLogger adapts our logger to migrate.Logger.
type migrateLogger struct {
	logger log.Logger
}

func (l migrateLogger) Printf(format string, v ...any) { l.logger.Debugf(format, v...) }

func (l migrateLogger) Verbose() bool { return false }
