package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultDatabaseName is used when the DSN names no database
const DefaultDatabaseName = "proctor"

// Migrator applies the embedded schema
type Migrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

type MigratorOption func(*Migrator)

// WithMigrationLogger routes golang-migrate progress lines to logger
func WithMigrationLogger(logger *slog.Logger) MigratorOption {
	return func(m *Migrator) {
		m.logger = logger.With("component", "migrate")
	}
}

func NewMigrator(db *sql.DB, dbName string, opts ...MigratorOption) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	migrator := &Migrator{m: m}
	for _, opt := range opts {
		opt(migrator)
	}
	if migrator.logger != nil {
		m.Log = migrateLogger{migrator.logger}
	}

	return migrator, nil
}

// Migrate opens dsn, brings the schema up to date and closes everything again
func Migrate(dsn string, logger *slog.Logger) error {
	db, err := NewPool(DefaultPoolConfig(dsn))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	m, err := NewMigrator(db, DatabaseName(dsn), WithMigrationLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema ready", "version", version, "dirty", dirty)
	return nil
}

// DatabaseName takes the database out of a postgres:// DSN
func DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return DefaultDatabaseName
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		return name
	}
	return DefaultDatabaseName
}

// Up is a no-op when the schema is current
func (m *Migrator) Up() error {
	err := m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Down rolls back one migration. Only for development databases.
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version is 0 on an empty database
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Force marks version as applied without running anything, clearing a dirty flag
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(wrapClose("source", srcErr), wrapClose("database", dbErr))
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", what, err)
}

// migrateLogger adapts slog to migrate.Logger
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
