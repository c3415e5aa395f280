package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
)

//go:embed migrations
var migrationsFS embed.FS

// migrationsTable is the golang-migrate bookkeeping table, identical on every backend.
const migrationsTable = "schema_migrations"

// LatestVersion is the newest embedded schema version.
const LatestVersion = 2

// MigrateResult describes a completed migration.
type MigrateResult struct {
	From    uint
	To      uint
	Changed bool
}

// Migrate moves the schema of db to targetVersion.
// - If targetVersion < 0, it migrates to the latest version.
// - If targetVersion == 0, it rolls back all migrations (to initial state).
// - If targetVersion > 0, it migrates to the specified version.
func Migrate(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend, targetVersion int) (MigrateResult, error) {
	var result MigrateResult

	driver, closeDriver, err := migrateDriver(ctx, db, backend)
	if err != nil {
		return result, err
	}
	defer func() { _ = closeDriver() }()

	migrationFS, err := fs.Sub(migrationsFS, "migrations/"+string(backend))
	if err != nil {
		return result, fmt.Errorf("failed to access migrations directory: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, ".")
	if err != nil {
		return result, fmt.Errorf("failed to create migration source: %w", err)
	}
	defer func() { _ = sourceDriver.Close() }()

	// m.Close is not called: it would close the driver, and for SQLite the shared *sql.DB with it.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "cipette", driver)
	if err != nil {
		return result, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return result, fmt.Errorf("failed to get current migration version: %w", err)
	}
	if dirty {
		return result, fmt.Errorf("database is in a dirty state at version %d. Please fix manually or force version", currentVersion)
	}
	result.From = currentVersion

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if errors.Is(err, migrate.ErrNoChange) {
		result.To = currentVersion
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to migrate from version %d (target %s): %w", currentVersion, describeTarget(targetVersion), err)
	}

	newVersion, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return result, fmt.Errorf("failed to get migrated version: %w", err)
	}
	result.To = newVersion
	result.Changed = true
	return result, nil
}

func describeTarget(targetVersion int) string {
	if targetVersion < 0 {
		return "latest"
	}
	return fmt.Sprintf("%d", targetVersion)
}

// migrateDriver wraps db in a golang-migrate driver. MySQL and PostgreSQL get
// a dedicated connection that the returned closer releases. SQLite shares the
// pool, so its closer leaves the database open.
func migrateDriver(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend) (database.Driver, func() error, error) {
	noop := func() error { return nil }

	switch backend {
	case schema.SQLiteBackend:
		driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create SQLite migrate driver: %w", err)
		}
		return driver, noop, nil

	case schema.MySQLBackend:
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to acquire MySQL connection: %w", err)
		}
		driver, err := mysql.WithConnection(ctx, conn, &mysql.Config{MigrationsTable: migrationsTable})
		if err != nil {
			_ = conn.Close()
			return nil, noop, fmt.Errorf("failed to create MySQL migrate driver: %w", err)
		}
		return driver, driver.Close, nil

	case schema.PostgreSQLBackend:
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to acquire PostgreSQL connection: %w", err)
		}
		driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: migrationsTable})
		if err != nil {
			_ = conn.Close()
			return nil, noop, fmt.Errorf("failed to create PostgreSQL migrate driver: %w", err)
		}
		return driver, driver.Close, nil
	}
	return nil, noop, fmt.Errorf("%w: %s", contract.ErrUnsupportedBackend, backend)
}

// schemaVersion reads the applied migration version without taking the migrate lock.
func schemaVersion(ctx context.Context, q querier) (uint, bool, error) {
	var version int64
	var dirty bool
	err := q.QueryRowContext(ctx, "SELECT version, dirty FROM "+migrationsTable+" LIMIT 1").Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return uint(version), dirty, nil
}
