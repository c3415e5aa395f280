// Package store persists workflows and runs and serves the reliability queries over them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/huangsam/cipette/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Store is the relational run store. It owns the schema, the connection
// pool and the transaction boundary.
type Store struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	retry   RetryPolicy
	logger  *slog.Logger
	clock   contract.Clock
	closed  atomic.Bool
}

var _ contract.RunStore = &Store{} // Compile-time check

// Option configures a Store.
type Option func(*Store)

// WithRetryPolicy overrides the busy/locked retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the clock used for bookkeeping timestamps.
func WithClock(c contract.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Config describes how to open a Store.
type Config struct {
	Backend       schema.DatabaseBackend
	ConnStr       string
	SQLitePragmas map[string]string
}

// Open connects to the configured backend, applies pending migrations and
// returns a ready Store.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db, cfg.Backend, -1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s store: %w", cfg.Backend, err)
	}
	return NewWithDB(db, cfg.Backend, opts...), nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB, backend schema.DatabaseBackend, opts ...Option) *Store {
	s := &Store{
		db:      db,
		backend: backend,
		retry:   DefaultRetryPolicy(),
		logger:  contract.NopLogger(),
		clock:   contract.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "store"), slog.String("backend", string(backend)))
	if s.retry.Logger == nil {
		s.retry.Logger = s.logger
	}
	return s
}

// Connect opens and pings the configured database without touching its schema.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch cfg.Backend {
	case schema.SQLiteBackend:
		dbPath := cfg.ConnStr
		if dbPath == "" {
			dbPath = contract.GetDBFilePath()
		}
		dsn, dsnErr := sqliteDSN(dbPath, cfg.SQLitePragmas)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		// and to keep in-memory databases alive across calls.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

	case schema.MySQLBackend:
		mysqlCfg, parseErr := mysql.ParseDSN(cfg.ConnStr)
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse MySQL connection string: %w. Check format: user:password@tcp(host:port)/dbname", parseErr)
		}
		// Migration files hold several statements each.
		mysqlCfg.MultiStatements = true
		db, err = sql.Open("mysql", mysqlCfg.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w", err)
		}

	case schema.PostgreSQLBackend:
		db, err = sql.Open("pgx", cfg.ConnStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=...", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", contract.ErrUnsupportedBackend, cfg.Backend)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		var connDetail string
		switch cfg.Backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", cfg.Backend, err, connDetail)
	}
	return db, nil
}

// Backend returns the database backend of the store.
func (s *Store) Backend() schema.DatabaseBackend {
	return s.backend
}

// DB exposes the connection pool for migrations and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() || s.db == nil {
		return contract.ErrStoreClosed
	}
	return nil
}

// InTx runs fn in one transaction. It commits when fn returns nil and rolls
// back when fn returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(contract.IngestWriter) error) error {
	return s.inTx(ctx, func(tx *Tx) error { return fn(tx) })
}

func (s *Store) inTx(ctx context.Context, fn func(*Tx) error) (err error) {
	if err := s.checkOpen(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if err = fn(&Tx{tx: sqlTx, store: s}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// exec runs a statement through the retry policy.
func (s *Store) exec(ctx context.Context, q querier, op, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := s.retry.Do(ctx, op, func() error {
		var execErr error
		res, execErr = q.ExecContext(ctx, rebind(s.backend, query), args...)
		return execErr
	})
	return res, err
}

// queryRow runs a single-row query through the retry policy and scans it.
func (s *Store) queryRow(ctx context.Context, q querier, op, query string, args []any, dest ...any) error {
	return s.retry.Do(ctx, op, func() error {
		return q.QueryRowContext(ctx, rebind(s.backend, query), args...).Scan(dest...)
	})
}
