package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MySQL lock wait timeout and deadlock error numbers.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// RetryPolicy retries an operation on transient errors with exponential backoff.
// The zero value never retries.
type RetryPolicy struct {
	MaxRetries int              // retries after the first attempt
	BaseDelay  time.Duration    // wait before the first retry
	Factor     float64          // multiplier applied to each subsequent wait
	Retryable  func(error) bool // defaults to IsBusyError
	Logger     *slog.Logger
}

// DefaultRetryPolicy retries busy/locked errors 3 times starting at 0.5s, growing 1.5x.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(contract.DefaultRetryConfig())
}

// NewRetryPolicy builds a busy/locked retry policy from configuration.
func NewRetryPolicy(cfg contract.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.Delay,
		Factor:     cfg.Factor,
		Retryable:  IsBusyError,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, runs out of
// retries or ctx is done. Exhausted retries are reported as ErrRetriesExhausted
// wrapping the last error.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := 0
	operation := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.logger().Warn("database busy, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(p.backOff(), ctx), notify)
	if err != nil && p.retryable(err) && attempts > p.maxRetries() {
		return fmt.Errorf("%w: %s failed after %d attempts: %w", contract.ErrRetriesExhausted, op, attempts, err)
	}
	return err
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Factor
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.maxRetries()))
}

func (p RetryPolicy) maxRetries() int {
	return max(p.MaxRetries, 0)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsBusyError(err)
	}
	return p.Retryable(err)
}

func (p RetryPolicy) logger() *slog.Logger {
	if p.Logger == nil {
		return contract.NopLogger()
	}
	return p.Logger
}

// IsBusyError reports whether err is transient lock contention from any backend.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlLockWaitTimeout || mysqlErr.Number == mysqlDeadlock
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return true
		}
		return false
	}

	// Wrapped or driver-agnostic errors only carry the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
