package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/cipette/internal/contract"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, Factor: 2}
}

func TestRetryPolicySucceedsAfterBusy(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExhausted(t *testing.T) {
	calls := 0
	busy := errors.New("SQLITE_BUSY: database is locked")
	err := fastPolicy(2).Do(context.Background(), "test", func() error {
		calls++
		return busy
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrRetriesExhausted)
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyNonRetryable(t *testing.T) {
	calls := 0
	boom := errors.New("syntax error")
	err := fastPolicy(5).Do(context.Background(), "test", func() error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyZeroValueNeverRetries(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), "test", func() error {
		calls++
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, contract.ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fastPolicy(5).Do(ctx, "test", func() error {
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicyCustomPredicate(t *testing.T) {
	flaky := errors.New("flaky")
	calls := 0
	p := fastPolicy(1)
	p.Retryable = func(err error) bool { return errors.Is(err, flaky) }
	err := p.Do(context.Background(), "test", func() error {
		calls++
		if calls == 1 {
			return flaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsBusyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite message", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"table locked", errors.New("database table is locked"), true},
		{"wrapped message", fmt.Errorf("exec: %w", errors.New("database is locked")), true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, true},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"pg serialization", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"pg deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"pg unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"other", errors.New("no such table: runs"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusyError(tt.err))
		})
	}
}

func TestNewRetryPolicyFromConfig(t *testing.T) {
	p := NewRetryPolicy(contract.RetryConfig{MaxRetries: 4, Delay: 2 * time.Second, Factor: 3})
	assert.Equal(t, 4, p.MaxRetries)
	assert.Equal(t, 2*time.Second, p.BaseDelay)
	assert.Equal(t, 3.0, p.Factor)
	assert.True(t, p.Retryable(errors.New("database is locked")))

	d := DefaultRetryPolicy()
	assert.Equal(t, contract.DefaultMaxRetries, d.MaxRetries)
	assert.Equal(t, contract.DefaultRetryDelay, d.BaseDelay)
}
