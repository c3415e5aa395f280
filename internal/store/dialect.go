package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/cipette/schema"
)

// Table names.
const (
	repositoriesTable = "repositories"
	branchesTable     = "branches"
	eventsTable       = "events"
	actorsTable       = "actors"
	workflowsTable    = "workflows"
	runsTable         = "runs"
	mttrCacheTable    = "mttr_cache"
	healthCacheTable  = "health_score_cache"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func rebind(backend schema.DatabaseBackend, query string) string {
	if backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnoreQuery returns an insert that is a no-op when the unique column already holds the value.
func insertIgnoreQuery(backend schema.DatabaseBackend, table, column string) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (?)", table, column)
	case schema.PostgreSQLBackend:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (?) ON CONFLICT (%s) DO NOTHING", table, column, column)
	default:
		return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (?)", table, column)
	}
}

// upsertQuery returns an insert that overwrites every non-key column on primary key conflict.
func upsertQuery(backend schema.DatabaseBackend, table, key string, columns []string) string {
	all := append([]string{key}, columns...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), placeholders)

	sets := make([]string, len(columns))
	for i, c := range columns {
		if backend == schema.MySQLBackend {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
	}
	if backend == schema.MySQLBackend {
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return insert + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", key) + strings.Join(sets, ", ")
}

// toEpoch converts an optional timestamp to a nullable Unix epoch argument.
func toEpoch(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// fromEpoch converts a nullable Unix epoch column to an optional UTC timestamp.
func fromEpoch(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
