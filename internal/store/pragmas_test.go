package store

import (
	"net/url"
	"strings"
	"testing"

	"github.com/huangsam/cipette/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePragma(t *testing.T) {
	tests := []struct {
		name, value string
		wantErr     bool
	}{
		{"journal_mode", "wal", false},
		{"journal_mode", "WAL; DROP TABLE runs", true},
		{"synchronous", "NORMAL", false},
		{"busy_timeout", "30000", false},
		{"busy_timeout", "-1", true},
		{"cache_size", "-2000", false},
		{"cache_size", "lots", true},
		{"foreign_keys", "on", false},
		{"mmap_size", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			err := validatePragma(tt.name, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn, err := sqliteDSN("/tmp/runs.db", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs.db", dsn)

	dsn, err = sqliteDSN("/tmp/runs.db", contract.DefaultSQLitePragmas)
	require.NoError(t, err)
	path, rawQuery, found := strings.Cut(dsn, "?")
	require.True(t, found)
	assert.Equal(t, "/tmp/runs.db", path)

	values, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	pragmas := values["_pragma"]
	require.Len(t, pragmas, len(contract.DefaultSQLitePragmas))
	assert.Equal(t, "busy_timeout(30000)", pragmas[0])
	assert.Contains(t, pragmas, "journal_mode(WAL)")

	_, err = sqliteDSN("/tmp/runs.db", map[string]string{"locking_mode": "EXCLUSIVE"})
	assert.Error(t, err)
}
