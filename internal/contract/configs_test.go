package contract

import (
	"testing"
	"time"

	"github.com/huangsam/cipette/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRawInput() *ConfigRawInput {
	return &ConfigRawInput{
		Backend:   "sqlite",
		Output:    "text",
		Precision: 2,
		Color:     "yes",
		LogLevel:  "info",
		LogFormat: "text",
		Limit:     DefaultRunLimit,
	}
}

func ptr[T any](v T) *T { return &v }

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{name: "invalid backend", mutate: func(in *ConfigRawInput) { in.Backend = "oracle" }, expectError: true},
		{name: "mysql without connect", mutate: func(in *ConfigRawInput) { in.Backend = "mysql" }, expectError: true},
		{name: "mysql with connect", mutate: func(in *ConfigRawInput) {
			in.Backend = "mysql"
			in.DBConnect = "root:pw@tcp(localhost:3306)/cipette"
		}},
		{name: "postgres missing dbname", mutate: func(in *ConfigRawInput) {
			in.Backend = "postgresql"
			in.DBConnect = "host=localhost user=postgres"
		}, expectError: true},
		{name: "invalid output", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: true},
		{name: "invalid precision", mutate: func(in *ConfigRawInput) { in.Precision = 3 }, expectError: true},
		{name: "invalid color", mutate: func(in *ConfigRawInput) { in.Color = "maybe" }, expectError: true},
		{name: "invalid log level", mutate: func(in *ConfigRawInput) { in.LogLevel = "loud" }, expectError: true},
		{name: "invalid log format", mutate: func(in *ConfigRawInput) { in.LogFormat = "xml" }, expectError: true},
		{name: "negative days", mutate: func(in *ConfigRawInput) { in.Days = -1 }, expectError: true},
		{name: "invalid status", mutate: func(in *ConfigRawInput) { in.Status = "waiting" }, expectError: true},
		{name: "invalid conclusion", mutate: func(in *ConfigRawInput) { in.Conclusion = "skipped" }, expectError: true},
		{name: "limit too large", mutate: func(in *ConfigRawInput) { in.Limit = MaxRunLimit + 1 }, expectError: true},
		{name: "invalid cache ttl", mutate: func(in *ConfigRawInput) { in.CacheTTL = "soon" }, expectError: true},
		{name: "zero cache ttl", mutate: func(in *ConfigRawInput) { in.CacheTTL = "0s" }, expectError: true},
		{name: "negative capacity", mutate: func(in *ConfigRawInput) { in.CacheCapacity = -5 }, expectError: true},
		{name: "retry factor below one", mutate: func(in *ConfigRawInput) { in.Retry.Factor = ptr(0.5) }, expectError: true},
		{name: "weights not summing to one", mutate: func(in *ConfigRawInput) {
			in.HealthScore.Weights.SuccessRate = ptr(0.9)
		}, expectError: true},
		{name: "thresholds out of order", mutate: func(in *ConfigRawInput) {
			in.HealthScore.Thresholds.Good = ptr(90.0)
		}, expectError: true},
		{name: "zero mttr ceiling", mutate: func(in *ConfigRawInput) {
			in.HealthScore.MaxMTTRSeconds = ptr(0.0)
		}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRawInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validRawInput()))

	assert.Equal(t, schema.SQLiteBackend, cfg.Backend)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultCacheCapacity, cfg.CacheCapacity)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, DefaultRefreshInitialDelay, cfg.RefreshInitialDelay)
	assert.Equal(t, DefaultHealthWindowDays, cfg.HealthWindowDays)
	assert.Equal(t, DefaultRetryConfig(), cfg.Retry)
	assert.Equal(t, DefaultHealthConfig(), cfg.Health)
	assert.Equal(t, DefaultSQLitePragmas, cfg.SQLitePragmas)
	assert.False(t, cfg.Repository.IsSpecified())
	assert.False(t, cfg.Days.IsSpecified())
	assert.False(t, cfg.Conclusion.IsSpecified())
	assert.True(t, cfg.UseColors)
}

func TestProcessAndValidateOverrides(t *testing.T) {
	input := validRawInput()
	input.Repository = " acme/api "
	input.Days = 7
	input.Status = "COMPLETED"
	input.Conclusion = "none"
	input.CacheTTL = "2m"
	input.RefreshInterval = "1m"
	input.RefreshInitialDelay = "0s"
	input.SQLitePragmas = map[string]string{"Journal_Mode": "DELETE"}
	input.Retry = RetryRawInput{MaxRetries: ptr(5), Delay: ptr("100ms"), Factor: ptr(2.0)}
	input.HealthScore.Weights = HealthWeightsRawInput{
		SuccessRate: ptr(0.4), MTTR: ptr(0.2), Duration: ptr(0.2), Throughput: ptr(0.2),
	}
	input.HealthScore.MaxMTTRSeconds = ptr(3600.0)

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	repo, ok := cfg.Repository.Get()
	require.True(t, ok)
	assert.Equal(t, "acme/api", repo)
	assert.Equal(t, 7, cfg.Days.OrElse(0))
	assert.Equal(t, schema.StatusCompleted, cfg.Status.OrElse(""))
	assert.True(t, cfg.Conclusion.IsNone())
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, time.Duration(0), cfg.RefreshInitialDelay)
	assert.Equal(t, "DELETE", cfg.SQLitePragmas["journal_mode"])
	assert.Equal(t, "NORMAL", cfg.SQLitePragmas["synchronous"])
	assert.Equal(t, RetryConfig{MaxRetries: 5, Delay: 100 * time.Millisecond, Factor: 2.0}, cfg.Retry)
	assert.Equal(t, 0.4, cfg.Health.Weights[schema.BreakdownSuccessRate])
	assert.Equal(t, 3600.0, cfg.Health.MaxMTTRSeconds)

	q := cfg.MetricsQuery()
	assert.Equal(t, cfg.Repository, q.Repository)
	assert.Equal(t, cfg.Days, q.Days)

	f := cfg.RunFilter()
	assert.True(t, f.Conclusion.IsNone())
	assert.Equal(t, DefaultRunLimit, f.Limit)
}

func TestValidateDays(t *testing.T) {
	assert.NoError(t, ValidateDays(schema.Unspecified[int]()))
	assert.NoError(t, ValidateDays(schema.None[int]()))
	assert.NoError(t, ValidateDays(schema.Some(1)))
	assert.ErrorIs(t, ValidateDays(schema.Some(0)), ErrInvalidDays)
	assert.ErrorIs(t, ValidateDays(schema.Some(-3)), ErrInvalidDays)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=cipette"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "root@localhost/cipette"))
	assert.ErrorIs(t, ValidateDatabaseConnectionString("oracle", "x"), ErrUnsupportedBackend)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{SQLitePragmas: map[string]string{"a": "1"}, Health: DefaultHealthConfig()}
	clone := cfg.Clone()
	clone.SQLitePragmas["a"] = "2"
	clone.Health.Weights[schema.BreakdownMTTR] = 0.9
	assert.Equal(t, "1", cfg.SQLitePragmas["a"])
	assert.Equal(t, 0.25, cfg.Health.Weights[schema.BreakdownMTTR])
}
