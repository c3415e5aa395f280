package contract

import (
	"fmt"
	"maps"
	"math"
	"strings"
	"time"

	"github.com/huangsam/cipette/schema"
)

// Default values for configuration.
const (
	DefaultCacheTTL            = 60 * time.Second
	DefaultCacheCapacity       = 128
	DefaultRefreshInterval     = 300 * time.Second
	DefaultRefreshInitialDelay = 10 * time.Second
	DefaultHealthWindowDays    = 30
	DefaultMaxRetries          = 3
	DefaultRetryDelay          = 500 * time.Millisecond
	DefaultRetryFactor         = 1.5
	DefaultRunLimit            = 50
	MaxRunLimit                = 1000
	DefaultPrecision           = 2
	DefaultMaxMTTRSeconds      = 7200.0
	DefaultMaxDurationSeconds  = 1800.0
	DefaultMinRunsPerDay       = 1.0
	DefaultExcellentThreshold  = 85.0
	DefaultGoodThreshold       = 70.0
	DefaultFairThreshold       = 50.0
	weightSumTolerance         = 0.001
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// DefaultSQLitePragmas are issued on every SQLite connection unless overridden.
var DefaultSQLitePragmas = map[string]string{
	"journal_mode": "WAL",
	"synchronous":  "NORMAL",
	"temp_store":   "MEMORY",
	"busy_timeout": "30000",
	"cache_size":   "10000",
	"foreign_keys": "ON",
}

// HealthThresholds are the lower bounds of each health class.
type HealthThresholds struct {
	Excellent float64 `json:"excellent"`
	Good      float64 `json:"good"`
	Fair      float64 `json:"fair"`
}

// HealthConfig parameterizes the health score calculator.
type HealthConfig struct {
	Weights            map[schema.BreakdownKey]float64
	Thresholds         HealthThresholds
	MaxMTTRSeconds     float64
	MaxDurationSeconds float64
	MinRunsPerDay      float64
}

// DefaultHealthConfig returns the stock health score parameters.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Weights: schema.GetDefaultWeights(),
		Thresholds: HealthThresholds{
			Excellent: DefaultExcellentThreshold,
			Good:      DefaultGoodThreshold,
			Fair:      DefaultFairThreshold,
		},
		MaxMTTRSeconds:     DefaultMaxMTTRSeconds,
		MaxDurationSeconds: DefaultMaxDurationSeconds,
		MinRunsPerDay:      DefaultMinRunsPerDay,
	}
}

// RetryConfig parameterizes the busy/locked retry policy.
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
	Factor     float64
}

// DefaultRetryConfig returns the stock retry parameters.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: DefaultMaxRetries, Delay: DefaultRetryDelay, Factor: DefaultRetryFactor}
}

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	Backend       schema.DatabaseBackend
	DBConnect     string // Please use env var as this is plaintext
	SQLitePragmas map[string]string

	CacheTTL      time.Duration
	CacheCapacity int

	RefreshInterval     time.Duration
	RefreshInitialDelay time.Duration
	HealthWindowDays    int

	Retry  RetryConfig
	Health HealthConfig

	// Query filters shared by the read commands
	Repository schema.Option[string]
	Days       schema.Option[int]
	Workflow   schema.Option[string]
	Status     schema.Option[schema.RunStatus]
	Conclusion schema.Option[schema.Conclusion]
	RunLimit   int
	Summary    bool // roll metrics up per repository

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int  // Terminal width override (0 = auto-detect)
	UseColors  bool // Enable colored labels in table output

	LogLevel  string
	LogFormat string
}

// RetryRawInput holds retry settings from the YAML config file.
type RetryRawInput struct {
	MaxRetries *int     `mapstructure:"max_retries"`
	Delay      *string  `mapstructure:"delay"`
	Factor     *float64 `mapstructure:"factor"`
}

// HealthWeightsRawInput holds custom health score weights.
type HealthWeightsRawInput struct {
	SuccessRate *float64 `mapstructure:"success_rate"`
	MTTR        *float64 `mapstructure:"mttr"`
	Duration    *float64 `mapstructure:"duration"`
	Throughput  *float64 `mapstructure:"throughput"`
}

// HealthThresholdsRawInput holds custom health class thresholds.
type HealthThresholdsRawInput struct {
	Excellent *float64 `mapstructure:"excellent"`
	Good      *float64 `mapstructure:"good"`
	Fair      *float64 `mapstructure:"fair"`
}

// HealthRawInput holds the health_score section of the YAML config file.
type HealthRawInput struct {
	Weights            HealthWeightsRawInput    `mapstructure:"weights"`
	Thresholds         HealthThresholdsRawInput `mapstructure:"thresholds"`
	MaxMTTRSeconds     *float64                 `mapstructure:"mttr_max_seconds"`
	MaxDurationSeconds *float64                 `mapstructure:"duration_max_seconds"`
	MinRunsPerDay      *float64                 `mapstructure:"min_runs_per_day"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Backend    string `mapstructure:"backend"`
	DBConnect  string `mapstructure:"db-connect"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Precision  int    `mapstructure:"precision"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`
	LogLevel   string `mapstructure:"log-level"`
	LogFormat  string `mapstructure:"log-format"`

	// --- Fields from the read command flags ---
	Repository string `mapstructure:"repository"`
	Days       int    `mapstructure:"days"`
	Workflow   string `mapstructure:"workflow"`
	Status     string `mapstructure:"status"`
	Conclusion string `mapstructure:"conclusion"`
	Limit      int    `mapstructure:"limit"`
	Summary    bool   `mapstructure:"summary"`

	// --- Cache and refresh settings ---
	CacheTTL            string `mapstructure:"cache-ttl"`
	CacheCapacity       int    `mapstructure:"cache-capacity"`
	RefreshInterval     string `mapstructure:"refresh-interval"`
	RefreshInitialDelay string `mapstructure:"refresh-initial-delay"`
	HealthWindowDays    int    `mapstructure:"health-window-days"`

	// --- Sections from config file ---
	SQLitePragmas map[string]string `mapstructure:"sqlite-pragmas"`
	Retry         RetryRawInput     `mapstructure:"retry"`
	HealthScore   HealthRawInput    `mapstructure:"health_score"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.SQLitePragmas != nil {
		clone.SQLitePragmas = maps.Clone(c.SQLitePragmas)
	}
	if c.Health.Weights != nil {
		clone.Health.Weights = maps.Clone(c.Health.Weights)
	}
	return &clone
}

// MetricsQuery builds the metrics filter from the configured flags.
func (c *Config) MetricsQuery() schema.MetricsQuery {
	return schema.MetricsQuery{Repository: c.Repository, Days: c.Days}
}

// RunFilter builds the run listing filter from the configured flags.
func (c *Config) RunFilter() schema.RunFilter {
	return schema.RunFilter{
		Repository: c.Repository,
		WorkflowID: c.Workflow,
		Status:     c.Status,
		Conclusion: c.Conclusion,
		Limit:      c.RunLimit,
	}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := validateBackendConfig(cfg, input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := processQueryFilters(cfg, input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := processSchedule(cfg, input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := processRetry(cfg, input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := processHealthScore(cfg, input); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
	return nil
}

// ValidateDays rejects non-positive windows before any query runs.
func ValidateDays(days schema.Option[int]) error {
	if d, ok := days.Get(); ok && d <= 0 {
		return fmt.Errorf("%w (received %d)", ErrInvalidDays, d)
	}
	return nil
}

// validateSimpleInputs processes and validates output and logging fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}

	if _, err := ParseLogLevel(input.LogLevel); err != nil {
		return err
	}
	cfg.LogLevel = strings.ToLower(input.LogLevel)

	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = LogFormatText
	}
	if cfg.LogFormat != LogFormatText && cfg.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid log format '%s'. must be text, json", input.LogFormat)
	}
	return nil
}

// validateBackendConfig validates the store backend and its pragmas.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.Backend = schema.DatabaseBackend(strings.ToLower(input.Backend))
	if _, ok := schema.ValidDatabaseBackends[cfg.Backend]; !ok {
		return fmt.Errorf("invalid backend '%s'. must be sqlite, mysql, postgresql", input.Backend)
	}
	cfg.DBConnect = input.DBConnect
	if err := ValidateDatabaseConnectionString(cfg.Backend, cfg.DBConnect); err != nil {
		return err
	}

	cfg.SQLitePragmas = maps.Clone(DefaultSQLitePragmas)
	for k, v := range input.SQLitePragmas {
		cfg.SQLitePragmas[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return nil
}

// processQueryFilters turns empty flags into Unspecified options.
func processQueryFilters(cfg *Config, input *ConfigRawInput) error {
	cfg.Repository = optionalString(input.Repository)
	cfg.Workflow = optionalString(input.Workflow)

	// Viper cannot tell an unset int from zero, so zero means "all time" here.
	if input.Days < 0 {
		return fmt.Errorf("%w (received %d)", ErrInvalidDays, input.Days)
	}
	if input.Days > 0 {
		cfg.Days = schema.Some(input.Days)
	}

	var err error
	if cfg.Status, err = ParseStatusFilter(input.Status); err != nil {
		return err
	}
	if cfg.Conclusion, err = ParseConclusionFilter(input.Conclusion); err != nil {
		return err
	}

	if input.Limit <= 0 || input.Limit > MaxRunLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxRunLimit, input.Limit)
	}
	cfg.RunLimit = input.Limit
	cfg.Summary = input.Summary
	return nil
}

// ParseStatusFilter turns a status flag into a filter. Empty means no filter.
func ParseStatusFilter(raw string) (schema.Option[schema.RunStatus], error) {
	if strings.TrimSpace(raw) == "" {
		return schema.Unspecified[schema.RunStatus](), nil
	}
	status := schema.RunStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := schema.ValidRunStatuses[status]; !ok {
		return schema.Option[schema.RunStatus]{}, fmt.Errorf("invalid status '%s'. must be queued, in_progress, completed", raw)
	}
	return schema.Some(status), nil
}

// ParseConclusionFilter turns a conclusion flag into a filter.
// Empty means no filter and "none" selects runs without a conclusion.
func ParseConclusionFilter(raw string) (schema.Option[schema.Conclusion], error) {
	switch c := strings.ToLower(strings.TrimSpace(raw)); c {
	case "":
		return schema.Unspecified[schema.Conclusion](), nil
	case "none", "null":
		return schema.None[schema.Conclusion](), nil
	default:
		conclusion := schema.Conclusion(c)
		if _, ok := schema.ValidConclusions[conclusion]; !ok {
			return schema.Option[schema.Conclusion]{}, fmt.Errorf("invalid conclusion '%s'. must be success, failure, cancelled, none", raw)
		}
		return schema.Some(conclusion), nil
	}
}

// processSchedule handles the memo cache and background refresh settings.
func processSchedule(cfg *Config, input *ConfigRawInput) error {
	var err error
	if cfg.CacheTTL, err = parsePositiveDuration("cache-ttl", input.CacheTTL, DefaultCacheTTL); err != nil {
		return err
	}
	if cfg.RefreshInterval, err = parsePositiveDuration("refresh-interval", input.RefreshInterval, DefaultRefreshInterval); err != nil {
		return err
	}
	cfg.RefreshInitialDelay = DefaultRefreshInitialDelay
	if input.RefreshInitialDelay != "" {
		d, err := time.ParseDuration(input.RefreshInitialDelay)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid refresh-initial-delay '%s'", input.RefreshInitialDelay)
		}
		cfg.RefreshInitialDelay = d
	}

	cfg.CacheCapacity = input.CacheCapacity
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = DefaultCacheCapacity
	}
	if cfg.CacheCapacity < 0 {
		return fmt.Errorf("cache-capacity must be greater than 0 (received %d)", input.CacheCapacity)
	}

	cfg.HealthWindowDays = input.HealthWindowDays
	if cfg.HealthWindowDays == 0 {
		cfg.HealthWindowDays = DefaultHealthWindowDays
	}
	if cfg.HealthWindowDays < 0 {
		return fmt.Errorf("health-window-days must be greater than 0 (received %d)", input.HealthWindowDays)
	}
	return nil
}

// processRetry merges retry overrides onto the defaults.
func processRetry(cfg *Config, input *ConfigRawInput) error {
	cfg.Retry = DefaultRetryConfig()
	if input.Retry.MaxRetries != nil {
		if *input.Retry.MaxRetries < 0 {
			return fmt.Errorf("retry.max_retries cannot be negative (received %d)", *input.Retry.MaxRetries)
		}
		cfg.Retry.MaxRetries = *input.Retry.MaxRetries
	}
	if input.Retry.Delay != nil {
		d, err := time.ParseDuration(*input.Retry.Delay)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid retry.delay '%s'", *input.Retry.Delay)
		}
		cfg.Retry.Delay = d
	}
	if input.Retry.Factor != nil {
		if *input.Retry.Factor < 1 {
			return fmt.Errorf("retry.factor must be at least 1.0 (received %.2f)", *input.Retry.Factor)
		}
		cfg.Retry.Factor = *input.Retry.Factor
	}
	return nil
}

// ProcessHealthRawInput merges health score overrides onto the defaults.
// Custom weights must sum to 1.0 when validateSum is set.
func ProcessHealthRawInput(raw HealthRawInput, validateSum bool) (HealthConfig, error) {
	hc := DefaultHealthConfig()

	overrides := map[schema.BreakdownKey]*float64{
		schema.BreakdownSuccessRate: raw.Weights.SuccessRate,
		schema.BreakdownMTTR:        raw.Weights.MTTR,
		schema.BreakdownDuration:    raw.Weights.Duration,
		schema.BreakdownThroughput:  raw.Weights.Throughput,
	}
	custom := false
	for key, w := range overrides {
		if w == nil {
			continue
		}
		if *w < 0 {
			return hc, fmt.Errorf("health weight %s cannot be negative (received %.3f)", key, *w)
		}
		hc.Weights[key] = *w
		custom = true
	}
	if custom && validateSum {
		sum := 0.0
		for _, w := range hc.Weights {
			sum += w
		}
		if math.Abs(sum-1.0) > weightSumTolerance {
			return hc, fmt.Errorf("health weights must sum to 1.0, got %.3f", sum)
		}
	}

	if raw.Thresholds.Excellent != nil {
		hc.Thresholds.Excellent = *raw.Thresholds.Excellent
	}
	if raw.Thresholds.Good != nil {
		hc.Thresholds.Good = *raw.Thresholds.Good
	}
	if raw.Thresholds.Fair != nil {
		hc.Thresholds.Fair = *raw.Thresholds.Fair
	}
	t := hc.Thresholds
	if t.Fair < 0 || t.Excellent > 100 || t.Fair > t.Good || t.Good > t.Excellent {
		return hc, fmt.Errorf("health thresholds must satisfy 0 <= fair <= good <= excellent <= 100 (received %.1f/%.1f/%.1f)", t.Fair, t.Good, t.Excellent)
	}

	positive := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"mttr_max_seconds", raw.MaxMTTRSeconds, &hc.MaxMTTRSeconds},
		{"duration_max_seconds", raw.MaxDurationSeconds, &hc.MaxDurationSeconds},
		{"min_runs_per_day", raw.MinRunsPerDay, &hc.MinRunsPerDay},
	}
	for _, p := range positive {
		if p.src == nil {
			continue
		}
		if *p.src <= 0 {
			return hc, fmt.Errorf("health_score.%s must be greater than 0 (received %.2f)", p.name, *p.src)
		}
		*p.dst = *p.src
	}
	return hc, nil
}

// processHealthScore validates the health_score config section.
func processHealthScore(cfg *Config, input *ConfigRawInput) error {
	hc, err := ProcessHealthRawInput(input.HealthScore, true)
	if err != nil {
		return err
	}
	cfg.Health = hc
	return nil
}

func optionalString(s string) schema.Option[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return schema.Unspecified[string]()
	}
	return schema.Some(s)
}

func parsePositiveDuration(name, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", name, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive (received %s)", name, raw)
	}
	return d, nil
}
