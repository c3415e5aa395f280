package schema

// Custom string types for type safety.
type (
	// BreakdownKey represents keys used in health score breakdowns.
	BreakdownKey string

	// OutputMode represents the format of the output.
	OutputMode string

	// RunStatus represents the lifecycle state of a run.
	RunStatus string

	// Conclusion represents the terminal outcome of a completed run.
	Conclusion string

	// WorkflowState represents the platform state of a workflow.
	WorkflowState string

	// HealthClass represents the bucket an overall health score falls into.
	HealthClass string

	// DataQuality represents how much input data backed a health score.
	DataQuality string

	// DatabaseBackend represents the database backend for the run store.
	DatabaseBackend string
)

// Breakdown keys used in the health score.
const (
	BreakdownSuccessRate BreakdownKey = "success_rate"
	BreakdownMTTR        BreakdownKey = "mttr"
	BreakdownDuration    BreakdownKey = "duration"
	BreakdownThroughput  BreakdownKey = "throughput"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All run statuses supported.
const (
	StatusQueued     RunStatus = "queued"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
)

// All run conclusions supported.
const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
)

// Common workflow states. Other platform states are stored verbatim.
const (
	WorkflowActive   WorkflowState = "active"
	WorkflowDeleted  WorkflowState = "deleted"
	WorkflowDisabled WorkflowState = "disabled"
)

// All health classes.
const (
	HealthExcellent HealthClass = "excellent"
	HealthGood      HealthClass = "good"
	HealthFair      HealthClass = "fair"
	HealthPoor      HealthClass = "poor"
	HealthUnknown   HealthClass = "unknown"
)

// All data quality labels, best first.
const (
	QualityExcellent    DataQuality = "excellent"
	QualityGood         DataQuality = "good"
	QualityFair         DataQuality = "fair"
	QualityPoor         DataQuality = "poor"
	QualityInsufficient DataQuality = "insufficient"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
)

// AllBreakdownKeys lists breakdown keys in display order.
var AllBreakdownKeys = []BreakdownKey{BreakdownSuccessRate, BreakdownMTTR, BreakdownDuration, BreakdownThroughput}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidRunStatuses lists all valid run statuses.
var ValidRunStatuses = map[RunStatus]struct{}{
	StatusQueued:     {},
	StatusInProgress: {},
	StatusCompleted:  {},
}

// ValidConclusions lists all valid run conclusions.
var ValidConclusions = map[Conclusion]struct{}{
	ConclusionSuccess:   {},
	ConclusionFailure:   {},
	ConclusionCancelled: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}

// GetDefaultWeights returns the default health score weights.
func GetDefaultWeights() map[BreakdownKey]float64 {
	return map[BreakdownKey]float64{
		BreakdownSuccessRate: 0.35,
		BreakdownMTTR:        0.25,
		BreakdownDuration:    0.20,
		BreakdownThroughput:  0.20,
	}
}
