package schema

import "time"

// RunFilter selects runs for listing. Unspecified fields apply no filter.
type RunFilter struct {
	Repository Option[string]
	WorkflowID Option[string]
	Status     Option[RunStatus]
	Conclusion Option[Conclusion] // None selects runs without a conclusion
	Limit      int
}

// RunView is a stored run joined with its workflow and repository names.
type RunView struct {
	RunRecord
	Repository   string `json:"repository"`
	WorkflowName string `json:"workflow_name"`
}

// MTTRFilter scopes an MTTR calculation. Zero values apply no filter.
type MTTRFilter struct {
	WorkflowID string
	Repository string
	Since      *time.Time // failures completed at or after this instant
}

// MTTRStat is the result of an MTTR calculation.
type MTTRStat struct {
	Seconds *float64 // nil when no failure has a later success
	Samples int      // failures that contributed a recovery
}

// WorkflowStats holds the raw inputs for a workflow health score.
type WorkflowStats struct {
	WorkflowID         string
	TotalRuns          int
	SuccessCount       int
	FailureCount       int
	AvgDurationSeconds *float64
}

// MTTRCacheRecord represents a row from the mttr_cache table.
type MTTRCacheRecord struct {
	WorkflowID   string
	MTTRSeconds  *float64
	FailureCount int
	CalculatedAt time.Time
}

// HealthScoreCacheRecord represents a row from the health_score_cache table.
type HealthScoreCacheRecord struct {
	WorkflowID   string
	OverallScore float64
	HealthClass  HealthClass
	DataQuality  DataQuality
	Breakdown    HealthBreakdown
	SampleSize   int
	CalculatedAt time.Time
}

// IngestResult summarizes a batch write.
type IngestResult struct {
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another result into r.
func (r *IngestResult) Add(other IngestResult) {
	r.Upserted += other.Upserted
	r.Skipped += other.Skipped
}

// Snapshot is one repository's workflows and runs as delivered by the upstream collector.
type Snapshot struct {
	Repository string           `json:"repository"`
	Workflows  []WorkflowRecord `json:"workflows"`
	Runs       []RunRecord      `json:"runs"`
	Skipped    int              `json:"skipped"` // runs dropped while decoding
}
