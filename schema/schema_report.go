package schema

import "time"

// RefreshReport summarizes one cache refresh pass.
type RefreshReport struct {
	Workflows     int           `json:"workflows"`
	MTTRUpdated   int           `json:"mttr_updated"`
	MTTRDeleted   int           `json:"mttr_deleted"`
	HealthUpdated int           `json:"health_updated"`
	Failures      int           `json:"failures"`
	Duration      time.Duration `json:"duration"`
}

// CollectReport summarizes a collection job.
type CollectReport struct {
	Repositories       int            `json:"repositories"`
	Workflows          int            `json:"workflows"`
	Runs               IngestResult   `json:"runs"`
	FailedRepositories []string       `json:"failed_repositories"`
	Refresh            *RefreshReport `json:"refresh,omitempty"`
	Duration           time.Duration  `json:"duration"`
}
