package schema

import "time"

// StoreStatus represents the status of the run store.
type StoreStatus struct {
	Backend         string           `json:"backend"`
	Connected       bool             `json:"connected"`
	SchemaVersion   uint             `json:"schema_version"`
	Dirty           bool             `json:"dirty"`
	TableCounts     map[string]int64 `json:"table_counts"`
	LastRunTime     *time.Time       `json:"last_run_time"`
	LastRefreshTime *time.Time       `json:"last_refresh_time"`
}
