// Package schema has models and constants shared by all parts of cipette.
package schema

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when an ingested record breaks a data model invariant.
var ErrInvalidRecord = errors.New("invalid record")

// WorkflowRecord is a workflow as produced by the upstream collector.
type WorkflowRecord struct {
	ID         string        `json:"id"`
	Repository string        `json:"repository"`
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	State      WorkflowState `json:"state"`
}

// Validate checks the fields required to upsert a workflow.
func (w WorkflowRecord) Validate() error {
	switch {
	case w.ID == "":
		return fmt.Errorf("%w: workflow id is empty", ErrInvalidRecord)
	case w.Repository == "":
		return fmt.Errorf("%w: workflow %s has no repository", ErrInvalidRecord, w.ID)
	case w.Name == "":
		return fmt.Errorf("%w: workflow %s has no name", ErrInvalidRecord, w.ID)
	}
	return nil
}

// RunRecord is a single run as produced by the upstream collector.
type RunRecord struct {
	ID              string      `json:"id"`
	WorkflowID      string      `json:"workflow_id"`
	RunNumber       int64       `json:"run_number"`
	CommitSHA       string      `json:"commit_sha"`
	Branch          string      `json:"branch"`
	Event           string      `json:"event"`
	Actor           string      `json:"actor"`
	Status          RunStatus   `json:"status"`
	Conclusion      *Conclusion `json:"conclusion"`
	StartedAt       *time.Time  `json:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at"`
	DurationSeconds *int64      `json:"duration_seconds"`
	URL             string      `json:"url"`
}

// Validate checks the run against the data model invariants.
func (r RunRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is empty", ErrInvalidRecord)
	}
	if r.WorkflowID == "" {
		return fmt.Errorf("%w: run %s has no workflow id", ErrInvalidRecord, r.ID)
	}
	if _, ok := ValidRunStatuses[r.Status]; !ok {
		return fmt.Errorf("%w: run %s has unknown status %q", ErrInvalidRecord, r.ID, r.Status)
	}
	if r.Conclusion != nil {
		if r.Status != StatusCompleted {
			return fmt.Errorf("%w: run %s has conclusion while %s", ErrInvalidRecord, r.ID, r.Status)
		}
		if _, ok := ValidConclusions[*r.Conclusion]; !ok {
			return fmt.Errorf("%w: run %s has unknown conclusion %q", ErrInvalidRecord, r.ID, *r.Conclusion)
		}
	}
	terminal := r.Status == StatusCompleted && r.StartedAt != nil && r.CompletedAt != nil
	if r.DurationSeconds != nil {
		if !terminal {
			return fmt.Errorf("%w: run %s has duration without start and completion", ErrInvalidRecord, r.ID)
		}
		if *r.DurationSeconds < 0 {
			return fmt.Errorf("%w: run %s has negative duration", ErrInvalidRecord, r.ID)
		}
	} else if terminal {
		return fmt.Errorf("%w: run %s is completed without duration", ErrInvalidRecord, r.ID)
	}
	return nil
}

// WithDerivedDuration returns r with DurationSeconds set to completed minus
// started when a completed run carries both timestamps but no duration.
func (r RunRecord) WithDerivedDuration() RunRecord {
	if r.DurationSeconds == nil && r.Status == StatusCompleted && r.StartedAt != nil && r.CompletedAt != nil {
		r.DurationSeconds = Int64Ptr(int64(r.CompletedAt.Sub(*r.StartedAt).Seconds()))
	}
	return r
}

// StringPtr returns a pointer to a copy of s. Empty strings map to nil.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ConclusionPtr returns a pointer to c.
func ConclusionPtr(c Conclusion) *Conclusion {
	return &c
}
