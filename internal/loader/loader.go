// Package loader reads collector snapshot files into normalized records.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/cipette/schema"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyInput is returned when a snapshot document has no content.
var ErrEmptyInput = errors.New("snapshot input is empty")

// maxParallelFiles bounds how many snapshot files are decoded at once.
const maxParallelFiles = 4

// id accepts numeric or string identifiers and keeps them as strings.
type id string

// UnmarshalJSON implements json.Unmarshaler.
func (i *id) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = id(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*i = id(n.String())
	return nil
}

type rawActor struct {
	Login string `json:"login"`
}

type rawWorkflow struct {
	ID         id     `json:"id"`
	Repository string `json:"repository"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	State      string `json:"state"`
}

type rawRun struct {
	ID           id        `json:"id"`
	WorkflowID   id        `json:"workflow_id"`
	RunNumber    int64     `json:"run_number"`
	HeadSHA      string    `json:"head_sha"`
	HeadBranch   string    `json:"head_branch"`
	Event        string    `json:"event"`
	Actor        *rawActor `json:"actor"`
	Status       string    `json:"status"`
	Conclusion   *string   `json:"conclusion"`
	CreatedAt    string    `json:"created_at"`
	RunStartedAt string    `json:"run_started_at"`
	UpdatedAt    string    `json:"updated_at"`
	HTMLURL      string    `json:"html_url"`
}

type rawSnapshot struct {
	Repository   string        `json:"repository"`
	Workflows    []rawWorkflow `json:"workflows"`
	WorkflowRuns []rawRun      `json:"workflow_runs"`
}

// Decode reads one snapshot object or an array of them.
func Decode(r io.Reader) ([]schema.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var raws []rawSnapshot
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot array: %w", err)
		}
	} else {
		var raw rawSnapshot
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		raws = []rawSnapshot{raw}
	}

	logger := slog.Default().With(slog.String("component", "loader"))
	snapshots := make([]schema.Snapshot, 0, len(raws))
	for _, raw := range raws {
		snapshots = append(snapshots, raw.normalize(logger))
	}
	return snapshots, nil
}

// LoadFile decodes the snapshot file at path. A path of "-" reads stdin.
func LoadFile(path string) ([]schema.Snapshot, error) {
	if path == "-" {
		return Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	snapshots, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snapshots, nil
}

// LoadFiles decodes every path concurrently and returns the snapshots in argument order.
func LoadFiles(ctx context.Context, paths []string) ([]schema.Snapshot, error) {
	results := make([][]schema.Snapshot, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snaps, err := LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = snaps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []schema.Snapshot
	for _, snaps := range results {
		all = append(all, snaps...)
	}
	return all, nil
}

// normalize converts raw into records. Runs that cannot be normalized are
// logged and counted in Skipped.
func (raw rawSnapshot) normalize(logger *slog.Logger) schema.Snapshot {
	snap := schema.Snapshot{Repository: strings.TrimSpace(raw.Repository)}

	for _, w := range raw.Workflows {
		repo := strings.TrimSpace(w.Repository)
		if repo == "" {
			repo = snap.Repository
		}
		snap.Workflows = append(snap.Workflows, schema.WorkflowRecord{
			ID:         string(w.ID),
			Repository: repo,
			Name:       w.Name,
			Path:       w.Path,
			State:      schema.WorkflowState(w.State),
		})
	}

	for _, r := range raw.WorkflowRuns {
		run, err := r.normalize()
		if err != nil {
			snap.Skipped++
			logger.Warn("skipping malformed run",
				slog.String("repository", snap.Repository),
				slog.String("run_id", string(r.ID)),
				slog.String("error", err.Error()))
			continue
		}
		snap.Runs = append(snap.Runs, run)
	}
	return snap
}

func (r rawRun) normalize() (schema.RunRecord, error) {
	status := NormalizeStatus(r.Status)
	run := schema.RunRecord{
		ID:         string(r.ID),
		WorkflowID: string(r.WorkflowID),
		RunNumber:  r.RunNumber,
		CommitSHA:  r.HeadSHA,
		Branch:     r.HeadBranch,
		Event:      r.Event,
		Actor:      "unknown",
		Status:     status,
		URL:        r.HTMLURL,
	}
	if r.Actor != nil && r.Actor.Login != "" {
		run.Actor = r.Actor.Login
	}

	startedRaw := r.RunStartedAt
	if startedRaw == "" {
		startedRaw = r.CreatedAt
	}
	started, err := parseTime(startedRaw)
	if err != nil {
		return schema.RunRecord{}, err
	}
	run.StartedAt = started

	if status != schema.StatusCompleted {
		return run, nil
	}
	if r.Conclusion != nil {
		run.Conclusion = NormalizeConclusion(*r.Conclusion)
	}
	completed, err := parseTime(r.UpdatedAt)
	if err != nil {
		return schema.RunRecord{}, err
	}
	run.CompletedAt = completed
	if started != nil && completed != nil {
		seconds := int64(completed.Sub(*started) / time.Second)
		run.DurationSeconds = &seconds
	}
	return run, nil
}

// NormalizeStatus maps platform run statuses onto the stored lifecycle.
// Statuses it does not recognize are returned unchanged so validation can reject them.
func NormalizeStatus(s string) schema.RunStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return schema.StatusCompleted
	case "in_progress":
		return schema.StatusInProgress
	case "queued", "requested", "waiting", "pending":
		return schema.StatusQueued
	}
	return schema.RunStatus(s)
}

// NormalizeConclusion maps platform conclusions onto success, failure or cancelled.
// Empty conclusions return nil.
func NormalizeConclusion(c string) *schema.Conclusion {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "":
		return nil
	case "success":
		return schema.ConclusionPtr(schema.ConclusionSuccess)
	case "failure", "timed_out", "startup_failure":
		return schema.ConclusionPtr(schema.ConclusionFailure)
	}
	// cancelled, skipped, neutral, stale, action_required
	return schema.ConclusionPtr(schema.ConclusionCancelled)
}

func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if unix, convErr := strconv.ParseInt(s, 10, 64); convErr == nil {
			t = time.Unix(unix, 0)
		} else {
			return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	t = t.UTC()
	return &t, nil
}
