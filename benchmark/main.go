// Package main provides a performance benchmarking tool for the cipette CLI.
// It generates synthetic run-history snapshots of increasing size, then measures
// ingest, refresh and metrics queries against a fresh SQLite store per size,
// running each command multiple times, treating the first successful run as cold
// and averaging the rest as warm, and writes CSV output for performance analysis.
//
// Prerequisites:
// - cipette binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for generated snapshots and databases (default: a temp dir)
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (cold run and average of warm runs).
type BenchmarkResult struct {
	Dataset  string
	Command  string
	ColdTime string
	WarmTime string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir  string
	Timeout  time.Duration
	Runs     int
	Datasets []Dataset
}

// Dataset describes one synthetic snapshot size.
type Dataset struct {
	Name            string
	Workflows       int
	RunsPerWorkflow int
}

// Step is one timed cipette invocation.
type Step struct {
	Command string
	Args    []string
}

func main() {
	if len(os.Args) > 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	workDir := ""
	if len(os.Args) == 2 {
		workDir = os.Args[1]
	} else {
		dir, err := os.MkdirTemp("", "cipette-benchmark-*")
		if err != nil {
			fmt.Printf("Failed to create work dir: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		workDir = dir
	}

	config := BenchmarkConfig{
		WorkDir: workDir,
		Timeout: 5 * time.Minute,
		Runs:    4,
		Datasets: []Dataset{
			{Name: "small", Workflows: 5, RunsPerWorkflow: 50},
			{Name: "medium", Workflows: 20, RunsPerWorkflow: 500},
			{Name: "large", Workflows: 50, RunsPerWorkflow: 2000},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results, err := runBenchmarks(config)
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the cipette binary and work directory exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("cipette"); err != nil {
		return fmt.Errorf("cipette binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// runBenchmarks executes all benchmark steps across configured datasets
func runBenchmarks(config BenchmarkConfig) ([]BenchmarkResult, error) {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d datasets, %v timeout, %d runs per command\n",
		len(config.Datasets), config.Timeout, config.Runs)

	for _, ds := range config.Datasets {
		fmt.Printf("Benchmarking %s (%d workflows x %d runs)\n", ds.Name, ds.Workflows, ds.RunsPerWorkflow)

		snapshotPath := filepath.Join(config.WorkDir, ds.Name+".json")
		if err := writeSnapshot(snapshotPath, ds); err != nil {
			return nil, fmt.Errorf("failed to generate %s snapshot: %w", ds.Name, err)
		}
		dbPath := filepath.Join(config.WorkDir, ds.Name+".db")
		_ = os.Remove(dbPath)

		steps := []Step{
			{Command: "ingest", Args: []string{"ingest", snapshotPath}},
			{Command: "refresh", Args: []string{"refresh"}},
			{Command: "metrics", Args: []string{"metrics", "--output", "json"}},
			{Command: "metrics-window", Args: []string{"metrics", "--days", "30", "--output", "json"}},
			{Command: "runs", Args: []string{"runs", "--status", "completed", "--limit", "500", "--output", "json"}},
		}
		for _, step := range steps {
			results = append(results, runBenchmarkStep(config, ds, dbPath, step))
		}
	}

	return results, nil
}

// runBenchmarkStep times one command and summarizes cold and warm runs
func runBenchmarkStep(config BenchmarkConfig, ds Dataset, dbPath string, step Step) BenchmarkResult {
	fmt.Printf("  %s (%d runs)\n", step.Command, config.Runs)

	cold, warm := runBenchmark(config, dbPath, step.Args)

	coldTime := "TIMEOUT"
	if cold > 0 {
		coldTime = fmt.Sprintf("%.3fs", cold)
	}
	warmTime := "N/A"
	if len(warm) > 0 {
		var sum float64
		for _, t := range warm {
			sum += t
		}
		warmTime = fmt.Sprintf("%.3fs", sum/float64(len(warm)))
	}

	fmt.Printf("    Cold time: %s, Warm average: %s\n", coldTime, warmTime)

	return BenchmarkResult{
		Dataset:  ds.Name,
		Command:  step.Command,
		ColdTime: coldTime,
		WarmTime: warmTime,
	}
}

// runBenchmark executes a cipette command multiple times and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, dbPath string, args []string) (coldTime float64, warmTimes []float64) {
	var times []float64
	for run := 1; run <= config.Runs; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		cmd := exec.CommandContext(ctx, "cipette", args...)
		cmd.Env = append(os.Environ(),
			"CIPETTE_BACKEND=sqlite",
			"CIPETTE_DB_CONNECT="+dbPath,
			"CIPETTE_LOG_LEVEL=warn",
		)

		start := time.Now()
		output, err := cmd.CombinedOutput()
		elapsed := time.Since(start).Seconds()
		cancel()

		if err != nil {
			fmt.Printf("    run %d failed: %v\n%s\n", run, err, strings.TrimSpace(string(output)))
			continue
		}
		times = append(times, elapsed)
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// writeSnapshot generates a deterministic snapshot with a failure every seventh run
func writeSnapshot(path string, ds Dataset) error {
	type actor struct {
		Login string `json:"login"`
	}
	type workflow struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Path  string `json:"path"`
		State string `json:"state"`
	}
	type run struct {
		ID         int64  `json:"id"`
		WorkflowID int64  `json:"workflow_id"`
		RunNumber  int64  `json:"run_number"`
		HeadSHA    string `json:"head_sha"`
		HeadBranch string `json:"head_branch"`
		Event      string `json:"event"`
		Actor      actor  `json:"actor"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		CreatedAt  string `json:"created_at"`
		UpdatedAt  string `json:"updated_at"`
	}
	snapshot := struct {
		Repository string     `json:"repository"`
		Workflows  []workflow `json:"workflows"`
		Runs       []run      `json:"workflow_runs"`
	}{Repository: "bench/" + ds.Name}

	base := time.Now().UTC().Add(-time.Duration(ds.RunsPerWorkflow) * time.Hour).Truncate(time.Hour)
	branches := []string{"main", "develop", "release"}
	events := []string{"push", "pull_request", "schedule"}
	var runID int64
	for w := 1; w <= ds.Workflows; w++ {
		wfID := int64(w)
		snapshot.Workflows = append(snapshot.Workflows, workflow{
			ID:    wfID,
			Name:  fmt.Sprintf("Workflow %d", w),
			Path:  fmt.Sprintf(".github/workflows/wf%d.yml", w),
			State: "active",
		})
		for n := 1; n <= ds.RunsPerWorkflow; n++ {
			runID++
			created := base.Add(time.Duration(n) * time.Hour)
			conclusion := "success"
			if n%7 == 0 {
				conclusion = "failure"
			}
			snapshot.Runs = append(snapshot.Runs, run{
				ID:         runID,
				WorkflowID: wfID,
				RunNumber:  int64(n),
				HeadSHA:    fmt.Sprintf("%040x", runID),
				HeadBranch: branches[n%len(branches)],
				Event:      events[n%len(events)],
				Actor:      actor{Login: fmt.Sprintf("dev%d", n%5)},
				Status:     "completed",
				Conclusion: conclusion,
				CreatedAt:  created.Format(time.RFC3339),
				UpdatedAt:  created.Add(time.Duration(2+n%10) * time.Minute).Format(time.RFC3339),
			})
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("cipette_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"dataset", "cmd", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range results {
		if err := writer.Write([]string{result.Dataset, result.Command, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, command := range []string{"ingest", "refresh", "metrics", "metrics-window", "runs"} {
		fmt.Printf("%s:\n", command)
		for _, result := range results {
			if result.Command == command {
				fmt.Printf("  %-8s: Cold: %s, Warm: %s\n", result.Dataset, result.ColdTime, result.WarmTime)
			}
		}
	}
}
