package model

import "time"

// RunStats counts items as they move through the pipeline stages.
// Processed always equals Valid + Discarded + Errors.
type RunStats struct {
	Fetched     int `json:"fetched"`
	AfterFilter int `json:"after_filter"`
	AfterDedup  int `json:"after_dedup"`
	Processed   int `json:"processed"`
	Valid       int `json:"valid"`
	Discarded   int `json:"discarded"`
	Errors      int `json:"errors"`
}

// RunResult is the aggregate outcome of one pipeline run for one source.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Source      Source    `json:"source"`
	Query       string    `json:"query,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Stats       RunStats  `json:"stats"`
	Valid       []Outcome `json:"valid,omitempty"`
	Discarded   []Outcome `json:"discarded,omitempty"`
	Errored     []Outcome `json:"errored,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Duration returns wall-clock time for the run.
func (r RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunSummary is a RunResult stripped of per-item outcomes, as stored in and
// listed from run history.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Source      Source    `json:"source"`
	Query       string    `json:"query,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Stats       RunStats  `json:"stats"`
	Error       string    `json:"error,omitempty"`
}

// Summary converts a full result into its history form.
func (r RunResult) Summary() RunSummary {
	return RunSummary{
		RunID:       r.RunID,
		Source:      r.Source,
		Query:       r.Query,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Stats:       r.Stats,
		Error:       r.Error,
	}
}
