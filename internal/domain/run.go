package domain

import (
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a monitored task run.
type RunStatus string

const (
	RunStarted        RunStatus = "started"
	RunSuccess        RunStatus = "success"
	RunFailed         RunStatus = "failed"
	RunPartialSuccess RunStatus = "partial_success"
	RunSkipped        RunStatus = "skipped"
)

// ParseRunStatus maps a raw value to a known status, degrading to RunFailed.
func ParseRunStatus(value string) RunStatus {
	switch s := RunStatus(strings.ToLower(strings.TrimSpace(value))); s {
	case RunStarted, RunSuccess, RunFailed, RunPartialSuccess, RunSkipped:
		return s
	default:
		return RunFailed
	}
}

// Terminal reports whether the status closes a run.
func (s RunStatus) Terminal() bool {
	return s != RunStarted
}

// FailedSource records a source whose fetch or parse failed outright.
type FailedSource struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RunOutcome is what a task reports when a run ends.
type RunOutcome struct {
	Status       RunStatus
	Processed    int
	Succeeded    int
	Failed       int
	ErrorMessage string
	Details      map[string]any
}

// RunLog is a persisted monitoring entry.
type RunLog struct {
	ID             int64          `json:"id"`
	TaskName       string         `json:"task_name"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        *time.Time     `json:"end_time,omitempty"`
	Status         RunStatus      `json:"status"`
	ItemsProcessed int            `json:"items_processed"`
	ItemsSucceeded int            `json:"items_succeeded"`
	ItemsFailed    int            `json:"items_failed"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// RunReport summarizes one execution of the collection task.
type RunReport struct {
	LogID         int64
	TaskName      string
	Status        RunStatus
	Processed     int
	Succeeded     int
	Failed        int
	Sources       int
	FailedSources []FailedSource
	ErrorMessage  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Outcome converts the report into the monitoring log payload.
// Details are attached only when at least one source failed.
func (r RunReport) Outcome() RunOutcome {
	out := RunOutcome{
		Status:       r.Status,
		Processed:    r.Processed,
		Succeeded:    r.Succeeded,
		Failed:       r.Failed,
		ErrorMessage: r.ErrorMessage,
	}
	if len(r.FailedSources) > 0 {
		failed := make([]FailedSource, len(r.FailedSources))
		copy(failed, r.FailedSources)
		out.Details = map[string]any{"failed_feeds": failed}
	}
	return out
}
