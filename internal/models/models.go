// Package models defines the core domain types for stockwatch.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the current state of an analysis task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusRunning:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// moving forward. Staying in the same non-terminal state is allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	if s.IsTerminal() {
		return s == next
	}
	return to >= from
}

// ReportKind selects analysis depth and output format.
type ReportKind string

const (
	ReportKindSimple ReportKind = "simple"
	ReportKindFull   ReportKind = "full"
)

// ErrUnknownReportKind is returned by ParseReportKind.
var ErrUnknownReportKind = errors.New("unknown report kind")

// ParseReportKind maps user input to a ReportKind. Empty input means simple.
func ParseReportKind(s string) (ReportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple":
		return ReportKindSimple, nil
	case "full":
		return ReportKindFull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReportKind, s)
	}
}

// AnalysisResult holds the fields extracted from a pipeline run.
type AnalysisResult struct {
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	SentimentScore  float64 `json:"sentiment_score"`
	OperationAdvice string  `json:"operation_advice"`
	TrendPrediction string  `json:"trend_prediction"`
	Summary         string  `json:"analysis_summary"`
}

// TaskRecord is the state of one submitted analysis job.
type TaskRecord struct {
	ID          string          `json:"task_id"`
	Symbol      string          `json:"code"`
	ReportKind  ReportKind      `json:"report_type"`
	Status      TaskStatus      `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"start_time,omitempty"`
	FinishedAt  *time.Time      `json:"end_time,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// SortTime is the instant used to order records: when the job started, or
// when it was submitted if it has not started yet.
func (r TaskRecord) SortTime() time.Time {
	if r.StartedAt != nil {
		return *r.StartedAt
	}
	return r.SubmittedAt
}

// Clone returns a deep copy that shares no pointers with r.
func (r TaskRecord) Clone() TaskRecord {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	if r.Result != nil {
		res := *r.Result
		out.Result = &res
	}
	return out
}

// Validate checks the result/error invariant for the record's status.
func (r TaskRecord) Validate() error {
	switch r.Status {
	case TaskStatusPending, TaskStatusRunning:
		if r.Result != nil || r.Error != "" {
			return fmt.Errorf("task %s: %s record must not carry a result or error", r.ID, r.Status)
		}
	case TaskStatusCompleted:
		if r.Result == nil || r.Error != "" {
			return fmt.Errorf("task %s: completed record needs a result and no error", r.ID)
		}
	case TaskStatusFailed:
		if r.Result != nil || r.Error == "" {
			return fmt.Errorf("task %s: failed record needs an error and no result", r.ID)
		}
	default:
		return fmt.Errorf("task %s: unknown status %q", r.ID, r.Status)
	}
	return nil
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
