package models

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusRunning, true},
		{TaskStatusPending, TaskStatusPending, true},
		{TaskStatusRunning, TaskStatusCompleted, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusRunning, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusCompleted, false},
		{TaskStatusPending, TaskStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseReportKind(t *testing.T) {
	for in, want := range map[string]ReportKind{"": ReportKindSimple, "SIMPLE": ReportKindSimple, " full ": ReportKindFull} {
		got, err := ParseReportKind(in)
		if err != nil {
			t.Fatalf("ParseReportKind(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseReportKind(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseReportKind("weekly"); !errors.Is(err, ErrUnknownReportKind) {
		t.Errorf("Expected ErrUnknownReportKind, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	rec := TaskRecord{
		ID:        "600519_x",
		Status:    TaskStatusCompleted,
		StartedAt: &now,
		Result:    &AnalysisResult{OperationAdvice: "HOLD"},
	}

	cp := rec.Clone()
	cp.Result.OperationAdvice = "SELL"
	*cp.StartedAt = now.Add(time.Hour)

	if rec.Result.OperationAdvice != "HOLD" {
		t.Error("Clone shares the result pointer")
	}
	if !rec.StartedAt.Equal(now) {
		t.Error("Clone shares the started_at pointer")
	}
}

func TestValidate(t *testing.T) {
	ok := []TaskRecord{
		{ID: "a", Status: TaskStatusPending},
		{ID: "b", Status: TaskStatusRunning},
		{ID: "c", Status: TaskStatusCompleted, Result: &AnalysisResult{}},
		{ID: "d", Status: TaskStatusFailed, Error: "no data"},
	}
	for _, r := range ok {
		if err := r.Validate(); err != nil {
			t.Errorf("Validate(%s) unexpected error: %v", r.ID, err)
		}
	}

	bad := []TaskRecord{
		{ID: "e", Status: TaskStatusRunning, Error: "early"},
		{ID: "f", Status: TaskStatusCompleted},
		{ID: "g", Status: TaskStatusFailed},
		{ID: "h", Status: TaskStatusFailed, Error: "x", Result: &AnalysisResult{}},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(%s) expected error", r.ID)
		}
	}
}
