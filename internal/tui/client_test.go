package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/stockwatch/internal/models"
)

func newFakeDaemon(t *testing.T) *httptest.Server {
	started := time.Now().Add(-30 * time.Second)
	finished := time.Now()
	recs := []models.TaskRecord{
		{ID: "600519_1", Symbol: "600519", ReportKind: models.ReportKindSimple, Status: models.TaskStatusCompleted,
			SubmittedAt: started, StartedAt: &started, FinishedAt: &finished,
			Result: &models.AnalysisResult{Code: "600519", OperationAdvice: "HOLD"}},
		{ID: "XXXXX_2", Symbol: "XXXXX", ReportKind: models.ReportKindFull, Status: models.TaskStatusFailed,
			SubmittedAt: started, StartedAt: &started, FinishedAt: &finished, Error: "no data"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/analysis", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["symbol"] == "" {
				http.Error(w, "invalid symbol", http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "task_id": req["symbol"] + "_3"})
			return
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("Expected limit=10, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(recs)
	})
	mux.HandleFunc("/analysis/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/analysis/")
		for _, rec := range recs {
			if rec.ID == id {
				json.NewEncoder(w).Encode(rec)
				return
			}
		}
		http.Error(w, "task not found", http.StatusNotFound)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"db":"ok","version":"test","time":"now","workers":{"size":3,"running":1,"queued":0}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientListAndGet(t *testing.T) {
	c := NewClient(newFakeDaemon(t).URL)

	items, err := c.ListTasks(10)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if !strings.Contains(items[0].Description(), "HOLD") {
		t.Errorf("Expected advice in description, got %q", items[0].Description())
	}
	if !strings.Contains(items[1].Description(), "no data") {
		t.Errorf("Expected error in description, got %q", items[1].Description())
	}
	if items[1].FilterValue() != "XXXXX" {
		t.Errorf("Unexpected filter value %q", items[1].FilterValue())
	}

	rec, err := c.GetTask("600519_1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if rec.Result == nil || rec.Result.OperationAdvice != "HOLD" {
		t.Errorf("Unexpected record: %+v", rec)
	}

	if _, err := c.GetTask("missing"); err == nil || !strings.Contains(err.Error(), "task not found") {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestClientSubmitAndHealth(t *testing.T) {
	c := NewClient(newFakeDaemon(t).URL)

	id, err := c.Submit("600519", models.ReportKindFull)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id != "600519_3" {
		t.Errorf("Unexpected task id %q", id)
	}
	if _, err := c.Submit("", models.ReportKindSimple); err == nil {
		t.Error("Expected error for empty symbol")
	}

	health, err := c.Health()
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !health.OK || health.Workers.Size != 3 || health.Workers.Running != 1 {
		t.Errorf("Unexpected health: %+v", health)
	}
}

func TestDetailView(t *testing.T) {
	c := NewClient(newFakeDaemon(t).URL)
	m := NewTaskDetailModel(c)
	m.SetTask("XXXXX_2")

	msg := m.Refresh()()
	m.Update(msg)

	view := m.View()
	if !strings.Contains(view, "XXXXX") || !strings.Contains(view, "no data") {
		t.Errorf("Unexpected detail view:\n%s", view)
	}
}

func TestFormatAge(t *testing.T) {
	tests := map[time.Duration]string{
		5 * time.Second: "5s ago",
		3 * time.Minute: "3m ago",
		26 * time.Hour:  "26h ago",
	}
	for d, want := range tests {
		if got := formatAge(d); got != want {
			t.Errorf("formatAge(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestScreensImplementModel(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	screens := []tea.Model{
		NewTaskListModel(c, 10),
		NewTaskDetailModel(c),
		NewCmdBarModel(),
		New("http://127.0.0.1:0"),
	}
	for _, m := range screens {
		m.Init()
	}

	bar := NewCmdBarModel()
	bar.Focus()
	if !bar.Focused() {
		t.Fatal("Expected focused command bar")
	}
	bar.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if bar.Focused() {
		t.Error("Expected esc to blur the command bar")
	}
}
