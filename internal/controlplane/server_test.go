package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/stockwatch/internal/analysis"
	"github.com/fentz26/stockwatch/internal/annotate"
	"github.com/fentz26/stockwatch/internal/envfile"
	"github.com/fentz26/stockwatch/internal/models"
	"github.com/fentz26/stockwatch/internal/pipeline"
	"github.com/fentz26/stockwatch/internal/quote"
	"github.com/fentz26/stockwatch/internal/store"
)

var quiet = log.New(io.Discard, "", 0)

type stubQuotes struct{}

func (stubQuotes) FetchMetadata(ctx context.Context, codes []string) (map[string]quote.Metadata, error) {
	out := make(map[string]quote.Metadata)
	for _, c := range codes {
		if c == "600519" {
			out[c] = quote.Metadata{Name: "Moutai", Sector: quote.SectorAShare, Type: quote.TypeStock}
		}
	}
	return out, nil
}

type testEnv struct {
	server *Server
	store  *store.Store
	editor *envfile.Editor
}

func newTestServer(t *testing.T) *testEnv {
	tmpDir := t.TempDir()

	st, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p := pipeline.Func(func(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error) {
		if symbol == "XXXXX" {
			return nil, errors.New("no data")
		}
		return &models.AnalysisResult{Code: symbol, OperationAdvice: "HOLD"}, nil
	})
	factory := func(cfg pipeline.Config, source any) (pipeline.Pipeline, error) { return p, nil }

	m, err := analysis.New(factory, nil, analysis.Options{Archive: st, Logger: quiet})
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { m.Close(context.Background()) })

	editor := &envfile.Editor{Path: filepath.Join(tmpDir, ".env")}
	service := NewService(m, editor, annotate.New(stubQuotes{}, quiet))
	server := NewServer(service, st, "127.0.0.1:0")
	server.logger = quiet

	return &testEnv{server: server, store: st, editor: editor}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w.Result()
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func waitForTask(t *testing.T, e *testEnv, id string, want models.TaskStatus) models.TaskRecord {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		resp := e.do(t, http.MethodGet, "/analysis/"+id, "")
		var rec models.TaskRecord
		decode(t, resp, &rec)
		if rec.Status == want {
			return rec
		}
		select {
		case <-timeout:
			t.Fatalf("Timeout waiting for %s, last status %s", want, rec.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHealthEndpoint_OK(t *testing.T) {
	e := newTestServer(t)

	resp := e.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	decode(t, resp, &health)

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
	if health.Workers.Size != 3 {
		t.Errorf("Expected 3 workers, got %d", health.Workers.Size)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	e := newTestServer(t)

	resp := e.do(t, http.MethodPost, "/health", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	e := newTestServer(t)

	// Close the store to simulate DB error
	e.store.Close()

	resp := e.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	decode(t, resp, &health)

	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
	if health.DB == "ok" {
		t.Error("Expected DB status to indicate error")
	}
}

func TestSubmitAndPoll(t *testing.T) {
	e := newTestServer(t)

	resp := e.do(t, http.MethodPost, "/analysis", `{"symbol":"600519","source":{"chat_id":"42"}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", resp.StatusCode)
	}

	var sub analysis.Submission
	decode(t, resp, &sub)
	if !sub.Accepted || sub.TaskID == "" || sub.ReportKind != models.ReportKindSimple {
		t.Fatalf("Unexpected submission: %+v", sub)
	}

	rec := waitForTask(t, e, sub.TaskID, models.TaskStatusCompleted)
	if rec.Result == nil || rec.Result.OperationAdvice != "HOLD" {
		t.Errorf("Unexpected result: %+v", rec.Result)
	}

	resp = e.do(t, http.MethodGet, "/analysis?limit=5", "")
	var tasks []models.TaskRecord
	decode(t, resp, &tasks)
	if len(tasks) != 1 || tasks[0].ID != sub.TaskID {
		t.Errorf("Unexpected task list: %+v", tasks)
	}
}

func TestSubmitFailureRecorded(t *testing.T) {
	e := newTestServer(t)

	resp := e.do(t, http.MethodPost, "/analysis", `{"symbol":"XXXXX","report_type":"full"}`)
	var sub analysis.Submission
	decode(t, resp, &sub)

	rec := waitForTask(t, e, sub.TaskID, models.TaskStatusFailed)
	if !strings.Contains(rec.Error, "no data") {
		t.Errorf("Expected 'no data' error, got %q", rec.Error)
	}

	// The archive is written after the failure becomes visible.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp = e.do(t, http.MethodGet, "/analysis/history?symbol=XXXXX", "")
		var history []models.TaskRecord
		decode(t, resp, &history)
		if len(history) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 1 archived task, got %d", len(history))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitErrors(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/analysis", `{`, http.StatusBadRequest},
		{"empty symbol", http.MethodPost, "/analysis", `{"symbol":""}`, http.StatusBadRequest},
		{"bad report type", http.MethodPost, "/analysis", `{"symbol":"600519","report_type":"weekly"}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/analysis?limit=abc", "", http.StatusBadRequest},
		{"unknown task", http.MethodGet, "/analysis/nope", "", http.StatusNotFound},
		{"nested path", http.MethodGet, "/analysis/a/b", "", http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/analysis", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	e := newTestServer(t)
	if err := e.editor.WriteText("TOKEN=abc\nSTOCK_LIST=000001\n"); err != nil {
		t.Fatal(err)
	}

	resp := e.do(t, http.MethodGet, "/watchlist", "")
	var wl Watchlist
	decode(t, resp, &wl)
	if wl.StockList != "000001" || wl.EnvFile != ".env" {
		t.Errorf("Unexpected watchlist: %+v", wl)
	}

	resp = e.do(t, http.MethodPut, "/watchlist", `{"stock_list":"600519,\n 300750 ,,"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &wl)
	if wl.StockList != "600519,300750" {
		t.Errorf("Expected normalized list, got %q", wl.StockList)
	}

	text, _ := e.editor.ReadText()
	if text != "TOKEN=abc\nSTOCK_LIST=600519,300750\n" {
		t.Errorf("Unexpected env file %q", text)
	}
}

func TestAnnotateEndpoint(t *testing.T) {
	e := newTestServer(t)
	if err := e.editor.WriteText("STOCK_LIST=600519,300750\n"); err != nil {
		t.Fatal(err)
	}

	// Preview leaves the file untouched.
	resp := e.do(t, http.MethodPost, "/watchlist/annotate", "")
	var p annotate.Proposal
	decode(t, resp, &p)
	if len(p.Entries) != 2 || p.Entries[0] != "600519|Moutai|A-share|Stock" {
		t.Errorf("Unexpected proposal: %+v", p)
	}
	if text, _ := e.editor.ReadText(); text != "STOCK_LIST=600519,300750\n" {
		t.Errorf("Preview modified env file: %q", text)
	}

	resp = e.do(t, http.MethodPost, "/watchlist/annotate?apply=true", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	list, _ := e.editor.StockList()
	if list != "600519|Moutai|A-share|Stock,\n300750|Unknown|Unknown|Unknown" {
		t.Errorf("Unexpected annotated list %q", list)
	}

	resp = e.do(t, http.MethodGet, "/watchlist/annotate", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestAnnotateEmptyWatchlist(t *testing.T) {
	e := newTestServer(t)

	resp := e.do(t, http.MethodPost, "/watchlist/annotate", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)

	e.do(t, http.MethodPost, "/analysis", `{"symbol":"600519"}`)
	resp := e.do(t, http.MethodGet, "/metrics", "")
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "stockwatch_analysis_tasks_submitted_total") {
		t.Error("Expected submitted counter in metrics output")
	}
}
