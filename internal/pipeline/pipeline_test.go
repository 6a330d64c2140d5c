package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fentz26/stockwatch/internal/connectors"
	"github.com/fentz26/stockwatch/internal/models"
)

// mockConnector records the last call and returns a canned result.
type mockConnector struct {
	result *connectors.ExecResult
	err    error

	cmd  string
	args []string
	env  []string
}

func (m *mockConnector) Name() string { return "mock" }

func (m *mockConnector) IsAllowed(cmd string) bool { return true }

func (m *mockConnector) Execute(ctx context.Context, cmd string, args []string, env []string) (*connectors.ExecResult, error) {
	m.cmd, m.args, m.env = cmd, args, env
	return m.result, m.err
}

func TestExecAnalyzeSingle(t *testing.T) {
	conn := &mockConnector{result: &connectors.ExecResult{
		Stdout: "loading data...\n" +
			`{"code":"600519","name":"Kweichow Moutai","sentiment_score":0.8,"operation_advice":"HOLD","trend_prediction":"UP","analysis_summary":"stable"}` + "\n",
	}}
	cfg := DefaultConfig().Exec
	source := map[string]string{"chat_id": "42"}

	p := NewExec(cfg, conn, source)
	res, err := p.AnalyzeSingle(context.Background(), "600519", models.ReportKindFull)
	if err != nil {
		t.Fatalf("AnalyzeSingle failed: %v", err)
	}
	if res == nil || res.OperationAdvice != "HOLD" || res.SentimentScore != 0.8 {
		t.Fatalf("Unexpected result: %+v", res)
	}

	if conn.cmd != "python3" {
		t.Errorf("Expected python3, got %s", conn.cmd)
	}
	joined := strings.Join(conn.args, " ")
	if !strings.Contains(joined, "--stocks 600519") || !strings.Contains(joined, "--report-type full") {
		t.Errorf("Placeholders not expanded: %s", joined)
	}
	if len(conn.env) != 1 || conn.env[0] != SourceEnv+`={"chat_id":"42"}` {
		t.Errorf("Source not forwarded: %v", conn.env)
	}
}

func TestExecEmptyAndNull(t *testing.T) {
	for _, out := range []string{"", "  \n", "progress\nnull\n"} {
		p := NewExec(DefaultConfig().Exec, &mockConnector{result: &connectors.ExecResult{Stdout: out}}, nil)
		res, err := p.AnalyzeSingle(context.Background(), "YYYYY", models.ReportKindSimple)
		if err != nil {
			t.Errorf("Output %q: unexpected error %v", out, err)
		}
		if res != nil {
			t.Errorf("Output %q: expected empty result, got %+v", out, res)
		}
	}
}

func TestExecFailures(t *testing.T) {
	p := NewExec(DefaultConfig().Exec, &mockConnector{result: &connectors.ExecResult{ExitCode: 1, Stderr: "no data\n"}}, nil)
	if _, err := p.AnalyzeSingle(context.Background(), "XXXXX", models.ReportKindSimple); err == nil || !strings.Contains(err.Error(), "no data") {
		t.Errorf("Expected exit error mentioning stderr, got %v", err)
	}

	boom := errors.New("exec error")
	p = NewExec(DefaultConfig().Exec, &mockConnector{err: boom}, nil)
	if _, err := p.AnalyzeSingle(context.Background(), "XXXXX", models.ReportKindSimple); !errors.Is(err, boom) {
		t.Errorf("Expected connector error, got %v", err)
	}

	p = NewExec(DefaultConfig().Exec, &mockConnector{result: &connectors.ExecResult{Stdout: "not json"}}, nil)
	if _, err := p.AnalyzeSingle(context.Background(), "XXXXX", models.ReportKindSimple); err == nil {
		t.Error("Expected decode error")
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory(Backends{Connector: &mockConnector{}})

	p, err := f(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Factory(exec) failed: %v", err)
	}
	if _, ok := p.(*Exec); !ok {
		t.Errorf("Expected *Exec, got %T", p)
	}

	cfg := DefaultConfig()
	cfg.Backend = BackendNATS
	if _, err := f(cfg, nil); err == nil {
		t.Error("Expected error for nats backend without a connection")
	}

	cfg.Backend = "carrier-pigeon"
	if _, err := f(cfg, nil); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Exec.Command = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty exec command")
	}

	cfg = DefaultConfig()
	cfg.Backend = BackendNATS
	cfg.NATS.Subject = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty nats subject")
	}
}

func TestFuncAdapter(t *testing.T) {
	var p Pipeline = Func(func(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error) {
		return &models.AnalysisResult{Code: symbol}, nil
	})
	res, _ := p.AnalyzeSingle(context.Background(), "000001", models.ReportKindSimple)
	if res.Code != "000001" {
		t.Errorf("Expected code 000001, got %s", res.Code)
	}
}
