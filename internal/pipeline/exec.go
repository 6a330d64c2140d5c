package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fentz26/stockwatch/internal/connectors"
	"github.com/fentz26/stockwatch/internal/connectors/localexec"
	"github.com/fentz26/stockwatch/internal/models"
)

// SourceEnv carries the JSON-encoded source context to the analysis command.
const SourceEnv = "STOCKWATCH_SOURCE"

// Exec runs the analysis program as a local command and decodes the JSON
// result it prints on stdout.
type Exec struct {
	cfg       ExecConfig
	connector connectors.Connector
	source    any
}

// NewExec creates an exec pipeline. A nil connector falls back to a local
// executor restricted to cfg.Allowed.
func NewExec(cfg ExecConfig, conn connectors.Connector, source any) *Exec {
	if conn == nil {
		conn = localexec.New(cfg.WorkDir, cfg.Allowed)
	}
	return &Exec{cfg: cfg, connector: conn, source: source}
}

// AnalyzeSingle implements Pipeline.
func (e *Exec) AnalyzeSingle(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := expandArgs(e.cfg.Args, symbol, kind)

	var env []string
	if e.source != nil {
		data, err := json.Marshal(e.source)
		if err != nil {
			return nil, fmt.Errorf("encode source context: %w", err)
		}
		env = append(env, SourceEnv+"="+string(data))
	}

	res, err := e.connector.Execute(ctx, e.cfg.Command, args, env)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		return nil, fmt.Errorf("analysis command exited with code %d: %s", res.ExitCode, msg)
	}

	return decodeResult([]byte(res.Stdout))
}

func expandArgs(args []string, symbol string, kind models.ReportKind) []string {
	r := strings.NewReplacer("{symbol}", symbol, "{report}", string(kind))
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// decodeResult parses the last non-empty line of output, so that programs
// which log to stdout before printing the result still work. Empty output or
// a JSON null is an empty result.
func decodeResult(out []byte) (*models.AnalysisResult, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 || bytes.Equal(last, []byte("null")) {
		return nil, nil
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(last, &result); err != nil {
		return nil, fmt.Errorf("decode analysis output: %w", err)
	}
	return &result, nil
}
