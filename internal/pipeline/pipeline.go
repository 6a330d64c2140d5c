// Package pipeline defines the boundary to the external stock analysis
// pipeline and the backends that reach it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/stockwatch/internal/connectors"
	"github.com/fentz26/stockwatch/internal/models"
	"github.com/nats-io/nats.go"
)

// Backend names.
const (
	BackendExec = "exec"
	BackendNATS = "nats"
)

// ErrUnknownBackend is returned by a Factory for an unsupported backend.
var ErrUnknownBackend = errors.New("unknown pipeline backend")

// Pipeline analyzes a single symbol. A nil result with a nil error means the
// pipeline produced nothing.
type Pipeline interface {
	AnalyzeSingle(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error)
}

// Func adapts a function to the Pipeline interface.
type Func func(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error)

// AnalyzeSingle calls f.
func (f Func) AnalyzeSingle(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error) {
	return f(ctx, symbol, kind)
}

// Factory builds a pipeline for one job. source is the caller's opaque
// notification context and is forwarded without inspection.
type Factory func(cfg Config, source any) (Pipeline, error)

// ConfigSource returns the pipeline configuration for a job.
type ConfigSource func() Config

// Config selects and configures a pipeline backend.
type Config struct {
	Backend string     `yaml:"backend"`
	Exec    ExecConfig `yaml:"exec"`
	NATS    NATSConfig `yaml:"nats"`
}

// ExecConfig configures the local command backend.
type ExecConfig struct {
	// Command is the executable; it must be in Allowed.
	Command string `yaml:"command"`
	// Args may contain the {symbol} and {report} placeholders.
	Args    []string      `yaml:"args"`
	WorkDir string        `yaml:"work_dir"`
	Allowed []string      `yaml:"allowed"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures the NATS request/reply backend.
type NATSConfig struct {
	URL     string        `yaml:"url"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendExec,
		Exec: ExecConfig{
			Command: "python3",
			Args:    []string{"main.py", "--stocks", "{symbol}", "--report-type", "{report}", "--single-notify", "--json"},
			Allowed: []string{"python", "python3"},
		},
		NATS: NATSConfig{
			URL:     nats.DefaultURL,
			Subject: "stockwatch.analysis.request",
			Timeout: 10 * time.Minute,
		},
	}
}

// Validate checks the configuration of the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendExec:
		if c.Exec.Command == "" {
			return fmt.Errorf("pipeline.exec.command is required")
		}
	case BackendNATS:
		if c.NATS.Subject == "" {
			return fmt.Errorf("pipeline.nats.subject is required")
		}
	default:
		return fmt.Errorf("%w %q, must be: exec or nats", ErrUnknownBackend, c.Backend)
	}
	return nil
}

// Backends holds the long-lived resources that pipelines share.
type Backends struct {
	// Connector runs the exec backend. When nil one is built from the config.
	Connector connectors.Connector
	// Conn is the NATS connection for the nats backend.
	Conn *nats.Conn
}

// NewFactory returns a Factory that picks the backend named by cfg.Backend.
func NewFactory(b Backends) Factory {
	return func(cfg Config, source any) (Pipeline, error) {
		switch cfg.Backend {
		case BackendExec:
			return NewExec(cfg.Exec, b.Connector, source), nil
		case BackendNATS:
			if b.Conn == nil {
				return nil, errors.New("nats backend selected but no connection is configured")
			}
			return NewNATS(b.Conn, cfg.NATS, source), nil
		default:
			return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
		}
	}
}
