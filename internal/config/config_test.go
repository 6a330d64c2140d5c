package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/stockwatch/internal/pipeline"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.Pipeline.Backend != pipeline.BackendExec {
		t.Errorf("Expected exec backend, got %s", cfg.Pipeline.Backend)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Expected defaults, got listen %q", cfg.Listen)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: 0.0.0.0:8000
workers: 5
env_file: /srv/app/.env
retention:
  max_terminal: 50
  ttl: 2h
pipeline:
  backend: nats
  nats:
    subject: analysis.jobs
    timeout: 90s
quote:
  timeout: 3s
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Listen != "0.0.0.0:8000" || cfg.Workers != 5 || cfg.EnvFile != "/srv/app/.env" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.Retention.MaxTerminal != 50 || cfg.Retention.TTL != 2*time.Hour {
		t.Errorf("Unexpected retention: %+v", cfg.Retention)
	}
	if cfg.Pipeline.Backend != pipeline.BackendNATS || cfg.Pipeline.NATS.Subject != "analysis.jobs" || cfg.Pipeline.NATS.Timeout != 90*time.Second {
		t.Errorf("Unexpected pipeline config: %+v", cfg.Pipeline)
	}
	// Unset keys keep their defaults.
	if cfg.Pipeline.Exec.Command != "python3" {
		t.Errorf("Expected default exec command, got %q", cfg.Pipeline.Exec.Command)
	}
	if c := cfg.QuoteClient(); c.HTTPClient.Timeout != 3*time.Second {
		t.Errorf("Expected quote timeout override, got %v", c.HTTPClient.Timeout)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "workers: [", "parsing config file"},
		{"zero workers", "workers: 0", "workers must be at least 1"},
		{"unknown backend", "pipeline:\n  backend: grpc", "unknown pipeline backend"},
		{"negative retention", "retention:\n  max_terminal: -1", "retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Workers = 7
	cfg.Pipeline.Exec.Timeout = 5 * time.Minute

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Workers != 7 || loaded.Pipeline.Exec.Timeout != 5*time.Minute {
		t.Errorf("Round trip lost values: %+v", loaded)
	}

	if err := SaveConfig(path, nil); err == nil {
		t.Error("Expected error for nil config")
	}
	cfg.Workers = 0
	if err := SaveConfig(path, cfg); err == nil {
		t.Error("Expected validation error")
	}
}
