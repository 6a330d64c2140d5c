// Package config loads the stockwatch daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/stockwatch/internal/pipeline"
	"github.com/fentz26/stockwatch/internal/quote"
	"github.com/fentz26/stockwatch/internal/taskstore"
	"github.com/fentz26/stockwatch/internal/workerpool"
	"gopkg.in/yaml.v3"
)

// DefaultListen is the default API listen address.
const DefaultListen = "127.0.0.1:7466"

// Config holds daemon configuration.
type Config struct {
	// Listen is the HTTP API address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite archive location.
	DBPath string `yaml:"db_path"`
	// EnvFile holds the STOCK_LIST watchlist. Empty means ENV_FILE or .env.
	EnvFile string `yaml:"env_file"`
	// Workers is the number of concurrent analysis slots.
	Workers int `yaml:"workers"`
	// Retention bounds how many finished tasks stay in memory.
	Retention taskstore.Retention `yaml:"retention"`
	// Pipeline selects the analysis backend.
	Pipeline pipeline.Config `yaml:"pipeline"`
	// Quote configures the metadata lookup used by watchlist annotation.
	Quote QuoteConfig `yaml:"quote"`
}

// QuoteConfig configures the quote provider.
type QuoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Dir returns ~/.stockwatch, or .stockwatch when the home dir is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockwatch"
	}
	return filepath.Join(home, ".stockwatch")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    DefaultListen,
		DBPath:    filepath.Join(Dir(), "stockwatch.db"),
		Workers:   workerpool.DefaultSize,
		Retention: taskstore.DefaultRetention(),
		Pipeline:  pipeline.DefaultConfig(),
		Quote: QuoteConfig{
			BaseURL: quote.DefaultBaseURL,
			Timeout: quote.DefaultTimeout,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromHome loads configuration from ~/.stockwatch/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	return LoadConfig(DefaultPath())
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Retention.MaxTerminal < 0 || c.Retention.TTL < 0 {
		return fmt.Errorf("retention limits cannot be negative")
	}
	if c.Quote.Timeout < 0 {
		return fmt.Errorf("quote.timeout cannot be negative")
	}
	return c.Pipeline.Validate()
}

// QuoteClient builds a quote client from the configuration.
func (c *Config) QuoteClient() *quote.Client {
	client := quote.NewClient()
	if c.Quote.BaseURL != "" {
		client.BaseURL = c.Quote.BaseURL
	}
	if c.Quote.Timeout > 0 {
		client.HTTPClient.Timeout = c.Quote.Timeout
	}
	return client
}
