package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fentz26/stockwatch/internal/analysis"
	"github.com/fentz26/stockwatch/internal/annotate"
	"github.com/fentz26/stockwatch/internal/audit"
	"github.com/fentz26/stockwatch/internal/controlplane"
	"github.com/fentz26/stockwatch/internal/envfile"
	"github.com/fentz26/stockwatch/internal/pipeline"
	"github.com/fentz26/stockwatch/internal/store"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
	envFile    string
	workers    int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the stockwatch daemon",
	Long: `Starts the stockwatch daemon which runs analysis jobs and serves the HTTP API.
Send SIGHUP to reload the pipeline section of the config file.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	daemonCmd.Flags().StringVar(&envFile, "env-file", "", "Env file holding STOCK_LIST (overrides config and ENV_FILE)")
	daemonCmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent analysis jobs (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting stockwatch daemon...")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if envFile != "" {
		cfg.EnvFile = envFile
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	// Initialize store
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing database connection...")
		if err := s.Close(); err != nil {
			log.Printf("Database close error: %v", err)
		}
	}()

	var nc *nats.Conn
	if cfg.Pipeline.Backend == pipeline.BackendNATS {
		nc, err = nats.Connect(cfg.Pipeline.NATS.URL, nats.Name("stockwatch"))
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer nc.Drain()
		log.Printf("Connected to NATS at %s", cfg.Pipeline.NATS.URL)
	}

	// The pipeline config is read once per job, so a reload applies to the next job.
	var current atomic.Pointer[pipeline.Config]
	pc := cfg.Pipeline
	current.Store(&pc)

	manager, err := analysis.Shared(func() (*analysis.Manager, error) {
		return analysis.New(
			pipeline.NewFactory(pipeline.Backends{Conn: nc}),
			func() pipeline.Config { return *current.Load() },
			analysis.Options{
				Workers:   cfg.Workers,
				Retention: cfg.Retention,
				Archive:   s,
				Auditor:   audit.NewPDRWriter(s),
			},
		)
	})
	if err != nil {
		return err
	}

	editor := envfile.New(cfg.EnvFile)
	annotator := annotate.New(cfg.QuoteClient(), nil)
	service := controlplane.NewService(manager, editor, annotator)
	server := controlplane.NewServer(service, s, cfg.Listen)
	log.Printf("Worker pool size %d, pipeline backend %s, watchlist in %s", cfg.Workers, cfg.Pipeline.Backend, editor.Path)

	// Set up signal handling for graceful shutdown and reloads
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reloadPipelineConfig(&current, cfg.Pipeline.Backend)
				continue
			}
			log.Printf("Received signal %v, initiating graceful shutdown...", sig)
			break wait
		case err := <-serverErr:
			if err != nil {
				log.Printf("Server error: %v", err)
				manager.Close(context.Background())
				return err
			}
			break wait
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping analysis workers...")
	if err := manager.Close(shutdownCtx); err != nil {
		log.Printf("Worker shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// reloadPipelineConfig re-reads the config file and swaps in its pipeline
// section. The backend cannot change without a restart since its connection
// is opened at startup.
func reloadPipelineConfig(current *atomic.Pointer[pipeline.Config], backend string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Printf("Config reload failed: %v", err)
		return
	}
	if cfg.Pipeline.Backend != backend {
		log.Printf("Config reload: backend change %s -> %s requires a restart, ignoring", backend, cfg.Pipeline.Backend)
		return
	}
	pc := cfg.Pipeline
	current.Store(&pc)
	log.Println("Pipeline config reloaded")
}
