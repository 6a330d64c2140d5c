package controlplane

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/stockwatch/internal/models"
	"github.com/fentz26/stockwatch/internal/telemetry"
	"github.com/fentz26/stockwatch/internal/version"
	"github.com/fentz26/stockwatch/internal/workerpool"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool             `json:"ok"`
	DB      string           `json:"db"`
	Version string           `json:"version"`
	Time    string           `json:"time"`
	Workers workerpool.Stats `json:"workers"`
}

// Server provides the HTTP API for stockwatch.
type Server struct {
	service *Service
	db      Pinger
	addr    string
	server  *http.Server
	logger  *log.Logger
}

// NewServer creates a new HTTP server. db may be nil when no archive is used.
func NewServer(service *Service, db Pinger, addr string) *Server {
	return &Server{
		service: service,
		db:      db,
		addr:    addr,
		logger:  log.New(log.Writer(), "[api] ", log.LstdFlags),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Analysis endpoints
	mux.HandleFunc("/analysis", s.handleAnalysis)
	mux.HandleFunc("/analysis/", s.handleAnalysisByID)

	// Watchlist endpoints
	mux.HandleFunc("/watchlist", s.handleWatchlist)
	mux.HandleFunc("/watchlist/annotate", s.handleAnnotate)

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", telemetry.Handler())

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves the API on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Printf("Starting stockwatch daemon on %s", ln.Addr())
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleAnalysis handles POST /analysis and GET /analysis
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitAnalysis(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAnalysisByID handles GET /analysis/{id} and GET /analysis/history
func (s *Server) handleAnalysisByID(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/analysis/")
	if taskID == "" || strings.Contains(taskID, "/") {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if taskID == "history" {
		s.taskHistory(w, r)
		return
	}
	s.getTask(w, r, taskID)
}

// handleWatchlist handles GET /watchlist and PUT /watchlist
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getWatchlist(w, r)
	case http.MethodPut:
		s.setWatchlist(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// --- Analysis Handlers ---

type submitRequest struct {
	Symbol     string          `json:"symbol"`
	ReportType string          `json:"report_type"`
	Source     json.RawMessage `json:"source"`
}

func (s *Server) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	sub, err := s.service.SubmitAnalysis(req.Symbol, req.ReportType, req.Source)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusAccepted, sub)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	tasks := s.service.ListTasks(limit)
	if tasks == nil {
		tasks = []models.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) taskHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	tasks, err := s.service.TaskHistory(r.URL.Query().Get("symbol"), limit)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if tasks == nil {
		tasks = []models.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := s.service.GetTask(taskID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- Watchlist Handlers ---

func (s *Server) getWatchlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.service.GetWatchlist()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

type watchlistRequest struct {
	StockList string `json:"stock_list"`
}

func (s *Server) setWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	wl, err := s.service.SetWatchlist(req.StockList)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	apply, _ := strconv.ParseBool(r.URL.Query().Get("apply"))

	proposal, err := s.service.AnnotateWatchlist(r.Context(), apply)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Workers: s.service.Stats().Workers,
	}

	status := http.StatusOK
	if s.db == nil {
		health.DB = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			health.OK = false
			health.DB = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, health)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
