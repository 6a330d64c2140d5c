// Package controlplane provides the HTTP API and service layer for stockwatch.
package controlplane

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fentz26/stockwatch/internal/analysis"
	"github.com/fentz26/stockwatch/internal/annotate"
	"github.com/fentz26/stockwatch/internal/envfile"
	"github.com/fentz26/stockwatch/internal/models"
)

// Watchlist is the current STOCK_LIST value and the file it lives in.
type Watchlist struct {
	StockList string `json:"stock_list"`
	EnvFile   string `json:"env_file"`
}

// Service provides the control plane business logic.
type Service struct {
	manager   *analysis.Manager
	editor    *envfile.Editor
	annotator *annotate.Annotator

	// envMu serializes read-modify-write cycles on the env file.
	envMu sync.Mutex
}

// NewService creates a new control plane service. editor and annotator may
// be nil, which disables the watchlist endpoints.
func NewService(m *analysis.Manager, editor *envfile.Editor, annotator *annotate.Annotator) *Service {
	return &Service{
		manager:   m,
		editor:    editor,
		annotator: annotator,
	}
}

// --- Analysis Operations ---

// SubmitAnalysis queues an analysis of symbol. source is an optional JSON
// document describing where the result should be delivered.
func (s *Service) SubmitAnalysis(symbol, reportType string, source json.RawMessage) (analysis.Submission, error) {
	var src any
	if len(source) > 0 && string(source) != "null" {
		src = source
	}
	return s.manager.Submit(symbol, models.ReportKind(reportType), src)
}

// GetTask retrieves a task snapshot by ID.
func (s *Service) GetTask(id string) (models.TaskRecord, error) {
	return s.manager.GetStatus(id)
}

// ListTasks returns the most recent in-memory tasks.
func (s *Service) ListTasks(limit int) []models.TaskRecord {
	return s.manager.ListRecent(limit)
}

// TaskHistory returns archived tasks, optionally for one symbol.
func (s *Service) TaskHistory(symbol string, limit int) ([]models.TaskRecord, error) {
	return s.manager.History(symbol, limit)
}

// Stats returns worker and task counts.
func (s *Service) Stats() analysis.Stats {
	return s.manager.Stats()
}

// --- Watchlist Operations ---

// GetWatchlist reads the current watchlist.
func (s *Service) GetWatchlist() (Watchlist, error) {
	if s.editor == nil {
		return Watchlist{}, ErrNoWatchlist
	}
	s.envMu.Lock()
	defer s.envMu.Unlock()

	list, err := s.editor.StockList()
	if err != nil {
		return Watchlist{}, err
	}
	return Watchlist{StockList: list, EnvFile: s.editor.Filename()}, nil
}

// SetWatchlist normalizes and stores a new watchlist.
func (s *Service) SetWatchlist(value string) (Watchlist, error) {
	if s.editor == nil {
		return Watchlist{}, ErrNoWatchlist
	}
	s.envMu.Lock()
	defer s.envMu.Unlock()

	normalized, err := s.editor.SetStockList(value)
	if err != nil {
		return Watchlist{}, err
	}
	return Watchlist{StockList: normalized, EnvFile: s.editor.Filename()}, nil
}

// AnnotateWatchlist builds an annotated watchlist from the current one and
// writes it when apply is set.
func (s *Service) AnnotateWatchlist(ctx context.Context, apply bool) (*annotate.Proposal, error) {
	if s.editor == nil {
		return nil, ErrNoWatchlist
	}
	if s.annotator == nil {
		return nil, ErrNoAnnotator
	}
	s.envMu.Lock()
	defer s.envMu.Unlock()

	list, err := s.editor.StockList()
	if err != nil {
		return nil, err
	}
	proposal, err := s.annotator.Build(ctx, list)
	if err != nil {
		return nil, err
	}
	if apply {
		if err := annotate.Apply(s.editor, proposal); err != nil {
			return nil, err
		}
	}
	return proposal, nil
}
