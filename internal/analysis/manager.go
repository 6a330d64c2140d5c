// Package analysis runs per-symbol analysis jobs in the background and tracks
// their lifecycle for polling callers.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fentz26/stockwatch/internal/models"
	"github.com/fentz26/stockwatch/internal/pipeline"
	"github.com/fentz26/stockwatch/internal/store"
	"github.com/fentz26/stockwatch/internal/taskstore"
	"github.com/fentz26/stockwatch/internal/telemetry"
	"github.com/fentz26/stockwatch/internal/workerpool"
)

// DefaultListLimit is used by ListRecent when no positive limit is given.
const DefaultListLimit = 20

// SubmitMessage tells callers how results are delivered.
const SubmitMessage = "analysis task submitted; it runs asynchronously and the result is pushed as a notification, poll the task status to follow it"

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,16}$`)

// Archive keeps finished task snapshots beyond the in-memory retention.
type Archive interface {
	SaveTask(rec models.TaskRecord) error
	GetTask(id string) (models.TaskRecord, error)
	ListTasks(symbol string, limit int) ([]models.TaskRecord, error)
}

// Auditor records decisions taken by the manager.
type Auditor interface {
	Record(action string, inputs interface{}, outcome, taskID, details string) (*models.PDREntry, error)
}

// Options configures a Manager.
type Options struct {
	Workers   int
	Retention taskstore.Retention
	Archive   Archive
	Auditor   Auditor
	Logger    *log.Logger
}

// Submission is returned to callers of Submit.
type Submission struct {
	Accepted   bool              `json:"success"`
	Message    string            `json:"message"`
	Symbol     string            `json:"code"`
	TaskID     string            `json:"task_id"`
	ReportKind models.ReportKind `json:"report_type"`
}

// Stats summarizes the manager's workers and tasks.
type Stats struct {
	Workers workerpool.Stats          `json:"workers"`
	Tasks   map[models.TaskStatus]int `json:"tasks"`
}

// Manager accepts analysis jobs, runs them on a bounded worker pool and
// exposes their status.
type Manager struct {
	tasks   *taskstore.Store
	pool    *workerpool.Pool
	factory pipeline.Factory
	config  pipeline.ConfigSource
	archive Archive
	auditor Auditor
	logger  *log.Logger

	now func() time.Time
	seq atomic.Uint64
}

// New creates a manager that builds one pipeline per job from factory,
// configured by config.
func New(factory pipeline.Factory, config pipeline.ConfigSource, opts Options) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("analysis: pipeline factory is required")
	}
	if config == nil {
		config = pipeline.DefaultConfig
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[analysis] ", log.LstdFlags)
	}

	return &Manager{
		tasks:   taskstore.New(opts.Retention),
		pool:    workerpool.New(opts.Workers, logger),
		factory: factory,
		config:  config,
		archive: opts.Archive,
		auditor: opts.Auditor,
		logger:  logger,
		now:     time.Now,
	}, nil
}

var (
	sharedOnce sync.Once
	shared     *Manager
	sharedErr  error
)

// Shared returns the process-wide manager, building it with build on the
// first call. Later calls return the first result and ignore build.
func Shared(build func() (*Manager, error)) (*Manager, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = build()
	})
	return shared, sharedErr
}

// Submit registers a pending task for symbol and queues it for execution.
// It returns as soon as the job is queued.
func (m *Manager) Submit(symbol string, kind models.ReportKind, source any) (Submission, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) {
		return Submission{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	kind, err := models.ParseReportKind(string(kind))
	if err != nil {
		return Submission{}, fmt.Errorf("%w: %v", ErrInvalidReportKind, err)
	}

	now := m.now()
	rec := models.TaskRecord{
		ID:          m.newTaskID(symbol, now),
		Symbol:      symbol,
		ReportKind:  kind,
		Status:      models.TaskStatusPending,
		SubmittedAt: now,
	}
	if err := m.tasks.Insert(rec); err != nil {
		return Submission{}, err
	}

	if err := m.pool.Submit(func(ctx context.Context) {
		m.run(ctx, rec.ID, symbol, kind, source)
	}); err != nil {
		m.finish(rec.ID, nil, err)
		return Submission{}, err
	}

	telemetry.TasksSubmitted.WithLabelValues(string(kind)).Inc()
	m.audit("analysis.submit", map[string]string{"code": symbol, "report_type": string(kind)}, "success", rec.ID, "")
	m.logger.Printf("Submitted analysis of %s, task_id=%s, report_type=%s", symbol, rec.ID, kind)

	return Submission{
		Accepted:   true,
		Message:    SubmitMessage,
		Symbol:     symbol,
		TaskID:     rec.ID,
		ReportKind: kind,
	}, nil
}

// GetStatus returns a snapshot of the task. Tasks no longer held in memory
// are looked up in the archive.
func (m *Manager) GetStatus(taskID string) (models.TaskRecord, error) {
	rec, err := m.tasks.Get(taskID)
	if err == nil || !errors.Is(err, taskstore.ErrTaskNotFound) || m.archive == nil {
		return rec, err
	}

	rec, err = m.archive.GetTask(taskID)
	if errors.Is(err, store.ErrNotFound) {
		return models.TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return rec, err
}

// ListRecent returns up to limit in-memory tasks, most recently started first.
func (m *Manager) ListRecent(limit int) []models.TaskRecord {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return m.tasks.ListRecent(limit)
}

// History returns archived tasks, optionally for one symbol.
func (m *Manager) History(symbol string, limit int) ([]models.TaskRecord, error) {
	if m.archive == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return m.archive.ListTasks(strings.TrimSpace(symbol), limit)
}

// Stats returns worker and task counts.
func (m *Manager) Stats() Stats {
	return Stats{
		Workers: m.pool.Stats(),
		Tasks:   m.tasks.Counts(),
	}
}

// Close stops the worker pool. Running jobs see their context cancelled and
// tasks still waiting in the backlog are failed with ErrShutdown.
func (m *Manager) Close(ctx context.Context) error {
	err := m.pool.Stop(ctx)
	for _, rec := range m.tasks.ListRecent(0) {
		if rec.Status == models.TaskStatusPending {
			m.finish(rec.ID, nil, ErrShutdown)
		}
	}
	return err
}

// newTaskID formats SYMBOL_YYYYMMDD_HHMMSS_micros_seq. The sequence keeps ids
// unique within the same microsecond.
func (m *Manager) newTaskID(symbol string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%06d_%06d", symbol, at.Format("20060102_150405"), at.Nanosecond()/1000, m.seq.Add(1))
}

// run is the job body executed on a worker slot. It never panics and never
// returns an error: every outcome ends up in the task record.
func (m *Manager) run(ctx context.Context, taskID, symbol string, kind models.ReportKind, source any) {
	started := m.now()
	if _, err := m.tasks.Update(taskID, func(r *models.TaskRecord) error {
		r.Status = models.TaskStatusRunning
		r.StartedAt = &started
		return nil
	}); err != nil {
		m.logger.Printf("Task %s could not start: %v", taskID, err)
		return
	}

	telemetry.TasksRunning.Inc()
	m.logger.Printf("Analyzing %s (task %s)", symbol, taskID)

	result, err := m.invoke(ctx, symbol, kind, source)

	telemetry.TasksRunning.Dec()
	telemetry.TaskDurationSeconds.Observe(time.Since(started).Seconds())

	m.finish(taskID, result, err)
}

// invoke builds a pipeline for this job and runs it, converting panics into errors.
func (m *Manager) invoke(ctx context.Context, symbol string, kind models.ReportKind, source any) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	p, err := m.factory(m.config(), source)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return p.AnalyzeSingle(ctx, symbol, kind)
}

// finish moves the task to its terminal status. The terminal snapshot is
// archived before it is committed in memory, so eviction never drops a record
// the archive does not hold yet.
func (m *Manager) finish(taskID string, result *models.AnalysisResult, runErr error) {
	finished := m.now()
	terminate := func(r *models.TaskRecord) error {
		r.FinishedAt = &finished
		switch {
		case runErr != nil:
			r.Status = models.TaskStatusFailed
			r.Error = runErr.Error()
			if r.Error == "" {
				r.Error = "analysis failed"
			}
		case result == nil:
			r.Status = models.TaskStatusFailed
			r.Error = ErrEmptyResult.Error()
		default:
			res := *result
			r.Status = models.TaskStatusCompleted
			r.Result = &res
		}
		return nil
	}

	if m.archive != nil {
		m.archiveTerminal(taskID, terminate)
	}

	rec, err := m.tasks.Update(taskID, terminate)
	if err != nil {
		m.logger.Printf("Task %s could not be finished: %v", taskID, err)
		return
	}

	telemetry.TasksFinished.WithLabelValues(string(rec.Status)).Inc()
	if rec.Status == models.TaskStatusCompleted {
		m.logger.Printf("Analysis of %s completed: %s", rec.Symbol, rec.Result.OperationAdvice)
	} else {
		m.logger.Printf("Analysis of %s failed: %s", rec.Symbol, rec.Error)
	}

	m.audit("analysis.finish", map[string]string{"code": rec.Symbol, "report_type": string(rec.ReportKind)}, string(rec.Status), taskID, rec.Error)
}

// archiveTerminal writes the record as terminate would leave it.
func (m *Manager) archiveTerminal(taskID string, terminate func(*models.TaskRecord) error) {
	cur, err := m.tasks.Get(taskID)
	if err != nil || cur.Status.IsTerminal() {
		return
	}
	next := cur.Clone()
	if err := terminate(&next); err != nil {
		return
	}
	if err := next.Validate(); err != nil {
		return
	}
	if err := m.archive.SaveTask(next); err != nil {
		m.logger.Printf("Archiving task %s: %v", taskID, err)
	}
}

func (m *Manager) audit(action string, inputs interface{}, outcome, taskID, details string) {
	if m.auditor == nil {
		return
	}
	if _, err := m.auditor.Record(action, inputs, outcome, taskID, details); err != nil {
		m.logger.Printf("Audit %s for task %s: %v", action, taskID, err)
	}
}
