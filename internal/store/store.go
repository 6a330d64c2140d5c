// Package store provides SQLite-backed persistence for finished analysis
// tasks and the audit trail.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/stockwatch/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task is not in the archive.
var ErrNotFound = errors.New("task not archived")

// Store provides access to the stockwatch SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_tasks (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		report_kind TEXT NOT NULL,
		status TEXT NOT NULL,
		submitted_at DATETIME NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		result TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_tasks_symbol ON analysis_tasks(symbol);
	CREATE INDEX IF NOT EXISTS idx_analysis_tasks_started ON analysis_tasks(started_at);
	CREATE INDEX IF NOT EXISTS idx_pdr_task_id ON pdr(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Task Archive ---

// SaveTask inserts or replaces a task snapshot.
func (s *Store) SaveTask(rec models.TaskRecord) error {
	var result sql.NullString
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO analysis_tasks (id, symbol, report_kind, status, submitted_at, started_at, finished_at, result, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			result = excluded.result,
			error = excluded.error`,
		rec.ID, rec.Symbol, rec.ReportKind, rec.Status, rec.SubmittedAt.UTC(),
		nullTime(rec.StartedAt), nullTime(rec.FinishedAt), result, nullString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// GetTask retrieves an archived task by ID.
func (s *Store) GetTask(id string) (models.TaskRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, symbol, report_kind, status, submitted_at, started_at, finished_at, result, error
		 FROM analysis_tasks WHERE id = ?`,
		id,
	)
	rec, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.TaskRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("query task: %w", err)
	}
	return rec, nil
}

// ListTasks returns archived tasks, most recently started first. An empty
// symbol returns all symbols.
func (s *Store) ListTasks(symbol string, limit int) ([]models.TaskRecord, error) {
	query := `SELECT id, symbol, report_kind, status, submitted_at, started_at, finished_at, result, error FROM analysis_tasks`
	var args []interface{}

	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY COALESCE(started_at, submitted_at) DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, rec)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (models.TaskRecord, error) {
	var rec models.TaskRecord
	var startedAt, finishedAt sql.NullTime
	var result, errMsg sql.NullString

	if err := row.Scan(&rec.ID, &rec.Symbol, &rec.ReportKind, &rec.Status, &rec.SubmittedAt,
		&startedAt, &finishedAt, &result, &errMsg); err != nil {
		return rec, err
	}
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}
	if result.Valid && result.String != "" {
		var res models.AnalysisResult
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return rec, fmt.Errorf("decode result: %w", err)
		}
		rec.Result = &res
	}
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	return rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	now := time.Now().UTC()
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  now,
	}

	_, err := s.db.Exec(
		`INSERT INTO pdr (id, action, inputs_hash, outcome, task_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.TaskID, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns decision records for a task, oldest first.
func (s *Store) ListPDR(taskID string) ([]models.PDREntry, error) {
	rows, err := s.db.Query(
		`SELECT id, action, inputs_hash, outcome, task_id, details, timestamp FROM pdr WHERE task_id = ? ORDER BY timestamp ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var entries []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		var tid, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &tid, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.TaskID = tid.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
