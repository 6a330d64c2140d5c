// Package taskstore provides the in-memory registry of analysis task records.
package taskstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fentz26/stockwatch/internal/models"
)

var (
	ErrDuplicateTask     = errors.New("task already exists")
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Retention bounds how many finished records are kept in memory.
// Pending and running records are never evicted.
type Retention struct {
	// MaxTerminal caps the number of completed/failed records. Zero disables the cap.
	MaxTerminal int `yaml:"max_terminal"`
	// TTL evicts completed/failed records finished longer ago. Zero disables expiry.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultRetention returns the default retention policy.
func DefaultRetention() Retention {
	return Retention{MaxTerminal: 500, TTL: 24 * time.Hour}
}

// Store is a concurrency-safe map of task id to record. Callers only ever
// see copies of the stored records.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*models.TaskRecord
	retention Retention
	now       func() time.Time
}

// New creates an empty store with the given retention policy.
func New(retention Retention) *Store {
	return &Store{
		tasks:     make(map[string]*models.TaskRecord),
		retention: retention,
		now:       time.Now,
	}
}

// Insert adds a new record.
func (s *Store) Insert(rec models.TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, rec.ID)
	}
	s.evictLocked()
	cp := rec.Clone()
	s.tasks[rec.ID] = &cp
	return nil
}

// Update applies fn to a working copy of the record under the store lock.
// The copy replaces the stored record only if fn succeeds and the result is a
// valid forward transition. The committed snapshot is returned.
func (s *Store) Update(id string, fn func(*models.TaskRecord) error) (models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return models.TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	next := cur.Clone()
	if err := fn(&next); err != nil {
		return cur.Clone(), err
	}
	if next.ID != cur.ID {
		return cur.Clone(), fmt.Errorf("task %s: id is immutable", id)
	}
	if !cur.Status.CanTransitionTo(next.Status) {
		return cur.Clone(), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next.Status)
	}
	if err := next.Validate(); err != nil {
		return cur.Clone(), err
	}

	*cur = next
	return next.Clone(), nil
}

// Get returns a snapshot of the record.
func (s *Store) Get(id string) (models.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[id]
	if !ok {
		return models.TaskRecord{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return rec.Clone(), nil
}

// ListRecent returns up to limit snapshots, most recently started first.
// Ties are broken by id, descending. A non-positive limit returns everything.
func (s *Store) ListRecent(limit int) []models.TaskRecord {
	s.mu.RLock()
	out := make([]models.TaskRecord, 0, len(s.tasks))
	for _, rec := range s.tasks {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sortRecent(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Counts returns the number of records per status.
func (s *Store) Counts() map[models.TaskStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.TaskStatus]int, 4)
	for _, rec := range s.tasks {
		counts[rec.Status]++
	}
	return counts
}

func sortRecent(recs []models.TaskRecord) {
	sort.Slice(recs, func(i, j int) bool {
		ti, tj := recs[i].SortTime(), recs[j].SortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return recs[i].ID > recs[j].ID
	})
}

// evictLocked drops expired and excess terminal records. Caller holds s.mu.
func (s *Store) evictLocked() {
	if s.retention.TTL > 0 {
		cutoff := s.now().Add(-s.retention.TTL)
		for id, rec := range s.tasks {
			if rec.Status.IsTerminal() && rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
				delete(s.tasks, id)
			}
		}
	}

	if s.retention.MaxTerminal <= 0 {
		return
	}

	var terminal []models.TaskRecord
	for _, rec := range s.tasks {
		if rec.Status.IsTerminal() {
			terminal = append(terminal, *rec)
		}
	}
	excess := len(terminal) - s.retention.MaxTerminal
	if excess <= 0 {
		return
	}
	sortRecent(terminal)
	for _, rec := range terminal[len(terminal)-excess:] {
		delete(s.tasks, rec.ID)
	}
}
