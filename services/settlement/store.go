package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("settlement: job not found")

// Store persists settlement jobs.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for reporting.
func (s *Store) DB() *gorm.DB { return s.db }

// Enqueue inserts job unless one with the same event key exists. It reports
// whether a row was written.
func (s *Store) Enqueue(ctx context.Context, job *Job) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_key"}}, DoNothing: true}).
		Create(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Due returns pending jobs whose next attempt is at or before now, oldest first.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	var jobs []Job
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", StatusPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// CountPending reports the number of jobs still waiting for dispatch.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusPending).Count(&n).Error
	return n, err
}

// List returns jobs in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, status JobStatus, limit int) ([]Job, error) {
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []Job
	err := q.Find(&jobs).Error
	return jobs, err
}

// Get loads a job by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkSettled records a successful dispatch.
func (s *Store) MarkSettled(ctx context.Context, id uuid.UUID, ref string, at time.Time) error {
	return s.update(ctx, id, map[string]interface{}{
		"status":       StatusSettled,
		"external_ref": ref,
		"settled_at":   at,
		"last_error":   "",
	})
}

// Reschedule records a failed attempt. Jobs out of attempts move to FAILED.
func (s *Store) Reschedule(ctx context.Context, id uuid.UUID, attempts int, lastErr string, next time.Time, failed bool) error {
	status := StatusPending
	if failed {
		status = StatusFailed
	}
	return s.update(ctx, id, map[string]interface{}{
		"status":          status,
		"attempts":        attempts,
		"last_error":      truncate(lastErr, 512),
		"next_attempt_at": next,
	})
}

// Retry returns a failed job to the queue with a fresh attempt budget.
func (s *Store) Retry(ctx context.Context, id uuid.UUID, now time.Time) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusSettled {
		return nil, ErrAlreadySettled
	}
	if err := s.update(ctx, id, map[string]interface{}{
		"status":          StatusPending,
		"attempts":        0,
		"next_attempt_at": now,
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
