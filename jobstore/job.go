package jobstore

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether a job in this status will never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the polled record of one asynchronous pipeline run. Details holds
// the most recent human-readable progress message and is overwritten, not
// appended, on every update.
type Job struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Status         Status    `json:"status"`
	Details        string    `json:"details"`
	GeneratedFiles []string  `json:"generatedFiles,omitempty" gorm:"serializer:json"`
	GeneratedClips []string  `json:"generatedClips,omitempty" gorm:"serializer:json"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

var (
	// ErrNotFound is returned for unknown ids and for records that are not
	// readable yet; pollers treat it as retryable.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when a write would change a completed or
	// failed record.
	ErrTerminal = errors.New("job is already in a terminal state")
)

// WriteOption attaches optional output references to a job write.
type WriteOption func(*Job)

func WithGeneratedFiles(refs []string) WriteOption {
	return func(j *Job) { j.GeneratedFiles = refs }
}

func WithGeneratedClips(refs []string) WriteOption {
	return func(j *Job) { j.GeneratedClips = refs }
}

// Store persists one record per job id. Writes replace the record entirely
// (last-write-wins, no merge) except that terminal records are immutable.
type Store interface {
	Create(ctx context.Context, id string) error
	Write(ctx context.Context, id string, status Status, details string, opts ...WriteOption) error
	Read(ctx context.Context, id string) (*Job, error)
}
