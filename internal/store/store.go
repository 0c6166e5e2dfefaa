package store

import (
	"context"
	"errors"

	"github.com/seantiz/esgqa/internal/model"
)

var (
	// ErrNotFound is returned when a job is not found.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a job is no longer in the status a
	// transition expects, or the transition itself is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// JobStats holds aggregate job counts.
type JobStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
}

// Store defines the operations on job records. Implementations must be safe
// for concurrent use and must never expose a partially applied transition.
type Store interface {
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// TransitionJob moves job id from status from to status to and runs apply
	// on the record as part of the same atomic step. It returns the updated
	// job, ErrNotFound, or ErrInvalidTransition if the job is not in from.
	TransitionJob(ctx context.Context, id, from, to string, apply func(*model.Job)) (*model.Job, error)
	GetJobStats(ctx context.Context) (*JobStats, error)
	Close() error
}
