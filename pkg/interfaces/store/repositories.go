package store

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("store: not found")

// ListOptions capture pagination and filtering knobs common to repositories.
type ListOptions struct {
	Limit  int
	Offset int
	Since  time.Time
	Until  time.Time
}

// ListResult bundles records and totals.
type ListResult[T any] struct {
	Items []T
	Total int
}

// Repository defines base CRUD helpers reused by entity-specific interfaces.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, record *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, opts ListOptions) (ListResult[T], error)
}

// JobRepository journals job executions claimed by the dispatcher.
type JobRepository interface {
	Repository[domain.JobRecord]
	GetByJob(ctx context.Context, queue string, jobID int64) (*domain.JobRecord, error)
	ListByState(ctx context.Context, state domain.JobState, opts ListOptions) (ListResult[domain.JobRecord], error)
}
