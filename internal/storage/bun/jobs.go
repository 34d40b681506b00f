package bunrepo

import (
	"context"

	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JobRepository stores the job journal in the job_records table.
type JobRepository struct {
	base baseRepository[domain.JobRecord]
}

var _ store.JobRepository = (*JobRepository)(nil)

func NewJobRepository(db *bun.DB) *JobRepository {
	handlers := repository.ModelHandlers[*domain.JobRecord]{
		NewRecord:          func() *domain.JobRecord { return &domain.JobRecord{} },
		GetID:              func(r *domain.JobRecord) uuid.UUID { return r.ID },
		SetID:              func(r *domain.JobRecord, id uuid.UUID) { r.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(r *domain.JobRecord) string { return r.ID.String() },
	}
	return &JobRepository{
		base: newBaseRepository[domain.JobRecord](db, handlers, func(r *domain.JobRecord) *domain.RecordMeta { return &r.RecordMeta }),
	}
}

func (r *JobRepository) Create(ctx context.Context, record *domain.JobRecord) error {
	if record.State == "" {
		record.State = domain.JobStateActive
	}
	return r.base.create(ctx, record)
}

func (r *JobRepository) Update(ctx context.Context, record *domain.JobRecord) error {
	return r.base.update(ctx, record)
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	return r.base.get(ctx, withID(id))
}

func (r *JobRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.JobRecord], error) {
	return r.base.list(ctx, opts)
}

func (r *JobRepository) GetByJob(ctx context.Context, queue string, jobID int64) (*domain.JobRecord, error) {
	return r.base.get(ctx, withJob(queue, jobID))
}

func (r *JobRepository) ListByState(ctx context.Context, state domain.JobState, opts store.ListOptions) (store.ListResult[domain.JobRecord], error) {
	return r.base.list(ctx, opts, withState(state))
}
