package memory

import (
	"context"

	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	"github.com/google/uuid"
)

// JobRepository keeps the job journal in process memory.
type JobRepository struct {
	base baseMemoryRepo[domain.JobRecord]
}

var _ store.JobRepository = (*JobRepository)(nil)

func NewJobRepository() *JobRepository {
	return &JobRepository{
		base: newBaseMemoryRepo("job", func(r *domain.JobRecord) *domain.RecordMeta { return &r.RecordMeta }),
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
	return r.base.getByID(ctx, id)
}

func (r *JobRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.JobRecord], error) {
	return r.base.list(ctx, opts, nil)
}

func (r *JobRepository) GetByJob(ctx context.Context, queue string, jobID int64) (*domain.JobRecord, error) {
	return r.base.find(ctx, func(rec *domain.JobRecord) bool {
		return rec.Queue == queue && rec.JobID == jobID
	})
}

func (r *JobRepository) ListByState(ctx context.Context, state domain.JobState, opts store.ListOptions) (store.ListResult[domain.JobRecord], error) {
	return r.base.list(ctx, opts, func(rec *domain.JobRecord) bool {
		return rec.State == state
	})
}
