package queue

import (
	"context"

	"github.com/goliatone/go-jobqueue/pkg/domain"
)

// Enqueuer is the producer side of a job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, spec domain.JobSpec) (domain.Job, error)
}

// Func adapts a function to the Enqueuer interface.
type Func func(ctx context.Context, spec domain.JobSpec) (domain.Job, error)

// Enqueue satisfies the Enqueuer interface.
func (f Func) Enqueue(ctx context.Context, spec domain.JobSpec) (domain.Job, error) {
	return f(ctx, spec)
}

// Nop queue swallows jobs (used for tests or disabled scheduling).
type Nop struct{}

var _ Enqueuer = (*Nop)(nil)

func (n *Nop) Enqueue(ctx context.Context, spec domain.JobSpec) (domain.Job, error) {
	return domain.Job{Type: spec.Type, Payload: domain.JSONMap(spec.Payload).Clone(), State: domain.JobStateQueued}, nil
}
