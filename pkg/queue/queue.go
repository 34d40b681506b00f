package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	iqueue "github.com/goliatone/go-jobqueue/pkg/interfaces/queue"
)

var (
	ErrEmpty          = errors.New("queue: no pending jobs")
	ErrClosed         = errors.New("queue: closed")
	ErrTestModeArmed  = errors.New("queue: test mode is armed")
	ErrTestModeActive = errors.New("queue: test mode already entered")
	ErrNotActive      = errors.New("queue: job is not active")
)

// DefaultRetention is how many terminal jobs a queue keeps for Get lookups.
const DefaultRetention = 1000

// DefaultName is used when no queue name is configured.
const DefaultName = "default"

// Option configures a Queue.
type Option func(*Queue)

// WithName sets the queue name stamped on every job.
func WithName(name string) Option {
	return func(q *Queue) {
		if name = strings.TrimSpace(name); name != "" {
			q.name = name
		}
	}
}

// WithLogger sets the queue logger.
func WithLogger(l logger.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithSchemas registers payload schemas used to validate specs on enqueue.
func WithSchemas(schemas ...Schema) Option {
	return func(q *Queue) {
		for _, s := range schemas {
			q.schemas[strings.TrimSpace(s.Type)] = s
		}
	}
}

// WithRetention sets how many terminal jobs are kept. Zero disables retention.
func WithRetention(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.retention = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// Queue is an ordered, thread-safe store of pending jobs. A single mutex
// guards every piece of state so enqueue and claim are linearizable.
type Queue struct {
	name      string
	logger    logger.Logger
	now       func() time.Time
	retention int

	mu            sync.Mutex
	nextID        int64
	pending       []*domain.Job
	active        map[int64]*domain.Job
	finished      map[int64]*domain.Job
	finishedOrder []int64
	schemas       map[string]Schema
	wake          chan struct{}
	closed        bool

	armed    bool
	captured []*domain.Job
	testMode *TestMode
}

var _ iqueue.Enqueuer = (*Queue)(nil)

// New builds an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		name:      DefaultName,
		logger:    &logger.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
		retention: DefaultRetention,
		active:    make(map[int64]*domain.Job),
		finished:  make(map[int64]*domain.Job),
		schemas:   make(map[string]Schema),
		wake:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	q.testMode = &TestMode{q: q}
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// TestMode returns the capture mode bound to this queue.
func (q *Queue) TestMode() *TestMode { return q.testMode }

// RegisterSchema adds or replaces the schema for a job type.
func (q *Queue) RegisterSchema(s Schema) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.schemas[strings.TrimSpace(s.Type)] = s
}

// Enqueue validates spec, assigns the next id and appends the job to the
// pending sequence, or to the capture buffer while test mode is armed.
func (q *Queue) Enqueue(ctx context.Context, spec domain.JobSpec) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.Job{}, ErrClosed
	}
	if err := validateSpec(q.schemas, spec); err != nil {
		q.mu.Unlock()
		return domain.Job{}, err
	}
	q.nextID++
	job := domain.NewJob(q.nextID, q.name, spec, q.now())
	captured := q.armed
	if captured {
		q.captured = append(q.captured, job)
	} else {
		q.pending = append(q.pending, job)
		q.signalLocked()
	}
	snap := job.Snapshot()
	q.mu.Unlock()

	q.logger.Debug("job enqueued",
		"queue", q.name,
		"job_id", snap.ID,
		"type", snap.Type,
		"captured", captured,
	)
	return snap, nil
}

// Dequeue claims the earliest pending job without blocking.
func (q *Queue) Dequeue() (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.Job{}, ErrClosed
	}
	if q.armed {
		return domain.Job{}, ErrTestModeArmed
	}
	return q.claimLocked()
}

// Next blocks until a job can be claimed, the queue is closed, or ctx is
// done. It waits on the wake channel; it never polls. While test mode is
// armed it waits as if the queue were empty.
func (q *Queue) Next(ctx context.Context) (domain.Job, error) {
	for {
		q.mu.Lock()
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return domain.Job{}, err
		}
		if q.closed {
			q.mu.Unlock()
			return domain.Job{}, ErrClosed
		}
		if !q.armed && len(q.pending) > 0 {
			job, err := q.claimLocked()
			q.mu.Unlock()
			return job, err
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-wake:
		}
	}
}

// Complete marks an active job complete.
func (q *Queue) Complete(id int64) (domain.Job, error) {
	return q.finish(id, domain.JobStateComplete, nil)
}

// Fail marks an active job failed and records cause.
func (q *Queue) Fail(id int64, cause error) (domain.Job, error) {
	return q.finish(id, domain.JobStateFailed, cause)
}

// SetProgress stores a progress percentage, clamped to 0..100, on an active job.
func (q *Queue) SetProgress(id int64, percent int) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.active[id]
	if !ok {
		return domain.Job{}, ErrNotActive
	}
	job.Progress = clampPercent(percent)
	return job.Snapshot(), nil
}

// Get looks up a pending, active or retained terminal job.
func (q *Queue) Get(id int64) (domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.active[id]; ok {
		return job.Snapshot(), true
	}
	if job, ok := q.finished[id]; ok {
		return job.Snapshot(), true
	}
	for _, job := range q.pending {
		if job.ID == id {
			return job.Snapshot(), true
		}
	}
	return domain.Job{}, false
}

// PendingCount returns the number of queued jobs awaiting a consumer.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ActiveCount returns the number of claimed, unfinished jobs.
func (q *Queue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Close stops the queue. Blocked consumers return ErrClosed and further
// enqueues are rejected. Active jobs may still be completed or failed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.signalLocked()
}

func (q *Queue) claimLocked() (domain.Job, error) {
	if len(q.pending) == 0 {
		return domain.Job{}, ErrEmpty
	}
	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	job.State = domain.JobStateActive
	job.StartedAt = q.now()
	q.active[job.ID] = job
	return job.Snapshot(), nil
}

func (q *Queue) finish(id int64, state domain.JobState, cause error) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.active[id]
	if !ok || !job.State.CanTransition(state) {
		return domain.Job{}, ErrNotActive
	}
	delete(q.active, id)
	job.State = state
	job.FinishedAt = q.now()
	if cause != nil {
		job.Error = cause.Error()
	}
	if state == domain.JobStateComplete {
		job.Progress = 100
	}
	q.retainLocked(job)
	return job.Snapshot(), nil
}

func (q *Queue) retainLocked(job *domain.Job) {
	if q.retention <= 0 {
		return
	}
	q.finished[job.ID] = job
	q.finishedOrder = append(q.finishedOrder, job.ID)
	for len(q.finishedOrder) > q.retention {
		delete(q.finished, q.finishedOrder[0])
		q.finishedOrder = q.finishedOrder[1:]
	}
}

// signalLocked wakes every waiter by closing the current wake channel.
func (q *Queue) signalLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
