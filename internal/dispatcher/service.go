package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-jobqueue/pkg/config"
	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/store"
	"github.com/goliatone/go-jobqueue/pkg/queue"
	"github.com/goliatone/go-jobqueue/pkg/workers"
)

// Dependencies groups the queue, registry and observers used by the dispatcher.
type Dependencies struct {
	Queue       *queue.Queue
	Registry    *workers.Registry
	Logger      logger.Logger
	Config      config.DispatcherConfig
	Broadcaster broadcaster.Broadcaster
	Jobs        store.JobRepository
}

// Service drains a queue, runs the registered handler for every claimed job
// and resolves each job to complete or failed.
type Service struct {
	queue       *queue.Queue
	registry    *workers.Registry
	logger      logger.Logger
	cfg         config.DispatcherConfig
	broadcaster broadcaster.Broadcaster
	jobs        store.JobRepository

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	ErrMissingQueue    = errors.New("dispatcher: queue is required")
	ErrMissingRegistry = errors.New("dispatcher: worker registry is required")
	ErrAlreadyRunning  = errors.New("dispatcher: already running")
)

// New builds the dispatcher service.
func New(deps Dependencies) (*Service, error) {
	if deps.Queue == nil {
		return nil, ErrMissingQueue
	}
	if deps.Registry == nil {
		return nil, ErrMissingRegistry
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = &broadcaster.Nop{}
	}
	if deps.Config.MaxWorkers <= 0 {
		deps.Config.MaxWorkers = 1
	}
	return &Service{
		queue:       deps.Queue,
		registry:    deps.Registry,
		logger:      deps.Logger,
		cfg:         deps.Config,
		broadcaster: deps.Broadcaster,
		jobs:        deps.Jobs,
	}, nil
}

// Run starts MaxWorkers slots that claim and process jobs until ctx is
// cancelled or Shutdown is called, then waits for in-flight handlers. While
// the queue's test mode is armed the slots wait without claiming, and Exit
// resumes dispatch. It returns immediately when the dispatcher is disabled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Disabled {
		s.logger.Debug("dispatcher disabled", "queue", s.queue.Name())
		return nil
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	// handlers must not be interrupted by shutdown
	handlerCtx := context.WithoutCancel(ctx)

	s.logger.Info("dispatcher started", "queue", s.queue.Name(), "workers", s.cfg.MaxWorkers)

	var wg sync.WaitGroup
	for slot := range s.cfg.MaxWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(runCtx, handlerCtx, slot)
		}()
	}
	wg.Wait()
	cancel()

	s.mu.Lock()
	s.cancel = nil
	s.done = nil
	close(done)
	s.mu.Unlock()

	s.logger.Info("dispatcher stopped", "queue", s.queue.Name())
	return nil
}

// Shutdown stops new dequeues and waits for in-flight handlers to return or
// for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher: shutdown: %w", ctx.Err())
	}
}

// Running reports whether Run is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// ProcessOne claims and processes a single pending job synchronously. It
// reports false when nothing was pending.
func (s *Service) ProcessOne(ctx context.Context) (bool, error) {
	job, err := s.queue.Dequeue()
	if errors.Is(err, queue.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.process(ctx, job)
	return true, nil
}

// Drain processes pending jobs until the queue is empty and returns how many ran.
func (s *Service) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		ok, err := s.ProcessOne(ctx)
		if err != nil || !ok {
			return count, err
		}
		count++
	}
}

func (s *Service) workerLoop(runCtx, handlerCtx context.Context, slot int) {
	for {
		job, err := s.queue.Next(runCtx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && runCtx.Err() == nil {
				s.logger.Error("dispatcher dequeue failed", "slot", slot, "error", err)
			}
			return
		}
		s.process(handlerCtx, job)
	}
}

func (s *Service) process(ctx context.Context, job domain.Job) {
	record := s.journalStart(ctx, job)
	s.publish(ctx, broadcaster.TopicJobActive, job)

	handler, err := s.registry.Lookup(job.Type)
	if err != nil {
		s.logger.Warn("dispatcher unregistered job type",
			"queue", job.Queue,
			"job_id", job.ID,
			"type", job.Type,
		)
		s.finish(ctx, job, record, err)
		return
	}

	if err := s.invoke(ctx, handler, job); err != nil {
		s.finish(ctx, job, record, &domain.HandlerError{JobID: job.ID, Type: job.Type, Err: err})
		return
	}
	s.finish(ctx, job, record, nil)
}

func (s *Service) invoke(ctx context.Context, handler workers.Handler, job domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler.Process(ctx, job, s.progressReporter(ctx, job))
}

func (s *Service) progressReporter(ctx context.Context, job domain.Job) workers.Progress {
	return func(percent int) {
		snap, err := s.queue.SetProgress(job.ID, percent)
		if err != nil {
			s.logger.Debug("dispatcher progress dropped", "job_id", job.ID, "error", err)
			return
		}
		s.logger.Debug("job progress", "job_id", snap.ID, "type", snap.Type, "progress", snap.Progress)
		s.publish(ctx, broadcaster.TopicJobProgress, snap)
	}
}

func (s *Service) finish(ctx context.Context, job domain.Job, record *domain.JobRecord, cause error) {
	var (
		final domain.Job
		err   error
		topic string
	)
	if cause == nil {
		final, err = s.queue.Complete(job.ID)
		topic = broadcaster.TopicJobComplete
	} else {
		final, err = s.queue.Fail(job.ID, cause)
		topic = broadcaster.TopicJobFailed
	}
	if err != nil {
		s.logger.Error("dispatcher transition failed", "job_id", job.ID, "error", err)
		return
	}

	if cause == nil {
		s.logger.Info("job completed", "queue", final.Queue, "job_id", final.ID, "type", final.Type)
	} else {
		s.logger.Warn("job failed", "queue", final.Queue, "job_id", final.ID, "type", final.Type, "error", cause)
	}

	s.journalFinish(ctx, record, final)
	s.publish(ctx, topic, final)
}

func (s *Service) journalStart(ctx context.Context, job domain.Job) *domain.JobRecord {
	if s.jobs == nil {
		return nil
	}
	record := domain.NewJobRecord(job)
	if err := s.jobs.Create(ctx, record); err != nil {
		s.logger.Warn("dispatcher journal create failed", "job_id", job.ID, "error", err)
		return nil
	}
	return record
}

func (s *Service) journalFinish(ctx context.Context, record *domain.JobRecord, job domain.Job) {
	if s.jobs == nil || record == nil {
		return
	}
	record.Apply(job)
	if err := s.jobs.Update(ctx, record); err != nil {
		s.logger.Warn("dispatcher journal update failed", "job_id", job.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, topic string, job domain.Job) {
	if err := s.broadcaster.Broadcast(ctx, broadcaster.Event{Topic: topic, Payload: job}); err != nil {
		s.logger.Debug("dispatcher broadcast failed", "topic", topic, "job_id", job.ID, "error", err)
	}
}
