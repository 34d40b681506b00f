// Package jobqueue assembles the push notification job queue: queue, worker
// registry, delivery handler, dispatcher, journal and commands.
package jobqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-jobqueue/internal/di"
	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/commands"
	"github.com/goliatone/go-jobqueue/pkg/config"
	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	"github.com/goliatone/go-jobqueue/pkg/push"
	"github.com/goliatone/go-jobqueue/pkg/queue"
	"github.com/goliatone/go-jobqueue/pkg/storage"
	"github.com/goliatone/go-jobqueue/pkg/workers"
)

// ErrAlreadyStarted is returned by Start while the dispatcher is running.
var ErrAlreadyStarted = errors.New("jobqueue: already started")

// ModuleOptions configure the module facade.
type ModuleOptions struct {
	Config      config.Config
	Storage     storage.Providers
	Logger      logger.Logger
	Broadcaster broadcaster.Broadcaster
	Adapters    []adapters.Messenger
}

// Module bundles the container and exposes high-level accessors.
type Module struct {
	container *di.Container
	logger    logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan error
}

// NewModule assembles the queue, handlers, dispatcher and commands.
func NewModule(opts ModuleOptions) (*Module, error) {
	container, err := di.New(di.Options{
		Config:      opts.Config,
		Storage:     opts.Storage,
		Logger:      opts.Logger,
		Broadcaster: opts.Broadcaster,
		Adapters:    opts.Adapters,
	})
	if err != nil {
		return nil, err
	}
	lgr := opts.Logger
	if lgr == nil {
		lgr = &logger.Nop{}
	}
	return &Module{container: container, logger: lgr}, nil
}

// CreateJobs enqueues one push notification job per record in input.
func (m *Module) CreateJobs(ctx context.Context, input any) ([]domain.Job, error) {
	return push.CreateJobs(ctx, input, m.container.Queue,
		push.WithRevision(m.container.Config.Push.TemplateRevision),
		push.WithLogger(m.logger),
	)
}

// Start runs the dispatcher in the background until ctx is done or Stop is
// called. Jobs enqueued while test mode is armed are captured; dispatch
// resumes on Exit.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	m.started = true
	m.cancel = cancel
	m.done = done
	go func() {
		err := m.container.Dispatcher.Run(runCtx)
		m.mu.Lock()
		if m.done == done {
			m.started = false
			m.cancel = nil
			m.done = nil
		}
		m.mu.Unlock()
		cancel()
		done <- err
	}()
	return nil
}

// Stop stops new dequeues and waits for in-flight jobs to finish or ctx to expire.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	started, cancel, done := m.started, m.cancel, m.done
	m.mu.Unlock()
	if !started {
		return nil
	}
	if err := m.container.Dispatcher.Shutdown(ctx); err != nil {
		return err
	}
	cancel()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the queue and storage. Call Stop first to drain in-flight jobs.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}

// Queue returns the job queue.
func (m *Module) Queue() *queue.Queue {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Queue
}

// TestMode returns the queue's capture mode.
func (m *Module) TestMode() *queue.TestMode {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Queue.TestMode()
}

// Workers returns the worker registry so hosts can add job types.
func (m *Module) Workers() *workers.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Workers
}

// Commands returns the go-command registry.
func (m *Module) Commands() *commands.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Commands
}

// AdapterRegistry exposes the configured messenger registry.
func (m *Module) AdapterRegistry() *adapters.Registry {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Adapters
}

// Storage exposes the job journal repositories.
func (m *Module) Storage() storage.Providers {
	if m == nil || m.container == nil {
		return storage.Providers{}
	}
	return m.container.Storage
}

// Subscribe adds a sink for job lifecycle events.
func (m *Module) Subscribe(sink broadcaster.Broadcaster) {
	if m == nil || m.container == nil {
		return
	}
	m.container.Events.Add(sink)
}

// Config returns the effective module configuration.
func (m *Module) Config() config.Config {
	if m == nil || m.container == nil {
		return config.Config{}
	}
	return m.container.Config
}

// Container returns the internal DI container.
// This is exposed for advanced use cases like direct dispatcher access.
func (m *Module) Container() *di.Container {
	if m == nil {
		return nil
	}
	return m.container
}
