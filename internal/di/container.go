package di

import (
	"context"
	"reflect"

	"github.com/goliatone/go-jobqueue/internal/dispatcher"
	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/adapters/console"
	"github.com/goliatone/go-jobqueue/pkg/commands"
	"github.com/goliatone/go-jobqueue/pkg/config"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	"github.com/goliatone/go-jobqueue/pkg/push"
	"github.com/goliatone/go-jobqueue/pkg/queue"
	"github.com/goliatone/go-jobqueue/pkg/storage"
	"github.com/goliatone/go-jobqueue/pkg/workers"
)

// Options configure the DI container.
type Options struct {
	Config      config.Config
	Storage     storage.Providers
	Logger      logger.Logger
	Broadcaster broadcaster.Broadcaster
	Adapters    []adapters.Messenger
}

// Container wires the queue, worker registry, delivery handler, dispatcher and commands.
type Container struct {
	Config     config.Config
	Storage    storage.Providers
	Queue      *queue.Queue
	Workers    *workers.Registry
	Adapters   *adapters.Registry
	Push       *push.Handler
	Dispatcher *dispatcher.Service
	Commands   *commands.Registry
	Events     *broadcaster.Fanout
}

func isZeroConfig(cfg config.Config) bool {
	return reflect.ValueOf(cfg).IsZero()
}

// New constructs the container using the supplied options. Without explicit
// storage the journal backend is opened from cfg.Storage. Without adapters a
// console messenger serves every channel.
func New(opts Options) (*Container, error) {
	cfg := opts.Config
	if isZeroConfig(cfg) {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lgr := opts.Logger
	if lgr == nil {
		lgr = &logger.Nop{}
	}

	events := broadcaster.NewFanout(opts.Broadcaster)

	providers := opts.Storage
	if providers.Jobs == nil {
		opened, err := storage.Open(context.Background(), cfg.Storage)
		if err != nil {
			return nil, err
		}
		providers = opened
	}

	messengers := opts.Adapters
	if len(messengers) == 0 {
		messengers = []adapters.Messenger{console.New(lgr)}
	}
	adapterRegistry := adapters.NewRegistry(messengers...)

	q := queue.New(
		queue.WithName(cfg.Queue.Name),
		queue.WithRetention(cfg.Queue.Retention),
		queue.WithLogger(lgr),
		queue.WithSchemas(push.Schema(cfg.Push.TemplateRevision)),
	)

	registry := workers.NewRegistry(workers.WithStrict(cfg.Registry.Strict))
	pushHandler := push.NewHandler(adapterRegistry,
		push.WithHandlerLogger(lgr),
		push.FromConfig(cfg.Push),
	)
	if err := push.Register(registry, pushHandler, cfg.Push.TemplateRevision); err != nil {
		return nil, err
	}

	dispatcherSvc, err := dispatcher.New(dispatcher.Dependencies{
		Queue:       q,
		Registry:    registry,
		Logger:      lgr,
		Config:      cfg.Dispatcher,
		Broadcaster: events,
		Jobs:        providers.Jobs,
	})
	if err != nil {
		return nil, err
	}

	cmdRegistry, err := commands.New(commands.Dependencies{
		Queue:      q,
		Dispatcher: dispatcherSvc,
		Revision:   cfg.Push.TemplateRevision,
		Logger:     lgr,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:     cfg,
		Storage:    providers,
		Queue:      q,
		Workers:    registry,
		Adapters:   adapterRegistry,
		Push:       pushHandler,
		Dispatcher: dispatcherSvc,
		Commands:   cmdRegistry,
		Events:     events,
	}, nil
}

// Close closes the queue and any storage the container opened.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	c.Queue.Close()
	return c.Storage.Close()
}
