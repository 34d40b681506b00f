package commands

import (
	command "github.com/goliatone/go-command"
	internalcommands "github.com/goliatone/go-jobqueue/internal/commands"
	"github.com/goliatone/go-jobqueue/internal/dispatcher"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	"github.com/goliatone/go-jobqueue/pkg/queue"
)

// Re-export request types so consumers need not import internal packages.
type (
	CreatePushNotificationJobs = internalcommands.CreatePushNotificationJobs
	DrainQueue                 = internalcommands.DrainQueue
)

// Registry exposes go-command compatible handlers backed by the module services.
type Registry struct {
	Catalog                    *internalcommands.Catalog
	CreatePushNotificationJobs command.Commander[CreatePushNotificationJobs]
	DrainQueue                 command.Commander[DrainQueue]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Queue      *queue.Queue
	Dispatcher *dispatcher.Service
	Revision   int
	Logger     logger.Logger
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	internalDeps := internalcommands.Dependencies{
		Revision: deps.Revision,
		Logger:   deps.Logger,
	}
	if deps.Queue != nil {
		internalDeps.Queue = deps.Queue
	}
	if deps.Dispatcher != nil {
		internalDeps.Dispatcher = deps.Dispatcher
	}
	catalog, err := internalcommands.NewCatalog(internalDeps)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:                    catalog,
		CreatePushNotificationJobs: catalog.CreatePushNotificationJobs,
		DrainQueue:                 catalog.DrainQueue,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.CreatePushNotificationJobs,
		r.DrainQueue,
	}
}
