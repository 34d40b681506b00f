package commands

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	iqueue "github.com/goliatone/go-jobqueue/pkg/interfaces/queue"
	"github.com/goliatone/go-jobqueue/pkg/push"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	CreatePushNotificationJobs command.Commander[CreatePushNotificationJobs]
	DrainQueue                 command.Commander[DrainQueue]
}

type drainer interface {
	Drain(ctx context.Context) (int, error)
}

// Dependencies wires the queue and dispatcher into the command catalog.
type Dependencies struct {
	Queue      iqueue.Enqueuer
	Dispatcher drainer
	Revision   int
	Logger     logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Queue == nil {
		return nil, errors.New("commands: queue is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("commands: dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Revision <= 0 {
		deps.Revision = push.DefaultRevision
	}

	return &Catalog{
		CreatePushNotificationJobs: createPushJobsCommand{
			queue:    deps.Queue,
			revision: deps.Revision,
			logger:   deps.Logger,
		},
		DrainQueue: drainQueueCommand{
			dispatcher: deps.Dispatcher,
			logger:     deps.Logger,
		},
	}, nil
}

// CreatePushNotificationJobs carries the raw records to enqueue. Jobs must be
// a sequence of {phoneNumber, message} records.
type CreatePushNotificationJobs struct {
	Jobs any `json:"jobs"`
	// Created receives the number of enqueued jobs when non-nil.
	Created *int `json:"-"`
}

type createPushJobsCommand struct {
	queue    iqueue.Enqueuer
	revision int
	logger   logger.Logger
}

func (c createPushJobsCommand) Execute(ctx context.Context, msg CreatePushNotificationJobs) error {
	jobs, err := push.CreateJobs(ctx, msg.Jobs, c.queue,
		push.WithRevision(c.revision),
		push.WithLogger(c.logger),
	)
	if msg.Created != nil {
		*msg.Created = len(jobs)
	}
	return err
}

// DrainQueue processes pending jobs synchronously, for hosts that run with
// the background dispatcher disabled.
type DrainQueue struct {
	Processed *int `json:"-"`
}

type drainQueueCommand struct {
	dispatcher drainer
	logger     logger.Logger
}

func (c drainQueueCommand) Execute(ctx context.Context, msg DrainQueue) error {
	n, err := c.dispatcher.Drain(ctx)
	if msg.Processed != nil {
		*msg.Processed = n
	}
	c.logger.Debug("queue drained", "processed", n)
	return err
}
