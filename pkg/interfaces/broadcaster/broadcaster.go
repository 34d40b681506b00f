package broadcaster

import "context"

// Job lifecycle topics published by the dispatcher.
const (
	TopicJobActive   = "job.active"
	TopicJobProgress = "job.progress"
	TopicJobComplete = "job.complete"
	TopicJobFailed   = "job.failed"
)

// Event carries job lifecycle payloads destined for observers.
type Event struct {
	Topic   string
	Payload any
}

// Broadcaster pushes events to progress sinks (logs, WebSocket, SSE, metrics).
// Delivery is best-effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// Nop broadcaster discards events.
type Nop struct{}

var _ Broadcaster = (*Nop)(nil)

func (n *Nop) Broadcast(ctx context.Context, event Event) error { return nil }
