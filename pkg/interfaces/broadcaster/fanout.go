package broadcaster

import (
	"context"
	"errors"
	"sync"
)

// Func adapts a function to the Broadcaster interface.
type Func func(ctx context.Context, event Event) error

func (f Func) Broadcast(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// Fanout multicasts job events to a set of sinks. Sinks may be added while
// the dispatcher is publishing.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Broadcaster
}

var _ Broadcaster = (*Fanout)(nil)

func NewFanout(sinks ...Broadcaster) *Fanout {
	f := &Fanout{}
	f.Add(sinks...)
	return f
}

// Add appends sinks, ignoring nils.
func (f *Fanout) Add(sinks ...Broadcaster) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sink := range sinks {
		if sink != nil {
			f.sinks = append(f.sinks, sink)
		}
	}
}

// Len reports the registered sink count.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Broadcast delivers to every sink and joins their errors. A cancelled
// context stops delivery to the remaining sinks.
func (f *Fanout) Broadcast(ctx context.Context, event Event) error {
	f.mu.RLock()
	sinks := append([]Broadcaster(nil), f.sinks...)
	f.mu.RUnlock()

	var errs []error
	for _, sink := range sinks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := sink.Broadcast(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
