package workers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-jobqueue/pkg/domain"
)

// ErrHandlerExists is returned by strict registries on duplicate registration.
var ErrHandlerExists = errors.New("workers: handler already registered")

// Progress reports a completion percentage. It is observational only.
type Progress func(percent int)

// Handler processes one job type.
type Handler interface {
	Process(ctx context.Context, job domain.Job, progress Progress) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job domain.Job, progress Progress) error

// Process satisfies the Handler interface.
func (f HandlerFunc) Process(ctx context.Context, job domain.Job, progress Progress) error {
	return f(ctx, job, progress)
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrict makes duplicate registrations fail instead of replacing the handler.
func WithStrict(strict bool) Option {
	return func(r *Registry) {
		r.strict = strict
	}
}

// Registry maps job types to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	strict   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register binds handler to typ. The last registration wins unless the
// registry is strict.
func (r *Registry) Register(typ string, handler Handler) error {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return errors.New("workers: job type is required")
	}
	if handler == nil {
		return fmt.Errorf("workers: handler for %q is nil", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists && r.strict {
		return fmt.Errorf("%w: %s", ErrHandlerExists, typ)
	}
	r.handlers[typ] = handler
	return nil
}

// RegisterFunc is a convenience wrapper around Register.
func (r *Registry) RegisterFunc(typ string, fn HandlerFunc) error {
	if fn == nil {
		return r.Register(typ, nil)
	}
	return r.Register(typ, fn)
}

// Unregister removes the handler for typ, if any.
func (r *Registry) Unregister(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, strings.TrimSpace(typ))
}

// Lookup returns the handler for typ or an UnregisteredTypeError.
func (r *Registry) Lookup(typ string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.TrimSpace(typ)]
	if !ok {
		return nil, &domain.UnregisteredTypeError{Type: typ}
	}
	return h, nil
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for typ := range r.handlers {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}
