package workers

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-jobqueue/pkg/domain"
)

// Definition is a typed handler for a known job kind. T is decoded from the
// job payload using its json tags.
type Definition[T any] struct {
	Type    string
	Handler func(ctx context.Context, job domain.Job, payload T, progress Progress) error
}

// RegisterDefinition wraps a typed definition into a Handler and registers it.
func RegisterDefinition[T any](r *Registry, def Definition[T]) error {
	if def.Handler == nil {
		return fmt.Errorf("workers: definition %q has no handler", def.Type)
	}
	return r.Register(def.Type, HandlerFunc(func(ctx context.Context, job domain.Job, progress Progress) error {
		payload, err := DecodePayload[T](job.Payload)
		if err != nil {
			return fmt.Errorf("decode payload for job %q: %w", def.Type, err)
		}
		return def.Handler(ctx, job, payload, progress)
	}))
}

// DecodePayload decodes a job payload into T.
func DecodePayload[T any](payload map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(payload); err != nil {
		return out, err
	}
	return out, nil
}
