package push

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	iqueue "github.com/goliatone/go-jobqueue/pkg/interfaces/queue"
)

// ErrMissingQueue is returned when CreateJobs has nowhere to enqueue.
var ErrMissingQueue = errors.New("push: queue is required")

// Option configures CreateJobs.
type Option func(*createOptions)

type createOptions struct {
	revision int
	logger   logger.Logger
}

// WithRevision overrides the template revision used in the job type.
func WithRevision(revision int) Option {
	return func(o *createOptions) {
		if revision > 0 {
			o.revision = revision
		}
	}
}

// WithLogger sets the logger used to report created jobs.
func WithLogger(l logger.Logger) Option {
	return func(o *createOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// CreateJobs enqueues one push notification job per record in input, in
// order, and returns the created jobs. input must be a slice or array;
// anything else fails with domain.ErrTypeMismatch and enqueues nothing.
// Records missing phoneNumber or message are skipped and reported through
// the returned error as *domain.InvalidJobSpecError values.
func CreateJobs(ctx context.Context, input any, q iqueue.Enqueuer, opts ...Option) ([]domain.Job, error) {
	o := createOptions{revision: DefaultRevision, logger: &logger.Nop{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	items, err := sequence(input)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrMissingQueue
	}

	schema := Schema(o.revision)
	jobs := make([]domain.Job, 0, len(items))
	var errs []error

	for i, item := range items {
		n, err := decodeNotification(item)
		if err != nil {
			errs = append(errs, &domain.InvalidJobSpecError{Index: i, Type: schema.Type, Cause: err})
			continue
		}
		spec := domain.JobSpec{Type: schema.Type, Payload: n.Payload()}
		if err := schema.Validate(spec); err != nil {
			errs = append(errs, withIndex(err, i))
			continue
		}

		job, err := q.Enqueue(ctx, spec)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidJobSpec) {
				errs = append(errs, withIndex(err, i))
				continue
			}
			errs = append(errs, fmt.Errorf("push: enqueue record %d: %w", i, err))
			return jobs, errors.Join(errs...)
		}

		o.logger.Info("notification job created",
			"job_id", job.ID,
			"type", job.Type,
			"phone_number", adapters.MaskRecipient(n.PhoneNumber),
		)
		jobs = append(jobs, job)
	}
	return jobs, errors.Join(errs...)
}

func sequence(input any) ([]any, error) {
	if input == nil {
		return nil, domain.ErrTypeMismatch
	}
	if items, ok := input.([]any); ok {
		return items, nil
	}
	v := reflect.ValueOf(input)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return nil, domain.ErrTypeMismatch
	}
	// raw byte buffers are text, not record lists
	if v.Type().Elem().Kind() == reflect.Uint8 {
		return nil, domain.ErrTypeMismatch
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, nil
}

func decodeNotification(item any) (Notification, error) {
	switch v := item.(type) {
	case Notification:
		return v, nil
	case *Notification:
		if v == nil {
			return Notification{}, errors.New("record is nil")
		}
		return *v, nil
	case nil:
		return Notification{}, errors.New("record is nil")
	}

	var out Notification
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(item); err != nil {
		return out, err
	}
	return out, nil
}

func withIndex(err error, index int) error {
	var invalid *domain.InvalidJobSpecError
	if errors.As(err, &invalid) {
		copied := *invalid
		copied.Index = index
		return &copied
	}
	return err
}
