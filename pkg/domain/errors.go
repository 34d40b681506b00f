package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a batch argument is not a sequence.
	// The message is part of the producer contract.
	ErrTypeMismatch = errors.New("Jobs is not an array")
	// ErrInvalidJobSpec marks a spec missing fields required by its type.
	ErrInvalidJobSpec = errors.New("jobs: invalid job spec")
	// ErrUnregisteredType marks a job whose type has no handler.
	ErrUnregisteredType = errors.New("jobs: unregistered job type")
	// ErrHandlerFailed marks a job whose handler returned an error or panicked.
	ErrHandlerFailed = errors.New("jobs: handler failed")
)

// InvalidJobSpecError describes a single rejected spec.
type InvalidJobSpecError struct {
	Index int
	Type  string
	Field string
	Cause error
}

func (e *InvalidJobSpecError) Error() string {
	msg := fmt.Sprintf("jobs: invalid job spec for type %q", e.Type)
	if e.Index >= 0 {
		msg = fmt.Sprintf("jobs: invalid job spec at index %d for type %q", e.Index, e.Type)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": missing field %q", e.Field)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidJobSpecError) Is(target error) bool { return target == ErrInvalidJobSpec }

func (e *InvalidJobSpecError) Unwrap() error { return e.Cause }

// UnregisteredTypeError is recorded on jobs the dispatcher could not route.
type UnregisteredTypeError struct {
	Type string
}

func (e *UnregisteredTypeError) Error() string {
	return fmt.Sprintf("jobs: no handler registered for type %q", e.Type)
}

func (e *UnregisteredTypeError) Is(target error) bool { return target == ErrUnregisteredType }

// HandlerError wraps the failure a handler reported for a job.
type HandlerError struct {
	JobID int64
	Type  string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("jobs: handler for %q failed on job %d: %v", e.Type, e.JobID, e.Err)
}

func (e *HandlerError) Is(target error) bool { return target == ErrHandlerFailed }

func (e *HandlerError) Unwrap() error { return e.Err }
