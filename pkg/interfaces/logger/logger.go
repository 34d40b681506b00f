package logger

import "context"

// Logger is the minimal contract expected by go-jobqueue components.
// The shape matches go-logger so hosts can pass their own implementation.
// Arguments after msg are key/value pairs.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that can carry structured fields.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}

// With attaches fields when the logger supports it and returns it unchanged otherwise.
func With(l Logger, fields map[string]any) Logger {
	if l == nil {
		return &Nop{}
	}
	if fl, ok := l.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return l
}

// Nop is a no-op logger implementation useful for tests.
type Nop struct{}

// Ensure Nop satisfies Logger.
var _ Logger = (*Nop)(nil)

func (n *Nop) Trace(msg string, args ...any)          {}
func (n *Nop) Debug(msg string, args ...any)          {}
func (n *Nop) Info(msg string, args ...any)           {}
func (n *Nop) Warn(msg string, args ...any)           {}
func (n *Nop) Error(msg string, args ...any)          {}
func (n *Nop) Fatal(msg string, args ...any)          {}
func (n *Nop) WithContext(ctx context.Context) Logger { return n }
