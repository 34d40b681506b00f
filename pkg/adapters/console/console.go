package console

import (
	"context"
	"fmt"

	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
)

// Adapter writes notifications to the configured logger for local runs and tests.
type Adapter struct {
	name string
	base adapters.BaseAdapter
	caps adapters.Capability
	opts Options
}

type Option func(*Adapter)

// Options tweak console output.
type Options struct {
	Structured bool // emit key/value pairs instead of a formatted line
	ShowTo     bool // print the unmasked destination
}

// WithName overrides the adapter provider name (defaults to "console").
func WithName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithStructured enables structured logging mode.
func WithStructured(enabled bool) Option {
	return func(a *Adapter) {
		a.opts.Structured = enabled
	}
}

// WithChannels replaces the logical channels the adapter answers for.
func WithChannels(channels ...string) Option {
	return func(a *Adapter) {
		if len(channels) > 0 {
			a.caps.Channels = channels
		}
	}
}

// WithUnmaskedRecipient prints destinations in clear text.
func WithUnmaskedRecipient(enabled bool) Option {
	return func(a *Adapter) {
		a.opts.ShowTo = enabled
	}
}

// New constructs a console adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "console",
		caps: adapters.Capability{
			Name:     "console",
			Channels: []string{"sms", "push"},
			Formats:  []string{"text/plain"},
		},
	}
	adapter.base = adapters.NewBaseAdapter(l)
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	adapter.caps.Name = adapter.name
	return adapter
}

// Name implements adapters.Messenger.
func (a *Adapter) Name() string {
	return a.name
}

// Capabilities implements adapters.Messenger.
func (a *Adapter) Capabilities() adapters.Capability {
	return a.caps
}

// Send logs the message to the configured logger.
func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := adapters.MaskRecipient(msg.To)
	if a.opts.ShowTo {
		to = msg.To
	}

	if a.opts.Structured {
		a.base.Logger().Info("console delivery",
			"channel", msg.Channel,
			"to", to,
			"body", msg.Body,
			"metadata", msg.Metadata,
		)
		return nil
	}

	a.base.Logger().Info(fmt.Sprintf("[console][%s] to=%s body=%s", msg.Channel, to, msg.Body))
	return nil
}
