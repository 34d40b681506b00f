package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/config"
	"github.com/goliatone/go-jobqueue/pkg/domain"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
	"github.com/goliatone/go-jobqueue/pkg/retry"
	"github.com/goliatone/go-jobqueue/pkg/workers"
)

// ErrBlacklisted marks a delivery refused because the recipient is blacklisted.
var ErrBlacklisted = errors.New("push: phone number is blacklisted")

// Handler delivers push notification jobs through a routed messenger.
type Handler struct {
	messengers *adapters.Registry
	logger     logger.Logger
	channel    string
	blacklist  map[string]struct{}
	attempts   int
	backoff    retry.Backoff
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l logger.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithChannel sets the route used to pick a messenger, e.g. "sms" or "sms:twilio".
func WithChannel(channel string) HandlerOption {
	return func(h *Handler) {
		if strings.TrimSpace(channel) != "" {
			h.channel = strings.TrimSpace(channel)
		}
	}
}

// WithBlacklist rejects deliveries to the given phone numbers.
func WithBlacklist(numbers ...string) HandlerOption {
	return func(h *Handler) {
		for _, n := range numbers {
			if n = strings.TrimSpace(n); n != "" {
				h.blacklist[n] = struct{}{}
			}
		}
	}
}

// WithRetry sets how many send attempts are made and the delay between them.
func WithRetry(attempts int, backoff retry.Backoff) HandlerOption {
	return func(h *Handler) {
		if attempts > 0 {
			h.attempts = attempts
		}
		if backoff != nil {
			h.backoff = backoff
		}
	}
}

// FromConfig applies the delivery knobs of cfg.
func FromConfig(cfg config.PushConfig) HandlerOption {
	return func(h *Handler) {
		WithChannel(cfg.Channel)(h)
		WithBlacklist(cfg.Blacklist...)(h)
		WithRetry(cfg.MaxAttempts, retry.ExponentialBackoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax})(h)
	}
}

// NewHandler builds the delivery handler.
func NewHandler(messengers *adapters.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		messengers: messengers,
		logger:     &logger.Nop{},
		channel:    "sms",
		blacklist:  make(map[string]struct{}),
		attempts:   1,
		backoff:    retry.DefaultBackoff(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Deliver sends n for job, reporting 0, 50 and 100 percent along the way.
func (h *Handler) Deliver(ctx context.Context, job domain.Job, n Notification, progress workers.Progress) error {
	if progress == nil {
		progress = func(int) {}
	}
	progress(0)

	phone := strings.TrimSpace(n.PhoneNumber)
	h.logger.Info("sending notification",
		"job_id", job.ID,
		"type", job.Type,
		"phone_number", adapters.MaskRecipient(phone),
	)
	if _, blocked := h.blacklist[phone]; blocked {
		return fmt.Errorf("%w: %s", ErrBlacklisted, adapters.MaskRecipient(phone))
	}
	progress(50)

	messenger, err := h.messengers.Route(h.channel)
	if err != nil {
		return err
	}
	channel, _ := adapters.ParseChannel(h.channel)
	msg := adapters.Message{
		ID:       fmt.Sprintf("%s:%d", job.Queue, job.ID),
		Channel:  channel,
		Provider: messenger.Name(),
		To:       phone,
		Body:     n.Message,
		Metadata: map[string]any{"job_type": job.Type},
	}

	err = retry.Do(ctx, h.attempts, h.backoff, func(attempt int) error {
		msg.Attempts = attempt
		sendErr := messenger.Send(ctx, msg)
		if sendErr != nil {
			h.logger.Warn("notification send attempt failed",
				"job_id", job.ID,
				"adapter", messenger.Name(),
				"attempt", attempt,
				"error", sendErr,
			)
		}
		return sendErr
	})
	if err != nil {
		return err
	}

	progress(100)
	return nil
}

// Register binds h to the push job type of the given revision.
func Register(reg *workers.Registry, h *Handler, revision int) error {
	if h == nil {
		return fmt.Errorf("push: handler is required")
	}
	return workers.RegisterDefinition(reg, workers.Definition[Notification]{
		Type:    TypeForRevision(revision),
		Handler: h.Deliver,
	})
}
