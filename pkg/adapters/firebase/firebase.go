package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
)

// Adapter delivers push notifications via Firebase Cloud Messaging (legacy HTTP API).
// Targets are device tokens (msg.To or metadata["token"]), topics, or conditions.
type Adapter struct {
	name   string
	base   adapters.BaseAdapter
	caps   adapters.Capability
	cfg    Config
	client *http.Client
}

// Config holds FCM settings.
type Config struct {
	ServerKey string
	Endpoint  string
	Title     string
	Timeout   time.Duration
	DryRun    bool
}

type Option func(*Adapter)

// WithName overrides the adapter name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(name) != "" {
			a.name = name
		}
	}
}

// WithConfig sets FCM configuration. Zero values keep the defaults.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		if cfg.Endpoint == "" {
			cfg.Endpoint = a.cfg.Endpoint
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = a.cfg.Timeout
		}
		a.cfg = cfg
	}
}

// WithClient injects a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// New constructs the Firebase adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "firebase",
		base: adapters.NewBaseAdapter(l),
		caps: adapters.Capability{
			Name:     "firebase",
			Channels: []string{"push"},
			Formats:  []string{"text/plain"},
		},
		cfg: Config{
			Endpoint: "https://fcm.googleapis.com/fcm/send",
			Timeout:  10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.client == nil {
		adapter.client = &http.Client{Timeout: adapter.cfg.Timeout}
	}
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability { return a.caps }

type notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

type payload struct {
	To           string         `json:"to,omitempty"`
	Condition    string         `json:"condition,omitempty"`
	Priority     string         `json:"priority"`
	Notification notification   `json:"notification"`
	Data         map[string]any `json:"data,omitempty"`
}

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	if a.cfg.DryRun {
		a.base.Logger().Info("[firebase:dry-run] send skipped", "to", adapters.MaskRecipient(msg.To))
		return nil
	}
	if strings.TrimSpace(a.cfg.ServerKey) == "" {
		return fmt.Errorf("firebase: server key required")
	}

	body := payload{
		Priority: "high",
		Notification: notification{
			Title: firstNonEmpty(adapters.MetaString(msg.Metadata, "title"), a.cfg.Title),
			Body:  msg.Body,
		},
	}
	if data, ok := msg.Metadata["data"].(map[string]any); ok && len(data) > 0 {
		body.Data = data
	}

	target := firstNonEmpty(adapters.MetaString(msg.Metadata, "token"), msg.To)
	topic := adapters.MetaString(msg.Metadata, "topic")
	condition := adapters.MetaString(msg.Metadata, "condition")
	switch {
	case topic != "":
		body.To = "/topics/" + strings.TrimPrefix(topic, "/topics/")
	case condition != "":
		body.Condition = condition
	case target != "":
		body.To = target
	default:
		return fmt.Errorf("firebase: a target is required (token, topic, or condition)")
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("firebase: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("firebase: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+strings.TrimSpace(a.cfg.ServerKey))

	resp, err := a.client.Do(req)
	if err != nil {
		a.base.LogFailure(a.name, msg, err)
		return fmt.Errorf("firebase: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("firebase: unexpected status %d", resp.StatusCode)
		a.base.LogFailure(a.name, msg, err)
		return err
	}

	a.base.LogSuccess(a.name, msg)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
