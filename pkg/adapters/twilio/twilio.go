package twilio

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
)

// Adapter delivers SMS messages via Twilio's REST API.
type Adapter struct {
	name   string
	base   adapters.BaseAdapter
	caps   adapters.Capability
	client *http.Client
	cfg    Config
}

type Option func(*Adapter)

// Config captures Twilio credentials and messaging options.
type Config struct {
	AccountSID          string
	AuthToken           string
	From                string
	MessagingServiceSID string
	APIBaseURL          string
	Timeout             time.Duration
	SkipTLSVerify       bool
}

func WithName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithConfig sets adapter configuration. Zero values keep the defaults.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		if cfg.APIBaseURL == "" {
			cfg.APIBaseURL = a.cfg.APIBaseURL
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = a.cfg.Timeout
		}
		a.cfg = cfg
	}
}

// WithClient allows supplying a custom HTTP client.
func WithClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.client = client
		}
	}
}

func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "twilio",
		base: adapters.NewBaseAdapter(l),
		caps: adapters.Capability{
			Name:     "twilio",
			Channels: []string{"sms"},
			Formats:  []string{"text/plain"},
		},
		cfg: Config{
			APIBaseURL: "https://api.twilio.com",
			Timeout:    10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.client == nil {
		adapter.client = &http.Client{
			Timeout: adapter.cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: adapter.cfg.SkipTLSVerify},
			},
		}
	}
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability { return a.caps }

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	if strings.TrimSpace(a.cfg.AccountSID) == "" || strings.TrimSpace(a.cfg.AuthToken) == "" {
		return fmt.Errorf("twilio: account SID/Auth token required")
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("twilio: destination missing")
	}

	from := adapters.MetaString(msg.Metadata, "from")
	if from == "" {
		from = a.cfg.From
	}

	form := url.Values{}
	form.Set("To", to)
	if a.cfg.MessagingServiceSID != "" {
		form.Set("MessagingServiceSid", a.cfg.MessagingServiceSID)
	} else {
		if from == "" {
			return fmt.Errorf("twilio: from or messaging service SID required")
		}
		form.Set("From", from)
	}
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(a.cfg.APIBaseURL, "/"), a.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		a.base.LogFailure(a.name, msg, err)
		return fmt.Errorf("twilio: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("twilio: unexpected status %d", resp.StatusCode)
		a.base.LogFailure(a.name, msg, err)
		return err
	}

	a.base.LogSuccess(a.name, msg)
	return nil
}
