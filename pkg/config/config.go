package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
)

// Config captures module-level configuration knobs. Feature packages (queue,
// dispatcher, push, storage) pull from these nested structs.
type Config struct {
	Queue      QueueConfig      `mapstructure:"queue" json:"queue"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" json:"dispatcher"`
	Registry   RegistryConfig   `mapstructure:"registry" json:"registry"`
	Push       PushConfig       `mapstructure:"push" json:"push"`
	Storage    StorageConfig    `mapstructure:"storage" json:"storage"`
}

// QueueConfig names the queue and bounds terminal job retention.
type QueueConfig struct {
	Name      string `mapstructure:"name" json:"name"`
	Retention int    `mapstructure:"retention" json:"retention"`
}

// DispatcherConfig sizes the worker pool draining the queue. Disabled keeps
// jobs pending so hosts can drain them with ProcessOne.
type DispatcherConfig struct {
	Disabled   bool `mapstructure:"disabled" json:"disabled"`
	MaxWorkers int  `mapstructure:"max_workers" json:"max_workers"`
}

// RegistryConfig selects the duplicate registration policy.
type RegistryConfig struct {
	Strict bool `mapstructure:"strict" json:"strict"`
}

// PushConfig controls push notification jobs and their delivery.
type PushConfig struct {
	TemplateRevision int           `mapstructure:"template_revision" json:"template_revision"`
	Channel          string        `mapstructure:"channel" json:"channel"`
	MaxAttempts      int           `mapstructure:"max_attempts" json:"max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base" json:"backoff_base"`
	BackoffMax       time.Duration `mapstructure:"backoff_max" json:"backoff_max"`
	Blacklist        []string      `mapstructure:"blacklist" json:"blacklist"`
}

// StorageConfig selects the job journal backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" json:"dsn"`
}

const (
	StorageDriverMemory = "memory"
	StorageDriverSQLite = "sqlite"
)

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Queue: QueueConfig{
			Name:      "push_notifications",
			Retention: 1000,
		},
		Dispatcher: DispatcherConfig{
			MaxWorkers: 1,
		},
		Push: PushConfig{
			TemplateRevision: 3,
			Channel:          "sms",
			MaxAttempts:      1,
			BackoffBase:      100 * time.Millisecond,
			BackoffMax:       5 * time.Second,
		},
		Storage: StorageConfig{
			Driver: StorageDriverMemory,
		},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Queue.Name) == "" {
		return errors.New("queue.name is required")
	}
	if c.Queue.Retention < 0 {
		return fmt.Errorf("queue.retention must be >= 0")
	}
	if c.Dispatcher.MaxWorkers <= 0 {
		return fmt.Errorf("dispatcher.max_workers must be > 0")
	}
	if c.Push.TemplateRevision <= 0 {
		return fmt.Errorf("push.template_revision must be > 0")
	}
	if strings.TrimSpace(c.Push.Channel) == "" {
		return errors.New("push.channel is required")
	}
	if c.Push.MaxAttempts <= 0 {
		return fmt.Errorf("push.max_attempts must be > 0")
	}
	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverSQLite:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage.dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// While cfgx.Build still returns zero values, we fallback to a lightweight
// decoder so map and struct inputs keep working.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.Queue.Name == "" {
		c.Queue.Name = defaults.Queue.Name
	}
	if c.Queue.Retention == 0 {
		c.Queue.Retention = defaults.Queue.Retention
	}
	if c.Dispatcher.MaxWorkers == 0 {
		c.Dispatcher.MaxWorkers = defaults.Dispatcher.MaxWorkers
	}
	if c.Push.TemplateRevision == 0 {
		c.Push.TemplateRevision = defaults.Push.TemplateRevision
	}
	if c.Push.Channel == "" {
		c.Push.Channel = defaults.Push.Channel
	}
	if c.Push.MaxAttempts == 0 {
		c.Push.MaxAttempts = defaults.Push.MaxAttempts
	}
	if c.Push.BackoffBase == 0 {
		c.Push.BackoffBase = defaults.Push.BackoffBase
	}
	if c.Push.BackoffMax == 0 {
		c.Push.BackoffMax = defaults.Push.BackoffMax
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
