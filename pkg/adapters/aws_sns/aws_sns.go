package aws_sns

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goliatone/go-jobqueue/pkg/adapters"
	"github.com/goliatone/go-jobqueue/pkg/interfaces/logger"
)

const (
	smsTypeAttribute  = "AWS.SNS.SMS.SMSType"
	senderIDAttribute = "AWS.SNS.SMS.SenderID"
)

// Adapter delivers SMS directly to phone numbers, or to a topic, via Amazon SNS.
type Adapter struct {
	name   string
	base   adapters.BaseAdapter
	caps   adapters.Capability
	cfg    Config
	client SNSClient
}

// Config holds SNS settings.
type Config struct {
	Region   string
	Profile  string
	TopicARN string // optional; metadata["topic_arn"] overrides it per message
	SMSType  string // Transactional or Promotional
	SenderID string
	DryRun   bool
}

type Option func(*Adapter)

// SNSClient abstracts the SNS client for testing.
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// WithName overrides adapter name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(name) != "" {
			a.name = name
		}
	}
}

// WithConfig sets SNS configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		if cfg.Region == "" {
			cfg.Region = a.cfg.Region
		}
		if cfg.SMSType == "" {
			cfg.SMSType = a.cfg.SMSType
		}
		a.cfg = cfg
	}
}

// WithClient injects a custom SNS client.
func WithClient(c SNSClient) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// New constructs the SNS adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{
		name: "aws_sns",
		base: adapters.NewBaseAdapter(l),
		caps: adapters.Capability{
			Name:     "aws_sns",
			Channels: []string{"sms"},
			Formats:  []string{"text/plain"},
		},
		cfg: Config{
			Region:  "us-east-1",
			SMSType: "Transactional",
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability { return a.caps }

func (a *Adapter) ensureClient(ctx context.Context) error {
	if a.client != nil {
		return nil
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(a.cfg.Region),
	}
	if a.cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(a.cfg.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("aws_sns: load config: %w", err)
	}
	a.client = sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.RetryMaxAttempts = 3
	})
	return nil
}

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	if a.cfg.DryRun {
		a.base.Logger().Info("[aws_sns:dry-run] send skipped",
			"to", adapters.MaskRecipient(msg.To),
			"channel", msg.Channel,
		)
		return nil
	}
	if strings.TrimSpace(msg.Body) == "" {
		return fmt.Errorf("aws_sns: message body required")
	}

	input := &sns.PublishInput{
		Message: aws.String(msg.Body),
	}
	if topicARN := firstNonEmpty(adapters.MetaString(msg.Metadata, "topic_arn"), a.cfg.TopicARN); topicARN != "" {
		input.TopicArn = aws.String(topicARN)
	} else {
		to := strings.TrimSpace(msg.To)
		if to == "" {
			return fmt.Errorf("aws_sns: topic_arn or destination required")
		}
		input.PhoneNumber = aws.String(to)
		input.MessageAttributes = a.smsAttributes()
	}

	if err := a.ensureClient(ctx); err != nil {
		return err
	}

	out, err := a.client.Publish(ctx, input)
	if err != nil {
		a.base.LogFailure(a.name, msg, err)
		return fmt.Errorf("aws_sns: publish: %w", err)
	}
	if out != nil && out.MessageId != nil {
		a.base.Logger().Debug("aws_sns published", "message_id", aws.ToString(out.MessageId))
	}
	a.base.LogSuccess(a.name, msg)
	return nil
}

func (a *Adapter) smsAttributes() map[string]types.MessageAttributeValue {
	attrs := map[string]types.MessageAttributeValue{}
	if t := strings.TrimSpace(a.cfg.SMSType); t != "" {
		attrs[smsTypeAttribute] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(t),
		}
	}
	if id := strings.TrimSpace(a.cfg.SenderID); id != "" {
		attrs[senderIDAttribute] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(id),
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
