package adapters

import "github.com/goliatone/go-jobqueue/pkg/interfaces/logger"

// BaseAdapter provides shared helpers for simple adapters.
type BaseAdapter struct {
	logger logger.Logger
}

func NewBaseAdapter(l logger.Logger) BaseAdapter {
	if l == nil {
		l = &logger.Nop{}
	}
	return BaseAdapter{logger: l}
}

func (b BaseAdapter) LogSuccess(name string, msg Message) {
	b.Logger().Info("adapter delivered message",
		"adapter", name,
		"channel", msg.Channel,
		"to", MaskRecipient(msg.To),
		"attempt", msg.Attempts,
	)
}

func (b BaseAdapter) LogFailure(name string, msg Message, err error) {
	b.Logger().Error("adapter delivery failed",
		"adapter", name,
		"channel", msg.Channel,
		"to", MaskRecipient(msg.To),
		"attempt", msg.Attempts,
		"error", err,
	)
}

// Logger exposes the adapter logger for structured diagnostics.
func (b BaseAdapter) Logger() logger.Logger {
	if b.logger == nil {
		return &logger.Nop{}
	}
	return b.logger
}
