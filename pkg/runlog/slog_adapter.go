package runlog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events through an slog.Logger, used for both
// log.txt (text handler) and log.json (JSON handler) per run.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger as a runlog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes event at Info level with category-specific attributes.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}
	if event.Device != "" {
		attrs = append(attrs, slog.String("device", event.Device))
	}
	switch {
	case event.CommandDispatched != nil:
		attrs = append(attrs, slog.String("bytestring", string(event.CommandDispatched.Bytestring)))
	case event.CommandReply != nil:
		attrs = append(attrs, slog.String("line", event.CommandReply.Line))
	case event.DeviceState != nil:
		attrs = append(attrs,
			slog.String("from", event.DeviceState.From),
			slog.String("to", event.DeviceState.To),
		)
	case event.Observable != nil:
		attrs = append(attrs,
			slog.String("producer", event.Observable.Producer),
			slog.String("key", event.Observable.Key),
			slog.String("value", event.Observable.Value),
		)
	case event.Experiment != nil:
		attrs = append(attrs, slog.String("phase", event.Experiment.Phase.String()))
		if event.Experiment.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Experiment.Reason))
		}
	}
	a.logger.LogAttrs(context.Background(), slog.LevelInfo, "run", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
