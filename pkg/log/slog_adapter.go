package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter for logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event as one structured record.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.TimerID != "" {
		attrs = append(attrs, slog.String("timer_id", event.TimerID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Command != nil:
		attrs = append(attrs, slog.String("action", event.Command.Action))
		if event.Command.Value != "" {
			attrs = append(attrs, slog.String("value", event.Command.Value))
		}
		if event.Command.Result != "" {
			attrs = append(attrs, slog.String("result", event.Command.Result))
		}
		if event.Command.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *event.Command.ProcessingTime))
		}
	case event.Snapshot != nil:
		attrs = append(attrs,
			slog.String("timer_state", event.Snapshot.Remaining),
			slog.String("timer_status", event.Snapshot.Status),
			slog.String("trigger", event.Snapshot.Trigger.String()),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "timer event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
