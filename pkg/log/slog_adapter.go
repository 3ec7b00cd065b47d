package log

import (
	"context"
	"log/slog"
)

// SlogAdapter prints protocol events as debug records of an slog.Logger.
// thingctl installs it when the log level is debug.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs,
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	attrs = appendNonEmpty(attrs, "thing_id", event.ThingID)
	attrs = appendNonEmpty(attrs, "remote_thing_id", event.RemoteThingID)

	if op := event.Operation; op != nil {
		attrs = append(attrs, slog.String("op", op.Op.String()), slog.Int("size", op.Size))
		attrs = appendNonEmpty(attrs, "key", op.Key)
		if op.NotFound {
			attrs = append(attrs, slog.Bool("not_found", true))
		}
		if op.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", op.Duration))
		}
	}
	if n := event.Notification; n != nil {
		attrs = append(attrs,
			slog.String("kind", n.Kind.String()),
			slog.String("name", n.Name),
			slog.String("payload", n.Payload))
		if n.EventTimestamp != 0 {
			attrs = append(attrs, slog.Uint64("event_ts", n.EventTimestamp))
		}
	}
	if sc := event.StateChange; sc != nil {
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState))
		attrs = appendNonEmpty(attrs, "id", sc.ID)
		attrs = appendNonEmpty(attrs, "reason", sc.Reason)
	}
	if e := event.Error; e != nil {
		attrs = append(attrs,
			slog.String("error_layer", e.Layer.String()),
			slog.String("error_msg", e.Message))
		attrs = appendNonEmpty(attrs, "error_context", e.Context)
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "protocol", attrs...)
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}
