package observability

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// SlogObserver writes events to a slog.Logger. The event type becomes the
// message, followed by the source and the data keys in sorted order.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that writes to logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.SlogLevel()
	if !o.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("source", event.Source))
	for _, k := range slices.Sorted(maps.Keys(event.Data)) {
		attrs = append(attrs, attr(k, event.Data[k]))
	}
	o.logger.LogAttrs(ctx, level, string(event.Type), attrs...)
}

// attr joins name lists, such as removed states, into one value.
func attr(key string, v any) slog.Attr {
	if names, ok := v.([]string); ok {
		return slog.String(key, strings.Join(names, ","))
	}
	return slog.Any(key, v)
}
