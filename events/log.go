package events

import (
	"context"
	"log/slog"
	"sort"
)

// LogBus writes each event as one structured log record.
type LogBus struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogBus(logger *slog.Logger, level slog.Level) *LogBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBus{logger: logger, level: level}
}

func (b *LogBus) Publish(ctx context.Context, name string, payload map[string]any) error {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("event", name))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, payload[k]))
	}
	b.logger.LogAttrs(ctx, b.level, "security event", attrs...)
	return nil
}
