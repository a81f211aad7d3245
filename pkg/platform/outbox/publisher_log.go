package outbox

import (
	"context"
	"log/slog"
)

// LogPublisher writes entries to the logger. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, entry Entry) error {
	p.logger.InfoContext(ctx, "billing event",
		"event_id", entry.ID,
		"event_type", entry.EventType,
		"aggregate_type", entry.AggregateType,
		"aggregate_id", entry.AggregateID,
		"payload", string(entry.Payload),
	)
	return nil
}
