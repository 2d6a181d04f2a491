package activitymap

import (
	"context"
	"log/slog"

	auth "github.com/goliatone/go-folio-auth"
)

// Sink returns an auth.ActivitySink that normalizes each event and hands it to write.
func Sink(write func(ctx context.Context, record Normalized) error, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		if write == nil {
			return nil
		}
		return write(ctx, Normalize(event, opts...))
	})
}

// LogSink writes normalized events as structured log records. Failures are
// logged at warn level.
func LogSink(logger *slog.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = slog.Default()
	}
	return Sink(func(ctx context.Context, record Normalized) error {
		level := slog.LevelInfo
		if record.Outcome() == OutcomeFailure {
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "activity",
			slog.String("verb", record.Verb),
			slog.String("actor_id", record.ActorID),
			slog.String("object_type", record.ObjectType),
			slog.String("object_id", record.ObjectID),
			slog.String("channel", record.Channel),
			slog.Any("metadata", record.Metadata),
			slog.Time("occurred_at", record.OccurredAt),
		)
		return nil
	}, opts...)
}
