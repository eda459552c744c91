package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/progress"
)

// LogSink emits structured logs for the progress stream. It is the default
// sink and doubles as a debugging aid when no metrics backend is wired.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("sub_tag", evt.SubTag),
			zap.String("url", evt.URL),
			zap.Int64("bytes", evt.Bytes),
			zap.String("reason", evt.Reason),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
