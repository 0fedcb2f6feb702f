package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/progress"
)

// LogSink writes progress events as structured logs. Fetch events log at
// debug level; run and batch milestones at info.
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

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageFetchDone:
			fields = append(fields,
				zap.Int("batch", evt.Batch),
				zap.String("site", evt.Site),
				zap.String("url", evt.URL),
				zap.String("outcome", string(evt.Outcome)),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Bool("relevant", evt.Relevant),
				zap.Int64("bytes", evt.Bytes),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Debug("progress event", fields...)
			continue
		case progress.StageBatchDone:
			fields = append(fields, zap.Int("batch", evt.Batch), zap.Int("requests", evt.Requests))
		}
		fields = append(fields, zap.Duration("dur", evt.Dur))
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
