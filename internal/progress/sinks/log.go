// Package sinks provides the built-in progress sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/progress"
)

// Log writes a structured line per batch and one per terminal job event.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a logging sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Consume summarizes the batch and logs job lifecycle events individually.
func (l *Log) Consume(_ context.Context, batch []Event) error {
	var pages, records, inserted, updated, dropped int64
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStart:
			l.logger.Info("job started", zap.String("job_id", evt.JobID.String()))
		case progress.StageJobDone:
			l.logger.Info("job finished",
				zap.String("job_id", evt.JobID.String()),
				zap.Duration("elapsed", evt.Dur))
		case progress.StageJobError:
			l.logger.Error("job failed",
				zap.String("job_id", evt.JobID.String()),
				zap.String("reason", evt.Note))
		case progress.StagePageFetched:
			pages++
		case progress.StagePageParsed:
			records += evt.Records
			dropped += evt.Dropped
		case progress.StageBatchLoaded:
			inserted += evt.Inserted
			updated += evt.Updated
			dropped += evt.Dropped
		}
	}
	if pages > 0 || records > 0 || inserted > 0 || updated > 0 {
		l.logger.Info("pipeline progress",
			zap.Int64("pages_fetched", pages),
			zap.Int64("records_parsed", records),
			zap.Int64("rows_inserted", inserted),
			zap.Int64("rows_updated", updated),
			zap.Int64("rows_dropped", dropped),
		)
	}
	return nil
}

// Close is a no-op; the logger is owned by the caller.
func (l *Log) Close(context.Context) error { return nil }

// Event aliases the progress event type so sink call sites read naturally.
type Event = progress.Event
