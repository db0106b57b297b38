// Package jobctx carries a job-scoped logger through the processing of a task
package jobctx

import (
	"context"

	"github.com/wb-go/wbf/helpers"
	"github.com/wb-go/wbf/zlog"
)

type jobLogger struct{}

// WithJob returns a context whose logger tags every record with the job UID and a fresh delivery id,
// so redeliveries of the same job can be told apart.
func WithJob(ctx context.Context, jobID string) context.Context {
	logger := zlog.Logger.With().
		Str("delivery_id", helpers.CreateUUID()).
		Str("job_id", jobID).
		Logger()

	return context.WithValue(ctx, jobLogger{}, logger)
}

// WithSource adds the source object key to the context logger.
func WithSource(ctx context.Context, sourceKey string) context.Context {
	logger := LoggerFromContext(ctx).With().
		Str("source_key", sourceKey).
		Logger()

	return context.WithValue(ctx, jobLogger{}, logger)
}

// LoggerFromContext extracts logger from context - used in service and worker layers
func LoggerFromContext(ctx context.Context) zlog.Zerolog {
	if l, ok := ctx.Value(jobLogger{}).(zlog.Zerolog); ok {
		return l
	}
	return zlog.Logger
}
