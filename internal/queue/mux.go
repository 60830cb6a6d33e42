package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// NewServeMux routes document:process tasks to process. Every task run is
// logged with its duration and retry count.
func NewServeMux(process asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(logTasks)
	mux.Handle(TypeDocumentProcess, process)
	return mux
}

func logTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)

		id, _ := asynq.GetTaskID(ctx)
		retry, _ := asynq.GetRetryCount(ctx)
		attrs := []any{
			"type", t.Type(),
			"task_id", id,
			"retry", retry,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			slog.Warn("task returned error", append(attrs, "error", err)...)
			return err
		}
		slog.Info("task done", attrs...)
		return nil
	})
}
