package workers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/medportal/internal/queue"
)

// DocumentWorker handles document:process tasks from Redis.
type DocumentWorker struct {
	runner queue.Runner
}

func NewDocumentWorker(runner queue.Runner) *DocumentWorker {
	return &DocumentWorker{runner: runner}
}

func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	job, err := queue.ParseDocumentProcessTask(t)
	if err != nil {
		return err
	}

	slog.Info("processing document", "document_id", job.DocumentID)
	return w.runner.Run(ctx, job)
}
