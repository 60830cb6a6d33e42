package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/medportal/internal/document"
	"github.com/nikhilbhutani/medportal/internal/queue"
)

type runnerFunc func(ctx context.Context, job document.Job) error

func (f runnerFunc) Run(ctx context.Context, job document.Job) error { return f(ctx, job) }

func TestDocumentWorkerProcessTask(t *testing.T) {
	var got document.Job
	w := NewDocumentWorker(runnerFunc(func(_ context.Context, job document.Job) error {
		got = job
		return nil
	}))

	want := document.Job{DocumentID: "d1", AccountNumber: "12-34-56-7890-12-3456"}
	task, err := queue.NewDocumentProcessTask(want)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got != want {
		t.Errorf("job = %+v", got)
	}
}

func TestDocumentWorkerPropagatesRunnerError(t *testing.T) {
	boom := errors.New("save failed")
	w := NewDocumentWorker(runnerFunc(func(context.Context, document.Job) error { return boom }))

	task, _ := queue.NewDocumentProcessTask(document.Job{DocumentID: "d1", AccountNumber: "a"})
	if err := w.ProcessTask(context.Background(), task); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeDocumentProcess, []byte("nope"))); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("bad payload err = %v", err)
	}
}
