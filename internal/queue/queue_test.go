package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/medportal/internal/document"
)

type blockingRunner struct {
	release chan struct{}
	running atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	done    []string
}

func (r *blockingRunner) Run(ctx context.Context, job document.Job) error {
	n := r.running.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-r.release
	r.running.Add(-1)

	r.mu.Lock()
	r.done = append(r.done, job.DocumentID)
	r.mu.Unlock()
	return nil
}

func TestInlineQueueBoundsConcurrency(t *testing.T) {
	r := &blockingRunner{release: make(chan struct{})}
	q := NewInlineQueue(r, 2, time.Second)

	// The request context is already cancelled; jobs must not inherit it.
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := q.EnqueueProcess(reqCtx, document.Job{DocumentID: id, AccountNumber: "acc"}); err != nil {
			t.Fatal(err)
		}
	}
	close(r.release)

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(r.done) != 5 {
		t.Errorf("ran %d jobs, want 5", len(r.done))
	}
	if p := r.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}

	if err := q.EnqueueProcess(context.Background(), document.Job{DocumentID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("enqueue after shutdown err = %v", err)
	}
}

func TestParseDocumentProcessTask(t *testing.T) {
	job := document.Job{DocumentID: "d1", AccountNumber: "12-34"}
	task, err := NewDocumentProcessTask(job)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeDocumentProcess {
		t.Errorf("type = %q", task.Type())
	}
	got, err := ParseDocumentProcessTask(task)
	if err != nil || got != job {
		t.Errorf("parsed = %+v, %v", got, err)
	}

	for _, payload := range []string{"{", `{"document_id":"d1"}`} {
		_, err := ParseDocumentProcessTask(asynq.NewTask(TypeDocumentProcess, []byte(payload)))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Errorf("payload %q: err = %v, want SkipRetry", payload, err)
		}
	}
}

func TestServeMuxRoutesDocumentTasks(t *testing.T) {
	var got []string
	mux := NewServeMux(asynq.HandlerFunc(func(_ context.Context, t *asynq.Task) error {
		job, err := ParseDocumentProcessTask(t)
		if err != nil {
			return err
		}
		got = append(got, job.DocumentID)
		return nil
	}))

	task, err := NewDocumentProcessTask(document.Job{DocumentID: "doc-1", AccountNumber: "12-34-56-7890-12-3456"})
	if err != nil {
		t.Fatal(err)
	}
	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(got) != 1 || got[0] != "doc-1" {
		t.Errorf("handled = %v", got)
	}

	if err := mux.ProcessTask(context.Background(), asynq.NewTask("email:send", nil)); err == nil {
		t.Error("expected an error for an unrouted task type")
	}
}
