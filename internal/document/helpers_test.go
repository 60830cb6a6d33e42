package document

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/llm"
	"github.com/nikhilbhutani/medportal/internal/models"
	"github.com/nikhilbhutani/medportal/internal/storage"
)

const testAccount = "12-34-56-7890-12-3456"

// countingStore wraps a real blob store and counts calls.
type countingStore struct {
	storage.BlobStore
	mu      sync.Mutex
	puts    int
	gets    int
	deletes int
	failPut bool
}

func (c *countingStore) Put(ctx context.Context, name string, data []byte, ct string) (string, error) {
	c.mu.Lock()
	c.puts++
	fail := c.failPut
	c.mu.Unlock()
	if fail {
		return "", errors.New("disk full")
	}
	return c.BlobStore.Put(ctx, name, data, ct)
}

func (c *countingStore) Get(ctx context.Context, url string) ([]byte, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.BlobStore.Get(ctx, url)
}

func (c *countingStore) Delete(ctx context.Context, url string) error {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.BlobStore.Delete(ctx, url)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (q *recordingQueue) EnqueueProcess(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// chainFunc adapts a function to llm.Processor.
type chainFunc func(ctx context.Context, subject llm.Subject, src llm.Source) llm.AggregateResult

func (f chainFunc) Process(ctx context.Context, subject llm.Subject, src llm.Source) llm.AggregateResult {
	return f(ctx, subject, src)
}

func succeedWith(text string) chainFunc {
	return func(context.Context, llm.Subject, llm.Source) llm.AggregateResult {
		return llm.AggregateResult{
			Outcome:   llm.Success{ModelID: "paid-model", Text: text, TokensUsed: 1500, CostEstimate: 0.0045, ElapsedMs: 900},
			Attempts:  2,
			ElapsedMs: 1234,
			Winner:    llm.ModelConfig{ID: "paid-model", DisplayName: "Paid Model", Provider: "openrouter", Tier: "premium", CostPerKToken: 0.003},
		}
	}
}

type fixture struct {
	repo  *account.FileRepository
	blobs *countingStore
	queue *recordingQueue
	svc   *Service
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	repo, err := account.NewFileRepository(filepath.Join(dir, "accounts.json"))
	if err != nil {
		t.Fatal(err)
	}
	local, err := storage.NewLocalStore(filepath.Join(dir, "blobs"), "http://portal.test")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(context.Background(), testAccount, &models.Account{CombinedHash: "h"}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		repo:  repo,
		blobs: &countingStore{BlobStore: local},
		queue: &recordingQueue{},
		clock: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
	f.svc = NewService(repo, f.blobs, f.queue, Options{MaxUploadBytes: 4 << 20, StaleAfter: 15 * time.Minute})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) processor(chain llm.Processor) *Processor {
	p := NewProcessor(f.repo, f.blobs, chain, false)
	p.now = func() time.Time { return f.clock }
	return p
}

func (f *fixture) document(t *testing.T, id string) *models.Document {
	t.Helper()
	acc, err := f.repo.Get(context.Background(), testAccount)
	if err != nil {
		t.Fatal(err)
	}
	d, _ := acc.FindDocument(id)
	return d
}

func (f *fixture) upload(t *testing.T, name string, data string) *models.Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), testAccount, UploadRequest{
		FileName:   name,
		FileSize:   int64(len(data)),
		FileType:   "image/png",
		DataBase64: b64(data),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return doc
}
