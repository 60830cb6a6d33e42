package llm

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedClient answers each model id from a table and counts calls.
type scriptedClient struct {
	name    string
	mu      sync.Mutex
	calls   []string
	answers map[string]func(ctx context.Context, m ModelConfig) ProcessResult
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Invoke(ctx context.Context, m ModelConfig, _ Source, _ string) ProcessResult {
	c.mu.Lock()
	c.calls = append(c.calls, m.ID)
	c.mu.Unlock()
	return c.answers[m.ID](ctx, m)
}

func fail(msg string) func(context.Context, ModelConfig) ProcessResult {
	return func(_ context.Context, m ModelConfig) ProcessResult {
		return Failure{ModelID: m.ID, Error: msg}
	}
}

func succeed(text string) func(context.Context, ModelConfig) ProcessResult {
	return func(_ context.Context, m ModelConfig) ProcessResult {
		return Success{ModelID: m.ID, Text: text, TokensUsed: 10}
	}
}

type recorderSpy struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *recorderSpy) RecordAttempt(_ context.Context, a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func testCatalog(ids ...string) *Catalog {
	var models []ModelConfig
	for _, id := range ids {
		models = append(models, ModelConfig{ID: id, Provider: "fake", TimeoutMs: 1000})
	}
	return NewCatalog(models...)
}

func TestChainStopsAtKthSuccess(t *testing.T) {
	ids := []string{"m1", "m2", "m3", "m4"}
	for k := 1; k <= len(ids); k++ {
		client := &scriptedClient{name: "fake", answers: map[string]func(context.Context, ModelConfig) ProcessResult{}}
		for i, id := range ids {
			switch {
			case i+1 < k:
				client.answers[id] = fail("boom " + id)
			case i+1 == k:
				client.answers[id] = succeed("text from " + id)
			default:
				client.answers[id] = succeed("should not be called")
			}
		}

		chain := NewChain(testCatalog(ids...), ids, []Client{client}, nil)
		res := chain.Process(context.Background(), Subject{DocumentID: "doc"}, Source{URL: "http://x"})

		s, ok := res.Succeeded()
		if !ok {
			t.Fatalf("k=%d: expected success, got %q", k, res.Error())
		}
		if res.Attempts != k {
			t.Errorf("k=%d: attempts = %d", k, res.Attempts)
		}
		if want := "text from " + ids[k-1]; s.Text != want {
			t.Errorf("k=%d: text = %q, want %q", k, s.Text, want)
		}
		if len(client.calls) != k {
			t.Errorf("k=%d: client called %d times (%v)", k, len(client.calls), client.calls)
		}
		if res.Winner.ID != ids[k-1] {
			t.Errorf("k=%d: winner = %q", k, res.Winner.ID)
		}
	}
}

func TestChainAllFail(t *testing.T) {
	ids := []string{"a", "b", "c"}
	client := &scriptedClient{name: "fake", answers: map[string]func(context.Context, ModelConfig) ProcessResult{
		"a": fail("500 - upstream"),
		"b": fail(ErrTimeout),
		"c": fail("429 - rate limited"),
	}}
	rec := &recorderSpy{}

	res := NewChain(testCatalog(ids...), ids, []Client{client}, rec).
		Process(context.Background(), Subject{DocumentID: "doc"}, Source{URL: "http://x"})

	if _, ok := res.Succeeded(); ok {
		t.Fatal("expected failure")
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if want := "All models failed. Last error: 429 - rate limited"; res.Error() != want {
		t.Errorf("error = %q, want %q", res.Error(), want)
	}
	if len(rec.attempts) != 3 {
		t.Fatalf("recorded %d attempts, want 3", len(rec.attempts))
	}
	for i, a := range rec.attempts {
		if a.AttemptNo != i+1 || a.Success || a.DocumentID != "doc" {
			t.Errorf("attempt %d recorded as %+v", i, a)
		}
	}
}

func TestChainEmpty(t *testing.T) {
	res := NewChain(testCatalog(), nil, nil, nil).Process(context.Background(), Subject{}, Source{})
	if res.Attempts != 0 {
		t.Errorf("attempts = %d", res.Attempts)
	}
	if !strings.Contains(res.Error(), "no models configured") {
		t.Errorf("error = %q", res.Error())
	}
}

func TestChainUnknownModelAndProviderCountAsAttempts(t *testing.T) {
	catalog := NewCatalog(
		ModelConfig{ID: "orphan", Provider: "nobody"},
		ModelConfig{ID: "good", Provider: "fake"},
	)
	client := &scriptedClient{name: "fake", answers: map[string]func(context.Context, ModelConfig) ProcessResult{
		"good": succeed("ok"),
	}}

	res := NewChain(catalog, []string{"missing", "orphan", "good"}, []Client{client}, nil).
		Process(context.Background(), Subject{}, Source{URL: "u"})

	if _, ok := res.Succeeded(); !ok {
		t.Fatalf("expected success, got %q", res.Error())
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if f := res.Trail[0].(Failure); !strings.Contains(f.Error, "unknown model") {
		t.Errorf("trail[0] = %q", f.Error)
	}
	if f := res.Trail[1].(Failure); !strings.Contains(f.Error, "not configured") {
		t.Errorf("trail[1] = %q", f.Error)
	}
}

// A free model that times out falls through to the paid model.
func TestChainFreeTimesOutPaidSucceeds(t *testing.T) {
	catalog := NewCatalog(
		ModelConfig{ID: "free-model", Provider: "fake", Tier: "free", TimeoutMs: 20},
		ModelConfig{ID: "paid-model", Provider: "fake", Tier: "premium", CostPerKToken: 0.003, TimeoutMs: 1000},
	)
	client := &scriptedClient{name: "fake", answers: map[string]func(context.Context, ModelConfig) ProcessResult{
		"free-model": func(ctx context.Context, m ModelConfig) ProcessResult {
			return invoke(ctx, m, "p", func(ctx context.Context) (*completion, error) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Second):
					return &completion{Text: "late"}, nil
				}
			})
		},
		"paid-model": func(ctx context.Context, m ModelConfig) ProcessResult {
			return invoke(ctx, m, "p", func(context.Context) (*completion, error) {
				return &completion{Text: "Report A", TotalTokens: 1500}, nil
			})
		},
	}}

	res := NewChain(catalog, []string{"free-model", "paid-model"}, []Client{client}, nil).
		Process(context.Background(), Subject{}, Source{URL: "u"})

	s, ok := res.Succeeded()
	if !ok {
		t.Fatalf("expected success, got %q", res.Error())
	}
	if s.Text != "Report A" || res.Attempts != 2 {
		t.Errorf("got text=%q attempts=%d", s.Text, res.Attempts)
	}
	if s.TokensUsed != 1500 {
		t.Errorf("tokens = %d", s.TokensUsed)
	}
	if want := 1.5 * 0.003; s.CostEstimate < want-1e-9 || s.CostEstimate > want+1e-9 {
		t.Errorf("cost = %v, want %v", s.CostEstimate, want)
	}
	if f := res.Trail[0].(Failure); f.Error != ErrTimeout {
		t.Errorf("free model error = %q, want %q", f.Error, ErrTimeout)
	}
}
