package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AggregateResult is the outcome of a whole chain run.
type AggregateResult struct {
	Outcome   ProcessResult
	Attempts  int
	Trail     []ProcessResult
	ElapsedMs int64
	// Winner is the configuration of the model that produced Outcome, when
	// it succeeded.
	Winner ModelConfig
}

// Succeeded returns the winning result, if any.
func (r AggregateResult) Succeeded() (Success, bool) {
	s, ok := r.Outcome.(Success)
	return s, ok
}

// Error returns the failure text, or "" on success.
func (r AggregateResult) Error() string {
	if f, ok := r.Outcome.(Failure); ok {
		return f.Error
	}
	return ""
}

// Processor turns a document source into an aggregate result.
type Processor interface {
	Process(ctx context.Context, subject Subject, src Source) AggregateResult
}

// Chain tries models in a fixed priority order and stops at the first
// success. Individual failures are logged and swallowed; only exhaustion is
// reported.
type Chain struct {
	catalog  *Catalog
	order    []string
	clients  map[string]Client
	recorder UsageRecorder
}

func NewChain(catalog *Catalog, order []string, clients []Client, recorder UsageRecorder) *Chain {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	byName := make(map[string]Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}
	return &Chain{
		catalog:  catalog,
		order:    append([]string(nil), order...),
		clients:  byName,
		recorder: recorder,
	}
}

// Models returns the resolved configuration of each chain entry, skipping
// ids missing from the catalog.
func (c *Chain) Models() []ModelConfig {
	var out []ModelConfig
	for _, id := range c.order {
		if m, ok := c.catalog.Lookup(id); ok {
			out = append(out, m)
		}
	}
	return out
}

func (c *Chain) Process(ctx context.Context, subject Subject, src Source) AggregateResult {
	start := time.Now()
	var (
		last     ProcessResult
		attempts int
		trail    []ProcessResult
	)

	for _, id := range c.order {
		attempts++
		model, result := c.attempt(ctx, id, src)
		trail = append(trail, result)

		c.recorder.RecordAttempt(ctx, attemptRecord(subject, model, attempts, result))

		if s, ok := result.(Success); ok {
			slog.Info("model succeeded",
				"document_id", subject.DocumentID,
				"model", id,
				"attempt", attempts,
				"tokens", s.TokensUsed,
				"elapsed_ms", s.ElapsedMs,
			)
			return AggregateResult{
				Outcome:   s,
				Attempts:  attempts,
				Trail:     trail,
				ElapsedMs: time.Since(start).Milliseconds(),
				Winner:    model,
			}
		}

		f := result.(Failure)
		slog.Warn("model failed, trying next",
			"document_id", subject.DocumentID,
			"model", id,
			"attempt", attempts,
			"error", f.Error,
		)
		last = result
	}

	lastErr := "no models configured"
	lastModel := ""
	if f, ok := last.(Failure); ok {
		lastErr = f.Error
		lastModel = f.ModelID
	}
	elapsed := time.Since(start).Milliseconds()
	return AggregateResult{
		Outcome: Failure{
			ModelID:   lastModel,
			Error:     "All models failed. Last error: " + lastErr,
			ElapsedMs: elapsed,
		},
		Attempts:  attempts,
		Trail:     trail,
		ElapsedMs: elapsed,
	}
}

func (c *Chain) attempt(ctx context.Context, id string, src Source) (ModelConfig, ProcessResult) {
	model, ok := c.catalog.Lookup(id)
	if !ok {
		return ModelConfig{ID: id}, Failure{ModelID: id, Error: fmt.Sprintf("unknown model: %s", id)}
	}
	client, ok := c.clients[model.Provider]
	if !ok {
		return model, Failure{ModelID: id, Error: fmt.Sprintf("provider %q not configured", model.Provider)}
	}
	return model, client.Invoke(ctx, model, src, MedicalPrompt(id))
}

func attemptRecord(subject Subject, model ModelConfig, n int, result ProcessResult) Attempt {
	a := Attempt{
		DocumentID: subject.DocumentID,
		ModelID:    result.Model(),
		Provider:   model.Provider,
		AttemptNo:  n,
		ElapsedMs:  result.Elapsed(),
		At:         time.Now().UTC(),
	}
	switch r := result.(type) {
	case Success:
		a.Success = true
		a.TokensUsed = r.TokensUsed
		a.CostEstimate = r.CostEstimate
	case Failure:
		a.Error = r.Error
	}
	return a
}
