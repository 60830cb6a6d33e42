package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// StatusError is a non-2xx answer from a model API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d - %s", e.Code, strings.TrimSpace(e.Body))
}

type completion struct {
	Text        string
	TotalTokens int
}

type completeFunc func(ctx context.Context) (*completion, error)

// invoke runs one provider call under the model's timeout and folds every
// outcome into a ProcessResult.
func invoke(ctx context.Context, model ModelConfig, prompt string, call completeFunc) (result ProcessResult) {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	ctx, cancel := context.WithTimeout(ctx, model.Timeout())
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = Failure{ModelID: model.ID, Error: fmt.Sprintf("panic: %v", r), ElapsedMs: elapsed()}
		}
	}()

	out, err := call(ctx)
	if err != nil {
		return Failure{ModelID: model.ID, Error: failureText(ctx, err), ElapsedMs: elapsed()}
	}
	if out == nil || strings.TrimSpace(out.Text) == "" {
		return Failure{ModelID: model.ID, Error: "invalid response format: empty completion", ElapsedMs: elapsed()}
	}

	tokens := tokensOrEstimate(out.TotalTokens, model, prompt, out.Text)
	return Success{
		ModelID:      model.ID,
		Text:         out.Text,
		TokensUsed:   tokens,
		CostEstimate: CalculateCost(model, tokens),
		ElapsedMs:    elapsed(),
	}
}

func failureText(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return err.Error()
}
