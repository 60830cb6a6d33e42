package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterClient talks to OpenRouter's OpenAI-compatible chat endpoint.
type OpenRouterClient struct {
	client *openai.Client
}

type OpenRouterOptions struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
}

func NewOpenRouterClient(opts OpenRouterOptions) *OpenRouterClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = &http.Client{
		Timeout: 2 * time.Minute,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": opts.Referer,
				"X-Title":      opts.Title,
			},
		},
	}
	return &OpenRouterClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *OpenRouterClient) Name() string { return ProviderOpenRouter }

func (c *OpenRouterClient) Invoke(ctx context.Context, model ModelConfig, src Source, prompt string) ProcessResult {
	return invoke(ctx, model, prompt, func(ctx context.Context) (*completion, error) {
		ref, err := src.Reference()
		if err != nil {
			return nil, err
		}

		req := openai.ChatCompletionRequest{
			Model: model.APIModel(),
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: prompt},
						{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: ref}},
					},
				},
			},
			MaxTokens:   model.MaxOutputTokens,
			Temperature: 0.1,
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, openRouterError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("invalid response format from OpenRouter API")
		}

		return &completion{
			Text:        resp.Choices[0].Message.Content,
			TotalTokens: resp.Usage.TotalTokens,
		}, nil
	})
}

func openRouterError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Code: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return fmt.Errorf("openrouter chat: %w", err)
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
