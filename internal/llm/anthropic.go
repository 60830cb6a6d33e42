package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient sends the document straight to the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
	}
}

func (c *AnthropicClient) Name() string { return ProviderAnthropic }

func (c *AnthropicClient) Invoke(ctx context.Context, model ModelConfig, src Source, prompt string) ProcessResult {
	return invoke(ctx, model, prompt, func(ctx context.Context) (*completion, error) {
		block, err := anthropicSourceBlock(src)
		if err != nil {
			return nil, err
		}

		maxTokens := int64(model.MaxOutputTokens)
		if maxTokens == 0 {
			maxTokens = 4096
		}

		resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(model.APIModel()),
			MaxTokens:   maxTokens,
			Temperature: anthropic.Float(0.1),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(block, anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) {
				body := apiErr.RawJSON()
				if body == "" {
					body = http.StatusText(apiErr.StatusCode)
				}
				return nil, &StatusError{Code: apiErr.StatusCode, Body: body}
			}
			return nil, fmt.Errorf("anthropic chat: %w", err)
		}

		var text strings.Builder
		for _, b := range resp.Content {
			if b.Type == "text" {
				text.WriteString(b.Text)
			}
		}

		return &completion{
			Text:        text.String(),
			TotalTokens: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		}, nil
	})
}

func anthropicSourceBlock(src Source) (anthropic.ContentBlockParamUnion, error) {
	if src.HasData() {
		if src.mimeType() == "application/pdf" {
			return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: src.Base64()}), nil
		}
		return anthropic.NewImageBlockBase64(src.mimeType(), src.Base64()), nil
	}
	if src.URL != "" {
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: src.URL}), nil
	}
	return anthropic.ContentBlockParamUnion{}, fmt.Errorf("document source has neither url nor data")
}
