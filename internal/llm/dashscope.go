package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DashScopeClient calls Alibaba Cloud's multimodal generation endpoint for
// Qwen-VL models.
type DashScopeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDashScopeClient(apiKey, baseURL string) *DashScopeClient {
	return &DashScopeClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *DashScopeClient) Name() string { return ProviderDashScope }

type dashScopeReq struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Messages []dashScopeMessage `json:"messages"`
}

type dashScopeMessage struct {
	Role    string             `json:"role"`
	Content []dashScopeContent `json:"content"`
}

type dashScopeContent struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type dashScopeParameters struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type dashScopeResp struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *DashScopeClient) Invoke(ctx context.Context, model ModelConfig, src Source, prompt string) ProcessResult {
	return invoke(ctx, model, prompt, func(ctx context.Context) (*completion, error) {
		// DashScope fetches remote images slowly and unreliably, so bytes
		// are always sent inline when we have them.
		image := src.URL
		if src.HasData() {
			image = src.DataURL()
		}
		if image == "" {
			return nil, fmt.Errorf("document source has neither url nor data")
		}

		body, err := json.Marshal(dashScopeReq{
			Model: model.APIModel(),
			Input: dashScopeInput{Messages: []dashScopeMessage{{
				Role: "user",
				Content: []dashScopeContent{
					{Image: image},
					{Text: prompt},
				},
			}}},
			Parameters: dashScopeParameters{Temperature: 0.1, MaxTokens: model.MaxOutputTokens},
		})
		if err != nil {
			return nil, fmt.Errorf("dashscope encode: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/services/aigc/multimodal-generation/generation", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("dashscope request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-DashScope-SSE", "disable")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("dashscope call: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
		}

		var dResp dashScopeResp
		if err := json.NewDecoder(resp.Body).Decode(&dResp); err != nil {
			return nil, fmt.Errorf("dashscope decode: %w", err)
		}
		if len(dResp.Output.Choices) == 0 {
			return nil, fmt.Errorf("invalid response format from DashScope API")
		}

		text, err := dashScopeText(dResp.Output.Choices[0].Message.Content)
		if err != nil {
			return nil, err
		}

		total := dResp.Usage.TotalTokens
		if total == 0 {
			total = dResp.Usage.InputTokens + dResp.Usage.OutputTokens
		}
		return &completion{Text: text, TotalTokens: total}, nil
	})
}

// dashScopeText accepts both the plain string and the [{"text": ...}] content
// shapes the API returns.
func dashScopeText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []dashScopeContent
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("invalid response format from DashScope API: %w", err)
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
