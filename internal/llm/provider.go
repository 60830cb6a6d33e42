package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderDashScope  = "dashscope"
	ProviderAnthropic  = "anthropic"
)

// ErrTimeout is the failure text reported when a model exceeds its timeout.
const ErrTimeout = "timeout"

// Client performs exactly one request/response cycle against one hosted
// vision-language model. Implementations never return Go errors: every
// failure comes back as a Failure value.
type Client interface {
	Invoke(ctx context.Context, model ModelConfig, src Source, prompt string) ProcessResult
	Name() string
}

// ModelConfig is the static description of one model in the catalog.
type ModelConfig struct {
	ID              string  `yaml:"id" json:"id"`
	DisplayName     string  `yaml:"display_name" json:"displayName"`
	Provider        string  `yaml:"provider" json:"provider"`
	RemoteModel     string  `yaml:"remote_model,omitempty" json:"remoteModel,omitempty"`
	CostPerKToken   float64 `yaml:"cost_per_k_token" json:"costPerKToken"`
	Tier            string  `yaml:"tier" json:"tier"`
	MaxOutputTokens int     `yaml:"max_output_tokens" json:"maxOutputTokens"`
	TimeoutMs       int     `yaml:"timeout_ms" json:"timeoutMs"`
	Description     string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// APIModel is the model name sent on the wire.
func (m ModelConfig) APIModel() string {
	if m.RemoteModel != "" {
		return m.RemoteModel
	}
	return m.ID
}

func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

// Source is the document handed to a model: a fetchable URL, raw bytes, or both.
type Source struct {
	URL      string
	Data     []byte
	MimeType string
	// PreferInline makes URL-capable clients send Data instead of URL.
	PreferInline bool
}

func (s Source) HasData() bool { return len(s.Data) > 0 }

func (s Source) mimeType() string {
	if s.MimeType == "" {
		return "application/pdf"
	}
	return s.MimeType
}

func (s Source) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// DataURL encodes Data as an RFC 2397 data URL.
func (s Source) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", s.mimeType(), s.Base64())
}

// Reference picks what a URL-capable API should receive.
func (s Source) Reference() (string, error) {
	switch {
	case s.HasData() && (s.PreferInline || s.URL == ""):
		return s.DataURL(), nil
	case s.URL != "":
		return s.URL, nil
	default:
		return "", fmt.Errorf("document source has neither url nor data")
	}
}

// ProcessResult is either a Success or a Failure.
type ProcessResult interface {
	Model() string
	Elapsed() int64
	isProcessResult()
}

type Success struct {
	ModelID      string  `json:"modelId"`
	Text         string  `json:"text"`
	TokensUsed   int     `json:"tokensUsed"`
	CostEstimate float64 `json:"costEstimate"`
	ElapsedMs    int64   `json:"elapsedMs"`
}

type Failure struct {
	ModelID   string `json:"modelId"`
	Error     string `json:"error"`
	ElapsedMs int64  `json:"elapsedMs"`
}

func (s Success) Model() string  { return s.ModelID }
func (s Success) Elapsed() int64 { return s.ElapsedMs }
func (Success) isProcessResult() {}

func (f Failure) Model() string  { return f.ModelID }
func (f Failure) Elapsed() int64 { return f.ElapsedMs }
func (Failure) isProcessResult() {}

// Subject identifies the document being processed, for prompts and logs.
type Subject struct {
	DocumentID string
	Name       string
	MimeType   string
}

// Attempt is one model call as seen by the usage recorder.
type Attempt struct {
	DocumentID   string
	ModelID      string
	Provider     string
	AttemptNo    int
	Success      bool
	Error        string
	TokensUsed   int
	CostEstimate float64
	ElapsedMs    int64
	At           time.Time
}

// UsageRecorder receives every attempt made by a Chain.
type UsageRecorder interface {
	RecordAttempt(ctx context.Context, a Attempt)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(context.Context, Attempt) {}
