package llm

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// builtinModels is the compiled-in catalog. Free models come first in the
// default chain; paid models are the safety net.
var builtinModels = []ModelConfig{
	{
		ID:              "google/gemini-flash-1.5",
		DisplayName:     "Gemini Flash 1.5",
		Provider:        ProviderOpenRouter,
		CostPerKToken:   0,
		Tier:            "free",
		MaxOutputTokens: 2048,
		TimeoutMs:       20000,
		Description:     "Free Google model, good OCR quality",
	},
	{
		ID:              "qwen/qwen-2.5-vl-72b-instruct",
		DisplayName:     "Qwen2.5-VL-72B-Instruct",
		Provider:        ProviderOpenRouter,
		CostPerKToken:   0,
		Tier:            "free",
		MaxOutputTokens: 4096,
		TimeoutMs:       25000,
		Description:     "Free Qwen model, strong on Chinese medical documents",
	},
	{
		ID:              "anthropic/claude-3-haiku-vision",
		DisplayName:     "Claude 3 Haiku Vision",
		Provider:        ProviderOpenRouter,
		CostPerKToken:   0.00025,
		Tier:            "ultra-cheap",
		MaxOutputTokens: 4096,
		TimeoutMs:       30000,
		Description:     "Very affordable, good medical accuracy",
	},
	{
		ID:              "openai/gpt-4o-mini",
		DisplayName:     "GPT-4o Mini",
		Provider:        ProviderOpenRouter,
		CostPerKToken:   0.00015,
		Tier:            "ultra-cheap",
		MaxOutputTokens: 4096,
		TimeoutMs:       30000,
		Description:     "Cheapest OpenAI vision model",
	},
	{
		ID:              "openai/gpt-4-vision-preview",
		DisplayName:     "GPT-4 Vision Preview",
		Provider:        ProviderOpenRouter,
		CostPerKToken:   0.01,
		Tier:            "premium",
		MaxOutputTokens: 4096,
		TimeoutMs:       45000,
		Description:     "Best OCR accuracy, professional translation",
	},
	{
		ID:              "anthropic/claude-3.5-sonnet-vision",
		DisplayName:     "Claude 3.5 Sonnet Vision",
		Provider:        ProviderOpenRouter,
		CostPerKToken:   0.003,
		Tier:            "premium",
		MaxOutputTokens: 4096,
		TimeoutMs:       45000,
		Description:     "Thorough medical document analysis",
	},
	{
		ID:              "dashscope/qwen-vl-plus",
		DisplayName:     "Qwen-VL Plus (DashScope)",
		Provider:        ProviderDashScope,
		RemoteModel:     "qwen-vl-plus",
		CostPerKToken:   0.0008,
		Tier:            "ultra-cheap",
		MaxOutputTokens: 2000,
		TimeoutMs:       60000,
		Description:     "Alibaba Cloud DashScope vision model",
	},
	{
		ID:              "dashscope/qwen-vl-max",
		DisplayName:     "Qwen-VL Max (DashScope)",
		Provider:        ProviderDashScope,
		RemoteModel:     "qwen-vl-max",
		CostPerKToken:   0.003,
		Tier:            "premium",
		MaxOutputTokens: 3000,
		TimeoutMs:       60000,
		Description:     "Largest DashScope vision model",
	},
	{
		ID:              "claude-sonnet-4-20250514",
		DisplayName:     "Claude Sonnet 4 (direct)",
		Provider:        ProviderAnthropic,
		CostPerKToken:   0.003,
		Tier:            "premium",
		MaxOutputTokens: 4096,
		TimeoutMs:       45000,
		Description:     "Direct Anthropic API, paid safety net",
	},
}

// Catalog maps model ids to their static configuration.
type Catalog struct {
	models map[string]ModelConfig
}

func DefaultCatalog() *Catalog {
	c := &Catalog{models: make(map[string]ModelConfig, len(builtinModels))}
	for _, m := range builtinModels {
		c.models[m.ID] = m
	}
	return c
}

func NewCatalog(models ...ModelConfig) *Catalog {
	c := &Catalog{models: make(map[string]ModelConfig, len(models))}
	for _, m := range models {
		c.models[m.ID] = m
	}
	return c
}

func (c *Catalog) Lookup(id string) (ModelConfig, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Models returns every entry sorted by id.
func (c *Catalog) Models() []ModelConfig {
	out := make([]ModelConfig, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type catalogFile struct {
	Models []ModelConfig `yaml:"models"`
}

// LoadCatalogFile reads a YAML catalog and merges it over the built-in one.
// Entries with a known id replace the built-in entry.
func LoadCatalogFile(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for i, m := range f.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog %s: model %d has no id", path, i)
		}
		switch m.Provider {
		case ProviderOpenRouter, ProviderDashScope, ProviderAnthropic:
		default:
			return nil, fmt.Errorf("catalog %s: model %s has unknown provider %q", path, m.ID, m.Provider)
		}
		c.models[m.ID] = m
	}
	return c, nil
}
