package llm

import (
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/medportal/internal/config"
)

// NewChainFromConfig builds the clients for every provider with a key and
// wires them into a chain following cfg.ModelChain.
func NewChainFromConfig(cfg config.LLMConfig, recorder UsageRecorder) (*Chain, error) {
	catalog, err := LoadCatalogFile(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	var clients []Client
	if cfg.OpenRouterKey != "" {
		clients = append(clients, NewOpenRouterClient(OpenRouterOptions{
			APIKey:  cfg.OpenRouterKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Referer: cfg.OpenRouterReferer,
			Title:   cfg.OpenRouterTitle,
		}))
	}
	if cfg.DashScopeKey != "" {
		clients = append(clients, NewDashScopeClient(cfg.DashScopeKey, cfg.DashScopeBaseURL))
	}
	if cfg.AnthropicKey != "" {
		clients = append(clients, NewAnthropicClient(cfg.AnthropicKey))
	}

	for _, id := range cfg.ModelChain {
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("model chain: unknown model %q", id)
		}
	}

	chain := NewChain(catalog, cfg.ModelChain, clients, recorder)
	slog.Info("model chain ready", "models", cfg.ModelChain, "providers", len(clients))
	return chain, nil
}
