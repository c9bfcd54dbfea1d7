package llm

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	openRouterReferer    = "https://localhost:3000"
)

type ProviderConfig struct {
	Provider  string
	APIKey    string
	AuthToken string // OAuth token (Bearer auth), anthropic only
	Model     string
	BaseURL   string
}

func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case "openrouter", "":
		base := NormalizeBaseURL(cfg.BaseURL)
		if base == "" {
			base = DefaultOpenRouterURL
		}
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, base, option.WithHeader("HTTP-Referer", openRouterReferer))
		c.provider = "openrouter"
		return c, nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, NormalizeBaseURL(cfg.BaseURL)), nil
	case "ollama":
		if cfg.Model == "" {
			cfg.Model = "llama3.1"
		}
		c := NewOpenAIClient("ollama", cfg.Model, cfg.BaseURL)
		c.provider = "ollama"
		return c, nil
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.AuthToken, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// NormalizeBaseURL accepts either an API base URL or a full chat completions
// endpoint and returns the base URL the SDK expects.
func NormalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return u
}
