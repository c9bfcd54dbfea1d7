package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LLMProvider      string // openrouter, openai, ollama, anthropic
	OpenRouterKey    string
	OpenRouterURL    string
	OpenAIKey        string
	AnthropicKey     string // API key (X-Api-Key header)
	AnthropicToken   string // OAuth token (Authorization: Bearer header)
	OllamaBaseURL    string
	Model            string // direct mode
	MCPModel         string // tool-calling mode
	GrafanaURL       string
	GrafanaKey       string
	UseMCP           bool
	Port             int
	MCPCommand       string
	MCPArgs          []string
	MCPEnv           map[string]string
	MaxToolRounds    int
	ToolCallMode     string
	MaxContextTokens int
	SessionIdle      time.Duration
	ReapSchedule     string
	MessageRetention time.Duration // 0 keeps messages forever
	DatabasePath     string
	DiscordToken     string
	LogFile          string
	CORSOrigins      []string

	errs []error
}

// ConfigDir is where the installed service keeps its config file.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dashbridge")
}

func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config")
}

func Load() *Config {
	_ = godotenv.Load()             // ignore error if no .env
	_ = godotenv.Load(ConfigFile()) // installed service config; .env wins

	c := &Config{
		LLMProvider:    strings.ToLower(envOr("LLM_PROVIDER", "openrouter")),
		OpenRouterKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL:  envOr("OPENROUTER_API_URL", "https://openrouter.ai/api/v1"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicToken: os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		OllamaBaseURL:  envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		Model:          os.Getenv("MODEL_NAME"),
		MCPModel:       os.Getenv("MCP_MODEL"),
		GrafanaURL:     envOr("GRAFANA_URL", "http://localhost:3000"),
		GrafanaKey:     os.Getenv("GRAFANA_API_KEY"),
		UseMCP:         parseBool(os.Getenv("USE_MCP")),
		MCPCommand:     os.Getenv("MCP_SERVER_COMMAND"),
		MCPArgs:        strings.Fields(os.Getenv("MCP_SERVER_ARGS")),
		ToolCallMode:   envOr("TOOL_CALL_MODE", "all"),
		ReapSchedule:   envOr("SESSION_REAP_SCHEDULE", "@every 1m"),
		DatabasePath:   envOr("DATABASE_PATH", "./dashbridge.db"),
		DiscordToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		LogFile:        os.Getenv("LOG_FILE"),
		CORSOrigins:    splitList(envOr("CORS_ORIGINS", "*")),
	}
	// The model defaults are OpenRouter names; other providers fall back to
	// their client's default model.
	if c.LLMProvider == "openrouter" {
		c.Model = envOr("MODEL_NAME", "openai/gpt-3.5-turbo")
		c.MCPModel = envOr("MCP_MODEL", "anthropic/claude-3-7-sonnet")
	}
	c.Port = c.intOr("PORT", 3200)
	c.MaxToolRounds = c.intOr("MAX_TOOL_ROUNDS", 10)
	c.MaxContextTokens = c.intOr("MAX_CONTEXT_TOKENS", 0)
	c.SessionIdle = c.durationOr("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	c.MessageRetention = c.durationOr("MESSAGE_RETENTION", 0)

	env, err := parseEnvList(os.Getenv("MCP_SERVER_ENV"))
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("MCP_SERVER_ENV: %w", err))
	}
	c.MCPEnv = env
	return c
}

// Validate reports missing required keys and unparseable values.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.errs...)
	switch c.LLMProvider {
	case "openrouter":
		if c.OpenRouterKey == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY environment variable is not set"))
		}
	case "openai":
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable is not set"))
		}
	case "anthropic":
		if c.AnthropicKey == "" && c.AnthropicToken == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY or ANTHROPIC_AUTH_TOKEN must be set"))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.GrafanaKey == "" {
		errs = append(errs, errors.New("GRAFANA_API_KEY environment variable is not set"))
	}
	if c.UseMCP && c.MCPCommand == "" {
		errs = append(errs, errors.New("MCP_SERVER_COMMAND is required when USE_MCP is enabled"))
	}
	if c.ToolCallMode != "all" && c.ToolCallMode != "first" {
		errs = append(errs, fmt.Errorf("TOOL_CALL_MODE must be all or first, got %q", c.ToolCallMode))
	}
	return errors.Join(errs...)
}

// APIKey returns the credential for the configured provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIKey
	case "anthropic":
		return c.AnthropicKey
	case "ollama":
		return ""
	default:
		return c.OpenRouterKey
	}
}

// BaseURL returns the API base URL for the configured provider.
func (c *Config) BaseURL() string {
	switch c.LLMProvider {
	case "ollama":
		return c.OllamaBaseURL
	case "openrouter", "":
		return c.OpenRouterURL
	default:
		return ""
	}
}

// ServerEnv is the environment handed to the MCP server. Grafana settings
// are passed through unless MCP_SERVER_ENV overrides them.
func (c *Config) ServerEnv() map[string]string {
	env := make(map[string]string, len(c.MCPEnv)+2)
	if c.GrafanaURL != "" {
		env["GRAFANA_URL"] = c.GrafanaURL
	}
	if c.GrafanaKey != "" {
		env["GRAFANA_API_KEY"] = c.GrafanaKey
	}
	for k, v := range c.MCPEnv {
		env[k] = v
	}
	return env
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) intOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseEnvList reads KEY=VALUE pairs separated by ';' or newlines.
func parseEnvList(v string) (map[string]string, error) {
	if strings.TrimSpace(v) == "" {
		return map[string]string{}, nil
	}
	return godotenv.Unmarshal(strings.ReplaceAll(v, ";", "\n"))
}
