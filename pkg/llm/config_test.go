package llm

import (
	"os"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_API_URL", "LLM_MAX_TOKENS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()

	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "openai")
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want empty", cfg.Model)
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
	if cfg.MaxTokens != 0 {
		t.Errorf("MaxTokens = %d, want 0", cfg.MaxTokens)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_MODEL", "claude-sonnet-4-5-20250929")
	t.Setenv("LLM_API_KEY", "sk-ant")
	t.Setenv("LLM_API_URL", "https://api.anthropic.com")
	t.Setenv("LLM_MAX_TOKENS", "2048")

	cfg := LoadConfig()

	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "anthropic")
	}
	if cfg.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("Model = %q, want %q", cfg.Model, "claude-sonnet-4-5-20250929")
	}
	if cfg.APIKey != "sk-ant" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "sk-ant")
	}
	if cfg.APIURL != "https://api.anthropic.com" {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, "https://api.anthropic.com")
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d, want 2048", cfg.MaxTokens)
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "cohere"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
