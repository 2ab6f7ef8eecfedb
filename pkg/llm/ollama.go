package llm

import (
	"context"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434/v1"

// OllamaProvider drives a local Ollama daemon through its OpenAI-compatible
// chat endpoint. Ollama has no thread API, so the provider deliberately does
// not implement ThreadCreator and threads stay local.
type OllamaProvider struct {
	compat *OpenAIProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = defaultOllamaURL
	}
	return &OllamaProvider{compat: NewOpenAIProvider(cfg)}
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	return p.compat.Complete(ctx, messages, tools)
}

// CompleteStructured delegates to the OpenAI-compatible endpoint; Ollama
// honors the json_object response format for models that support it.
func (p *OllamaProvider) CompleteStructured(ctx context.Context, messages []Message) (string, error) {
	return p.compat.CompleteStructured(ctx, messages)
}
