package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	// Temperature is passed through when > 0.
	Temperature float64
	// MaxOutputTokens is passed through when > 0.
	MaxOutputTokens int
	Timeout         time.Duration
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Message)
}

// NewGenerator builds the TextGenerator for cfg.Provider. Gemini is the
// default provider.
func NewGenerator(cfg Config) (TextGenerator, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("generation model required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiGenerator(cfg, httpClient)
	case ProviderOpenAI, "openai-compat":
		return NewOpenAICompatGenerator(cfg, httpClient)
	case ProviderOllama:
		return NewOllamaGenerator(cfg, httpClient), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
}
