// Package llm is the gateway to chat and embedding LLM providers: a closed
// set of OpenAI, Azure OpenAI, Gemini, OpenRouter, and local
// OpenAI-compatible backends, unified behind one Client interface with a
// shared retry policy.
package llm

import (
	"context"
	"errors"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// ErrLLM wraps every terminal failure surfaced by a Client after retries
// are exhausted or a non-retriable error is returned by the provider.
var ErrLLM = errors.New("llm: request failed")

// ChatRequest is one chat completion call.
type ChatRequest struct {
	System   string
	User     string
	JSONMode bool
}

// ChatResponse is the text content returned by a chat call, plus the token
// usage it consumed.
type ChatResponse struct {
	Content string
	Usage   domain.TokenUsage
}

// Client exposes the two operations every pipeline stage needs from an LLM
// backend.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Config carries everything needed to construct a Client for one provider.
type Config struct {
	Provider         Provider
	Model            string
	EmbeddingModel   string
	APIKey           string
	BaseURL          string
	AzureAPIVersion  string
}

// New constructs the Client for cfg.Provider.
func New(cfg Config) (Client, error) {
	spec, err := Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = spec.DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = spec.DefaultEmbedModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = spec.BaseURL
	}

	if cfg.Provider == ProviderGemini {
		return newGeminiClient(cfg)
	}
	return newOpenAICompatClient(cfg, spec)
}
