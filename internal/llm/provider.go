package llm

import "fmt"

// Provider is the closed set of LLM backends the gateway can speak to.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAzure      Provider = "azure"
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
	ProviderLocal      Provider = "local"
)

// Spec describes how to reach and authenticate against one provider.
type Spec struct {
	APIKeyEnvVar      string
	DefaultModel      string
	DefaultEmbedModel string
	BaseURL           string
	RequiresAPIKey    bool
	RequiresBaseURL   bool
	IsAzureFlavored   bool
}

var registry = map[Provider]Spec{
	ProviderOpenAI: {
		APIKeyEnvVar:      "OPENAI_API_KEY",
		DefaultModel:      "gpt-4o-mini",
		DefaultEmbedModel: "text-embedding-3-small",
		BaseURL:           "https://api.openai.com/v1",
		RequiresAPIKey:    true,
	},
	ProviderAzure: {
		APIKeyEnvVar:      "AZURE_OPENAI_API_KEY",
		DefaultModel:      "gpt-4o-mini",
		DefaultEmbedModel: "text-embedding-3-small",
		RequiresAPIKey:    true,
		RequiresBaseURL:   true,
		IsAzureFlavored:   true,
	},
	ProviderGemini: {
		APIKeyEnvVar:      "GEMINI_API_KEY",
		DefaultModel:      "gemini-1.5-flash",
		DefaultEmbedModel: "text-embedding-004",
		RequiresAPIKey:    true,
	},
	ProviderOpenRouter: {
		APIKeyEnvVar:      "OPENROUTER_API_KEY",
		DefaultModel:      "openai/gpt-4o-mini",
		DefaultEmbedModel: "openai/text-embedding-3-small",
		BaseURL:           "https://openrouter.ai/api/v1",
		RequiresAPIKey:    true,
	},
	ProviderLocal: {
		DefaultModel:      "local-model",
		DefaultEmbedModel: "local-embed",
		RequiresAPIKey:    false,
		RequiresBaseURL:   true,
	},
}

// Lookup returns the Spec for p, or an error if p is not one of the
// enumerated providers.
func Lookup(p Provider) (Spec, error) {
	spec, ok := registry[p]
	if !ok {
		return Spec{}, fmt.Errorf("llm: unknown provider %q", p)
	}
	return spec, nil
}
