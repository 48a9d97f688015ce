// Package config loads and validates the run configuration: the JSON file a
// user supplies plus an environment variable overlay for secrets and
// per-provider connection details.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/takahashim/broadlistening-go/internal/llm"
)

// PromptSet holds the four LLM prompt templates a run can override.
type PromptSet struct {
	Extraction       string `json:"extraction,omitempty"`
	InitialLabelling string `json:"initial_labelling,omitempty"`
	MergeLabelling   string `json:"merge_labelling,omitempty"`
	Overview         string `json:"overview,omitempty"`
}

// Config is the full run configuration, loaded from a JSON file and
// overlaid with environment variables.
type Config struct {
	Input            string                     `json:"input"`
	Question         string                     `json:"question"`
	Name             string                     `json:"name"`
	Intro            string                     `json:"intro"`
	Provider         llm.Provider               `json:"provider"`
	Model            string                     `json:"model"`
	EmbeddingModel   string                     `json:"embedding_model"`
	APIKey           string                     `json:"api_key,omitempty"`
	APIBaseURL       string                     `json:"api_base_url,omitempty"`
	AzureAPIVersion  string                     `json:"azure_api_version,omitempty"`
	LocalLLMAddress  string                     `json:"local_llm_address,omitempty"`
	ClusterNums      []int                      `json:"cluster_nums"`
	Workers          int                        `json:"workers"`
	Limit            int                        `json:"limit"`
	EnableSourceLink bool                       `json:"enable_source_link"`
	IsPubcom         bool                       `json:"is_pubcom"`
	HiddenProperties map[string][]string        `json:"hidden_properties,omitempty"`
	Prompts          PromptSet                  `json:"prompts,omitempty"`
}

// defaults mirrors the values every Config field takes when the input JSON
// is silent on it.
func defaults() Config {
	return Config{
		Provider:        llm.ProviderOpenAI,
		LocalLLMAddress: "localhost:11434",
		ClusterNums:     []int{5, 15},
		Workers:         10,
		Limit:           1000,
	}
}

// Load reads a JSON config file from path, fills in defaults for anything
// left unset, applies the environment variable overlay, and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	raw := defaults()
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg = raw

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides fills in secrets and connection details that are never
// expected to live in the checked-in config file.
func (c *Config) applyEnvOverrides() {
	if c.APIKey == "" {
		switch c.Provider {
		case llm.ProviderOpenAI:
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		case llm.ProviderAzure:
			c.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		case llm.ProviderGemini:
			c.APIKey = os.Getenv("GEMINI_API_KEY")
		case llm.ProviderOpenRouter:
			c.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}
	if c.Provider == llm.ProviderAzure {
		if c.APIBaseURL == "" {
			c.APIBaseURL = os.Getenv("AZURE_OPENAI_URI")
		}
		if c.AzureAPIVersion == "" {
			c.AzureAPIVersion = os.Getenv("AZURE_API_VERSION")
		}
		if c.AzureAPIVersion == "" {
			c.AzureAPIVersion = "2024-02-15-preview"
		}
	}
	if c.Provider == llm.ProviderLocal {
		if addr := os.Getenv("LOCAL_LLM_ADDRESS"); addr != "" {
			c.LocalLLMAddress = addr
		}
		if c.APIBaseURL == "" {
			c.APIBaseURL = "http://" + c.LocalLLMAddress + "/v1"
		}
	}
}

// Validate checks the config-level invariants that must hold before any
// pipeline stage runs: a sane provider/credential combination and a
// well-formed cluster_nums sequence.
func (c *Config) Validate() error {
	spec, err := llm.Lookup(c.Provider)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if spec.RequiresBaseURL && c.APIBaseURL == "" {
		return fmt.Errorf("config: provider %s requires api_base_url", c.Provider)
	}
	if spec.RequiresAPIKey && c.APIKey == "" {
		return fmt.Errorf("config: provider %s requires an api key", c.Provider)
	}
	if len(c.ClusterNums) < 2 {
		return fmt.Errorf("config: cluster_nums must have at least 2 entries")
	}
	if !sort.IntsAreSorted(c.ClusterNums) {
		return fmt.Errorf("config: cluster_nums must be ascending")
	}
	return nil
}

// PropertyColumns returns the set of property keys promoted to propertyMap
// columns during aggregation, sorted for deterministic output ordering.
func (c *Config) PropertyColumns() []string {
	cols := make([]string, 0, len(c.HiddenProperties))
	for k := range c.HiddenProperties {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
