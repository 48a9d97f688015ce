package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takahashim/broadlistening-go/internal/llm"
)

func writeConfig(t *testing.T, body map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"input":    "comments.csv",
		"question": "what should we do?",
		"name":     "town hall",
		"api_key":  "sk-test",
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, llm.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "localhost:11434", cfg.LocalLLMAddress)
	assert.Equal(t, []int{5, 15}, cfg.ClusterNums)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 1000, cfg.Limit)
	assert.False(t, cfg.EnableSourceLink)
	assert.False(t, cfg.IsPubcom)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidateRejectsAzureWithoutBaseURL(t *testing.T) {
	cfg := defaults()
	cfg.Provider = llm.ProviderAzure
	cfg.APIKey = "k"
	cfg.ClusterNums = []int{5, 15}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonLocalWithoutAPIKey(t *testing.T) {
	cfg := defaults()
	cfg.ClusterNums = []int{5, 15}
	assert.Error(t, cfg.Validate())
}

func TestValidateAllowsLocalWithoutAPIKey(t *testing.T) {
	cfg := defaults()
	cfg.Provider = llm.ProviderLocal
	cfg.ClusterNums = []int{5, 15}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsShortOrUnsortedClusterNums(t *testing.T) {
	cfg := defaults()
	cfg.Provider = llm.ProviderLocal
	cfg.ClusterNums = []int{5}
	assert.Error(t, cfg.Validate())

	cfg.ClusterNums = []int{15, 5}
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrideFillsAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	path := writeConfig(t, map[string]any{
		"input":    "comments.csv",
		"question": "q",
		"name":     "n",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestEnvOverrideAzureDefaultsAPIVersion(t *testing.T) {
	t.Setenv("AZURE_OPENAI_URI", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "azure-key")
	path := writeConfig(t, map[string]any{
		"input":    "comments.csv",
		"question": "q",
		"name":     "n",
		"provider": "azure",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-15-preview", cfg.AzureAPIVersion)
	assert.Equal(t, "https://example.openai.azure.com", cfg.APIBaseURL)
}

func TestPropertyColumnsSorted(t *testing.T) {
	cfg := defaults()
	cfg.HiddenProperties = map[string][]string{"region": nil, "age": nil}
	assert.Equal(t, []string{"age", "region"}, cfg.PropertyColumns())
}
