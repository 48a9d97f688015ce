package csvio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// WriteOverview writes hierarchical_overview.txt as raw text.
func WriteOverview(path string, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("csvio: write %s: %w", path, err)
	}
	return nil
}

// ReadOverview reads hierarchical_overview.txt.
func ReadOverview(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("csvio: read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteResult writes hierarchical_result.json, the final PipelineResult
// artifact.
func WriteResult(path string, result domain.PipelineResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("csvio: marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("csvio: write %s: %w", path, err)
	}
	return nil
}

// ReadResult reads hierarchical_result.json.
func ReadResult(path string) (domain.PipelineResult, error) {
	var result domain.PipelineResult
	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("csvio: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("csvio: parse %s: %w", path, err)
	}
	return result, nil
}
