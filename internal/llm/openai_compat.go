package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/takahashim/broadlistening-go/internal/domain"
)

// openAICompatClient speaks the OpenAI chat/embeddings wire format. OpenAI,
// OpenRouter, and local OpenAI-compatible servers share it unmodified;
// Azure reuses it with a different URL template and an api-version query
// parameter.
type openAICompatClient struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	model           string
	embeddingModel  string
	azure           bool
	azureAPIVersion string
}

func newOpenAICompatClient(cfg Config, spec Spec) (Client, error) {
	if spec.RequiresAPIKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: provider %s requires an API key", ErrLLM, cfg.Provider)
	}
	if spec.RequiresBaseURL && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: provider %s requires a base URL", ErrLLM, cfg.Provider)
	}
	return &openAICompatClient{
		httpClient:      &http.Client{Timeout: 2 * time.Minute},
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		embeddingModel:  cfg.EmbeddingModel,
		azure:           spec.IsAzureFlavored,
		azureAPIVersion: cfg.AzureAPIVersion,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openAICompatClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var out ChatResponse
	err := withRetry(ctx, func() error {
		var resp chatCompletionResponse
		if err := c.doJSON(ctx, "POST", c.chatURL(), body, &resp); err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("%w: empty choices", ErrLLM))
		}
		out = ChatResponse{
			Content: resp.Choices[0].Message.Content,
			Usage: domain.TokenUsage{
				Input:  resp.Usage.PromptTokens,
				Output: resp.Usage.CompletionTokens,
				Total:  resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", ErrLLM, err)
	}
	return out, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *openAICompatClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := embeddingsRequest{Model: c.embeddingModel, Input: texts}

	out := make([][]float64, len(texts))
	err := withRetry(ctx, func() error {
		var resp embeddingsResponse
		if err := c.doJSON(ctx, "POST", c.embeddingsURL(), body, &resp); err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: expected %d embeddings, got %d", ErrLLM, len(texts), len(resp.Data)))
		}
		for _, d := range resp.Data {
			out[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLM, err)
	}
	return out, nil
}

func (c *openAICompatClient) chatURL() string {
	if c.azure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", c.baseURL, c.model, c.azureAPIVersion)
	}
	return c.baseURL + "/chat/completions"
}

func (c *openAICompatClient) embeddingsURL() string {
	if c.azure {
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", c.baseURL, c.embeddingModel, c.azureAPIVersion)
	}
	return c.baseURL + "/embeddings"
}

func (c *openAICompatClient) doJSON(ctx context.Context, method, url string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		if c.azure {
			httpReq.Header.Set("api-key", c.apiKey)
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyNetError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyHTTPError(resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
