package llm

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// geminiClient speaks to Google's Gemini API via the official genai SDK,
// used for both chat and embedding calls.
type geminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

func newGeminiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini provider requires an API key", ErrLLM)
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("%w: creating genai client: %v", ErrLLM, err)
	}
	return &geminiClient{client: client, model: cfg.Model, embeddingModel: cfg.EmbeddingModel}, nil
}

func (g *geminiClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	var out ChatResponse
	err := withRetry(ctx, func() error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return classifyGeminiErr(err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return backoff.Permanent(fmt.Errorf("%w: no candidates returned", ErrLLM))
		}
		var text string
		for _, part := range resp.Candidates[0].Content.Parts {
			text += part.Text
		}
		out = ChatResponse{
			Content: text,
			Usage: domain.TokenUsage{
				Input:  int(resp.UsageMetadata.PromptTokenCount),
				Output: int(resp.UsageMetadata.CandidatesTokenCount),
				Total:  int(resp.UsageMetadata.TotalTokenCount),
			},
		}
		return nil
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", ErrLLM, err)
	}
	return out, nil
}

func (g *geminiClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	out := make([][]float64, len(texts))
	err := withRetry(ctx, func() error {
		resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
		if err != nil {
			return classifyGeminiErr(err)
		}
		if len(resp.Embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf("%w: expected %d embeddings, got %d", ErrLLM, len(texts), len(resp.Embeddings)))
		}
		for i, e := range resp.Embeddings {
			vec := make([]float64, len(e.Values))
			for j, v := range e.Values {
				vec[j] = float64(v)
			}
			out[i] = vec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLM, err)
	}
	return out, nil
}

// classifyGeminiErr treats any genai SDK error as retriable; the SDK
// already surfaces HTTP-layer failures as plain errors with no status code
// to branch on, so the shared backoff policy governs retry count instead.
func classifyGeminiErr(err error) error {
	return err
}
