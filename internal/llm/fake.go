package llm

import (
	"context"

	"github.com/takahashim/broadlistening-go/internal/domain"
)

// FakeClient is a deterministic, in-memory Client used by stage tests so
// they never reach a real provider. ChatFunc and EmbedFunc default to
// trivial canned responses when nil.
type FakeClient struct {
	ChatFunc  func(ctx context.Context, req ChatRequest) (ChatResponse, error)
	EmbedFunc func(ctx context.Context, texts []string) ([][]float64, error)
	ChatCalls []ChatRequest
}

func (f *FakeClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	f.ChatCalls = append(f.ChatCalls, req)
	if f.ChatFunc != nil {
		return f.ChatFunc(ctx, req)
	}
	return ChatResponse{Content: "{}", Usage: domain.TokenUsage{}}, nil
}

func (f *FakeClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if f.EmbedFunc != nil {
		return f.EmbedFunc(ctx, texts)
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(i), float64(i) + 0.5}
	}
	return out, nil
}
