package pipeline

import (
	"context"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/embedcache"
	"github.com/takahashim/broadlistening-go/internal/llm"
)

// embeddingBatchSize is the number of texts sent to the provider per
// embed call.
const embeddingBatchSize = 1000

// RunEmbedding embeds every argument's text in batches, preserving input
// order, and stores the resulting vectors on the arguments. When cache is
// non-nil, already-embedded (text, model) pairs are served from it and
// never re-sent to the provider.
func RunEmbedding(ctx context.Context, c *Context, cfg *config.Config, client llm.Client, cache *embedcache.Cache) (domain.TokenUsage, error) {
	var embedder embedcache.Embedder = client
	if cache != nil {
		embedder = &embedcache.CachedEmbedder{Cache: cache, Embedder: client, Model: cfg.EmbeddingModel}
	}

	for start := 0; start < len(c.Arguments); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(c.Arguments) {
			end = len(c.Arguments)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = c.Arguments[i].Argument
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return domain.TokenUsage{}, err
		}
		for i, v := range vectors {
			c.Arguments[start+i].Embedding = v
		}
	}
	return domain.TokenUsage{}, nil
}
