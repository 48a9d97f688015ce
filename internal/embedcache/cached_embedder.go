package embedcache

import (
	"context"
)

// Embedder is the subset of llm.Client the embedding stage depends on.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// CachedEmbedder consults a Cache before delegating misses to an
// underlying Embedder, and writes fresh results back to the cache. Chat
// calls are never cached; only this narrower Embedder surface is wrapped.
type CachedEmbedder struct {
	Cache    *Cache
	Embedder Embedder
	Model    string
}

var _ Embedder = (*CachedEmbedder)(nil)

// Embed returns one vector per text in input order, filling cache misses
// from the wrapped Embedder in a single batched call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	keys := make([]string, len(texts))

	for i, t := range texts {
		key := Key(t, c.Model)
		keys[i] = key
		if vec, ok, err := c.Cache.Get(key); err != nil {
			return nil, err
		} else if ok {
			out[i] = vec
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
		}
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.Embedder.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		if err := c.Cache.Put(keys[i], fresh[j]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
