package llm

import (
	"context"

	"github.com/docqa/backend/internal/cache/redis"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/pkg/utils"
)

// Embedder is the embedding collaborator shape shared by the remote client,
// the local provider and the cache decorator.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder decorates an Embedder with a redis cache keyed by text hash.
type CachedEmbedder struct {
	inner Embedder
	cache *redis.Client
}

func NewCachedEmbedder(inner Embedder, cache *redis.Client) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))

	for i, text := range texts {
		if embedding, ok := c.cache.GetEmbedding(ctx, utils.HashString(text)); ok {
			embeddings[i] = embedding
			metrics.EmbeddingCacheHits.Inc()
			continue
		}
		metrics.EmbeddingCacheMisses.Inc()
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fresh, err := c.inner.EmbedTexts(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, embedding := range fresh {
			embeddings[missingIdx[j]] = embedding
			c.cache.SetEmbedding(ctx, utils.HashString(missing[j]), embedding)
		}
	}

	return embeddings, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
