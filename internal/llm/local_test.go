package llm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLocalEmbedderUnitLength(t *testing.T) {
	e := NewLocalEmbedder(64)

	vec, err := e.EmbedQuery(context.Background(), "some text to embed")
	require.NoError(t, err)
	require.Len(t, vec, 64)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestLocalEmbedderSimilarityOrdering(t *testing.T) {
	e := NewLocalEmbedder(256)
	ctx := context.Background()

	query, err := e.EmbedQuery(ctx, "baking bread with yeast")
	require.NoError(t, err)
	near, err := e.EmbedQuery(ctx, "bread baking requires yeast and flour")
	require.NoError(t, err)
	far, err := e.EmbedQuery(ctx, "orbital mechanics of satellites")
	require.NoError(t, err)

	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestLocalEmbedderBatch(t *testing.T) {
	e := NewLocalEmbedder(64)

	vecs, err := e.EmbedTexts(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	single, err := e.EmbedQuery(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := NewLocalEmbedder(64)

	vec, err := e.EmbedQuery(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vec, 64)
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
