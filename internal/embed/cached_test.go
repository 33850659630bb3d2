package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts calls reaching the inner embedder.
type countingEmbedder struct {
	*StaticEmbedder
	embeds     atomic.Int32
	batchTexts atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchTexts.Add(int32(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Embed_HitSkipsInner(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "repeated query text")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "repeated query text")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), inner.embeds.Load())
}

func TestCachedEmbedder_EmbedBatch_OnlyMissesComputed(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	_, err := c.Embed(ctx, "warm")
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, int32(2), inner.batchTexts.Load())

	// Batch results preserve input order regardless of hit/miss mix.
	direct, err := NewStaticEmbedder().Embed(ctx, "cold two")
	require.NoError(t, err)
	assert.Equal(t, direct, vectors[2])
}

func TestCachedEmbedder_EvictionRecomputes(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "b")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "c") // evicts "a"
	require.NoError(t, err)
	_, err = c.Embed(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, int32(4), inner.embeds.Load())
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	c := NewCachedEmbedder(NewStaticEmbedder(), 4)

	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestCachedEmbedder_DelegatesMetadata(t *testing.T) {
	c := NewCachedEmbedder(NewStaticEmbedder(), 4)

	assert.Equal(t, ModelStatic.Dimensions, c.Dimensions())
	assert.Equal(t, ModelStatic.ID, c.ModelName())
	assert.True(t, c.Available(context.Background()))
}
