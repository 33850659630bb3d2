package index

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniclipper/recall/internal/chunk"
	"github.com/omniclipper/recall/internal/embed"
	"github.com/omniclipper/recall/internal/item"
	"github.com/omniclipper/recall/internal/search"
	"github.com/omniclipper/recall/internal/store"
	"github.com/omniclipper/recall/internal/textseg"
)

// newHybridStack wires real in-memory stores, the manager, and the
// search engine together, the way the CLI does.
func newHybridStack(t *testing.T) (*Manager, *search.Engine) {
	t.Helper()
	tok, err := textseg.New()
	require.NoError(t, err)
	splitter := chunk.NewSplitter(tok)

	lexical, err := store.NewLexicalIndex("", tok, chunk.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	vector, err := store.NewEmbeddingIndex(store.EmbeddingIndexConfig{
		Model:        embed.ModelStatic,
		ChunkOptions: chunk.DefaultOptions(),
	}, embed.NewStaticEmbedder(), splitter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vector.Close() })

	engine, err := search.NewEngine(lexical, vector, slog.Default())
	require.NoError(t, err)
	return NewManager(lexical, vector, slog.Default()), engine
}

func TestHybrid_IndexThenSearch(t *testing.T) {
	manager, engine := newHybridStack(t)
	ctx := context.Background()

	res, err := manager.Index(ctx, &item.Document{
		ID:   "d1",
		Text: "OmniClipper helps you save web pages.",
		Metadata: item.Metadata{
			Title: "Intro",
			Tags:  []string{"Tool"},
		},
	})
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.LexicalChunks)
	assert.Equal(t, 1, res.VectorChunks)

	results, err := engine.Search(ctx, "save pages", search.Options{Limit: 10, GroupByDoc: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, "Intro", results[0].Title)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, 1, results[0].BM25Rank)
	assert.Equal(t, 1, results[0].VectorRank)
}

func TestHybrid_DeleteThenCheckMissing(t *testing.T) {
	manager, engine := newHybridStack(t)
	ctx := context.Background()

	_, err := manager.Index(ctx, &item.Document{
		ID:       "d1",
		Text:     "OmniClipper helps you save web pages.",
		Metadata: item.Metadata{Title: "Intro"},
	})
	require.NoError(t, err)

	manager.Delete(ctx, "d1")

	missing, err := manager.CheckMissing(ctx, []string{"d1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, missing)

	results, err := engine.Search(ctx, "save pages", search.Options{Limit: 10, GroupByDoc: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}
