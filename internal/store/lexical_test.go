package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniclipper/recall/internal/chunk"
	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/item"
	"github.com/omniclipper/recall/internal/textseg"
)

func newLexicalIndex(t *testing.T) *LexicalIndex {
	t.Helper()
	tok, err := textseg.New()
	require.NoError(t, err)
	idx, err := NewLexicalIndex("", tok, chunk.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testDoc(id, text string, meta item.Metadata) *item.Document {
	return &item.Document{ID: id, Text: text, Metadata: meta}
}

func TestLexicalIndex_IndexAndSearch(t *testing.T) {
	idx := newLexicalIndex(t)
	ctx := context.Background()

	n, err := idx.Index(ctx, testDoc("d1",
		"Kubernetes ingress controllers route external traffic to services.",
		item.Metadata{Title: "k8s networking", Type: "note", Tags: []string{"infra"}}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := idx.Search(ctx, "ingress traffic", 10, false)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "d1", results[0].DocID)
	assert.Equal(t, "k8s networking", results[0].Title)
	assert.Equal(t, "note", results[0].Type)
	assert.Equal(t, []string{"infra"}, results[0].Tags)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestLexicalIndex_MetadataWeighting(t *testing.T) {
	idx := newLexicalIndex(t)
	ctx := context.Background()

	// d1 carries the query term only in its folder name; d2 mentions it
	// once in the body. The repeated metadata surface must outrank the
	// single body mention.
	_, err := idx.Index(ctx, testDoc("d1",
		"notes about various unrelated topics and ideas collected over time",
		item.Metadata{FolderName: "recipes"}))
	require.NoError(t, err)
	_, err = idx.Index(ctx, testDoc("d2",
		"yesterday I tried two recipes and some other things worth noting here",
		item.Metadata{}))
	require.NoError(t, err)

	results, err := idx.Search(ctx, "recipes", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d1", results[0].DocID)
}

func TestLexicalIndex_ContentTooShort(t *testing.T) {
	idx := newLexicalIndex(t)

	_, err := idx.Index(context.Background(), testDoc("tiny", "hi", item.Metadata{}))
	require.Error(t, err)
	assert.True(t, rerrors.IsContentTooShort(err))

	// Nothing was written.
	ids, err := idx.AllDocIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLexicalIndex_ReindexIsIdempotent(t *testing.T) {
	idx := newLexicalIndex(t)
	ctx := context.Background()

	long := strings.Repeat("searchable content words for the idempotency check. ", 40)
	n1, err := idx.Index(ctx, testDoc("d1", long, item.Metadata{}))
	require.NoError(t, err)
	n2, err := idx.Index(ctx, testDoc("d1", long, item.Metadata{}))
	require.NoError(t, err)
	assert.Equal(t, n1, n2)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocs)
	assert.Equal(t, n1, stats.TotalChunks)
}

func TestLexicalIndex_Delete(t *testing.T) {
	idx := newLexicalIndex(t)
	ctx := context.Background()

	_, err := idx.Index(ctx, testDoc("d1", "document one about golang concurrency patterns", item.Metadata{}))
	require.NoError(t, err)
	_, err = idx.Index(ctx, testDoc("d2", "document two about rust ownership semantics", item.Metadata{}))
	require.NoError(t, err)

	require.NoError(t, idx.Delete(ctx, "d1"))

	ids, err := idx.AllDocIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, ids)

	results, err := idx.Search(ctx, "golang concurrency", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalIndex_GroupByDocKeepsBestChunk(t *testing.T) {
	idx := newLexicalIndex(t)
	ctx := context.Background()

	// Long enough to span several chunks, every one mentioning the term.
	long := strings.Repeat("distributed consensus raft leader election logs. ", 60)
	_, err := idx.Index(ctx, testDoc("big", long, item.Metadata{}))
	require.NoError(t, err)
	_, err = idx.Index(ctx, testDoc("small",
		"a single short note that mentions raft exactly once among other words",
		item.Metadata{}))
	require.NoError(t, err)

	grouped, err := idx.Search(ctx, "raft", 10, true)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, r := range grouped {
		assert.False(t, seen[r.DocID], "doc %s appears twice", r.DocID)
		seen[r.DocID] = true
	}
	assert.True(t, seen["big"])
	assert.True(t, seen["small"])
}

func TestLexicalIndex_SearchEmptyQuery(t *testing.T) {
	idx := newLexicalIndex(t)

	results, err := idx.Search(context.Background(), "   ", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLexicalIndex_ClosedReturnsNotInitialized(t *testing.T) {
	idx := newLexicalIndex(t)
	require.NoError(t, idx.Close())

	_, err := idx.Index(context.Background(), testDoc("d1", "some content here to index", item.Metadata{}))
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeNotInitialized, rerrors.GetCode(err))
}

func TestLexicalIndex_CJKSearch(t *testing.T) {
	idx := newLexicalIndex(t)
	ctx := context.Background()

	_, err := idx.Index(ctx, testDoc("zh",
		"自然语言处理是人工智能的一个重要方向，研究如何让计算机理解人类语言。",
		item.Metadata{Title: "NLP笔记"}))
	require.NoError(t, err)

	results, err := idx.Search(ctx, "自然语言处理", 10, false)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "zh", results[0].DocID)
}
