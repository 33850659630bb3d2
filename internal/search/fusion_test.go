package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniclipper/recall/internal/store"
)

func lexHit(docID, chunkID string, score float64) *store.LexicalResult {
	return &store.LexicalResult{DocID: docID, ChunkID: chunkID, Text: "lex " + chunkID, Score: score}
}

func vecHit(docID, chunkID string, score float32) *store.VectorResult {
	return &store.VectorResult{DocID: docID, ChunkID: chunkID, Text: "vec " + chunkID, Score: score}
}

func TestFuser_Fuse_BothEmpty(t *testing.T) {
	f := NewFuser()

	results := f.Fuse(nil, nil, DefaultWeights)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuser_Fuse_DocInBothListsWins(t *testing.T) {
	f := NewFuser()

	lexical := []*store.LexicalResult{
		lexHit("a", "a1", 2.0),
		lexHit("b", "b1", 1.5),
	}
	vector := []*store.VectorResult{
		vecHit("b", "b2", 0.9),
		vecHit("c", "c1", 0.8),
	}

	results := f.Fuse(lexical, vector, DefaultWeights)
	require.Len(t, results, 3)

	// b appears in both lists and accumulates both contributions.
	assert.Equal(t, "b", results[0].DocID)
	assert.True(t, results[0].InBothLists)
	assert.Equal(t, 2, results[0].BM25Rank)
	assert.Equal(t, 1, results[0].VectorRank)
}

func TestFuser_Fuse_NormalizedScores(t *testing.T) {
	f := NewFuser()

	results := f.Fuse(
		[]*store.LexicalResult{lexHit("a", "a1", 3.0), lexHit("b", "b1", 2.0)},
		[]*store.VectorResult{vecHit("a", "a2", 0.9)},
		DefaultWeights)

	require.NotEmpty(t, results)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestFuser_Fuse_SingleListDegrades(t *testing.T) {
	f := NewFuser()

	lexical := []*store.LexicalResult{
		lexHit("a", "a1", 5.0),
		lexHit("b", "b1", 3.0),
		lexHit("c", "c1", 1.0),
	}

	results := f.Fuse(lexical, nil, DefaultWeights)
	require.Len(t, results, 3)
	// Lexical order is preserved when vector contributes nothing.
	assert.Equal(t, "a", results[0].DocID)
	assert.Equal(t, "b", results[1].DocID)
	assert.Equal(t, "c", results[2].DocID)
	for _, r := range results {
		assert.Zero(t, r.VectorRank)
		assert.False(t, r.InBothLists)
	}
}

func TestFuser_Fuse_WeightsShiftRanking(t *testing.T) {
	f := NewFuser()

	lexical := []*store.LexicalResult{lexHit("lexdoc", "l1", 4.0)}
	vector := []*store.VectorResult{vecHit("vecdoc", "v1", 0.95)}

	vecHeavy := f.Fuse(lexical, vector, Weights{Vector: 0.9, BM25: 0.1})
	assert.Equal(t, "vecdoc", vecHeavy[0].DocID)

	lexHeavy := f.Fuse(lexical, vector, Weights{Vector: 0.1, BM25: 0.9})
	assert.Equal(t, "lexdoc", lexHeavy[0].DocID)
}

func TestFuser_Fuse_DeterministicTieBreak(t *testing.T) {
	f := NewFuser()

	// Two docs at the same rank in opposite lists with equal weights tie
	// on fused score; the doc in neither both-lists state falls back to
	// vector score then ID ordering.
	lexical := []*store.LexicalResult{lexHit("zeta", "z1", 1.0)}
	vector := []*store.VectorResult{vecHit("alpha", "a1", 0.0)}

	results := f.Fuse(lexical, vector, Weights{Vector: 0.5, BM25: 0.5})
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].DocID)
	assert.Equal(t, "zeta", results[1].DocID)
}

func TestFuser_Fuse_RankContribution(t *testing.T) {
	f := NewFuserWithK(60)

	lexical := []*store.LexicalResult{
		lexHit("a", "a1", 2.0),
		lexHit("b", "b1", 1.0),
	}
	results := f.Fuse(lexical, nil, Weights{Vector: 0.6, BM25: 0.4})
	require.Len(t, results, 2)

	// Before normalization: a = 0.4/61, b = 0.4/62. After scaling the top
	// to 1.0, b = 61/62.
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 61.0/62.0, results[1].Score, 1e-9)
}

func TestNewFuserWithK_NonPositiveFallsBack(t *testing.T) {
	assert.Equal(t, DefaultRRFConstant, NewFuserWithK(0).K)
	assert.Equal(t, DefaultRRFConstant, NewFuserWithK(-3).K)
	assert.Equal(t, 10, NewFuserWithK(10).K)
}

func TestFuser_Fuse_TopOfBothListsStaysTop(t *testing.T) {
	f := NewFuser()
	lexical := []*store.LexicalResult{
		lexHit("champ", "c1", 9.0),
		lexHit("a", "a1", 5.0),
		lexHit("b", "b1", 2.0),
	}
	vector := []*store.VectorResult{
		vecHit("champ", "c2", 0.95),
		vecHit("x", "x1", 0.9),
		vecHit("a", "a2", 0.5),
	}

	results := f.Fuse(lexical, vector, DefaultWeights)
	require.NotEmpty(t, results)
	// Rank 1 in both lists collects the maximum contribution from each,
	// so no competitor can outscore it.
	assert.Equal(t, "champ", results[0].DocID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}
