// Package search provides hybrid retrieval combining lexical and vector
// search. Result streams are merged with Reciprocal Rank Fusion (RRF).
package search

import (
	"sort"

	"github.com/omniclipper/recall/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// Weights distribute rank contributions between the two subsystems.
type Weights struct {
	Vector float64
	BM25   float64
}

// DefaultWeights favors semantic matches. Callers overriding this must
// use one convention across all call sites.
var DefaultWeights = Weights{Vector: 0.6, BM25: 0.4}

// FusedResult is a single candidate after RRF fusion.
type FusedResult struct {
	DocID       string
	ChunkID     string // best-matching chunk for the document
	Text        string
	Score       float64 // fused score, normalized to 0-1
	BM25Score   float64 // original lexical score (preserved)
	BM25Rank    int     // position in the lexical list (1-indexed, 0 if absent)
	VectorScore float64 // original vector similarity (preserved)
	VectorRank  int     // position in the vector list (1-indexed, 0 if absent)
	InBothLists bool
	Title       string
	Type        string
	Tags        []string
}

// Fuser combines lexical and vector search results using Reciprocal
// Rank Fusion.
//
// Algorithm: score(d) = Σ weight_S / (k + rank_S)
//
// where rank_S is the candidate's 1-indexed position in subsystem S's
// list. A candidate absent from one list simply receives no contribution
// from it.
type Fuser struct {
	K int // smoothing constant (default: 60)
}

// NewFuser creates a Fuser with the default k=60.
func NewFuser() *Fuser {
	return &Fuser{K: DefaultRRFConstant}
}

// NewFuserWithK creates a Fuser with a custom k. Non-positive k falls
// back to the default.
func NewFuserWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{K: k}
}

// Fuse merges the two ranked lists, keyed by document.
//
// Results are sorted by: Score (desc) → InBothLists (true first) →
// VectorScore (desc) → DocID (asc), then normalized so the top score
// is 1.0.
func (f *Fuser) Fuse(lexical []*store.LexicalResult, vector []*store.VectorResult, weights Weights) []*FusedResult {
	// Empty slice, not nil, so callers can range without nil checks.
	if len(lexical) == 0 && len(vector) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(lexical)+len(vector))

	for rank, r := range lexical {
		result := f.getOrCreate(scores, r.DocID)
		result.ChunkID = r.ChunkID
		result.Text = r.Text
		result.Title = r.Title
		result.Type = r.Type
		result.Tags = r.Tags
		result.BM25Score = r.Score
		result.BM25Rank = rank + 1
		result.Score += weights.BM25 / float64(f.K+rank+1)
	}

	for rank, r := range vector {
		result := f.getOrCreate(scores, r.DocID)
		// Vector hits carry the raw chunk text; prefer it for display
		// over the weighted lexical surface.
		result.ChunkID = r.ChunkID
		result.Text = r.Text
		result.Title = r.Title
		result.Type = r.Type
		result.Tags = r.Tags
		result.VectorScore = float64(r.Score)
		result.VectorRank = rank + 1
		result.Score += weights.Vector / float64(f.K+rank+1)

		if result.BM25Rank > 0 {
			result.InBothLists = true
		}
	}

	results := f.toSortedSlice(scores)
	f.normalize(results)
	return results
}

func (f *Fuser) getOrCreate(m map[string]*FusedResult, docID string) *FusedResult {
	if r, ok := m[docID]; ok {
		return r
	}
	r := &FusedResult{DocID: docID}
	m[docID] = r
	return r
}

func (f *Fuser) toSortedSlice(m map[string]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})
	return results
}

// compare returns true if a ranks before b.
//
// Priority:
//  1. Higher fused score
//  2. In both lists (true before false)
//  3. Higher vector similarity
//  4. Lexicographically smaller DocID (deterministic)
func (f *Fuser) compare(a, b *FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.VectorScore != b.VectorScore {
		return a.VectorScore > b.VectorScore
	}
	return a.DocID < b.DocID
}

// normalize scales fused scores to 0-1, with the maximum becoming 1.0.
func (f *Fuser) normalize(results []*FusedResult) {
	if len(results) == 0 {
		return
	}
	maxScore := results[0].Score
	if maxScore == 0 {
		return
	}
	for _, r := range results {
		r.Score /= maxScore
	}
}
