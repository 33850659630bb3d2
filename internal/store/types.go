// Package store provides the two persistent index backends: the lexical
// (BM25, Bleve) index and the embedding (HNSW + SQLite) index. Both are
// keyed by chunk and support insert/delete at document granularity.
package store

import (
	"context"
	"fmt"

	"github.com/omniclipper/recall/internal/item"
)

// MinContentLength is the minimum indexable text length in runes.
// Shorter documents are skipped with ContentTooShort, not failed.
const MinContentLength = 10

// LexicalResult is a single lexical search hit at chunk granularity.
type LexicalResult struct {
	ChunkID    string
	DocID      string
	ChunkIndex int
	Text       string
	Score      float64 // raw BM25 score, higher is better
	Title      string
	Type       string
	Tags       []string
}

// VectorResult is a single embedding search hit at chunk granularity.
type VectorResult struct {
	ChunkID    string
	DocID      string
	ChunkIndex int
	Text       string
	Distance   float32 // cosine distance, lower is more similar
	Score      float32 // normalized similarity (0-1)
	Title      string
	Type       string
	Tags       []string
}

// Stats describes one index subsystem for diagnostics views.
type Stats struct {
	TotalDocs   int
	TotalChunks int
	Path        string
}

// Lexical is the keyword index surface the fusion ranker and lifecycle
// manager depend on. Implemented by LexicalIndex; faked in tests.
type Lexical interface {
	Index(ctx context.Context, doc *item.Document) (int, error)
	Search(ctx context.Context, query string, limit int, groupByDoc bool) ([]*LexicalResult, error)
	Delete(ctx context.Context, docID string) error
	AllDocIDs(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Vector is the embedding index surface. Implemented by EmbeddingIndex.
type Vector interface {
	Index(ctx context.Context, doc *item.Document) (int, error)
	Search(ctx context.Context, query string, limit int, threshold float32, groupByDoc bool) ([]*VectorResult, error)
	Delete(ctx context.Context, docID string) error
	CheckMissing(ctx context.Context, ids []string) ([]string, error)
	AllDocIDs(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// ErrDimensionMismatch is returned when a vector's length does not match
// the dimensionality of the table it is stored in.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
