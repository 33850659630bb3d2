package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/store"
)

// Overfetch multiplier applied to each subsystem so fusion has enough
// candidates after grouping and the confidence floor.
const candidateFactor = 2

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Options control a single hybrid search.
type Options struct {
	// Limit is the maximum number of fused results (default: 10).
	Limit int

	// Weights distribute rank contributions between subsystems.
	// Nil means DefaultWeights.
	Weights *Weights

	// K overrides the RRF smoothing constant. Non-positive means
	// DefaultRRFConstant.
	K int

	// DistanceThreshold discards vector candidates beyond this cosine
	// distance. Zero disables the filter.
	DistanceThreshold float32

	// MinScore drops fused results below this normalized score.
	MinScore float64

	// GroupByDoc collapses results to the best chunk per document.
	GroupByDoc bool

	// LexicalOnly restricts the search to the keyword index.
	LexicalOnly bool

	// VectorOnly restricts the search to the embedding index.
	VectorOnly bool
}

// SearchResult is a fused, display-ready hit.
type SearchResult struct {
	ID         string   `json:"id"` // document ID
	ChunkID    string   `json:"chunkId"`
	Text       string   `json:"text"`
	Score      float64  `json:"score"` // fused, normalized 0-1
	VectorRank int      `json:"vectorRank,omitempty"`
	BM25Rank   int      `json:"bm25Rank,omitempty"`
	Title      string   `json:"title,omitempty"`
	Type       string   `json:"type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Engine runs lexical and vector searches concurrently and fuses the
// two rankings into a single relevance-ordered list.
type Engine struct {
	lexical store.Lexical
	vector  store.Vector
	fuser   *Fuser
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewEngine creates a hybrid search engine. Both indexes are required.
func NewEngine(lexical store.Lexical, vector store.Vector, logger *slog.Logger) (*Engine, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: embedding index is required", ErrNilDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		lexical: lexical,
		vector:  vector,
		fuser:   NewFuser(),
		logger:  logger,
	}, nil
}

// Search executes the hybrid query. If one subsystem fails or returns
// nothing, ranking degrades to the other alone; an error surfaces only
// when both sides fail.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return []*SearchResult{}, nil
	}
	if opts.LexicalOnly && opts.VectorOnly {
		return nil, fmt.Errorf("lexical-only and vector-only are mutually exclusive")
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	weights := DefaultWeights
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	lexResults, vecResults, err := e.parallelSearch(ctx, query, opts)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.ErrCodeSearchFailed, err)
	}

	fuser := e.fuser
	if opts.K > 0 && opts.K != fuser.K {
		fuser = NewFuserWithK(opts.K)
	}
	fused := fuser.Fuse(lexResults, vecResults, weights)

	results := make([]*SearchResult, 0, opts.Limit)
	for _, r := range fused {
		if r.Score < opts.MinScore {
			continue
		}
		results = append(results, &SearchResult{
			ID:         r.DocID,
			ChunkID:    r.ChunkID,
			Text:       r.Text,
			Score:      r.Score,
			VectorRank: r.VectorRank,
			BM25Rank:   r.BM25Rank,
			Title:      r.Title,
			Type:       r.Type,
			Tags:       r.Tags,
		})
		if len(results) == opts.Limit {
			break
		}
	}
	return results, nil
}

// parallelSearch issues both subsystem searches concurrently, each
// requesting limit*2 candidates. A single-side failure yields partial
// results; the error is non-nil only when both sides fail.
func (e *Engine) parallelSearch(ctx context.Context, query string, opts Options) (
	lexResults []*store.LexicalResult,
	vecResults []*store.VectorResult,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	limit := opts.Limit * candidateFactor
	runLex := !opts.VectorOnly
	runVec := !opts.LexicalOnly
	var lexErr, vecErr error

	if runLex {
		g.Go(func() error {
			var searchErr error
			lexResults, searchErr = e.lexical.Search(gctx, query, limit, opts.GroupByDoc)
			if searchErr != nil {
				// Keep the vector side running.
				lexErr = searchErr
			}
			return nil
		})
	}

	if runVec {
		g.Go(func() error {
			var searchErr error
			vecResults, searchErr = e.vector.Search(gctx, query, limit, opts.DistanceThreshold, opts.GroupByDoc)
			if searchErr != nil {
				vecErr = searchErr
			}
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		// Context cancelled.
		return nil, nil, waitErr
	}

	// An error surfaces only when no subsystem produced a ranking.
	if (!runLex || lexErr != nil) && (!runVec || vecErr != nil) {
		return nil, nil, errors.Join(lexErr, vecErr)
	}
	if lexErr != nil {
		e.logger.Warn("lexical search failed, using vector results only", "error", lexErr)
	}
	if vecErr != nil {
		e.logger.Warn("vector search failed, using lexical results only", "error", vecErr)
	}
	return lexResults, vecResults, nil
}
