package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/omniclipper/recall/internal/chunk"
	"github.com/omniclipper/recall/internal/compose"
	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/item"
	"github.com/omniclipper/recall/internal/textseg"
)

// surfaceAnalyzerName is the analyzer for pre-tokenized surface text.
// Composition already ran script-aware segmentation, so the analyzer only
// needs to split on whitespace and lowercase.
const surfaceAnalyzerName = "recall_surface"

// deleteBatchSize bounds each delete-by-document query page.
const deleteBatchSize = 1000

// LexicalIndex is the Bleve-backed BM25 keyword index. Indexing composes
// the weighted metadata surface, chunks it, and replaces all rows for the
// document atomically relative to other writers.
type LexicalIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	path     string
	tok      *textseg.Tokenizer
	splitter *chunk.Splitter
	opts     chunk.Options
	closed   bool
}

// Verify interface implementation at compile time.
var _ Lexical = (*LexicalIndex)(nil)

// lexicalChunk is the document structure stored per chunk.
type lexicalChunk struct {
	DocID      string   `json:"doc_id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags"`
	ChunkIndex int      `json:"chunk_index"`
	Text       string   `json:"text"`
}

// NewLexicalIndex creates or opens a lexical index. An empty path creates
// an in-memory index for testing.
func NewLexicalIndex(path string, tok *textseg.Tokenizer, opts chunk.Options) (*LexicalIndex, error) {
	indexMapping, err := createSurfaceMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &LexicalIndex{
		index:    idx,
		path:     path,
		tok:      tok,
		splitter: chunk.NewSplitter(tok),
		opts:     opts,
	}, nil
}

// createSurfaceMapping builds the Bleve mapping: analyzed text field plus
// stored keyword metadata fields.
func createSurfaceMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(surfaceAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": whitespace.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = surfaceAnalyzerName
	textField.Store = true

	keywordField := bleve.NewKeywordFieldMapping()
	keywordField.Store = true

	numericField := bleve.NewNumericFieldMapping()
	numericField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("doc_id", keywordField)
	doc.AddFieldMappingsAt("title", keywordField)
	doc.AddFieldMappingsAt("type", keywordField)
	doc.AddFieldMappingsAt("tags", keywordField)
	doc.AddFieldMappingsAt("chunk_index", numericField)

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = surfaceAnalyzerName

	return indexMapping, nil
}

// Index replaces all chunks for doc and inserts the newly composed set.
// Returns the number of chunks indexed. Documents whose composed surface
// is below MinContentLength are skipped with ContentTooShort.
func (l *LexicalIndex) Index(ctx context.Context, doc *item.Document) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, rerrors.NotInitialized("lexical index")
	}

	surface := compose.Compose(doc.Text, doc.Metadata, l.tok)
	if n := utf8.RuneCountInString(strings.TrimSpace(surface)); n < MinContentLength {
		return 0, rerrors.ContentTooShort(doc.ID, n)
	}

	pieces := l.splitter.Split(surface, l.opts)

	// Delete-then-insert keeps re-indexing idempotent: no stale chunk for
	// this doc_id survives.
	if err := l.deleteLocked(ctx, doc.ID); err != nil {
		return 0, rerrors.IndexWriteFailed("delete existing chunks", err)
	}

	batch := l.index.NewBatch()
	for _, p := range pieces {
		row := lexicalChunk{
			DocID:      doc.ID,
			Title:      doc.Metadata.Title,
			Type:       doc.Metadata.Type,
			Tags:       doc.Metadata.Tags,
			ChunkIndex: p.Index,
			Text:       p.Text,
		}
		if err := batch.Index(p.ID, row); err != nil {
			return 0, rerrors.IndexWriteFailed("batch chunk "+p.ID, err)
		}
	}
	if err := l.index.Batch(batch); err != nil {
		return 0, rerrors.IndexWriteFailed("execute batch", err)
	}

	return len(pieces), nil
}

// Search tokenizes the query and runs a ranked match. With groupByDoc the
// result list is collapsed to the best-scoring chunk per document, so a
// single long document cannot monopolize the result list.
func (l *LexicalIndex) Search(ctx context.Context, query string, limit int, groupByDoc bool) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, rerrors.NotInitialized("lexical index")
	}

	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*LexicalResult{}, nil
	}

	// Over-fetch when grouping so enough distinct documents remain after
	// the collapse.
	size := limit
	if groupByDoc {
		size = limit * 3
	}

	matchQuery := bleve.NewMatchQuery(l.tok.Tokenize(query))
	matchQuery.SetField("text")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = size
	req.Fields = []string{"doc_id", "title", "type", "tags", "chunk_index", "text"}

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]*LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &LexicalResult{
			ChunkID:    hit.ID,
			DocID:      fieldString(hit.Fields, "doc_id"),
			ChunkIndex: fieldInt(hit.Fields, "chunk_index"),
			Text:       fieldString(hit.Fields, "text"),
			Score:      hit.Score,
			Title:      fieldString(hit.Fields, "title"),
			Type:       fieldString(hit.Fields, "type"),
			Tags:       fieldStrings(hit.Fields, "tags"),
		})
	}

	if groupByDoc {
		results = bestChunkPerDoc(results)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Delete removes every chunk belonging to docID.
func (l *LexicalIndex) Delete(ctx context.Context, docID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return rerrors.NotInitialized("lexical index")
	}
	if err := l.deleteLocked(ctx, docID); err != nil {
		return rerrors.IndexWriteFailed("delete document "+docID, err)
	}
	return nil
}

// deleteLocked removes chunks for docID. Caller holds l.mu.
func (l *LexicalIndex) deleteLocked(ctx context.Context, docID string) error {
	for {
		termQuery := bleve.NewTermQuery(docID)
		termQuery.SetField("doc_id")

		req := bleve.NewSearchRequest(termQuery)
		req.Size = deleteBatchSize
		req.Fields = []string{}

		res, err := l.index.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := l.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := l.index.Batch(batch); err != nil {
			return err
		}
		if len(res.Hits) < deleteBatchSize {
			return nil
		}
	}
}

// AllDocIDs returns the distinct document IDs present in the index.
func (l *LexicalIndex) AllDocIDs(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, rerrors.NotInitialized("lexical index")
	}
	return l.allDocIDsLocked(ctx)
}

func (l *LexicalIndex) allDocIDsLocked(ctx context.Context) ([]string, error) {
	count, err := l.index.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []string{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = []string{"doc_id"}

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id := fieldString(hit.Fields, "doc_id")
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats returns index statistics for the diagnostics view.
func (l *LexicalIndex) Stats(ctx context.Context) (*Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, rerrors.NotInitialized("lexical index")
	}

	ids, err := l.allDocIDsLocked(ctx)
	if err != nil {
		return nil, err
	}
	chunks, _ := l.index.DocCount()

	return &Stats{
		TotalDocs:   len(ids),
		TotalChunks: int(chunks),
		Path:        l.path,
	}, nil
}

// Close closes the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}

// bestChunkPerDoc keeps the highest-scoring chunk per document, preserving
// the overall score order.
func bestChunkPerDoc(results []*LexicalResult) []*LexicalResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]*LexicalResult, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.DocID]; ok {
			continue
		}
		seen[r.DocID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func fieldInt(fields map[string]interface{}, name string) int {
	if v, ok := fields[name].(float64); ok {
		return int(v)
	}
	return 0
}

func fieldStrings(fields map[string]interface{}, name string) []string {
	switch v := fields[name].(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
