package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/omniclipper/recall/internal/chunk"
	"github.com/omniclipper/recall/internal/embed"
	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/item"
)

// overfetchFactor over-requests ANN candidates to leave room for distance
// threshold filtering and per-document grouping.
const overfetchFactor = 3

// EmbeddingIndexConfig configures the embedding index.
type EmbeddingIndexConfig struct {
	// Path is the SQLite database path. Empty means in-memory (testing).
	Path string

	// Model is the active embedding model. Each model owns a distinct
	// physical table so vectors of incompatible dimensionality are never
	// colocated.
	Model embed.Model

	// ChunkOptions bounds raw-text chunking.
	ChunkOptions chunk.Options

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// EmbeddingIndex is the per-model vector store: chunk rows persist in a
// model-specific SQLite table, the HNSW graph serves approximate
// nearest-neighbor search and is rebuilt from the rows at open.
type EmbeddingIndex struct {
	mu       sync.RWMutex
	db       *sql.DB
	graph    *hnsw.Graph[string]
	config   EmbeddingIndexConfig
	table    string
	embedder embed.Embedder
	splitter *chunk.Splitter
	closed   bool

	// docByChunk maps live chunk IDs to their document. Graph deletion is
	// lazy: nodes absent from this map are orphans and skipped at search.
	docByChunk map[string]string
}

// Verify interface implementation at compile time.
var _ Vector = (*EmbeddingIndex)(nil)

// NewEmbeddingIndex opens (or creates) the embedding index for the
// configured model and rebuilds the ANN graph from the persisted rows.
func NewEmbeddingIndex(cfg EmbeddingIndexConfig, embedder embed.Embedder, splitter *chunk.Splitter) (*EmbeddingIndex, error) {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	dsn := ":memory:"
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		dsn = cfg.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; WAL must be set via PRAGMA for modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	e := &EmbeddingIndex{
		db:         db,
		config:     cfg,
		table:      "vec_chunks_" + cfg.Model.Table,
		embedder:   embedder,
		splitter:   splitter,
		docByChunk: make(map[string]string),
	}
	e.graph = e.newGraph()

	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := e.loadGraph(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	return e, nil
}

func (e *EmbeddingIndex) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = e.config.M
	g.EfSearch = e.config.EfSearch
	g.Ml = 0.25
	return g
}

// initSchema creates the per-model chunk table. The table name carries the
// model's physical table identifier so switching models never mixes
// incompatible vectors.
func (e *EmbeddingIndex) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		chunk_id    TEXT PRIMARY KEY,
		doc_id      TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text        TEXT NOT NULL,
		vector      BLOB NOT NULL,
		title       TEXT,
		type        TEXT,
		tags        TEXT,
		created_at  TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_%s_doc_id ON %s (doc_id);
	`, e.table, e.table, e.table)

	_, err := e.db.Exec(schema)
	return err
}

// loadGraph rebuilds the HNSW graph and chunk-to-doc map from rows.
func (e *EmbeddingIndex) loadGraph() error {
	rows, err := e.db.Query(fmt.Sprintf(`SELECT chunk_id, doc_id, vector FROM %s`, e.table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var chunkID, docID string
		var blob []byte
		if err := rows.Scan(&chunkID, &docID, &blob); err != nil {
			return err
		}
		vec, err := decodeVector(blob, e.config.Model.Dimensions)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", chunkID, err)
		}
		e.graph.Add(hnsw.MakeNode(chunkID, vec))
		e.docByChunk[chunkID] = docID
	}
	return rows.Err()
}

// Index chunks the raw document text (no field weighting: embeddings
// already capture semantic salience), embeds each chunk, and replaces the
// document's vectors atomically. Returns the number of chunks indexed.
func (e *EmbeddingIndex) Index(ctx context.Context, doc *item.Document) (int, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return 0, rerrors.NotInitialized("embedding index")
	}

	text := strings.TrimSpace(doc.Text)
	if n := utf8.RuneCountInString(text); n < MinContentLength {
		return 0, rerrors.ContentTooShort(doc.ID, n)
	}

	pieces := e.splitter.Split(doc.Text, e.config.ChunkOptions)
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	// Embedding can be a slow provider round-trip; do it before taking
	// the write lock so searches keep running. Per-document write
	// serialization is the manager's job.
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, rerrors.IndexWriteFailed("embed chunks for "+doc.ID, err)
	}
	for _, v := range vectors {
		if len(v) != e.config.Model.Dimensions {
			return 0, ErrDimensionMismatch{Expected: e.config.Model.Dimensions, Got: len(v)}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, rerrors.NotInitialized("embedding index")
	}

	oldChunks, err := e.chunkIDsForDoc(ctx, doc.ID)
	if err != nil {
		return 0, rerrors.IndexWriteFailed("list existing chunks", err)
	}

	tags, _ := json.Marshal(doc.Metadata.Tags)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rerrors.IndexWriteFailed("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, e.table), doc.ID); err != nil {
		return 0, rerrors.IndexWriteFailed("delete existing rows", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s
		(chunk_id, doc_id, chunk_index, text, vector, title, type, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, e.table)
	for i, p := range pieces {
		if _, err := tx.ExecContext(ctx, insert,
			p.ID, doc.ID, p.Index, p.Text, encodeVector(vectors[i]),
			doc.Metadata.Title, doc.Metadata.Type, string(tags),
			doc.Metadata.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return 0, rerrors.IndexWriteFailed("insert chunk "+p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, rerrors.IndexWriteFailed("commit", err)
	}

	// Rows are committed; update graph and map. Old nodes are lazily
	// deleted by dropping their map entries.
	for _, id := range oldChunks {
		delete(e.docByChunk, id)
	}
	for i, p := range pieces {
		e.graph.Add(hnsw.MakeNode(p.ID, vectors[i]))
		e.docByChunk[p.ID] = doc.ID
	}

	return len(pieces), nil
}

// Search embeds the query and runs approximate nearest-neighbor search.
// Candidates beyond threshold are discarded; with groupByDoc the list is
// collapsed to one best-distance chunk per document.
func (e *EmbeddingIndex) Search(ctx context.Context, query string, limit int, threshold float32, groupByDoc bool) ([]*VectorResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, rerrors.NotInitialized("embedding index")
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*VectorResult{}, nil
	}
	if e.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) != e.config.Model.Dimensions {
		return nil, ErrDimensionMismatch{Expected: e.config.Model.Dimensions, Got: len(queryVec)}
	}

	nodes := e.graph.Search(queryVec, limit*overfetchFactor)

	var candidates []candidate
	for _, node := range nodes {
		docID, live := e.docByChunk[node.Key]
		if !live {
			continue // lazily deleted node
		}
		dist := e.graph.Distance(queryVec, node.Value)
		if threshold > 0 && dist > threshold {
			continue
		}
		candidates = append(candidates, candidate{node.Key, docID, dist})
	}

	if groupByDoc {
		best := make(map[string]int)
		grouped := candidates[:0]
		for _, c := range candidates {
			if i, ok := best[c.docID]; ok {
				if c.distance < grouped[i].distance {
					grouped[i] = c
				}
				continue
			}
			best[c.docID] = len(grouped)
			grouped = append(grouped, c)
		}
		candidates = grouped
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if len(candidates) == 0 {
		return []*VectorResult{}, nil
	}

	rowsByChunk, err := e.fetchRows(ctx, candidates)
	if err != nil {
		return nil, err
	}

	results := make([]*VectorResult, 0, len(candidates))
	for _, c := range candidates {
		r, ok := rowsByChunk[c.chunkID]
		if !ok {
			continue
		}
		r.Distance = c.distance
		r.Score = distanceToScore(c.distance)
		results = append(results, r)
	}
	return results, nil
}

// candidate is an ANN hit awaiting row hydration.
type candidate struct {
	chunkID  string
	docID    string
	distance float32
}

// fetchRows retrieves the stored chunk rows for the final candidate set.
func (e *EmbeddingIndex) fetchRows(ctx context.Context, candidates []candidate) (map[string]*VectorResult, error) {
	placeholders := make([]string, len(candidates))
	args := make([]interface{}, len(candidates))
	for i, c := range candidates {
		placeholders[i] = "?"
		args[i] = c.chunkID
	}

	query := fmt.Sprintf(`SELECT chunk_id, doc_id, chunk_index, text, title, type, tags
		FROM %s WHERE chunk_id IN (%s)`, e.table, strings.Join(placeholders, ","))

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk rows: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*VectorResult, len(candidates))
	for rows.Next() {
		var r VectorResult
		var tags sql.NullString
		var title, typ sql.NullString
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.ChunkIndex, &r.Text, &title, &typ, &tags); err != nil {
			return nil, err
		}
		r.Title = title.String
		r.Type = typ.String
		if tags.Valid && tags.String != "" {
			_ = json.Unmarshal([]byte(tags.String), &r.Tags)
		}
		out[r.ChunkID] = &r
	}
	return out, rows.Err()
}

// Delete removes every chunk belonging to docID.
func (e *EmbeddingIndex) Delete(ctx context.Context, docID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return rerrors.NotInitialized("embedding index")
	}

	chunks, err := e.chunkIDsForDoc(ctx, docID)
	if err != nil {
		return rerrors.IndexWriteFailed("list chunks for "+docID, err)
	}
	if _, err := e.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, e.table), docID); err != nil {
		return rerrors.IndexWriteFailed("delete document "+docID, err)
	}
	for _, id := range chunks {
		delete(e.docByChunk, id)
	}
	return nil
}

// CheckMissing returns the subset of ids that have no vectors under the
// active model, preserving input order. This is how callers discover
// documents needing (re-)embedding after a model switch or bulk import.
func (e *EmbeddingIndex) CheckMissing(ctx context.Context, ids []string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, rerrors.NotInitialized("embedding index")
	}

	known, err := e.allDocIDSet(ctx)
	if err != nil {
		return nil, err
	}

	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// AllDocIDs returns the distinct document IDs present under the active
// model.
func (e *EmbeddingIndex) AllDocIDs(ctx context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, rerrors.NotInitialized("embedding index")
	}

	known, err := e.allDocIDSet(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (e *EmbeddingIndex) allDocIDSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT doc_id FROM %s`, e.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

func (e *EmbeddingIndex) chunkIDsForDoc(ctx context.Context, docID string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT chunk_id FROM %s WHERE doc_id = ?`, e.table), docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats returns index statistics for the diagnostics view.
func (e *EmbeddingIndex) Stats(ctx context.Context) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, rerrors.NotInitialized("embedding index")
	}

	known, err := e.allDocIDSet(ctx)
	if err != nil {
		return nil, err
	}

	var chunks int
	if err := e.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, e.table)).Scan(&chunks); err != nil {
		return nil, err
	}

	return &Stats{
		TotalDocs:   len(known),
		TotalChunks: chunks,
		Path:        e.config.Path,
	}, nil
}

// Model returns the active embedding model.
func (e *EmbeddingIndex) Model() embed.Model {
	return e.config.Model
}

// Close closes the database and releases the graph.
func (e *EmbeddingIndex) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.graph = nil
	return e.db.Close()
}

// encodeVector packs a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a blob, validating the expected dimensionality.
func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != dims*4 {
		return nil, ErrDimensionMismatch{Expected: dims, Got: len(blob) / 4}
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}

// distanceToScore converts cosine distance (0-2) to a similarity score (0-1).
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
