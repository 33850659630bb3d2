// Package index owns the lifecycle of the two search indexes: indexing,
// deletion, bulk re-indexing, and cross-index consistency.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/item"
	"github.com/omniclipper/recall/internal/store"
)

// Manager coordinates the lexical and embedding indexes. Mutations for a
// given document are serialized so delete-then-insert stays atomic per
// document; operations on distinct documents may proceed concurrently.
type Manager struct {
	lexical store.Lexical
	vector  store.Vector
	logger  *slog.Logger

	mu      sync.Mutex
	docLock map[string]*docMutex
}

// docMutex is a per-document lock with a reference count so idle entries
// can be reclaimed.
type docMutex struct {
	sync.Mutex
	refs int
}

// Result reports the outcome of indexing one document. Warnings carry
// subsystem failures that degraded, but did not abort, the operation.
type Result struct {
	DocID         string
	LexicalChunks int
	VectorChunks  int
	Skipped       bool
	Warnings      []string
}

// ProgressFunc receives bulk re-index progress after each document.
type ProgressFunc func(done, total int, docID string)

// NewManager creates a lifecycle manager over the two indexes.
func NewManager(lexical store.Lexical, vector store.Vector, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		lexical: lexical,
		vector:  vector,
		logger:  logger,
		docLock: make(map[string]*docMutex),
	}
}

func (m *Manager) lockDoc(docID string) func() {
	m.mu.Lock()
	l, ok := m.docLock[docID]
	if !ok {
		l = &docMutex{}
		m.docLock[docID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.docLock, docID)
		}
		m.mu.Unlock()
	}
}

// Index writes the document into both indexes. Content below the minimum
// length is a skip, not an error. A single subsystem failure is recorded
// as a warning; search has weaker recall for the document until the next
// successful re-index. Re-indexing is idempotent: both subsystems delete
// existing chunks before inserting the new set.
func (m *Manager) Index(ctx context.Context, doc *item.Document) (*Result, error) {
	if doc == nil || doc.ID == "" {
		return nil, rerrors.New(rerrors.ErrCodeInternal, "document with ID required", nil)
	}

	unlock := m.lockDoc(doc.ID)
	defer unlock()

	res := &Result{DocID: doc.ID}

	lexN, err := m.lexical.Index(ctx, doc)
	switch {
	case err == nil:
		res.LexicalChunks = lexN
	case rerrors.IsContentTooShort(err):
		m.logger.Debug("document too short, skipping", "doc_id", doc.ID)
		res.Skipped = true
		return res, nil
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("lexical index: %v", err))
		m.logger.Warn("lexical indexing failed", "doc_id", doc.ID, "error", err)
	}

	vecN, err := m.vector.Index(ctx, doc)
	switch {
	case err == nil:
		res.VectorChunks = vecN
	case rerrors.IsContentTooShort(err):
		// The lexical surface includes repeated metadata, so the raw text
		// can fall under the minimum even when the surface did not.
		m.logger.Debug("raw text too short for embedding", "doc_id", doc.ID)
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("embedding index: %v", err))
		m.logger.Warn("vector indexing failed", "doc_id", doc.ID, "error", err)
	}

	return res, nil
}

// Delete removes the document from both indexes. Failures are logged and
// swallowed so item deletion in the caller never fails on index cleanup.
func (m *Manager) Delete(ctx context.Context, docID string) {
	unlock := m.lockDoc(docID)
	defer unlock()

	if err := m.lexical.Delete(ctx, docID); err != nil {
		m.logger.Warn("lexical delete failed", "doc_id", docID, "error", err)
	}
	if err := m.vector.Delete(ctx, docID); err != nil {
		m.logger.Warn("vector delete failed", "doc_id", docID, "error", err)
	}
}

// ReindexAll re-indexes every document, reporting progress after each.
// Per-document failures degrade to warnings; the bulk job keeps going.
// Returns the number of documents fully indexed without warnings.
func (m *Manager) ReindexAll(ctx context.Context, docs []*item.Document, onProgress ProgressFunc) (int, error) {
	clean := 0
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return clean, err
		}
		res, err := m.Index(ctx, doc)
		if err != nil {
			m.logger.Warn("reindex failed", "doc_id", doc.ID, "error", err)
		} else if !res.Skipped && len(res.Warnings) == 0 {
			clean++
		}
		if onProgress != nil {
			onProgress(i+1, len(docs), doc.ID)
		}
	}
	return clean, nil
}

// CheckMissing returns the subset of ids that have no vectors under the
// active embedding model, preserving input order. Used after a model
// switch or bulk import to find documents needing embedding; the caller
// decides when to backfill.
func (m *Manager) CheckMissing(ctx context.Context, ids []string) ([]string, error) {
	return m.vector.CheckMissing(ctx, ids)
}

// Stats gathers statistics from both indexes.
func (m *Manager) Stats(ctx context.Context) (lexical, vector *store.Stats, err error) {
	lexical, err = m.lexical.Stats(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("lexical stats: %w", err)
	}
	vector, err = m.vector.Stats(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("vector stats: %w", err)
	}
	return lexical, vector, nil
}

// Close closes both indexes, returning the first error.
func (m *Manager) Close() error {
	lexErr := m.lexical.Close()
	vecErr := m.vector.Close()
	if lexErr != nil {
		return lexErr
	}
	return vecErr
}
