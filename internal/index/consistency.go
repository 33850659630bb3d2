package index

import (
	"context"
	"sort"
	"time"

	"github.com/omniclipper/recall/internal/store"
)

// InconsistencyType categorizes detected cross-index issues.
type InconsistencyType int

const (
	// InconsistencyMissingLexical is a document the embedding index knows
	// but the lexical index does not.
	InconsistencyMissingLexical InconsistencyType = iota
	// InconsistencyMissingVector is a document the lexical index knows
	// but the embedding index does not.
	InconsistencyMissingVector
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissingLexical:
		return "missing_lexical"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected cross-index issue.
type Inconsistency struct {
	Type  InconsistencyType
	DocID string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	LexicalDocs     int
	VectorDocs      int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Healthy reports whether no inconsistencies were found.
func (r *CheckResult) Healthy() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker diffs the document ID sets of the two indexes.
// Partial indexing failures leave one-sided documents behind; this
// check finds them so the caller can re-index or delete.
type ConsistencyChecker struct {
	lexical store.Lexical
	vector  store.Vector
}

// NewConsistencyChecker creates a checker over the two indexes.
func NewConsistencyChecker(lexical store.Lexical, vector store.Vector) *ConsistencyChecker {
	return &ConsistencyChecker{lexical: lexical, vector: vector}
}

// Check enumerates both indexes and reports documents present in only
// one. O(n) in the number of indexed documents.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	lexIDs, err := c.lexical.AllDocIDs(ctx)
	if err != nil {
		return nil, err
	}
	vecIDs, err := c.vector.AllDocIDs(ctx)
	if err != nil {
		return nil, err
	}

	lexSet := make(map[string]struct{}, len(lexIDs))
	for _, id := range lexIDs {
		lexSet[id] = struct{}{}
	}
	vecSet := make(map[string]struct{}, len(vecIDs))
	for _, id := range vecIDs {
		vecSet[id] = struct{}{}
	}

	result := &CheckResult{
		LexicalDocs: len(lexIDs),
		VectorDocs:  len(vecIDs),
	}
	for _, id := range lexIDs {
		if _, ok := vecSet[id]; !ok {
			result.Inconsistencies = append(result.Inconsistencies,
				Inconsistency{Type: InconsistencyMissingVector, DocID: id})
		}
	}
	for _, id := range vecIDs {
		if _, ok := lexSet[id]; !ok {
			result.Inconsistencies = append(result.Inconsistencies,
				Inconsistency{Type: InconsistencyMissingLexical, DocID: id})
		}
	}
	sort.Slice(result.Inconsistencies, func(i, j int) bool {
		a, b := result.Inconsistencies[i], result.Inconsistencies[j]
		if a.DocID != b.DocID {
			return a.DocID < b.DocID
		}
		return a.Type < b.Type
	})

	result.Duration = time.Since(start)
	return result, nil
}
