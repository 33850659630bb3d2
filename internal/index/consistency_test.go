package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsistencyChecker_Healthy(t *testing.T) {
	lex, vec := newRecordingLexical(), newRecordingVector()
	lex.docIDs = []string{"a", "b"}
	vec.docIDs = []string{"b", "a"}

	result, err := NewConsistencyChecker(lex, vec).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Healthy())
	assert.Equal(t, 2, result.LexicalDocs)
	assert.Equal(t, 2, result.VectorDocs)
}

func TestConsistencyChecker_DetectsOneSidedDocs(t *testing.T) {
	lex, vec := newRecordingLexical(), newRecordingVector()
	lex.docIDs = []string{"a", "b", "c"}
	vec.docIDs = []string{"b", "d"}

	result, err := NewConsistencyChecker(lex, vec).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Healthy())
	require.Len(t, result.Inconsistencies, 3)

	assert.Equal(t, Inconsistency{Type: InconsistencyMissingVector, DocID: "a"}, result.Inconsistencies[0])
	assert.Equal(t, Inconsistency{Type: InconsistencyMissingVector, DocID: "c"}, result.Inconsistencies[1])
	assert.Equal(t, Inconsistency{Type: InconsistencyMissingLexical, DocID: "d"}, result.Inconsistencies[2])
}

func TestInconsistencyType_String(t *testing.T) {
	assert.Equal(t, "missing_lexical", InconsistencyMissingLexical.String())
	assert.Equal(t, "missing_vector", InconsistencyMissingVector.String())
}
