// Package embed provides the embedding capability behind the semantic
// index: the Embedder interface, the registry of known embedding models,
// and fallible initialization with bounded retry and coalescing.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the default timeout for embedding requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of load retries before a model load
	// is surfaced as fatal.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the fixed delay between load attempts.
	DefaultRetryDelay = 2 * time.Second
)

// Model describes a known embedding model. Vectors of different models are
// never colocated: each model owns a distinct physical table sized for its
// dimensionality, resolved once at initialization time.
type Model struct {
	// ID is the model identifier the embedding backend understands.
	ID string

	// Dimensions is the fixed vector length this model produces.
	Dimensions int

	// Table is the physical table suffix vectors for this model live in.
	Table string
}

// Known models. Switching the active model requires a full re-embedding;
// old vectors are not reinterpretable under a new model.
var (
	ModelNomicEmbedText = Model{ID: "nomic-embed-text", Dimensions: 768, Table: "nomic_768"}
	ModelAllMiniLM      = Model{ID: "all-minilm", Dimensions: 384, Table: "minilm_384"}
	ModelStatic         = Model{ID: "static", Dimensions: 256, Table: "static_256"}
)

// Models returns all known models.
func Models() []Model {
	return []Model{ModelNomicEmbedText, ModelAllMiniLM, ModelStatic}
}

// ModelByID resolves a model identifier to its registry entry.
func ModelByID(id string) (Model, error) {
	for _, m := range Models() {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("unknown embedding model %q", id)
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
