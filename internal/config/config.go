// Package config loads and validates recall configuration. Precedence,
// lowest to highest: built-in defaults, the YAML config file, RECALL_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/omniclipper/recall/internal/chunk"
	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/search"
)

// Config is the complete recall configuration.
type Config struct {
	// DataDir holds the indexes, lock file, and logs.
	DataDir string `yaml:"data_dir"`

	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LogLevel   string           `yaml:"log_level"`
}

// SearchConfig tunes chunking and fusion.
type SearchConfig struct {
	// VectorWeight and BM25Weight distribute RRF contributions and must
	// sum to 1.0.
	VectorWeight float64 `yaml:"vector_weight"`
	BM25Weight   float64 `yaml:"bm25_weight"`

	// RRFConstant is the fusion smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MaxResults   int `yaml:"max_results"`

	// DistanceThreshold discards vector candidates beyond this cosine
	// distance. Zero disables the filter.
	DistanceThreshold float32 `yaml:"distance_threshold"`

	// MinScore is the confidence floor on fused scores.
	MinScore float64 `yaml:"min_score"`
}

// EmbeddingsConfig selects the embedding provider and model.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static".
	Provider string `yaml:"provider"`

	// Model is the embedding model ID (see embed.Models).
	Model string `yaml:"model"`

	OllamaHost string `yaml:"ollama_host"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			VectorWeight:      search.DefaultWeights.Vector,
			BM25Weight:        search.DefaultWeights.BM25,
			RRFConstant:       search.DefaultRRFConstant,
			ChunkSize:         chunk.DefaultSize,
			ChunkOverlap:      chunk.DefaultOverlap,
			MaxResults:        10,
			DistanceThreshold: 0,
			MinScore:          0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  1024,
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recall"
	}
	return filepath.Join(home, ".recall")
}

// Load reads configuration with full precedence applied. A missing file
// is fine; defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, rerrors.New(rerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("parse %s", path), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies RECALL_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RECALL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RECALL_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("RECALL_BM25_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.BM25Weight = f
		}
	}
	if v := os.Getenv("RECALL_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("RECALL_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.ChunkSize = n
		}
	}
	if v := os.Getenv("RECALL_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.ChunkOverlap = n
		}
	}
	if v := os.Getenv("RECALL_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RECALL_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RECALL_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RECALL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	fail := func(msg string) error {
		return rerrors.New(rerrors.ErrCodeConfigInvalid, msg, nil)
	}

	if c.DataDir == "" {
		return fail("data_dir must not be empty")
	}
	if c.Search.VectorWeight < 0 || c.Search.BM25Weight < 0 {
		return fail("search weights must be non-negative")
	}
	sum := c.Search.VectorWeight + c.Search.BM25Weight
	if sum < 0.99 || sum > 1.01 {
		return fail(fmt.Sprintf("search weights must sum to 1.0, got %.2f", sum))
	}
	if c.Search.RRFConstant <= 0 {
		return fail("rrf_constant must be positive")
	}
	if c.Search.ChunkSize <= 0 {
		return fail("chunk_size must be positive")
	}
	if c.Search.ChunkOverlap < 0 || c.Search.ChunkOverlap >= c.Search.ChunkSize {
		return fail("chunk_overlap must be non-negative and smaller than chunk_size")
	}
	if c.Search.MaxResults <= 0 {
		return fail("max_results must be positive")
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fail(fmt.Sprintf("unknown embeddings provider %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Model == "" {
		return fail("embeddings model must not be empty")
	}
	return nil
}

// Weights returns the configured fusion weights.
func (c *Config) Weights() search.Weights {
	return search.Weights{Vector: c.Search.VectorWeight, BM25: c.Search.BM25Weight}
}

// ChunkOptions returns the configured chunking bounds.
func (c *Config) ChunkOptions() chunk.Options {
	return chunk.Options{Size: c.Search.ChunkSize, Overlap: c.Search.ChunkOverlap}
}

// LexicalPath returns the on-disk location of the lexical index.
func (c *Config) LexicalPath() string {
	return filepath.Join(c.DataDir, "lexical.bleve")
}

// VectorPath returns the on-disk location of the embedding index.
func (c *Config) VectorPath() string {
	return filepath.Join(c.DataDir, "vectors.db")
}
