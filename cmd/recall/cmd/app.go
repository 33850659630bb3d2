package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/omniclipper/recall/internal/chunk"
	"github.com/omniclipper/recall/internal/config"
	"github.com/omniclipper/recall/internal/embed"
	rerrors "github.com/omniclipper/recall/internal/errors"
	"github.com/omniclipper/recall/internal/index"
	"github.com/omniclipper/recall/internal/logging"
	"github.com/omniclipper/recall/internal/search"
	"github.com/omniclipper/recall/internal/store"
	"github.com/omniclipper/recall/internal/textseg"
)

// app bundles the wired subsystems for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *index.Manager
	engine   *search.Engine
	lexical  store.Lexical
	vector   store.Vector
	embedder embed.Embedder

	lock     *store.DirLock
	cleanups []func()
}

// openApp loads configuration and wires logging, tokenizer, embedder,
// and both indexes. Write commands take the data-dir lock; read-only
// commands skip it so searches can run alongside an indexing process.
func openApp(ctx context.Context, needsWrite bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}
	logCfg.FilePath = filepath.Join(cfg.DataDir, "logs", "recall.log")
	logCfg.WriteToStderr = debugMode
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	a.cleanups = append(a.cleanups, logCleanup)

	if needsWrite {
		lock := store.NewDirLock(cfg.DataDir)
		acquired, err := lock.TryLock()
		if err != nil {
			a.close()
			return nil, err
		}
		if !acquired {
			a.close()
			return nil, fmt.Errorf("another recall process owns %s (lock: %s)", cfg.DataDir, lock.Path())
		}
		a.lock = lock
	}

	tok, err := textseg.New()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialize tokenizer: %w", err)
	}
	splitter := chunk.NewSplitter(tok)

	model, err := embed.ModelByID(cfg.Embeddings.Model)
	if err != nil {
		a.close()
		return nil, err
	}
	// The static provider has exactly one model with its own
	// dimensionality and table.
	if cfg.Embeddings.Provider == "static" {
		model = embed.ModelStatic
	}

	embedder, err := loadEmbedder(ctx, cfg, model)
	if err != nil {
		a.close()
		return nil, err
	}
	a.embedder = embedder

	lexical, err := store.NewLexicalIndex(cfg.LexicalPath(), tok, cfg.ChunkOptions())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	a.lexical = lexical

	vector, err := store.NewEmbeddingIndex(store.EmbeddingIndexConfig{
		Path:         cfg.VectorPath(),
		Model:        model,
		ChunkOptions: cfg.ChunkOptions(),
	}, embedder, splitter)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open embedding index: %w", err)
	}
	a.vector = vector

	engine, err := search.NewEngine(lexical, vector, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = engine
	a.manager = index.NewManager(lexical, vector, logger)

	return a, nil
}

// loadEmbedder builds the configured provider behind the retrying,
// coalescing loader and wraps it in the LRU cache.
func loadEmbedder(ctx context.Context, cfg *config.Config, model embed.Model) (embed.Embedder, error) {
	loader := embed.NewLoader(rerrors.FixedRetryConfig(embed.DefaultMaxRetries, embed.DefaultRetryDelay))

	inner, err := loader.Load(ctx, model, func(ctx context.Context) (embed.Embedder, error) {
		switch cfg.Embeddings.Provider {
		case "static":
			return embed.NewStaticEmbedder(), nil
		default:
			e := embed.NewOllamaEmbedder(embed.OllamaConfig{
				Host:      cfg.Embeddings.OllamaHost,
				Model:     model,
				BatchSize: cfg.Embeddings.BatchSize,
			})
			if !e.Available(ctx) {
				return nil, fmt.Errorf("ollama not reachable at %s", cfg.Embeddings.OllamaHost)
			}
			return e, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
}

func (a *app) searchOptions(limit int, groupByDoc bool) search.Options {
	weights := a.cfg.Weights()
	return search.Options{
		Limit:             limit,
		Weights:           &weights,
		K:                 a.cfg.Search.RRFConstant,
		DistanceThreshold: a.cfg.Search.DistanceThreshold,
		MinScore:          a.cfg.Search.MinScore,
		GroupByDoc:        groupByDoc,
	}
}

func (a *app) close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			a.logger.Warn("close indexes", "error", err)
		}
	} else {
		if a.lexical != nil {
			_ = a.lexical.Close()
		}
		if a.vector != nil {
			_ = a.vector.Close()
		}
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}
