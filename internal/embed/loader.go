package embed

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	rerrors "github.com/omniclipper/recall/internal/errors"
)

// LoadFunc constructs an Embedder. Loading may be slow and may fail; the
// Loader wraps it with bounded retry.
type LoadFunc func(ctx context.Context) (Embedder, error)

// Loader performs fallible, coalesced embedder initialization. Concurrent
// Load calls for the same model share one in-flight attempt: a second
// caller waits on the first load rather than starting a duplicate.
type Loader struct {
	retry rerrors.RetryConfig

	group singleflight.Group

	mu       sync.RWMutex
	embedder Embedder
}

// NewLoader creates a Loader with the given retry policy. The zero
// RetryConfig gets the default fixed-delay policy (3 retries, 2s apart).
func NewLoader(retry rerrors.RetryConfig) *Loader {
	if retry.MaxRetries == 0 && retry.InitialDelay == 0 {
		retry = rerrors.FixedRetryConfig(DefaultMaxRetries, DefaultRetryDelay)
	}
	return &Loader{retry: retry}
}

// Load initializes the embedder for model using fn, retrying on failure.
// Once loaded, subsequent calls return the cached embedder. On retry
// exhaustion the error carries ErrCodeModelLoadFailed; the caller should
// disable semantic search but may continue with lexical-only search.
func (l *Loader) Load(ctx context.Context, model Model, fn LoadFunc) (Embedder, error) {
	l.mu.RLock()
	if l.embedder != nil {
		e := l.embedder
		l.mu.RUnlock()
		return e, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do(model.ID, func() (interface{}, error) {
		// Re-check under the flight: a previous flight may have stored it.
		l.mu.RLock()
		if l.embedder != nil {
			e := l.embedder
			l.mu.RUnlock()
			return e, nil
		}
		l.mu.RUnlock()

		emb, err := rerrors.RetryWithResult(ctx, l.retry, func() (Embedder, error) {
			return fn(ctx)
		})
		if err != nil {
			return nil, rerrors.ModelLoadFailed(model.ID, err)
		}
		if emb.Dimensions() != model.Dimensions {
			_ = emb.Close()
			return nil, rerrors.ModelLoadFailed(model.ID, nil).
				WithDetail("reason", "dimension mismatch between embedder and model registry")
		}

		l.mu.Lock()
		l.embedder = emb
		l.mu.Unlock()
		return emb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Embedder), nil
}

// Embedder returns the loaded embedder, or a NotInitialized error if Load
// has not completed successfully.
func (l *Loader) Embedder() (Embedder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.embedder == nil {
		return nil, rerrors.NotInitialized("embedder")
	}
	return l.embedder, nil
}

// Close releases the loaded embedder, if any.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder == nil {
		return nil
	}
	err := l.embedder.Close()
	l.embedder = nil
	return err
}
