package embed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/omniclipper/recall/internal/errors"
)

func staticLoadFunc(calls *atomic.Int32) LoadFunc {
	return func(ctx context.Context) (Embedder, error) {
		calls.Add(1)
		return NewStaticEmbedder(), nil
	}
}

func TestLoader_Load_Succeeds(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(2, time.Millisecond))
	var calls atomic.Int32

	e, err := l.Load(context.Background(), ModelStatic, staticLoadFunc(&calls))
	require.NoError(t, err)
	assert.Equal(t, ModelStatic.Dimensions, e.Dimensions())
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_Load_CachesAcrossCalls(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(2, time.Millisecond))
	var calls atomic.Int32

	first, err := l.Load(context.Background(), ModelStatic, staticLoadFunc(&calls))
	require.NoError(t, err)
	second, err := l.Load(context.Background(), ModelStatic, staticLoadFunc(&calls))
	require.NoError(t, err)

	assert.Same(t, first.(*StaticEmbedder), second.(*StaticEmbedder))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_Load_RetriesThenFails(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(2, time.Millisecond))
	var calls atomic.Int32

	_, err := l.Load(context.Background(), ModelStatic, func(ctx context.Context) (Embedder, error) {
		calls.Add(1)
		return nil, errors.New("model file missing")
	})
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeModelLoadFailed, rerrors.GetCode(err))
	assert.Equal(t, int32(3), calls.Load()) // initial attempt plus two retries
}

func TestLoader_Load_RejectsDimensionMismatch(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(0, time.Millisecond))

	// Static embedder produces 256 dimensions; the 768-dim registry entry
	// must refuse it.
	_, err := l.Load(context.Background(), ModelNomicEmbedText, func(ctx context.Context) (Embedder, error) {
		return NewStaticEmbedder(), nil
	})
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeModelLoadFailed, rerrors.GetCode(err))
}

func TestLoader_Load_ConcurrentCallsCoalesce(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(0, time.Millisecond))
	var calls atomic.Int32
	slow := func(ctx context.Context) (Embedder, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return NewStaticEmbedder(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(context.Background(), ModelStatic, slow)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent loads must share one attempt")
}

func TestLoader_Embedder_BeforeLoad(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(0, time.Millisecond))

	_, err := l.Embedder()
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeNotInitialized, rerrors.GetCode(err))
}

func TestLoader_Close_ReleasesEmbedder(t *testing.T) {
	l := NewLoader(rerrors.FixedRetryConfig(0, time.Millisecond))
	var calls atomic.Int32

	_, err := l.Load(context.Background(), ModelStatic, staticLoadFunc(&calls))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Embedder()
	assert.Error(t, err)
}
