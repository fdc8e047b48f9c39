package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/logger"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	cfg := config.Default().Parallel
	cfg.MaxThreads = 4
	cfg.ParallelThreshold = 64
	p := NewPool(cfg, logger.Nop())
	t.Cleanup(p.Close)
	return p
}

func TestSubmitReturnsResult(t *testing.T) {
	p := testPool(t)

	fut := Submit(p, func() (int, error) { return 7, nil })
	got, err := fut.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestSubmitCapturesPanic(t *testing.T) {
	p := testPool(t)

	fut := Submit(p, func() (int, error) { panic("boom") })
	_, err := fut.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSubmitAfterClose(t *testing.T) {
	cfg := config.Default().Parallel
	cfg.MaxThreads = 2
	p := NewPool(cfg, logger.Nop())
	p.Close()

	fut := Submit(p, func() (int, error) { return 1, nil })
	_, err := fut.Get()
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	cfg := config.Default().Parallel
	cfg.MaxThreads = 2
	p := NewPool(cfg, logger.Nop())
	p.Close()
	p.Close()
}

func TestAllTasksRun(t *testing.T) {
	p := testPool(t)

	var count atomic.Int64
	futs := make([]*Future[int], 0, 200)
	for i := 0; i < 200; i++ {
		futs = append(futs, Submit(p, func() (int, error) {
			count.Add(1)
			return 0, nil
		}))
	}
	for _, f := range futs {
		_, err := f.Get()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(200), count.Load())
}

func TestChunkBounds(t *testing.T) {
	bounds := chunkBounds(10, 3)
	require.Len(t, bounds, 3)
	assert.Equal(t, [2]int{0, 4}, bounds[0])
	assert.Equal(t, [2]int{4, 7}, bounds[1])
	assert.Equal(t, [2]int{7, 10}, bounds[2])

	// Chunks cover [0, n) exactly.
	total := 0
	for _, b := range chunkBounds(1000, 7) {
		total += b[1] - b[0]
	}
	assert.Equal(t, 1000, total)
}

func TestWorkersBounded(t *testing.T) {
	cfg := config.Default().Parallel
	cfg.MaxThreads = 2
	p := NewPool(cfg, logger.Nop())
	defer p.Close()
	assert.LessOrEqual(t, p.Workers(), 2)
	assert.GreaterOrEqual(t, p.Workers(), 1)
}
