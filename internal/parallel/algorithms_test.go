package parallel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/errs"
	"github.com/quantfold/analytics/pkg/logger"
)

// serialPool never crosses the parallel threshold.
func serialPool(t *testing.T) *Pool {
	t.Helper()
	cfg := config.Default().Parallel
	cfg.MaxThreads = 1
	p := NewPool(cfg, logger.Nop())
	t.Cleanup(p.Close)
	return p
}

// parallelPool takes the chunked path for any nontrivial input.
func parallelPool(t *testing.T) *Pool {
	t.Helper()
	cfg := config.Default().Parallel
	cfg.MaxThreads = 4
	cfg.ParallelThreshold = 8
	cfg.MinChunkSize = 4
	cfg.ChunkSizeFactor = 1
	p := NewPool(cfg, logger.Nop())
	t.Cleanup(p.Close)
	return p
}

func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * 0.01
	}
	return out
}

func TestMapPreservesOrder(t *testing.T) {
	p := parallelPool(t)

	in := make([]int, 1000)
	for i := range in {
		in[i] = i
	}
	out := Map(p, in, func(v int) int { return v * 2 })
	require.Len(t, out, 1000)
	for i, v := range out {
		require.Equal(t, i*2, v)
	}
}

func TestMapEmpty(t *testing.T) {
	p := parallelPool(t)
	assert.Empty(t, Map(p, []int(nil), func(v int) int { return v }))
}

func TestReduceSum(t *testing.T) {
	p := parallelPool(t)

	in := make([]float64, 10_000)
	for i := range in {
		in[i] = 1
	}
	got := Reduce(p, in, 0, func(a, b float64) float64 { return a + b })
	assert.InDelta(t, 10_000.0, got, 1e-9)
}

func TestReduceMax(t *testing.T) {
	p := parallelPool(t)

	in := randomWalk(5_000, 3)
	in[1234] = 99
	got := Reduce(p, in, math.Inf(-1), math.Max)
	assert.Equal(t, 99.0, got)
}

func TestReduceEmptyReturnsIdentity(t *testing.T) {
	p := parallelPool(t)
	assert.Equal(t, -5.0, Reduce(p, nil, -5, func(a, b float64) float64 { return a + b }))
}

func TestRollingLiteral(t *testing.T) {
	p := serialPool(t)

	out, err := Rolling(p, []float64{1, 2, 3, 4, 5}, 3, mean)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 2.0, out[2])
	assert.Equal(t, 3.0, out[3])
	assert.Equal(t, 4.0, out[4])
}

func TestRollingWindowValidation(t *testing.T) {
	p := serialPool(t)

	_, err := Rolling(p, []float64{1, 2, 3}, 0, mean)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = Rolling(p, []float64{1, 2, 3}, -1, mean)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = Rolling(p, []float64{1, 2, 3}, 4, mean)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestRollingWindowEqualsLength(t *testing.T) {
	p := serialPool(t)

	out, err := Rolling(p, []float64{2, 4, 6}, 3, mean)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 4.0, out[2])
}

// Parallel execution must be bit-identical to serial, not merely close.
func TestRollingSerialParallelIdentical(t *testing.T) {
	sp := serialPool(t)
	pp := parallelPool(t)

	in := randomWalk(4_096, 99)
	for _, window := range []int{2, 21, 63, 252} {
		serial, err := Rolling(sp, in, window, mean)
		require.NoError(t, err)
		par, err := Rolling(pp, in, window, mean)
		require.NoError(t, err)

		require.Len(t, par, len(serial))
		for i := range serial {
			if math.IsNaN(serial[i]) {
				require.True(t, math.IsNaN(par[i]), "window %d index %d: want NaN", window, i)
				continue
			}
			require.Equal(t, math.Float64bits(serial[i]), math.Float64bits(par[i]),
				"window %d index %d differs", window, i)
		}
	}
}

func TestCorrelation(t *testing.T) {
	p := parallelPool(t)

	x := randomWalk(2_000, 7)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3*v + 1
	}
	got, err := Correlation(p, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	for i, v := range x {
		y[i] = -2 * v
	}
	got, err = Correlation(p, x, y)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got, 1e-9)
}

func TestCorrelationErrors(t *testing.T) {
	p := serialPool(t)

	_, err := Correlation(p, []float64{1}, []float64{1})
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	_, err = Correlation(p, []float64{1, 2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = Correlation(p, []float64{5, 5, 5}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, errs.ErrNumerical)
}

func mean(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s / float64(len(w))
}
