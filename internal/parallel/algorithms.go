package parallel

import (
	"math"

	"github.com/quantfold/analytics/pkg/errs"
)

// Map applies fn to every element of in. Output index i always reflects
// input index i regardless of chunk scheduling.
func Map[T, R any](p *Pool, in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	if len(in) == 0 {
		return out
	}
	if p == nil || p.serialFor(len(in)) {
		for i, v := range in {
			out[i] = fn(v)
		}
		return out
	}

	bounds := chunkBounds(len(in), p.chunkCount(len(in)))
	futures := make([]*Future[struct{}], len(bounds))
	for ci, b := range bounds {
		lo, hi := b[0], b[1]
		futures[ci] = Submit(p, func() (struct{}, error) {
			for i := lo; i < hi; i++ {
				out[i] = fn(in[i])
			}
			return struct{}{}, nil
		})
	}
	for i, f := range futures {
		if _, err := f.Get(); err != nil {
			// Pool closed mid-flight: finish the chunk serially.
			for j := bounds[i][0]; j < bounds[i][1]; j++ {
				out[j] = fn(in[j])
			}
		}
	}
	return out
}

// Reduce folds in with op. op must be associative; commutativity is not
// required because chunk outputs combine in deterministic chunk order.
func Reduce(p *Pool, in []float64, identity float64, op func(a, b float64) float64) float64 {
	if len(in) == 0 {
		return identity
	}
	if p == nil || p.serialFor(len(in)) {
		acc := in[0]
		for _, v := range in[1:] {
			acc = op(acc, v)
		}
		return acc
	}

	bounds := chunkBounds(len(in), p.chunkCount(len(in)))
	futures := make([]*Future[float64], len(bounds))
	for ci, b := range bounds {
		lo, hi := b[0], b[1]
		futures[ci] = Submit(p, func() (float64, error) {
			acc := in[lo]
			for i := lo + 1; i < hi; i++ {
				acc = op(acc, in[i])
			}
			return acc, nil
		})
	}

	partials := make([]float64, len(bounds))
	for i, f := range futures {
		v, err := f.Get()
		if err != nil {
			lo, hi := bounds[i][0], bounds[i][1]
			v = in[lo]
			for j := lo + 1; j < hi; j++ {
				v = op(v, in[j])
			}
		}
		partials[i] = v
	}

	acc := partials[0]
	for _, v := range partials[1:] {
		acc = op(acc, v)
	}
	return acc
}

// Rolling applies op over every trailing window of length window. The output
// has the same length as the input; positions before the first full window
// are NaN. The output range, not the input, is chunked, so every output
// position is computed from the same input slice as the serial version and
// results are bit-identical to serial execution.
func Rolling(p *Pool, in []float64, window int, op func([]float64) float64) ([]float64, error) {
	if window < 1 {
		return nil, errs.InvalidInput("rolling: window must be > 0, got %d", window)
	}
	if window > len(in) {
		return nil, errs.InvalidInput("rolling: window %d exceeds input size %d", window, len(in))
	}

	out := make([]float64, len(in))
	for i := 0; i < window-1; i++ {
		out[i] = math.NaN()
	}

	emit := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = op(in[i-window+1 : i+1])
		}
	}

	first := window - 1
	n := len(in) - first
	if p == nil || p.serialFor(n) {
		emit(first, len(in))
		return out, nil
	}

	bounds := chunkBounds(n, p.chunkCount(n))
	futures := make([]*Future[struct{}], len(bounds))
	for ci, b := range bounds {
		lo, hi := first+b[0], first+b[1]
		futures[ci] = Submit(p, func() (struct{}, error) {
			emit(lo, hi)
			return struct{}{}, nil
		})
	}
	for i, f := range futures {
		if _, err := f.Get(); err != nil {
			emit(first+bounds[i][0], first+bounds[i][1])
		}
	}
	return out, nil
}

// corrPartial accumulates the fused quintuple for one chunk.
type corrPartial struct {
	sx, sy, sxx, syy, sxy float64
}

func accumulate(x, y []float64, lo, hi int) corrPartial {
	var p corrPartial
	for i := lo; i < hi; i++ {
		p.sx += x[i]
		p.sy += y[i]
		p.sxx += x[i] * x[i]
		p.syy += y[i] * y[i]
		p.sxy += x[i] * y[i]
	}
	return p
}

// Correlation computes the Pearson coefficient of x and y in a single fused
// pass: each worker accumulates partial sums of x, y, x2, y2 and xy, then a
// serial combine yields the coefficient.
func Correlation(p *Pool, x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, errs.InvalidInput("correlation: lengths %d and %d differ", len(x), len(y))
	}
	n := len(x)
	if n < 2 {
		return 0, errs.InsufficientData("correlation: need at least 2 samples, got %d", n)
	}

	var total corrPartial
	if p == nil || p.serialFor(n) {
		total = accumulate(x, y, 0, n)
	} else {
		bounds := chunkBounds(n, p.chunkCount(n))
		futures := make([]*Future[corrPartial], len(bounds))
		for ci, b := range bounds {
			lo, hi := b[0], b[1]
			futures[ci] = Submit(p, func() (corrPartial, error) {
				return accumulate(x, y, lo, hi), nil
			})
		}
		for i, f := range futures {
			v, err := f.Get()
			if err != nil {
				v = accumulate(x, y, bounds[i][0], bounds[i][1])
			}
			total.sx += v.sx
			total.sy += v.sy
			total.sxx += v.sxx
			total.syy += v.syy
			total.sxy += v.sxy
		}
	}

	fn := float64(n)
	cov := total.sxy - total.sx*total.sy/fn
	vx := total.sxx - total.sx*total.sx/fn
	vy := total.syy - total.sy*total.sy/fn
	if vx <= 0 || vy <= 0 {
		return 0, errs.Numerical("correlation: zero variance input")
	}
	return cov / math.Sqrt(vx*vy), nil
}
