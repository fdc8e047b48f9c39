package timeseries

import (
	"math"

	"github.com/quantfold/analytics/internal/parallel"
	"github.com/quantfold/analytics/pkg/errs"
)

// rollingApply emits op over every trailing window. The output series has
// the same length as the input; positions before the first full window are
// NaN. Parallel and serial execution produce bit-identical output.
func (s *TimeSeries) rollingApply(name string, window int, op func([]float64) float64) (*TimeSeries, error) {
	out, err := parallel.Rolling(parallel.Default(), s.values, window, op)
	if err != nil {
		return nil, err
	}
	return s.withValues(name, out), nil
}

// RollingMean returns the trailing-window mean series.
func (s *TimeSeries) RollingMean(window int) (*TimeSeries, error) {
	return s.rollingApply(s.name+"_rolling_mean", window, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingStd returns the trailing-window sample standard deviation series.
func (s *TimeSeries) RollingStd(window int) (*TimeSeries, error) {
	if window < 2 {
		return nil, errs.InvalidInput("series %q: rolling std needs window >= 2, got %d", s.name, window)
	}
	return s.rollingApply(s.name+"_rolling_std", window, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(len(w))
		var ss float64
		for _, v := range w {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

// RollingMin returns the trailing-window minimum series.
func (s *TimeSeries) RollingMin(window int) (*TimeSeries, error) {
	return s.rollingApply(s.name+"_rolling_min", window, func(w []float64) float64 {
		min := w[0]
		for _, v := range w[1:] {
			if v < min {
				min = v
			}
		}
		return min
	})
}

// RollingMax returns the trailing-window maximum series.
func (s *TimeSeries) RollingMax(window int) (*TimeSeries, error) {
	return s.rollingApply(s.name+"_rolling_max", window, func(w []float64) float64 {
		max := w[0]
		for _, v := range w[1:] {
			if v > max {
				max = v
			}
		}
		return max
	})
}

// RollingApply emits a caller-supplied reduction over every trailing window.
func (s *TimeSeries) RollingApply(window int, op func([]float64) float64) (*TimeSeries, error) {
	return s.rollingApply(s.name+"_rolling", window, op)
}

// CumSum returns the running sum.
func (s *TimeSeries) CumSum() *TimeSeries {
	out := make([]float64, len(s.values))
	var acc float64
	for i, v := range s.values {
		acc += v
		out[i] = acc
	}
	return s.withValues(s.name+"_cumsum", out)
}

// CumProd returns the running product.
func (s *TimeSeries) CumProd() *TimeSeries {
	out := make([]float64, len(s.values))
	acc := 1.0
	for i, v := range s.values {
		acc *= v
		out[i] = acc
	}
	return s.withValues(s.name+"_cumprod", out)
}

// CumulativeReturns compounds a return series: prefix product of (1 + r)
// minus 1.
func (s *TimeSeries) CumulativeReturns() *TimeSeries {
	out := make([]float64, len(s.values))
	acc := 1.0
	for i, r := range s.values {
		acc *= 1 + r
		out[i] = acc - 1
	}
	return s.withValues(s.name+"_cumret", out)
}

// PctChange returns r_i = v_i / v_{i-1} - 1 with a NaN leading element.
func (s *TimeSeries) PctChange() *TimeSeries {
	out := make([]float64, len(s.values))
	if len(out) > 0 {
		out[0] = math.NaN()
	}
	for i := 1; i < len(s.values); i++ {
		out[i] = s.values[i]/s.values[i-1] - 1
	}
	return s.withValues(s.name+"_pct", out)
}

// Returns converts a price series into simple returns. The output drops the
// first observation, so it is one element shorter than the input.
func (s *TimeSeries) Returns() (*TimeSeries, error) {
	if len(s.values) < 2 {
		return nil, errs.InsufficientData("series %q: returns need at least 2 prices, got %d", s.name, len(s.values))
	}
	times := make([]Timestamp, len(s.times)-1)
	out := make([]float64, len(s.values)-1)
	for i := 1; i < len(s.values); i++ {
		times[i-1] = s.times[i]
		out[i-1] = s.values[i]/s.values[i-1] - 1
	}
	return &TimeSeries{name: s.name + "_returns", times: times, values: out}, nil
}

// Shift moves values k positions forward (or backward for negative k),
// padding the vacated side with NaN.
func (s *TimeSeries) Shift(k int) *TimeSeries {
	out := make([]float64, len(s.values))
	for i := range out {
		src := i - k
		if src < 0 || src >= len(s.values) {
			out[i] = math.NaN()
		} else {
			out[i] = s.values[src]
		}
	}
	return s.withValues(s.name+"_shift", out)
}
