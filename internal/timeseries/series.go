package timeseries

import (
	"math"
	"sort"

	"github.com/quantfold/analytics/internal/parallel"
	"github.com/quantfold/analytics/internal/vecops"
	"github.com/quantfold/analytics/pkg/errs"
)

// TimeSeries is an ordered sequence of (timestamp, value) pairs with a name
// tag. Timestamps are non-decreasing. Values are owned by the series; all
// accessors copy, so a series is safe to share across goroutines.
type TimeSeries struct {
	name   string
	times  []Timestamp
	values []float64
}

// New constructs a series from equal-length ordered slices. The inputs are
// copied. Construction fails on length mismatch or decreasing timestamps.
func New(name string, times []Timestamp, values []float64) (*TimeSeries, error) {
	if len(times) != len(values) {
		return nil, errs.InvalidInput("series %q: %d timestamps vs %d values", name, len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1].Time) {
			return nil, errs.InvalidInput("series %q: timestamps decrease at index %d", name, i)
		}
	}

	s := &TimeSeries{
		name:   name,
		times:  make([]Timestamp, len(times)),
		values: make([]float64, len(values)),
	}
	copy(s.times, times)
	copy(s.values, values)
	return s, nil
}

// Name returns the series name tag.
func (s *TimeSeries) Name() string { return s.name }

// Len returns the number of samples.
func (s *TimeSeries) Len() int { return len(s.values) }

// Empty reports whether the series has no samples.
func (s *TimeSeries) Empty() bool { return len(s.values) == 0 }

// At returns the sample at index i.
func (s *TimeSeries) At(i int) (Timestamp, float64, error) {
	if i < 0 || i >= len(s.values) {
		return Timestamp{}, 0, errs.InvalidInput("series %q: index %d out of range [0, %d)", s.name, i, len(s.values))
	}
	return s.times[i], s.values[i], nil
}

// ValueAt returns the value recorded at ts, located by binary search.
func (s *TimeSeries) ValueAt(ts Timestamp) (float64, error) {
	i := sort.Search(len(s.times), func(i int) bool {
		return !s.times[i].Before(ts.Time)
	})
	if i == len(s.times) || !s.times[i].Equal(ts.Time) {
		return 0, errs.InvalidInput("series %q: no sample at %s", s.name, ts.Format("2006-01-02"))
	}
	return s.values[i], nil
}

// Times returns a copy of the timestamp sequence.
func (s *TimeSeries) Times() []Timestamp {
	out := make([]Timestamp, len(s.times))
	copy(out, s.times)
	return out
}

// Values returns a copy of the value sequence.
func (s *TimeSeries) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Slice returns a new series with the samples in [start, end]. The values
// are copied; slices never alias the parent buffers.
func (s *TimeSeries) Slice(start, end Timestamp) (*TimeSeries, error) {
	if end.Before(start.Time) {
		return nil, errs.InvalidInput("series %q: slice end before start", s.name)
	}
	lo := sort.Search(len(s.times), func(i int) bool { return !s.times[i].Before(start.Time) })
	hi := sort.Search(len(s.times), func(i int) bool { return s.times[i].After(end.Time) })
	return New(s.name, s.times[lo:hi], s.values[lo:hi])
}

// withValues builds a derived series sharing s's timestamps. The values
// slice is adopted, not copied; callers pass freshly allocated buffers.
func (s *TimeSeries) withValues(name string, values []float64) *TimeSeries {
	times := make([]Timestamp, len(s.times))
	copy(times, s.times)
	return &TimeSeries{name: name, times: times, values: values}
}

// sameIndex checks that two series share an identical timestamp sequence.
func (s *TimeSeries) sameIndex(other *TimeSeries) error {
	if len(s.times) != len(other.times) {
		return errs.InvalidInput("series %q and %q: sizes %d and %d differ", s.name, other.name, len(s.times), len(other.times))
	}
	for i := range s.times {
		if !s.times[i].Equal(other.times[i].Time) {
			return errs.InvalidInput("series %q and %q: timestamps differ at index %d", s.name, other.name, i)
		}
	}
	return nil
}

// Add returns the element-wise sum of two series with identical timestamps.
func (s *TimeSeries) Add(other *TimeSeries) (*TimeSeries, error) {
	return s.zip(other, vecops.Add)
}

// Sub returns the element-wise difference.
func (s *TimeSeries) Sub(other *TimeSeries) (*TimeSeries, error) {
	return s.zip(other, vecops.Sub)
}

// Mul returns the element-wise product.
func (s *TimeSeries) Mul(other *TimeSeries) (*TimeSeries, error) {
	return s.zip(other, vecops.Mul)
}

// Div returns the element-wise quotient. Division by a zero element yields
// the IEEE result (±Inf or NaN), matching the scalar operator.
func (s *TimeSeries) Div(other *TimeSeries) (*TimeSeries, error) {
	if err := s.sameIndex(other); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.values))
	for i := range s.values {
		out[i] = s.values[i] / other.values[i]
	}
	return s.withValues(s.name, out), nil
}

func (s *TimeSeries) zip(other *TimeSeries, op func(dst, a, b []float64) error) (*TimeSeries, error) {
	if err := s.sameIndex(other); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.values))
	if err := op(out, s.values, other.values); err != nil {
		return nil, err
	}
	return s.withValues(s.name, out), nil
}

// AddScalar returns a new series with c added to every element.
func (s *TimeSeries) AddScalar(c float64) *TimeSeries {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = v + c
	}
	return s.withValues(s.name, out)
}

// MulScalar returns a new series with every element scaled by c.
func (s *TimeSeries) MulScalar(c float64) *TimeSeries {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = v * c
	}
	return s.withValues(s.name, out)
}

// Sum returns the sum of all values.
func (s *TimeSeries) Sum() (float64, error) {
	if s.Empty() {
		return 0, errs.InsufficientData("series %q: sum of empty series", s.name)
	}
	return vecops.Sum(s.values), nil
}

// Mean returns the arithmetic mean.
func (s *TimeSeries) Mean() (float64, error) {
	if s.Empty() {
		return 0, errs.InsufficientData("series %q: mean of empty series", s.name)
	}
	return vecops.Sum(s.values) / float64(len(s.values)), nil
}

// Std returns the Bessel-corrected sample standard deviation.
func (s *TimeSeries) Std() (float64, error) {
	n := len(s.values)
	if n < 2 {
		return 0, errs.InsufficientData("series %q: std needs at least 2 samples, got %d", s.name, n)
	}
	mean := vecops.Sum(s.values) / float64(n)
	var ss float64
	for _, v := range s.values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), nil
}

// Min returns the smallest value.
func (s *TimeSeries) Min() (float64, error) {
	if s.Empty() {
		return 0, errs.InsufficientData("series %q: min of empty series", s.name)
	}
	min := s.values[0]
	for _, v := range s.values[1:] {
		if v < min {
			min = v
		}
	}
	return min, nil
}

// Max returns the largest value.
func (s *TimeSeries) Max() (float64, error) {
	if s.Empty() {
		return 0, errs.InsufficientData("series %q: max of empty series", s.name)
	}
	max := s.values[0]
	for _, v := range s.values[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

// Correlation returns the Pearson correlation with another series sharing
// the same timestamps. Large inputs run through the parallel pool.
func (s *TimeSeries) Correlation(other *TimeSeries) (float64, error) {
	if err := s.sameIndex(other); err != nil {
		return 0, err
	}
	return parallel.Correlation(parallel.Default(), s.values, other.values)
}
