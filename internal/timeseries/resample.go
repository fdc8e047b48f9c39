package timeseries

import (
	"github.com/quantfold/analytics/pkg/errs"
)

// Frequency selects the calendar bucket for Resample.
type Frequency int

const (
	Weekly Frequency = iota
	Monthly
	Quarterly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Yearly:
		return "yearly"
	}
	return "unknown"
}

// bucketKey maps a timestamp onto its calendar bucket.
func bucketKey(t Timestamp, f Frequency) [2]int {
	switch f {
	case Weekly:
		y, w := t.ISOWeek()
		return [2]int{y, w}
	case Monthly:
		return [2]int{t.Year(), int(t.Month())}
	case Quarterly:
		return [2]int{t.Year(), t.quarter()}
	default:
		return [2]int{t.Year(), 0}
	}
}

// ResampleWith aggregates contiguous samples per calendar bucket with a
// caller-supplied operator. The emitted timestamp is the last observation of
// each bucket, which preserves monotonicity.
func (s *TimeSeries) ResampleWith(f Frequency, agg func([]float64) float64) (*TimeSeries, error) {
	if s.Empty() {
		return nil, errs.InsufficientData("series %q: resample of empty series", s.name)
	}

	times := make([]Timestamp, 0)
	values := make([]float64, 0)

	start := 0
	key := bucketKey(s.times[0], f)
	for i := 1; i <= len(s.times); i++ {
		if i < len(s.times) && bucketKey(s.times[i], f) == key {
			continue
		}
		times = append(times, s.times[i-1])
		values = append(values, agg(s.values[start:i]))
		start = i
		if i < len(s.times) {
			key = bucketKey(s.times[i], f)
		}
	}

	return New(s.name+"_"+f.String(), times, values)
}

// ResampleReturns aggregates a return series by compounding within each
// bucket: prod(1 + r) - 1.
func (s *TimeSeries) ResampleReturns(f Frequency) (*TimeSeries, error) {
	return s.ResampleWith(f, func(w []float64) float64 {
		acc := 1.0
		for _, r := range w {
			acc *= 1 + r
		}
		return acc - 1
	})
}

// ResampleLast aggregates a price series by last observation per bucket.
func (s *TimeSeries) ResampleLast(f Frequency) (*TimeSeries, error) {
	return s.ResampleWith(f, func(w []float64) float64 {
		return w[len(w)-1]
	})
}
