package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/pkg/errs"
)

func dailySeries(t *testing.T, name string, values []float64) *TimeSeries {
	t.Helper()
	times := make([]Timestamp, len(values))
	day := Date(2024, time.January, 1)
	for i := range times {
		times[i] = day.AddDays(i)
	}
	s, err := New(name, times, values)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	times := []Timestamp{Date(2024, time.January, 1), Date(2024, time.January, 2)}

	_, err := New("x", times, []float64{1})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	// Timestamps must be non-decreasing.
	backwards := []Timestamp{Date(2024, time.January, 2), Date(2024, time.January, 1)}
	_, err = New("x", backwards, []float64{1, 2})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	s, err := New("empty", nil, nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())
}

func TestAtAndValueAt(t *testing.T) {
	s := dailySeries(t, "px", []float64{10, 20, 30})

	ts, v, err := s.At(1)
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.January, 2), ts)
	assert.Equal(t, 20.0, v)

	_, _, err = s.At(3)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	v, err = s.ValueAt(Date(2024, time.January, 3))
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	_, err = s.ValueAt(Date(2024, time.February, 1))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestValuesAreCopies(t *testing.T) {
	s := dailySeries(t, "px", []float64{1, 2, 3})

	vals := s.Values()
	vals[0] = 999
	again := s.Values()
	assert.Equal(t, 1.0, again[0])
}

func TestSlice(t *testing.T) {
	s := dailySeries(t, "px", []float64{1, 2, 3, 4, 5})

	sub, err := s.Slice(Date(2024, time.January, 2), Date(2024, time.January, 4))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, sub.Values())

	_, err = s.Slice(Date(2024, time.January, 4), Date(2024, time.January, 2))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestArithmetic(t *testing.T) {
	a := dailySeries(t, "a", []float64{1, 2, 3})
	b := dailySeries(t, "b", []float64{10, 20, 30})

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, sum.Values())

	diff, err := sum.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), diff.Values())

	prod, err := a.Mul(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 40, 90}, prod.Values())

	quot, err := prod.Div(b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Values(), quot.Values(), 1e-12)
}

func TestDivByZeroFollowsIEEE(t *testing.T) {
	a := dailySeries(t, "a", []float64{1, 0, -1})
	b := dailySeries(t, "b", []float64{0, 0, 0})

	q, err := a.Div(b)
	require.NoError(t, err)
	vals := q.Values()
	assert.True(t, math.IsInf(vals[0], 1))
	assert.True(t, math.IsNaN(vals[1]))
	assert.True(t, math.IsInf(vals[2], -1))
}

func TestMismatchedIndex(t *testing.T) {
	a := dailySeries(t, "a", []float64{1, 2, 3})
	times := []Timestamp{Date(2025, time.March, 1), Date(2025, time.March, 2), Date(2025, time.March, 3)}
	b, err := New("b", times, []float64{1, 2, 3})
	require.NoError(t, err)

	_, err = a.Add(b)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestScalarOps(t *testing.T) {
	s := dailySeries(t, "s", []float64{1, 2, 3})

	assert.Equal(t, []float64{3, 4, 5}, s.AddScalar(2).Values())
	assert.Equal(t, []float64{-1, -2, -3}, s.MulScalar(-1).Values())
}

func TestAggregates(t *testing.T) {
	s := dailySeries(t, "s", []float64{2, 4, 6, 8})

	sum, err := s.Sum()
	require.NoError(t, err)
	assert.Equal(t, 20.0, sum)

	mean, err := s.Mean()
	require.NoError(t, err)
	assert.Equal(t, 5.0, mean)

	std, err := s.Std()
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(20.0/3.0), std, 1e-12)

	min, err := s.Min()
	require.NoError(t, err)
	assert.Equal(t, 2.0, min)

	max, err := s.Max()
	require.NoError(t, err)
	assert.Equal(t, 8.0, max)
}

func TestAggregatesOnEmpty(t *testing.T) {
	s, err := New("empty", nil, nil)
	require.NoError(t, err)

	_, err = s.Mean()
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
	_, err = s.Min()
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestSeriesCorrelation(t *testing.T) {
	a := dailySeries(t, "a", []float64{1, 2, 3, 4, 5})
	b := dailySeries(t, "b", []float64{2, 4, 6, 8, 10})

	corr, err := a.Correlation(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr, 1e-12)
}

func TestTimestampHelpers(t *testing.T) {
	d := Date(2024, time.March, 15)
	assert.True(t, d.IsWeekday()) // a Friday
	assert.False(t, d.AddDays(1).IsWeekday())
	assert.Equal(t, Date(2024, time.March, 18), d.AddDays(3))
}
