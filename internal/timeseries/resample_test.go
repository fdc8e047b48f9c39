package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/pkg/errs"
)

func TestResampleLastMonthly(t *testing.T) {
	times := []Timestamp{
		Date(2024, time.January, 30),
		Date(2024, time.January, 31),
		Date(2024, time.February, 1),
		Date(2024, time.February, 29),
		Date(2024, time.March, 4),
	}
	s, err := New("px", times, []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)

	out, err := s.ResampleLast(Monthly)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	assert.Equal(t, []float64{2, 4, 5}, out.Values())
	assert.Equal(t, []Timestamp{
		Date(2024, time.January, 31),
		Date(2024, time.February, 29),
		Date(2024, time.March, 4),
	}, out.Times())
}

func TestResampleReturnsCompound(t *testing.T) {
	times := []Timestamp{
		Date(2024, time.June, 3),
		Date(2024, time.June, 4),
		Date(2024, time.July, 1),
	}
	s, err := New("r", times, []float64{0.10, 0.10, 0.05})
	require.NoError(t, err)

	out, err := s.ResampleReturns(Monthly)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.InDelta(t, 1.1*1.1-1, out.Values()[0], 1e-12)
	assert.InDelta(t, 0.05, out.Values()[1], 1e-12)
}

func TestResampleWeeklyUsesISOWeeks(t *testing.T) {
	// Mon 2024-01-01 through Mon 2024-01-08 span two ISO weeks.
	times := []Timestamp{
		Date(2024, time.January, 1),
		Date(2024, time.January, 5),
		Date(2024, time.January, 8),
	}
	s, err := New("px", times, []float64{1, 2, 3})
	require.NoError(t, err)

	out, err := s.ResampleLast(Weekly)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []float64{2, 3}, out.Values())
}

func TestResampleQuarterlyAndYearly(t *testing.T) {
	times := []Timestamp{
		Date(2024, time.February, 1),
		Date(2024, time.May, 1),
		Date(2024, time.November, 1),
		Date(2025, time.January, 15),
	}
	s, err := New("px", times, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	q, err := s.ResampleLast(Quarterly)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, q.Values())

	y, err := s.ResampleLast(Yearly)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, y.Values())
}

func TestResampleEmpty(t *testing.T) {
	s, err := New("empty", nil, nil)
	require.NoError(t, err)

	_, err = s.ResampleLast(Monthly)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestFrequencyString(t *testing.T) {
	assert.Equal(t, "weekly", Weekly.String())
	assert.Equal(t, "yearly", Yearly.String())
	assert.Equal(t, "unknown", Frequency(42).String())
}
