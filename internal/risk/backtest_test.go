package risk

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// forecastSeries pairs every return date with a constant loss-positive VaR.
func forecastSeries(t *testing.T, returns *timeseries.TimeSeries, level float64) *timeseries.TimeSeries {
	t.Helper()
	values := make([]float64, returns.Len())
	for i := range values {
		values[i] = level
	}
	s, err := timeseries.New("var_forecast", returns.Times(), values)
	require.NoError(t, err)
	return s
}

// violationSeries builds n returns with exactly k violations of a VaR of 0.02.
func violationSeries(t *testing.T, n, k int) *timeseries.TimeSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(17))
	values := make([]float64, n)
	for i := range values {
		values[i] = rng.Float64()*0.01 - 0.005 // never breaches 0.02
	}
	// Spread the violations through the sample.
	step := n / (k + 1)
	for j := 1; j <= k; j++ {
		values[j*step] = -0.03
	}
	return seriesOf(t, values)
}

func TestKupiecAcceptsWellCalibratedModel(t *testing.T) {
	// 250 observations at alpha 0.05: 12 violations is near the expected 12.5.
	returns := violationSeries(t, 250, 12)
	forecasts := forecastSeries(t, returns, 0.02)

	res, err := Kupiec(returns, forecasts, 0.05)
	require.NoError(t, err)

	assert.Equal(t, 250, res.Observations)
	assert.Equal(t, 12, res.Violations)
	assert.False(t, res.RejectModel)
	assert.Greater(t, res.PValue, 0.05)
	assert.Contains(t, res.Verdict, "consistent")
}

func TestKupiecRejectsUnderestimation(t *testing.T) {
	// Far too many violations for alpha 0.05.
	returns := violationSeries(t, 250, 40)
	forecasts := forecastSeries(t, returns, 0.02)

	res, err := Kupiec(returns, forecasts, 0.05)
	require.NoError(t, err)

	assert.True(t, res.RejectModel)
	assert.Greater(t, res.LRStatistic, kupiecCritical)
	assert.Less(t, res.PValue, 0.05)
	assert.Contains(t, res.Verdict, "underestimates")
}

func TestKupiecRejectsOverestimation(t *testing.T) {
	// Zero violations in 1000 observations at alpha 0.05 is far too few.
	returns := violationSeries(t, 1_000, 0)
	forecasts := forecastSeries(t, returns, 0.02)

	res, err := Kupiec(returns, forecasts, 0.05)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Violations)
	assert.True(t, res.RejectModel)
	assert.Contains(t, res.Verdict, "overestimates")
}

func TestKupiecValidation(t *testing.T) {
	returns := violationSeries(t, 100, 5)
	forecasts := forecastSeries(t, returns, 0.02)

	_, err := Kupiec(returns, forecasts, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	empty, err2 := timeseries.New("empty", nil, nil)
	require.NoError(t, err2)
	_, err = Kupiec(empty, forecasts, 0.05)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = Kupiec(returns, empty, 0.05)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestKupiecNoOverlap(t *testing.T) {
	returns := violationSeries(t, 100, 5)

	// Forecast series on disjoint dates.
	times := make([]timeseries.Timestamp, 50)
	day := timeseries.Date(2030, time.June, 1)
	values := make([]float64, 50)
	for i := range times {
		times[i] = day.AddDays(i)
		values[i] = 0.02
	}
	other, err2 := timeseries.New("var_forecast", times, values)
	require.NoError(t, err2)

	_, err := Kupiec(returns, other, 0.05)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestBaselZones(t *testing.T) {
	cases := []struct {
		violations int
		zone       TrafficLight
	}{
		{0, ZoneGreen},
		{4, ZoneGreen},
		{5, ZoneYellow},
		{9, ZoneYellow},
		{10, ZoneRed},
		{25, ZoneRed},
	}
	for _, tc := range cases {
		returns := violationSeries(t, 250, tc.violations)
		forecasts := forecastSeries(t, returns, 0.02)

		res, err := BaselTrafficLight(returns, forecasts)
		require.NoError(t, err)
		assert.Equal(t, tc.violations, res.Violations)
		assert.Equal(t, tc.zone, res.Zone, "%d violations", tc.violations)
	}
}

func TestBaselUsesTrailingWindow(t *testing.T) {
	// 500 observations: 20 early violations, none in the last 250.
	rng := rand.New(rand.NewSource(29))
	values := make([]float64, 500)
	for i := range values {
		values[i] = rng.Float64()*0.01 - 0.005
	}
	for j := 0; j < 20; j++ {
		values[j*10] = -0.03
	}
	returns := seriesOf(t, values)
	forecasts := forecastSeries(t, returns, 0.02)

	res, err := BaselTrafficLight(returns, forecasts)
	require.NoError(t, err)
	assert.Equal(t, 250, res.Window)
	assert.Equal(t, 0, res.Violations)
	assert.Equal(t, ZoneGreen, res.Zone)
}
