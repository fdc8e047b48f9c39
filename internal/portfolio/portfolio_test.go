package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

func pos(symbol string, qty, price string) Position {
	return Position{
		Symbol:   symbol,
		Quantity: decimal.RequireFromString(qty),
		Price:    decimal.RequireFromString(price),
	}
}

func TestWeights(t *testing.T) {
	weights, err := Weights([]Position{
		pos("AAPL", "100", "200"), // 20_000
		pos("MSFT", "50", "400"),  // 20_000
		pos("BND", "600", "100"),  // 60_000
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, weights["AAPL"], 1e-12)
	assert.InDelta(t, 0.2, weights["MSFT"], 1e-12)
	assert.InDelta(t, 0.6, weights["BND"], 1e-12)
}

func TestWeightsShortPosition(t *testing.T) {
	weights, err := Weights([]Position{
		pos("LONG", "150", "100"),  // 15_000
		pos("SHORT", "-50", "100"), // -5_000, net 10_000
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.5, weights["LONG"], 1e-12)
	assert.InDelta(t, -0.5, weights["SHORT"], 1e-12)
}

func TestWeightsDecimalExactness(t *testing.T) {
	// Classic float trap: 0.1 + 0.2 valued positions stay exact in decimal.
	weights, err := Weights([]Position{
		pos("A", "1", "0.1"),
		pos("B", "1", "0.2"),
		pos("C", "1", "0.7"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, weights["A"], 1e-15)
	assert.InDelta(t, 0.2, weights["B"], 1e-15)
	assert.InDelta(t, 0.7, weights["C"], 1e-15)
}

func TestWeightsValidation(t *testing.T) {
	_, err := Weights(nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = Weights([]Position{pos("", "1", "1")})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = Weights([]Position{pos("A", "1", "1"), pos("A", "2", "1")})
	assert.ErrorIs(t, err, errs.ErrInvalidInput, "duplicate symbol")

	_, err = Weights([]Position{pos("A", "1", "1"), pos("B", "-1", "1")})
	assert.ErrorIs(t, err, errs.ErrInvalidInput, "zero total value")
}

func returnSeries(t *testing.T, name string, values []float64) *timeseries.TimeSeries {
	t.Helper()
	times := make([]timeseries.Timestamp, len(values))
	day := timeseries.Date(2024, time.January, 1)
	for i := range times {
		times[i] = day.AddDays(i)
	}
	s, err := timeseries.New(name, times, values)
	require.NoError(t, err)
	return s
}

func TestWeightedReturns(t *testing.T) {
	assetReturns := map[string]*timeseries.TimeSeries{
		"A": returnSeries(t, "A", []float64{0.01, 0.02, -0.01}),
		"B": returnSeries(t, "B", []float64{-0.02, 0.01, 0.03}),
	}
	weights := map[string]float64{"A": 0.75, "B": 0.25}

	port, err := WeightedReturns(weights, assetReturns)
	require.NoError(t, err)
	require.Equal(t, 3, port.Len())

	vals := port.Values()
	assert.InDelta(t, 0.75*0.01+0.25*-0.02, vals[0], 1e-12)
	assert.InDelta(t, 0.75*0.02+0.25*0.01, vals[1], 1e-12)
	assert.InDelta(t, 0.75*-0.01+0.25*0.03, vals[2], 1e-12)
}

func TestWeightedReturnsValidation(t *testing.T) {
	_, err := WeightedReturns(nil, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	weights := map[string]float64{"A": 1}
	_, err = WeightedReturns(weights, map[string]*timeseries.TimeSeries{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput, "missing series")

	uneven := map[string]*timeseries.TimeSeries{
		"A": returnSeries(t, "A", []float64{0.01, 0.02}),
		"B": returnSeries(t, "B", []float64{0.01}),
	}
	_, err = WeightedReturns(map[string]float64{"A": 0.5, "B": 0.5}, uneven)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
