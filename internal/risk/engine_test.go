package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/analytics/pkg/errs"
)

func TestEngineDispatch(t *testing.T) {
	e := NewEngine(nil)
	s := unitNormalSeries(t, 5_000, 101)

	for _, method := range []Method{
		MethodHistorical,
		MethodParametric,
		MethodCornishFisher,
		MethodMonteCarlo,
		MethodEVT,
	} {
		res, err := e.Compute(s, method, Params{Alpha: 0.05, Seed: 7})
		require.NoError(t, err, "method %s", method)
		assert.Equal(t, method, res.Method)
		assert.Positive(t, res.VaR)
		assert.GreaterOrEqual(t, res.ExpectedShortfall, res.VaR)
	}
}

func TestEngineDefaults(t *testing.T) {
	e := NewEngine(nil)
	s := unitNormalSeries(t, 1_000, 103)

	res, err := e.Compute(s, MethodHistorical, Params{})
	require.NoError(t, err)
	assert.Equal(t, 0.05, res.Alpha)
	assert.Equal(t, 1, res.HorizonDays)
}

func TestEngineUnknownMethod(t *testing.T) {
	e := NewEngine(nil)
	s := unitNormalSeries(t, 1_000, 105)

	_, err := e.Compute(s, Method("quantum"), Params{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestCheckLimits(t *testing.T) {
	e := NewEngine(nil)
	s := unitNormalSeries(t, 5_000, 107) // 95% VaR around 1.645

	pass, err := e.CheckLimits(s, Limits{MaxVaR95: 5, MaxCVaR95: 5})
	require.NoError(t, err)
	assert.True(t, pass.Passed)
	assert.Empty(t, pass.Violations)
	assert.Positive(t, pass.VaR95)

	fail, err := e.CheckLimits(s, Limits{MaxVaR95: 0.5, MaxCVaR95: 0.5})
	require.NoError(t, err)
	assert.False(t, fail.Passed)
	assert.Len(t, fail.Violations, 2)
}

func TestCheckLimitsZeroMeansUnbounded(t *testing.T) {
	e := NewEngine(nil)
	s := unitNormalSeries(t, 1_000, 109)

	res, err := e.CheckLimits(s, Limits{})
	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestStressTest(t *testing.T) {
	e := NewEngine(nil)

	weights := map[string]float64{"AAPL": 0.6, "MSFT": 0.4}
	scenarios := []Scenario{
		{Name: "tech selloff", Shocks: map[string]float64{"AAPL": -0.10, "MSFT": -0.08}},
		{Name: "broad crash", Shocks: map[string]float64{"*": -0.20}},
		{Name: "aapl only", Shocks: map[string]float64{"AAPL": -0.05}},
	}

	results := e.StressTest(weights, scenarios)
	require.Len(t, results, 3)

	assert.InDelta(t, 0.6*-0.10+0.4*-0.08, results["tech selloff"], 1e-12)
	assert.InDelta(t, -0.20, results["broad crash"], 1e-12)
	assert.InDelta(t, 0.6*-0.05, results["aapl only"], 1e-12)
}
