package risk

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/analytics/internal/garch"
	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// filteredMinSamples matches the GARCH fitting floor.
const filteredMinSamples = 30

// FilteredHistorical devolatilises the series with a GARCH(1,1) fit,
// bootstraps the standardised residuals, re-inflates them with the
// one-step-ahead volatility forecast and aggregates to the horizon before
// taking the quantile. No sqrt(h) scaling is applied: the horizon is built
// into the simulated paths.
func FilteredHistorical(s *timeseries.TimeSeries, alpha float64, horizon, n int, seed int64) (VaRResult, error) {
	if err := validate(s, alpha, horizon); err != nil {
		return VaRResult{}, err
	}
	if s.Len() < filteredMinSamples {
		return VaRResult{}, errs.InsufficientData("filtered historical var: need at least %d observations, got %d", filteredMinSamples, s.Len())
	}
	if n == 0 {
		n = 10_000
	}

	model, err := garch.New(garch.GARCH, 1, 1)
	if err != nil {
		return VaRResult{}, err
	}
	if err := model.Fit(s, garch.Normal); err != nil {
		return VaRResult{}, err
	}

	stdResid, err := model.StandardizedResiduals()
	if err != nil {
		return VaRResult{}, err
	}
	forecast, err := model.Forecast(1)
	if err != nil {
		return VaRResult{}, err
	}
	sigmaNext := forecast[0]

	values := s.Values()
	mu := stat.Mean(values, nil)
	z := stdResid.Values()

	rng := rand.New(rand.NewSource(seedFor(seed)))
	paths := make([]float64, n)
	for i := range paths {
		acc := 1.0
		for d := 0; d < horizon; d++ {
			r := mu + sigmaNext*z[rng.Intn(len(z))]
			acc *= 1 + r
		}
		paths[i] = acc - 1
	}

	sorted := sortedCopy(paths)
	q := quantile(sorted, alpha)
	horizonVaR := clampLoss(-q)

	var tailSum float64
	tailCount := 0
	for _, r := range sorted {
		if r >= q {
			break
		}
		tailSum += r
		tailCount++
	}
	horizonES := horizonVaR
	if tailCount > 0 {
		horizonES = clampLoss(-tailSum / float64(tailCount))
	}
	if horizonES < horizonVaR {
		horizonES = horizonVaR
	}

	// Coverage is judged against the implied single-period estimate.
	singleVaR := horizonVaR
	if horizon > 1 {
		singleVaR = horizonVaR / math.Sqrt(float64(horizon))
	}

	res := tailStats(MethodFilteredHistorical, values, alpha, horizon, singleVaR)
	res.VaR = horizonVaR
	res.ExpectedShortfall = horizonES
	return res, nil
}
