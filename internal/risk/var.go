package risk

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Historical estimates VaR from the empirical distribution: the alpha
// quantile is interpolated between adjacent order statistics and the
// shortfall is the mean of observations strictly below it. Multi-day
// horizons scale by sqrt(h).
func Historical(s *timeseries.TimeSeries, alpha float64, horizon int) (VaRResult, error) {
	if err := validate(s, alpha, horizon); err != nil {
		return VaRResult{}, err
	}

	values := s.Values()
	sorted := sortedCopy(values)
	q := quantile(sorted, alpha)
	singleVaR := clampLoss(-q)

	var tailSum float64
	tailCount := 0
	for _, r := range sorted {
		if r >= q {
			break
		}
		tailSum += r
		tailCount++
	}
	singleES := singleVaR
	if tailCount > 0 {
		singleES = clampLoss(-tailSum / float64(tailCount))
	}
	if singleES < singleVaR {
		singleES = singleVaR
	}

	scale := math.Sqrt(float64(horizon))
	res := tailStats(MethodHistorical, values, alpha, horizon, singleVaR)
	res.VaR = singleVaR * scale
	res.ExpectedShortfall = singleES * scale
	return res, nil
}

// Parametric assumes normally distributed returns. VaR is
// -(mu + sigma * z_alpha); the shortfall uses the closed form
// sigma * phi(z_alpha) / alpha - mu.
func Parametric(s *timeseries.TimeSeries, alpha float64, horizon int) (VaRResult, error) {
	if err := validate(s, alpha, horizon); err != nil {
		return VaRResult{}, err
	}

	values := s.Values()
	mu := stat.Mean(values, nil)
	sigma := stat.StdDev(values, nil)
	z := stdNormal.Quantile(alpha)

	singleVaR := clampLoss(-(mu + sigma*z))
	singleES := clampLoss(sigma*stdNormal.Prob(z)/alpha - mu)
	if singleES < singleVaR {
		singleES = singleVaR
	}

	scale := math.Sqrt(float64(horizon))
	res := tailStats(MethodParametric, values, alpha, horizon, singleVaR)
	res.VaR = singleVaR * scale
	res.ExpectedShortfall = singleES * scale
	return res, nil
}

// CornishFisher adjusts the normal quantile for observed skewness and
// excess kurtosis:
//
//	z_cf = z + (z^2-1)s/6 + (z^3-3z)k/24 - (2z^3-5z)s^2/36
func CornishFisher(s *timeseries.TimeSeries, alpha float64, horizon int) (VaRResult, error) {
	if err := validate(s, alpha, horizon); err != nil {
		return VaRResult{}, err
	}

	values := s.Values()
	mu := stat.Mean(values, nil)
	sigma := stat.StdDev(values, nil)
	sk := stat.Skew(values, nil)
	ku := stat.ExKurtosis(values, nil)

	z := stdNormal.Quantile(alpha)
	zcf := z +
		(z*z-1)*sk/6 +
		(z*z*z-3*z)*ku/24 -
		(2*z*z*z-5*z)*sk*sk/36

	singleVaR := clampLoss(-(mu + sigma*zcf))
	// Shortfall uses the normal closed form evaluated at the adjusted
	// quantile; the tail probability below z_cf keeps ES >= VaR.
	pcf := stdNormal.CDF(zcf)
	singleES := singleVaR
	if pcf > 0 {
		singleES = clampLoss(sigma*stdNormal.Prob(zcf)/pcf - mu)
	}
	if singleES < singleVaR {
		singleES = singleVaR
	}

	scale := math.Sqrt(float64(horizon))
	res := tailStats(MethodCornishFisher, values, alpha, horizon, singleVaR)
	res.VaR = singleVaR * scale
	res.ExpectedShortfall = singleES * scale
	return res, nil
}

// MonteCarlo samples n draws from the fitted normal with a supplied seed
// for reproducibility, then reads the quantile off the simulated
// distribution. n defaults to 10000 when zero.
func MonteCarlo(s *timeseries.TimeSeries, alpha float64, horizon, n int, seed int64) (VaRResult, error) {
	if err := validate(s, alpha, horizon); err != nil {
		return VaRResult{}, err
	}
	if n == 0 {
		n = 10_000
	}
	if n < 100 {
		return VaRResult{}, errs.InvalidInput("monte carlo var: need at least 100 simulations, got %d", n)
	}

	values := s.Values()
	mu := stat.Mean(values, nil)
	sigma := stat.StdDev(values, nil)

	rng := rand.New(rand.NewSource(seedFor(seed)))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = mu + sigma*rng.NormFloat64()
	}

	sorted := sortedCopy(samples)
	q := quantile(sorted, alpha)
	singleVaR := clampLoss(-q)

	var tailSum float64
	tailCount := 0
	for _, r := range sorted {
		if r >= q {
			break
		}
		tailSum += r
		tailCount++
	}
	singleES := singleVaR
	if tailCount > 0 {
		singleES = clampLoss(-tailSum / float64(tailCount))
	}
	if singleES < singleVaR {
		singleES = singleVaR
	}

	scale := math.Sqrt(float64(horizon))
	res := tailStats(MethodMonteCarlo, values, alpha, horizon, singleVaR)
	res.VaR = singleVaR * scale
	res.ExpectedShortfall = singleES * scale
	return res, nil
}
