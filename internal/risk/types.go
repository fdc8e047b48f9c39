// Package risk estimates Value-at-Risk and Expected Shortfall with several
// methods, backtests forecasts, and decomposes portfolio risk. Every
// estimator is a pure function over a return series; loss is always
// expressed as a positive number.
package risk

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// Method tags the estimator that produced a VaRResult.
type Method string

const (
	MethodHistorical         Method = "historical"
	MethodParametric         Method = "parametric"
	MethodMonteCarlo         Method = "monte_carlo"
	MethodCornishFisher      Method = "cornish_fisher"
	MethodFilteredHistorical Method = "filtered_historical"
	MethodEVT                Method = "evt_pot"
)

// VaRResult is the common output of every estimator. VaR is a non-negative
// loss; ExpectedShortfall is at least VaR at the same confidence.
type VaRResult struct {
	VaR               float64 `json:"var"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
	// Alpha is the tail probability: 0.05 estimates the 95% VaR.
	Alpha          float64 `json:"alpha"`
	Method         Method  `json:"method"`
	Coverage       float64 `json:"coverage"`
	HorizonDays    int     `json:"horizon_days"`
	Volatility     float64 `json:"volatility"`
	Skewness       float64 `json:"skewness"`
	ExcessKurtosis float64 `json:"excess_kurtosis"`
	Observations   int     `json:"observations"`
}

// EVTParameters describes a fitted Generalised Pareto tail.
type EVTParameters struct {
	Threshold         float64 `json:"threshold"` // u, on the loss scale
	Shape             float64 `json:"shape"`     // xi
	Scale             float64 `json:"scale"`     // sigma > 0
	Exceedances       int     `json:"exceedances"`
	ThresholdQuantile float64 `json:"threshold_quantile"`
}

// validate applies the common estimator preconditions.
func validate(s *timeseries.TimeSeries, alpha float64, horizon int) error {
	if alpha <= 0 || alpha >= 1 {
		return errs.InvalidInput("var: alpha %g outside (0, 1)", alpha)
	}
	if horizon < 1 {
		return errs.InvalidInput("var: horizon %d must be >= 1 day", horizon)
	}
	if s.Len() < 2 {
		return errs.InsufficientData("var: need at least 2 observations, got %d", s.Len())
	}
	return nil
}

// quantile interpolates linearly between adjacent order statistics of an
// ascending-sorted slice. p is a fraction in [0, 1].
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	w := idx - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// tailStats fills the distribution block shared by every estimator and
// returns a result skeleton. Coverage is the in-sample fraction of
// observations not exceeded by the single-period estimate.
func tailStats(method Method, values []float64, alpha float64, horizon int, singlePeriodVaR float64) VaRResult {
	violations := 0
	for _, r := range values {
		if r < -singlePeriodVaR {
			violations++
		}
	}
	return VaRResult{
		Alpha:          alpha,
		Method:         method,
		Coverage:       1 - float64(violations)/float64(len(values)),
		HorizonDays:    horizon,
		Volatility:     stat.StdDev(values, nil),
		Skewness:       stat.Skew(values, nil),
		ExcessKurtosis: stat.ExKurtosis(values, nil),
		Observations:   len(values),
	}
}

// sortedCopy returns the values sorted ascending.
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func clampLoss(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// seedFor derives a deterministic rng seed, falling back to the clock when
// the caller passes zero. Zero-seed results are never cached upstream.
func seedFor(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}
