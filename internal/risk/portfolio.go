package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// weightTolerance bounds how far the supplied weights may stray from 1.
const weightTolerance = 1e-6

// ComponentVaR is the per-asset decomposition of a parametric portfolio VaR.
type ComponentVaR struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Marginal float64 `json:"marginal_var"`
	Value    float64 `json:"component_var"`
	Percent  float64 `json:"percent_of_total"`
}

// Decomposition carries the portfolio VaR together with its additive
// component breakdown. Components sum to the total by Euler allocation.
type Decomposition struct {
	PortfolioVaR float64        `json:"portfolio_var"`
	Alpha        float64        `json:"alpha"`
	HorizonDays  int            `json:"horizon_days"`
	Components   []ComponentVaR `json:"components"`
}

// MarginalVaR decomposes a parametric portfolio VaR into per-asset
// contributions. Each asset's marginal VaR is the sensitivity of portfolio
// VaR to its weight; weight times marginal gives the additive component.
func MarginalVaR(assets []*timeseries.TimeSeries, weights []float64, alpha float64, horizon int) (Decomposition, error) {
	if len(assets) == 0 {
		return Decomposition{}, errs.InvalidInput("marginal var: no asset series supplied")
	}
	if len(assets) != len(weights) {
		return Decomposition{}, errs.InvalidInput("marginal var: %d assets but %d weights", len(assets), len(weights))
	}
	if alpha <= 0 || alpha >= 1 {
		return Decomposition{}, errs.InvalidInput("marginal var: alpha must be in (0, 1), got %g", alpha)
	}
	if horizon < 1 {
		return Decomposition{}, errs.InvalidInput("marginal var: horizon must be at least 1 day, got %d", horizon)
	}

	var wSum float64
	for _, w := range weights {
		wSum += w
	}
	if math.Abs(wSum-1) > weightTolerance {
		return Decomposition{}, errs.InvalidInput("marginal var: weights sum to %.8f, expected 1", wSum)
	}

	n := assets[0].Len()
	if n < 2 {
		return Decomposition{}, errs.InsufficientData("marginal var: need at least 2 observations, got %d", n)
	}
	for _, a := range assets[1:] {
		if a.Len() != n {
			return Decomposition{}, errs.InvalidInput("marginal var: asset series lengths differ (%d vs %d)", n, a.Len())
		}
	}

	returns := make([][]float64, len(assets))
	for i, a := range assets {
		returns[i] = a.Values()
	}

	// Portfolio return path under the given weights.
	port := make([]float64, n)
	for t := 0; t < n; t++ {
		var r float64
		for i := range returns {
			r += weights[i] * returns[i][t]
		}
		port[t] = r
	}

	portVar := stat.Variance(port, nil)
	if portVar <= 0 || math.IsNaN(portVar) {
		return Decomposition{}, errs.Numerical("marginal var: portfolio variance is not positive")
	}
	sigma := math.Sqrt(portVar)

	z := -stdNormal.Quantile(alpha)
	scale := math.Sqrt(float64(horizon))
	totalVaR := z * sigma * scale

	components := make([]ComponentVaR, len(assets))
	for i := range assets {
		cov := stat.Covariance(returns[i], port, nil)
		marginal := z * cov / sigma * scale
		component := weights[i] * marginal
		components[i] = ComponentVaR{
			Name:     assets[i].Name(),
			Weight:   weights[i],
			Marginal: marginal,
			Value:    component,
			Percent:  component / totalVaR,
		}
	}

	return Decomposition{
		PortfolioVaR: totalVaR,
		Alpha:        alpha,
		HorizonDays:  horizon,
		Components:   components,
	}, nil
}
