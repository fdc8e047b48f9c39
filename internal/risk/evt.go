package risk

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

const (
	defaultTailFraction = 0.05
	minExceedances      = 10
)

// EVT estimates tail risk with a peaks-over-threshold model. Losses above a
// high threshold are fitted to a generalised Pareto distribution by maximum
// likelihood, and the VaR quantile is read off the fitted tail.
func EVT(s *timeseries.TimeSeries, alpha float64, horizon int, tailFraction float64) (VaRResult, EVTParameters, error) {
	if err := validate(s, alpha, horizon); err != nil {
		return VaRResult{}, EVTParameters{}, err
	}
	if tailFraction == 0 {
		tailFraction = defaultTailFraction
	}
	if tailFraction <= 0 || tailFraction >= 1 {
		return VaRResult{}, EVTParameters{}, errs.InvalidInput("evt var: tail fraction must be in (0, 1), got %g", tailFraction)
	}

	values := s.Values()
	losses := make([]float64, len(values))
	for i, v := range values {
		losses[i] = -v
	}
	sorted := sortedCopy(losses)
	u := quantile(sorted, 1-tailFraction)

	var excess []float64
	for _, l := range losses {
		if l > u {
			excess = append(excess, l-u)
		}
	}
	if len(excess) < minExceedances {
		return VaRResult{}, EVTParameters{}, errs.InsufficientData("evt var: only %d exceedances above threshold %.6f, need at least %d", len(excess), u, minExceedances)
	}

	shape, scale, err := fitGPD(excess)
	if err != nil {
		return VaRResult{}, EVTParameters{}, err
	}

	n := float64(len(losses))
	k := float64(len(excess))

	// POT quantile for the alpha tail probability.
	var qAlpha float64
	if math.Abs(shape) < 1e-10 {
		qAlpha = u + scale*math.Log(k/(n*alpha))
	} else {
		qAlpha = u + (scale/shape)*(math.Pow(n/k*alpha, -shape)-1)
	}
	singleVaR := clampLoss(qAlpha)

	var es float64
	if shape < 1 {
		es = (singleVaR + scale - shape*u) / (1 - shape)
	} else {
		// Infinite-mean regime, report the quantile itself.
		es = singleVaR
	}
	es = clampLoss(es)
	if es < singleVaR {
		es = singleVaR
	}

	scaleFactor := math.Sqrt(float64(horizon))
	res := tailStats(MethodEVT, values, alpha, horizon, singleVaR)
	res.VaR = singleVaR * scaleFactor
	res.ExpectedShortfall = es * scaleFactor

	params := EVTParameters{
		Threshold:         u,
		Shape:             shape,
		Scale:             scale,
		Exceedances:       len(excess),
		ThresholdQuantile: 1 - tailFraction,
	}
	return res, params, nil
}

// fitGPD fits a generalised Pareto distribution to threshold excesses by
// maximum likelihood. The scale is optimised on a log transform so the
// search stays unconstrained.
func fitGPD(excess []float64) (shape, scale float64, err error) {
	var mean, meanSq float64
	for _, y := range excess {
		mean += y
		meanSq += y * y
	}
	mean /= float64(len(excess))
	meanSq /= float64(len(excess))
	variance := meanSq - mean*mean
	if mean <= 0 || variance <= 0 {
		return 0, 0, errs.Numerical("evt var: degenerate exceedances, cannot fit tail")
	}

	// Method-of-moments starting point.
	shape0 := 0.5 * (1 - mean*mean/variance)
	if shape0 <= -0.4 {
		shape0 = -0.4
	}
	if shape0 >= 0.9 {
		shape0 = 0.45
	}
	scale0 := mean * (1 - shape0)
	if scale0 <= 0 {
		scale0 = mean
	}

	nll := func(theta []float64) float64 {
		xi := theta[0]
		sigma := math.Exp(theta[1])
		if sigma <= 0 || math.IsInf(sigma, 0) {
			return math.MaxFloat64
		}
		var ll float64
		for _, y := range excess {
			if math.Abs(xi) < 1e-10 {
				ll += math.Log(sigma) + y/sigma
				continue
			}
			z := 1 + xi*y/sigma
			if z <= 0 {
				return math.MaxFloat64
			}
			ll += math.Log(sigma) + (1+1/xi)*math.Log(z)
		}
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return math.MaxFloat64
		}
		return ll
	}

	problem := optimize.Problem{Func: nll}
	init := []float64{shape0, math.Log(scale0)}
	result, oerr := optimize.Minimize(problem, init, nil, &optimize.NelderMead{})
	if oerr != nil || result == nil || !isFinite(result.F) {
		return 0, 0, errs.Numerical("evt var: tail likelihood did not converge")
	}

	shape = result.X[0]
	scale = math.Exp(result.X[1])
	if !isFinite(shape) || !isFinite(scale) || scale <= 0 {
		return 0, 0, errs.Numerical("evt var: tail fit produced invalid parameters")
	}
	return shape, scale, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
