package risk

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// kupiecCritical is the chi-squared(1) critical value at 95% confidence.
const kupiecCritical = 3.841

// KupiecResult reports the proportion-of-failures likelihood ratio test.
type KupiecResult struct {
	Observations int     `json:"observations"`
	Violations   int     `json:"violations"`
	ExpectedRate float64 `json:"expected_rate"`
	ObservedRate float64 `json:"observed_rate"`
	LRStatistic  float64 `json:"lr_statistic"`
	PValue       float64 `json:"p_value"`
	RejectModel  bool    `json:"reject_model"`
	Verdict      string  `json:"verdict"`
}

// TrafficLight is the Basel committee zone for a backtest window.
type TrafficLight string

const (
	ZoneGreen  TrafficLight = "green"
	ZoneYellow TrafficLight = "yellow"
	ZoneRed    TrafficLight = "red"
)

// BaselResult reports the traffic light classification over the most recent
// observation window.
type BaselResult struct {
	Window     int          `json:"window"`
	Violations int          `json:"violations"`
	Zone       TrafficLight `json:"zone"`
}

// countViolations walks returns and VaR forecasts on their shared dates and
// counts days where the realised loss exceeded the forecast.
func countViolations(returns, forecasts *timeseries.TimeSeries) (violations, observations int, err error) {
	if returns == nil || returns.Empty() {
		return 0, 0, errs.InvalidInput("var backtest: returns series is empty")
	}
	if forecasts == nil || forecasts.Empty() {
		return 0, 0, errs.InvalidInput("var backtest: forecast series is empty")
	}

	rTimes := returns.Times()
	rValues := returns.Values()
	for i, ts := range rTimes {
		v, lookErr := forecasts.ValueAt(ts)
		if lookErr != nil || math.IsNaN(v) || math.IsNaN(rValues[i]) {
			continue
		}
		observations++
		if -rValues[i] > v {
			violations++
		}
	}
	if observations == 0 {
		return 0, 0, errs.InsufficientData("var backtest: no overlapping dates between returns and forecasts")
	}
	return violations, observations, nil
}

// Kupiec runs the proportion-of-failures test: does the observed violation
// rate match the VaR confidence level? The forecasts series holds
// loss-positive single-period VaR values aligned by date with returns.
func Kupiec(returns, forecasts *timeseries.TimeSeries, alpha float64) (KupiecResult, error) {
	if alpha <= 0 || alpha >= 1 {
		return KupiecResult{}, errs.InvalidInput("kupiec test: alpha must be in (0, 1), got %g", alpha)
	}
	x, n, err := countViolations(returns, forecasts)
	if err != nil {
		return KupiecResult{}, err
	}

	observed := float64(x) / float64(n)
	lr := kupiecLR(float64(n), float64(x), alpha)
	chi2 := distuv.ChiSquared{K: 1}
	p := 1 - chi2.CDF(lr)

	reject := lr > kupiecCritical
	verdict := "model consistent with observed violation rate"
	if reject {
		if observed > alpha {
			verdict = "model rejected: too many violations, var underestimates risk"
		} else {
			verdict = "model rejected: too few violations, var overestimates risk"
		}
	}

	return KupiecResult{
		Observations: n,
		Violations:   x,
		ExpectedRate: alpha,
		ObservedRate: observed,
		LRStatistic:  lr,
		PValue:       p,
		RejectModel:  reject,
		Verdict:      verdict,
	}, nil
}

// kupiecLR computes -2 ln(L0/L1) with the boundary cases x=0 and x=n handled
// by dropping the vanishing terms.
func kupiecLR(n, x, alpha float64) float64 {
	var null, alt float64
	pHat := x / n
	if x > 0 {
		null += x * math.Log(alpha)
		alt += x * math.Log(pHat)
	}
	if x < n {
		null += (n - x) * math.Log(1-alpha)
		alt += (n - x) * math.Log(1-pHat)
	}
	lr := -2 * (null - alt)
	if lr < 0 {
		lr = 0
	}
	return lr
}

// BaselTrafficLight classifies the last 250 overlapping observations using
// the Basel committee zones for a 99% VaR model: green up to 4 violations,
// yellow from 5 to 9, red at 10 or more.
func BaselTrafficLight(returns, forecasts *timeseries.TimeSeries) (BaselResult, error) {
	const window = 250

	if returns != nil && returns.Len() > window {
		times := returns.Times()
		tail, err := returns.Slice(times[len(times)-window], times[len(times)-1])
		if err == nil {
			returns = tail
		}
	}
	x, n, err := countViolations(returns, forecasts)
	if err != nil {
		return BaselResult{}, err
	}

	zone := ZoneGreen
	switch {
	case x >= 10:
		zone = ZoneRed
	case x >= 5:
		zone = ZoneYellow
	}
	return BaselResult{Window: n, Violations: x, Zone: zone}, nil
}
