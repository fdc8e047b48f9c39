package risk

import (
	"fmt"
	"time"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
	"github.com/quantfold/analytics/pkg/logger"
)

// =============================================================================
// Engine - pure risk calculator
// =============================================================================

// Engine dispatches VaR estimation by method name. It holds no market data;
// callers assemble the return series and pass them in.
type Engine struct {
	log *logger.Logger
}

// NewEngine returns a risk engine. A nil logger is replaced with a no-op.
func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log}
}

// Params carries the knobs shared by all VaR estimators. Zero values fall
// back to defaults: Alpha 0.05, HorizonDays 1, Simulations 10000,
// TailFraction 0.05, Seed from the clock.
type Params struct {
	Alpha        float64 `json:"alpha"`
	HorizonDays  int     `json:"horizon_days"`
	Simulations  int     `json:"simulations"`
	Seed         int64   `json:"seed"`
	TailFraction float64 `json:"tail_fraction"`
}

func (p Params) withDefaults() Params {
	if p.Alpha == 0 {
		p.Alpha = 0.05
	}
	if p.HorizonDays == 0 {
		p.HorizonDays = 1
	}
	return p
}

// Compute runs the named estimator against the return series.
func (e *Engine) Compute(s *timeseries.TimeSeries, method Method, p Params) (VaRResult, error) {
	p = p.withDefaults()

	start := time.Now()
	var (
		res VaRResult
		err error
	)
	switch method {
	case MethodHistorical:
		res, err = Historical(s, p.Alpha, p.HorizonDays)
	case MethodParametric:
		res, err = Parametric(s, p.Alpha, p.HorizonDays)
	case MethodMonteCarlo:
		res, err = MonteCarlo(s, p.Alpha, p.HorizonDays, p.Simulations, p.Seed)
	case MethodCornishFisher:
		res, err = CornishFisher(s, p.Alpha, p.HorizonDays)
	case MethodFilteredHistorical:
		res, err = FilteredHistorical(s, p.Alpha, p.HorizonDays, p.Simulations, p.Seed)
	case MethodEVT:
		res, _, err = EVT(s, p.Alpha, p.HorizonDays, p.TailFraction)
	default:
		return VaRResult{}, errs.InvalidInput("risk engine: unknown var method %q", method)
	}
	if err != nil {
		e.log.WithError(err).Debugf("var computation failed: method=%s", method)
		return VaRResult{}, err
	}

	e.log.Debugf("var computed: method=%s alpha=%.3f horizon=%d var=%.6f es=%.6f elapsed=%s",
		method, p.Alpha, p.HorizonDays, res.VaR, res.ExpectedShortfall, time.Since(start))
	return res, nil
}

// =============================================================================
// Risk limit check
// =============================================================================

// Limits are the maximum tolerated loss-positive risk figures.
type Limits struct {
	MaxVaR95  float64 `json:"max_var_95"`
	MaxCVaR95 float64 `json:"max_cvar_95"`
}

// CheckResult reports whether a portfolio stays within its risk limits.
type CheckResult struct {
	Passed     bool      `json:"passed"`
	VaR95      float64   `json:"var_95"`
	CVaR95     float64   `json:"cvar_95"`
	Violations []string  `json:"violations"`
	CheckedAt  time.Time `json:"checked_at"`
}

// CheckLimits computes 95% historical VaR and expected shortfall and flags
// any limit breaches.
func (e *Engine) CheckLimits(s *timeseries.TimeSeries, limits Limits) (*CheckResult, error) {
	res, err := Historical(s, 0.05, 1)
	if err != nil {
		return nil, err
	}

	check := &CheckResult{
		Passed:     true,
		VaR95:      res.VaR,
		CVaR95:     res.ExpectedShortfall,
		Violations: make([]string, 0),
		CheckedAt:  time.Now(),
	}
	if limits.MaxVaR95 > 0 && res.VaR > limits.MaxVaR95 {
		check.Passed = false
		check.Violations = append(check.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", res.VaR, limits.MaxVaR95))
	}
	if limits.MaxCVaR95 > 0 && res.ExpectedShortfall > limits.MaxCVaR95 {
		check.Passed = false
		check.Violations = append(check.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", res.ExpectedShortfall, limits.MaxCVaR95))
	}
	if !check.Passed {
		e.log.Warnf("risk limit check failed: %d violation(s)", len(check.Violations))
	}
	return check, nil
}

// =============================================================================
// Stress test
// =============================================================================

// Scenario is a named set of instantaneous return shocks per symbol. The
// wildcard symbol "*" applies to every holding without its own shock.
type Scenario struct {
	Name   string             `json:"name"`
	Shocks map[string]float64 `json:"shocks"`
}

// StressTest applies each scenario to the weighted holdings and returns the
// portfolio-level impact per scenario name.
func (e *Engine) StressTest(weights map[string]float64, scenarios []Scenario) map[string]float64 {
	results := make(map[string]float64, len(scenarios))
	for _, scenario := range scenarios {
		var impact float64
		for symbol, weight := range weights {
			shock, ok := scenario.Shocks[symbol]
			if !ok {
				shock, ok = scenario.Shocks["*"]
				if !ok {
					continue
				}
			}
			impact += weight * shock
		}
		results[scenario.Name] = impact
	}
	return results
}
