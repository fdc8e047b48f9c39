// Package stats computes performance and distribution metrics over return
// series. Scalar metrics are memoised through the result cache; rolling
// variants run through the parallel pool.
package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/analytics/internal/parallel"
	"github.com/quantfold/analytics/internal/rescache"
	"github.com/quantfold/analytics/internal/risk"
	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/errs"
)

// Calculator evaluates metrics with an explicit cache and pool. Either may
// be nil, in which case memoisation or parallelism is simply skipped.
type Calculator struct {
	cfg   config.AnalyticsConfig
	cache *rescache.Cache
	pool  *parallel.Pool
}

// NewCalculator creates a Calculator.
func NewCalculator(cfg config.AnalyticsConfig, cache *rescache.Cache, pool *parallel.Pool) *Calculator {
	return &Calculator{cfg: cfg, cache: cache, pool: pool}
}

// PeriodsPerYear returns the configured annualisation factor.
func (c *Calculator) PeriodsPerYear() float64 {
	return c.cfg.PeriodsPerYear
}

// memo runs fn and caches its scalar output keyed by the series fingerprint,
// the operation tag and its parameters. Cached calls return bit-identical
// output to the uncached call.
func (c *Calculator) memo(s *timeseries.TimeSeries, op string, params []float64, fn func() (float64, error)) (float64, error) {
	if c.cache == nil {
		return fn()
	}
	key := rescache.Fingerprint(s, op, params...)
	if v, ok := c.cache.Get(key); ok {
		return v.(float64), nil
	}
	start := time.Now()
	v, err := fn()
	if err != nil {
		return 0, err
	}
	_ = c.cache.Put(key, v, time.Since(start)) // advisory failure only
	return v, nil
}

func requireSamples(s *timeseries.TimeSeries, n int, what string) error {
	if s.Len() < n {
		return errs.InsufficientData("%s needs at least %d samples, got %d", what, n, s.Len())
	}
	return nil
}

// Mean returns the arithmetic mean return.
func (c *Calculator) Mean(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 1, "mean"); err != nil {
		return 0, err
	}
	return c.memo(s, "mean", nil, func() (float64, error) {
		return stat.Mean(s.Values(), nil), nil
	})
}

// Std returns the Bessel-corrected sample standard deviation.
func (c *Calculator) Std(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 2, "std"); err != nil {
		return 0, err
	}
	return c.memo(s, "std", nil, func() (float64, error) {
		return stat.StdDev(s.Values(), nil), nil
	})
}

// Skewness returns the Fisher sample skewness.
func (c *Calculator) Skewness(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 3, "skewness"); err != nil {
		return 0, err
	}
	return c.memo(s, "skewness", nil, func() (float64, error) {
		return stat.Skew(s.Values(), nil), nil
	})
}

// ExcessKurtosis returns kurtosis minus 3.
func (c *Calculator) ExcessKurtosis(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 4, "excess kurtosis"); err != nil {
		return 0, err
	}
	return c.memo(s, "ex_kurtosis", nil, func() (float64, error) {
		return stat.ExKurtosis(s.Values(), nil), nil
	})
}

// DownsideDeviation returns sqrt(mean(min(r - mar, 0)^2)).
func (c *Calculator) DownsideDeviation(s *timeseries.TimeSeries, mar float64) (float64, error) {
	if err := requireSamples(s, 1, "downside deviation"); err != nil {
		return 0, err
	}
	return c.memo(s, "downside_dev", []float64{mar}, func() (float64, error) {
		var sum float64
		values := s.Values()
		for _, r := range values {
			if d := r - mar; d < 0 {
				sum += d * d
			}
		}
		return math.Sqrt(sum / float64(len(values))), nil
	})
}

// AnnualReturn compounds the mean periodic return over a year.
func (c *Calculator) AnnualReturn(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 1, "annual return"); err != nil {
		return 0, err
	}
	return c.memo(s, "annual_return", []float64{c.cfg.PeriodsPerYear}, func() (float64, error) {
		mean := stat.Mean(s.Values(), nil)
		return math.Pow(1+mean, c.cfg.PeriodsPerYear) - 1, nil
	})
}

// AnnualVolatility scales the periodic standard deviation by sqrt(P).
func (c *Calculator) AnnualVolatility(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 2, "annual volatility"); err != nil {
		return 0, err
	}
	return c.memo(s, "annual_vol", []float64{c.cfg.PeriodsPerYear}, func() (float64, error) {
		return stat.StdDev(s.Values(), nil) * math.Sqrt(c.cfg.PeriodsPerYear), nil
	})
}

// SharpeRatio returns (annual return - rf) / annual volatility, NaN when the
// volatility is zero.
func (c *Calculator) SharpeRatio(s *timeseries.TimeSeries, riskFree float64) (float64, error) {
	if err := requireSamples(s, 2, "sharpe ratio"); err != nil {
		return 0, err
	}
	return c.memo(s, "sharpe", []float64{riskFree, c.cfg.PeriodsPerYear}, func() (float64, error) {
		annRet := math.Pow(1+stat.Mean(s.Values(), nil), c.cfg.PeriodsPerYear) - 1
		annVol := stat.StdDev(s.Values(), nil) * math.Sqrt(c.cfg.PeriodsPerYear)
		if annVol == 0 {
			return math.NaN(), nil
		}
		return (annRet - riskFree) / annVol, nil
	})
}

// SortinoRatio is the Sharpe analogue over annualised downside deviation.
func (c *Calculator) SortinoRatio(s *timeseries.TimeSeries, riskFree float64) (float64, error) {
	if err := requireSamples(s, 2, "sortino ratio"); err != nil {
		return 0, err
	}
	return c.memo(s, "sortino", []float64{riskFree, c.cfg.PeriodsPerYear}, func() (float64, error) {
		annRet := math.Pow(1+stat.Mean(s.Values(), nil), c.cfg.PeriodsPerYear) - 1
		mar := riskFree / c.cfg.PeriodsPerYear
		var sum float64
		values := s.Values()
		for _, r := range values {
			if d := r - mar; d < 0 {
				sum += d * d
			}
		}
		dd := math.Sqrt(sum/float64(len(values))) * math.Sqrt(c.cfg.PeriodsPerYear)
		if dd == 0 {
			return math.NaN(), nil
		}
		return (annRet - riskFree) / dd, nil
	})
}

// MaxDrawdown returns the largest peak-to-trough decline of the cumulative
// return curve, in [0, 1]. Zero when the curve never declines.
func (c *Calculator) MaxDrawdown(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 1, "max drawdown"); err != nil {
		return 0, err
	}
	return c.memo(s, "max_drawdown", nil, func() (float64, error) {
		return maxDrawdown(s.Values()), nil
	})
}

// maxDrawdown walks the compounded equity curve of a return series.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// ValueAtRisk returns the one-period historical VaR at the given confidence
// level (e.g. 0.95), loss-positive, memoised like every other scalar.
func (c *Calculator) ValueAtRisk(s *timeseries.TimeSeries, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, errs.InvalidInput("value at risk: confidence %.4f outside (0, 1)", confidence)
	}
	return c.memo(s, "value_at_risk", []float64{confidence}, func() (float64, error) {
		res, err := risk.Historical(s, 1-confidence, 1)
		if err != nil {
			return 0, err
		}
		return res.VaR, nil
	})
}

// CalmarRatio returns annual return over max drawdown, NaN when the curve
// never drew down.
func (c *Calculator) CalmarRatio(s *timeseries.TimeSeries) (float64, error) {
	if err := requireSamples(s, 1, "calmar ratio"); err != nil {
		return 0, err
	}
	return c.memo(s, "calmar", []float64{c.cfg.PeriodsPerYear}, func() (float64, error) {
		annRet := math.Pow(1+stat.Mean(s.Values(), nil), c.cfg.PeriodsPerYear) - 1
		mdd := maxDrawdown(s.Values())
		if mdd == 0 {
			return math.NaN(), nil
		}
		return annRet / mdd, nil
	})
}
