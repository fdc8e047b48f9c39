package stats

import (
	"math"
	"time"

	"github.com/quantfold/analytics/internal/parallel"
	"github.com/quantfold/analytics/internal/rescache"
	"github.com/quantfold/analytics/internal/timeseries"
)

// rollingMemo computes a rolling metric through the pool and memoises the
// resulting value vector by (fingerprint, op, params, window).
func (c *Calculator) rollingMemo(s *timeseries.TimeSeries, op string, window int, params []float64, fn func([]float64) float64) (*timeseries.TimeSeries, error) {
	keyParams := append([]float64{float64(window)}, params...)

	if c.cache != nil {
		key := rescache.Fingerprint(s, op, keyParams...)
		if v, ok := c.cache.Get(key); ok {
			return seriesFromCached(s, op, v.([]float64)), nil
		}
		start := time.Now()
		out, err := parallel.Rolling(c.pool, s.Values(), window, fn)
		if err != nil {
			return nil, err
		}
		_ = c.cache.Put(key, out, time.Since(start))
		return seriesFromCached(s, op, out), nil
	}

	out, err := parallel.Rolling(c.pool, s.Values(), window, fn)
	if err != nil {
		return nil, err
	}
	return seriesFromCached(s, op, out), nil
}

func seriesFromCached(s *timeseries.TimeSeries, op string, values []float64) *timeseries.TimeSeries {
	out, _ := timeseries.New(s.Name()+"_"+op, s.Times(), values)
	return out
}

// RollingMean emits the trailing-window mean return series.
func (c *Calculator) RollingMean(s *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	return c.rollingMemo(s, "rolling_mean", window, nil, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingVolatility emits the trailing-window annualised volatility series.
func (c *Calculator) RollingVolatility(s *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	ann := math.Sqrt(c.cfg.PeriodsPerYear)
	return c.rollingMemo(s, "rolling_vol", window, []float64{c.cfg.PeriodsPerYear}, func(w []float64) float64 {
		return sampleStd(w) * ann
	})
}

// RollingSharpe emits the trailing-window annualised Sharpe ratio series.
func (c *Calculator) RollingSharpe(s *timeseries.TimeSeries, window int, riskFree float64) (*timeseries.TimeSeries, error) {
	p := c.cfg.PeriodsPerYear
	return c.rollingMemo(s, "rolling_sharpe", window, []float64{riskFree, p}, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(len(w))
		vol := sampleStd(w) * math.Sqrt(p)
		if vol == 0 {
			return math.NaN()
		}
		return (math.Pow(1+mean, p) - 1 - riskFree) / vol
	})
}

// RollingMaxDrawdown emits the trailing-window max drawdown series.
func (c *Calculator) RollingMaxDrawdown(s *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	return c.rollingMemo(s, "rolling_mdd", window, nil, maxDrawdown)
}

func sampleStd(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	mean := sum / float64(len(w))
	var ss float64
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(w)-1))
}
