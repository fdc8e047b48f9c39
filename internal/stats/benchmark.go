package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/analytics/internal/rescache"
	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// AlphaBeta holds the OLS fit of excess portfolio returns on excess
// benchmark returns. Alpha is annualised.
type AlphaBeta struct {
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	R2          float64 `json:"r2"`
	ResidualStd float64 `json:"residual_std"`
}

func (c *Calculator) alignBenchmark(s, benchmark *timeseries.TimeSeries, what string) error {
	if benchmark == nil {
		return errs.InvalidInput("%s: benchmark series is nil", what)
	}
	if s.Len() != benchmark.Len() {
		return errs.InvalidInput("%s: portfolio has %d samples, benchmark %d", what, s.Len(), benchmark.Len())
	}
	if err := requireSamples(s, 2, what); err != nil {
		return err
	}
	return nil
}

// AlphaBeta regresses excess portfolio returns on excess benchmark returns.
func (c *Calculator) AlphaBeta(s, benchmark *timeseries.TimeSeries, riskFree float64) (AlphaBeta, error) {
	if err := c.alignBenchmark(s, benchmark, "alpha/beta"); err != nil {
		return AlphaBeta{}, err
	}

	rfPeriodic := riskFree / c.cfg.PeriodsPerYear
	x := benchmark.Values()
	y := s.Values()
	for i := range x {
		x[i] -= rfPeriodic
		y[i] -= rfPeriodic
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return AlphaBeta{}, errs.Numerical("alpha/beta: singular regression")
	}
	r2 := stat.RSquared(x, y, nil, alpha, beta)

	// Residual standard deviation around the fitted line.
	var ss, mean float64
	resid := make([]float64, len(x))
	for i := range x {
		resid[i] = y[i] - (alpha + beta*x[i])
		mean += resid[i]
	}
	mean /= float64(len(resid))
	for _, r := range resid {
		d := r - mean
		ss += d * d
	}
	residStd := math.Sqrt(ss / float64(len(resid)-1))

	return AlphaBeta{
		Alpha:       alpha * c.cfg.PeriodsPerYear,
		Beta:        beta,
		R2:          r2,
		ResidualStd: residStd,
	}, nil
}

// activeReturns returns the element-wise difference r - b.
func activeReturns(s, benchmark *timeseries.TimeSeries) []float64 {
	a := s.Values()
	b := benchmark.Values()
	for i := range a {
		a[i] -= b[i]
	}
	return a
}

// InformationRatio returns mean(r-b) * sqrt(P) / std(r-b).
func (c *Calculator) InformationRatio(s, benchmark *timeseries.TimeSeries) (float64, error) {
	if err := c.alignBenchmark(s, benchmark, "information ratio"); err != nil {
		return 0, err
	}
	return c.memoPair(s, benchmark, "information_ratio", func() (float64, error) {
		active := activeReturns(s, benchmark)
		sd := stat.StdDev(active, nil)
		if sd == 0 {
			return math.NaN(), nil
		}
		return stat.Mean(active, nil) * math.Sqrt(c.cfg.PeriodsPerYear) / sd, nil
	})
}

// TrackingError returns std(r-b) * sqrt(P).
func (c *Calculator) TrackingError(s, benchmark *timeseries.TimeSeries) (float64, error) {
	if err := c.alignBenchmark(s, benchmark, "tracking error"); err != nil {
		return 0, err
	}
	return c.memoPair(s, benchmark, "tracking_error", func() (float64, error) {
		active := activeReturns(s, benchmark)
		return stat.StdDev(active, nil) * math.Sqrt(c.cfg.PeriodsPerYear), nil
	})
}

// memoPair memoises a two-series metric by folding both fingerprints into
// the cache key.
func (c *Calculator) memoPair(s, benchmark *timeseries.TimeSeries, op string, fn func() (float64, error)) (float64, error) {
	if c.cache == nil {
		return fn()
	}
	bk := rescache.Fingerprint(benchmark, op)
	key := rescache.Fingerprint(s, op,
		math.Float64frombits(bk.Hi), math.Float64frombits(bk.Lo), c.cfg.PeriodsPerYear)
	if v, ok := c.cache.Get(key); ok {
		return v.(float64), nil
	}
	start := time.Now()
	v, err := fn()
	if err != nil {
		return 0, err
	}
	_ = c.cache.Put(key, v, time.Since(start))
	return v, nil
}
