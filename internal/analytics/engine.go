// Package analytics is the orchestration facade: it wires the statistics
// calculator, the risk engine, the result cache and the worker pool behind a
// single entry point that produces a full performance report.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/analytics/internal/parallel"
	"github.com/quantfold/analytics/internal/rescache"
	"github.com/quantfold/analytics/internal/risk"
	"github.com/quantfold/analytics/internal/stats"
	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/errs"
	"github.com/quantfold/analytics/pkg/logger"
)

// =============================================================================
// Engine
// =============================================================================

// Engine composes the analytics subsystems. Construct one per configuration;
// it is safe for concurrent use.
type Engine struct {
	cfg   *config.Config
	cache *rescache.Cache
	pool  *parallel.Pool
	calc  *stats.Calculator
	risk  *risk.Engine
	log   *logger.Logger
}

// New builds an engine from explicit handles. A nil cache disables result
// memoisation; a nil pool falls back to the process-default pool.
func New(cfg *config.Config, cache *rescache.Cache, pool *parallel.Pool, log *logger.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if pool == nil {
		pool = parallel.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		cfg:   cfg,
		cache: cache,
		pool:  pool,
		calc:  stats.NewCalculator(cfg.Analytics, cache, pool),
		risk:  risk.NewEngine(log),
		log:   log,
	}
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns a lazily built process-wide engine using Default config.
func Default() *Engine {
	defaultOnce.Do(func() {
		cfg := config.Default()
		log := logger.Nop()
		defaultEngine = New(cfg, rescache.New(cfg.Cache, log), parallel.Default(), log)
	})
	return defaultEngine
}

// =============================================================================
// Report types
// =============================================================================

// Metrics are the scalar performance figures for a return series.
type Metrics struct {
	AnnualReturn      float64 `json:"annual_return"`
	AnnualVolatility  float64 `json:"annual_volatility"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	SortinoRatio      float64 `json:"sortino_ratio"`
	CalmarRatio       float64 `json:"calmar_ratio"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	Skewness          float64 `json:"skewness"`
	ExcessKurtosis    float64 `json:"excess_kurtosis"`
	DownsideDeviation float64 `json:"downside_deviation"`
	VaR95             float64 `json:"var_95"`
	ExpectedShortfall float64 `json:"expected_shortfall_95"`
	Observations      int     `json:"observations"`
}

// RollingSet holds the rolling series computed for one window width.
type RollingSet struct {
	Mean        *timeseries.TimeSeries `json:"mean"`
	Volatility  *timeseries.TimeSeries `json:"volatility"`
	Sharpe      *timeseries.TimeSeries `json:"sharpe"`
	MaxDrawdown *timeseries.TimeSeries `json:"max_drawdown"`
}

// BenchmarkBlock is the relative-performance section of a report.
type BenchmarkBlock struct {
	Name             string  `json:"name"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	R2               float64 `json:"r_squared"`
	InformationRatio float64 `json:"information_ratio"`
	TrackingError    float64 `json:"tracking_error"`
	Correlation      float64 `json:"correlation"`
}

// PerformanceReport is the full output of AnalyzePerformance.
type PerformanceReport struct {
	ID              string             `json:"id"`
	Portfolio       string             `json:"portfolio"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Metrics         Metrics            `json:"metrics"`
	Rolling         map[int]RollingSet `json:"rolling,omitempty"`
	Benchmark       *BenchmarkBlock    `json:"benchmark,omitempty"`
	CacheStats      *rescache.Stats    `json:"cache_stats,omitempty"`
	Elapsed         time.Duration      `json:"elapsed_ns"`
	Warnings        []string           `json:"warnings"`
	Recommendations []string           `json:"recommendations"`
}

// =============================================================================
// AnalyzePerformance
// =============================================================================

// AnalyzePerformance computes the full report for a portfolio return series.
// benchmark may be nil. Rolling series are computed only when detailed
// reports are enabled; their kernels chunk across the worker pool.
func (e *Engine) AnalyzePerformance(ctx context.Context, portfolio, benchmark *timeseries.TimeSeries) (*PerformanceReport, error) {
	if portfolio == nil || portfolio.Empty() {
		return nil, errs.InvalidInput("analyze: portfolio series is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	report := &PerformanceReport{
		ID:              uuid.NewString(),
		Portfolio:       portfolio.Name(),
		GeneratedAt:     time.Now().UTC(),
		Warnings:        make([]string, 0),
		Recommendations: make([]string, 0),
	}

	metrics, metricWarns, err := e.computeMetrics(portfolio)
	if err != nil {
		return nil, err
	}
	report.Metrics = metrics
	report.Warnings = append(report.Warnings, metricWarns...)

	if e.cfg.Analytics.EnableDetailedReports {
		rolling, warns := e.computeRolling(ctx, portfolio)
		report.Rolling = rolling
		report.Warnings = append(report.Warnings, warns...)
	}

	if benchmark != nil && !benchmark.Empty() {
		block, berr := e.computeBenchmark(portfolio, benchmark)
		if berr != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("benchmark analysis skipped: %v", berr))
		} else {
			report.Benchmark = block
		}
	}

	e.applyRiskGate(report)

	if e.cache != nil {
		s := e.cache.Stats()
		report.CacheStats = &s
	}
	report.Elapsed = time.Since(start)

	e.log.Infof("performance report generated: id=%s obs=%d sharpe=%.3f elapsed=%s",
		report.ID, metrics.Observations, metrics.SharpeRatio, report.Elapsed)
	return report, nil
}

func (e *Engine) computeMetrics(s *timeseries.TimeSeries) (Metrics, []string, error) {
	rf := e.cfg.Analytics.RiskFreeRate

	m := Metrics{Observations: s.Len()}
	steps := []struct {
		dst  *float64
		name string
		fn   func() (float64, error)
	}{
		{&m.AnnualReturn, "annual return", func() (float64, error) { return e.calc.AnnualReturn(s) }},
		{&m.AnnualVolatility, "annual volatility", func() (float64, error) { return e.calc.AnnualVolatility(s) }},
		{&m.SharpeRatio, "sharpe ratio", func() (float64, error) { return e.calc.SharpeRatio(s, rf) }},
		{&m.SortinoRatio, "sortino ratio", func() (float64, error) { return e.calc.SortinoRatio(s, rf) }},
		{&m.CalmarRatio, "calmar ratio", func() (float64, error) { return e.calc.CalmarRatio(s) }},
		{&m.MaxDrawdown, "max drawdown", func() (float64, error) { return e.calc.MaxDrawdown(s) }},
		{&m.Skewness, "skewness", func() (float64, error) { return e.calc.Skewness(s) }},
		{&m.ExcessKurtosis, "excess kurtosis", func() (float64, error) { return e.calc.ExcessKurtosis(s) }},
		{&m.DownsideDeviation, "downside deviation", func() (float64, error) { return e.calc.DownsideDeviation(s, 0) }},
	}
	for _, step := range steps {
		v, err := step.fn()
		if err != nil {
			return Metrics{}, nil, fmt.Errorf("%s: %w", step.name, err)
		}
		*step.dst = v
	}

	var warnings []string
	vr, err := e.risk.Compute(s, risk.MethodHistorical, risk.Params{Alpha: 0.05})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("var_95 unavailable: %v", err))
	} else {
		m.VaR95 = vr.VaR
		m.ExpectedShortfall = vr.ExpectedShortfall
	}
	return m, warnings, nil
}

// computeRolling evaluates each configured window in turn. The rolling
// kernels already chunk their output range across the pool, so the windows
// run inline here: submitting them to the same pool would let every worker
// block on inner futures queued behind itself.
// Windows wider than the series are skipped with a warning rather than
// failing the whole report.
func (e *Engine) computeRolling(ctx context.Context, s *timeseries.TimeSeries) (map[int]RollingSet, []string) {
	rf := e.cfg.Analytics.RiskFreeRate

	sets := make(map[int]RollingSet)
	var warnings []string

	for _, window := range e.cfg.Analytics.RollingWindows {
		if window > s.Len() {
			warnings = append(warnings,
				fmt.Sprintf("rolling window %d skipped: series has only %d observations", window, s.Len()))
			continue
		}
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, fmt.Sprintf("rolling metrics truncated: %v", err))
			break
		}

		w := window
		set := RollingSet{}
		steps := []struct {
			dst **timeseries.TimeSeries
			fn  func() (*timeseries.TimeSeries, error)
		}{
			{&set.Mean, func() (*timeseries.TimeSeries, error) { return e.calc.RollingMean(s, w) }},
			{&set.Volatility, func() (*timeseries.TimeSeries, error) { return e.calc.RollingVolatility(s, w) }},
			{&set.Sharpe, func() (*timeseries.TimeSeries, error) { return e.calc.RollingSharpe(s, w, rf) }},
			{&set.MaxDrawdown, func() (*timeseries.TimeSeries, error) { return e.calc.RollingMaxDrawdown(s, w) }},
		}
		for _, step := range steps {
			series, err := step.fn()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("rolling window %d: %v", w, err))
				continue
			}
			*step.dst = series
		}
		sets[w] = set
	}
	return sets, warnings
}

func (e *Engine) computeBenchmark(s, benchmark *timeseries.TimeSeries) (*BenchmarkBlock, error) {
	ab, err := e.calc.AlphaBeta(s, benchmark, e.cfg.Analytics.RiskFreeRate)
	if err != nil {
		return nil, err
	}
	ir, err := e.calc.InformationRatio(s, benchmark)
	if err != nil {
		return nil, err
	}
	te, err := e.calc.TrackingError(s, benchmark)
	if err != nil {
		return nil, err
	}
	corr, err := s.Correlation(benchmark)
	if err != nil {
		return nil, err
	}
	return &BenchmarkBlock{
		Name:             benchmark.Name(),
		Alpha:            ab.Alpha,
		Beta:             ab.Beta,
		R2:               ab.R2,
		InformationRatio: ir,
		TrackingError:    te,
		Correlation:      corr,
	}, nil
}

// applyRiskGate compares the headline metrics to the configured thresholds
// and records warnings plus plain-language recommendations.
func (e *Engine) applyRiskGate(report *PerformanceReport) {
	cfg := e.cfg.Analytics
	m := report.Metrics

	if m.SharpeRatio < cfg.MinSharpeThreshold {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("sharpe ratio %.3f below threshold %.3f", m.SharpeRatio, cfg.MinSharpeThreshold))
		report.Recommendations = append(report.Recommendations,
			"risk-adjusted return is weak; review position sizing or reduce turnover")
	}
	if m.MaxDrawdown > cfg.MaxDrawdownThreshold {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("max drawdown %.3f exceeds threshold %.3f", m.MaxDrawdown, cfg.MaxDrawdownThreshold))
		report.Recommendations = append(report.Recommendations,
			"drawdown exceeds tolerance; consider a volatility target or stop rules")
	}
	if m.ExcessKurtosis > 3 {
		report.Recommendations = append(report.Recommendations,
			"returns are heavy-tailed; prefer cornish_fisher or evt_pot var over parametric")
	}
}

// =============================================================================
// Risk passthrough
// =============================================================================

// ComputeVaR exposes the risk engine dispatch on the facade.
func (e *Engine) ComputeVaR(s *timeseries.TimeSeries, method risk.Method, p risk.Params) (risk.VaRResult, error) {
	return e.risk.Compute(s, method, p)
}

// RunRiskChecks evaluates the portfolio against hard risk limits.
func (e *Engine) RunRiskChecks(s *timeseries.TimeSeries, limits risk.Limits) (*risk.CheckResult, error) {
	return e.risk.CheckLimits(s, limits)
}
