package commands

import (
	"math/rand"
	"time"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/config"
	"github.com/quantfold/analytics/pkg/logger"
)

// syntheticReturns builds a seeded daily return series ending today. A small
// positive drift keeps the demo portfolio's headline metrics realistic.
func syntheticReturns(name string, days int, seed int64, drift, vol float64) (*timeseries.TimeSeries, error) {
	rng := rand.New(rand.NewSource(seed))

	times := make([]timeseries.Timestamp, 0, days)
	values := make([]float64, 0, days)
	day := timeseries.FromTime(time.Now().UTC().AddDate(0, 0, -days*2))
	for len(values) < days {
		day = day.AddDays(1)
		if !day.IsWeekday() {
			continue
		}
		times = append(times, day)
		values = append(values, drift+vol*rng.NormFloat64())
	}
	return timeseries.New(name, times, values)
}

// loadConfig resolves the CLI configuration from the environment, falling
// back to defaults when no .env is present.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	cfg.Env = envName
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func newLogger(cfg *config.Config) *logger.Logger {
	if verbose {
		return logger.New(cfg)
	}
	return logger.Nop()
}
