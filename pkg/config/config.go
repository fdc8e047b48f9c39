package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tuning knobs for the analytics library.
// The numerical kernels only ever receive this struct; reading the
// environment happens here and nowhere else.
type Config struct {
	Env       string // development, staging, production
	LogLevel  string
	LogFormat string // json or console

	Analytics AnalyticsConfig
	Cache     CacheConfig
	Parallel  ParallelConfig
}

// AnalyticsConfig controls metric computation and the report risk gate.
type AnalyticsConfig struct {
	RiskFreeRate          float64 // annualised
	PeriodsPerYear        float64 // 252 daily, 52 weekly, 12 monthly
	RollingWindows        []int
	MinSharpeThreshold    float64
	MaxDrawdownThreshold  float64
	EnableDetailedReports bool
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	MaxEntries     int           // soft cap, eviction uses hysteresis around it
	MaxAge         time.Duration // per-entry TTL
	MinComputeTime time.Duration // cheaper results are not admitted
}

// ParallelConfig controls the worker pool and chunking.
type ParallelConfig struct {
	MaxThreads        int // upper bound, capped at hardware concurrency
	ParallelThreshold int // below this input size, run serially
	MinChunkSize      int
	ChunkSizeFactor   int
	AdaptiveChunking  bool
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "json",
		Analytics: AnalyticsConfig{
			RiskFreeRate:          0.0,
			PeriodsPerYear:        252,
			RollingWindows:        []int{21, 63, 252},
			MinSharpeThreshold:    0.5,
			MaxDrawdownThreshold:  0.20,
			EnableDetailedReports: true,
		},
		Cache: CacheConfig{
			MaxEntries:     4096,
			MaxAge:         30 * time.Minute,
			MinComputeTime: 50 * time.Microsecond,
		},
		Parallel: ParallelConfig{
			MaxThreads:        0, // 0 = hardware concurrency
			ParallelThreshold: 10_000,
			MinChunkSize:      1024,
			ChunkSizeFactor:   4,
			AdaptiveChunking:  true,
		},
	}
}

// Load reads configuration from environment variables on top of Default.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := Default()
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.Analytics.RiskFreeRate = getEnvAsFloat("RISK_FREE_RATE", cfg.Analytics.RiskFreeRate)
	cfg.Analytics.PeriodsPerYear = getEnvAsFloat("PERIODS_PER_YEAR", cfg.Analytics.PeriodsPerYear)
	cfg.Analytics.RollingWindows = getEnvAsIntList("ROLLING_WINDOWS", cfg.Analytics.RollingWindows)
	cfg.Analytics.MinSharpeThreshold = getEnvAsFloat("MIN_SHARPE_THRESHOLD", cfg.Analytics.MinSharpeThreshold)
	cfg.Analytics.MaxDrawdownThreshold = getEnvAsFloat("MAX_DRAWDOWN_THRESHOLD", cfg.Analytics.MaxDrawdownThreshold)
	cfg.Analytics.EnableDetailedReports = getEnvAsBool("ENABLE_DETAILED_REPORTS", cfg.Analytics.EnableDetailedReports)

	cfg.Cache.MaxEntries = getEnvAsInt("CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.MaxAge = getEnvAsDuration("CACHE_MAX_AGE", cfg.Cache.MaxAge)
	cfg.Cache.MinComputeTime = getEnvAsDuration("CACHE_MIN_COMPUTE_TIME", cfg.Cache.MinComputeTime)

	cfg.Parallel.MaxThreads = getEnvAsInt("PARALLEL_MAX_THREADS", cfg.Parallel.MaxThreads)
	cfg.Parallel.ParallelThreshold = getEnvAsInt("PARALLEL_THRESHOLD", cfg.Parallel.ParallelThreshold)
	cfg.Parallel.MinChunkSize = getEnvAsInt("PARALLEL_MIN_CHUNK_SIZE", cfg.Parallel.MinChunkSize)
	cfg.Parallel.ChunkSizeFactor = getEnvAsInt("PARALLEL_CHUNK_SIZE_FACTOR", cfg.Parallel.ChunkSizeFactor)
	cfg.Parallel.AdaptiveChunking = getEnvAsBool("PARALLEL_ADAPTIVE_CHUNKING", cfg.Parallel.AdaptiveChunking)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Analytics.PeriodsPerYear <= 0 {
		return fmt.Errorf("PERIODS_PER_YEAR must be > 0")
	}
	for _, w := range c.Analytics.RollingWindows {
		if w < 2 {
			return fmt.Errorf("ROLLING_WINDOWS entries must be >= 2, got %d", w)
		}
	}
	if c.Analytics.MaxDrawdownThreshold < 0 || c.Analytics.MaxDrawdownThreshold > 1 {
		return fmt.Errorf("MAX_DRAWDOWN_THRESHOLD must be in [0, 1]")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be > 0")
	}
	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("CACHE_MAX_AGE must be > 0")
	}
	if c.Parallel.MaxThreads < 0 {
		return fmt.Errorf("PARALLEL_MAX_THREADS must be >= 0")
	}
	if c.Parallel.MinChunkSize <= 0 {
		return fmt.Errorf("PARALLEL_MIN_CHUNK_SIZE must be > 0")
	}
	if c.Parallel.ChunkSizeFactor <= 0 {
		return fmt.Errorf("PARALLEL_CHUNK_SIZE_FACTOR must be > 0")
	}
	return nil
}

// loadEnvFile tries to load .env from a few likely locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvAsIntList parses comma-separated window lists like "21,63,252".
func getEnvAsIntList(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
