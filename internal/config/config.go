package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"credcal/domain/coverage"
	"credcal/internal"
	"credcal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Calibration CalibrationConfig
	Output      OutputConfig
	Log         LogConfig
}

// CalibrationConfig holds the Monte Carlo and interval search settings
type CalibrationConfig struct {
	Realizations  int
	TargetMass    float64
	Seed          int64
	Streams       int
	Workers       int
	Method        coverage.Method
	Tolerance     float64
	MaxIterations int
	SkipFailed    bool
}

// OutputConfig holds report destinations
type OutputConfig struct {
	Path   string // empty means no file export
	Format string // xlsx, csv, or empty to infer from Path
}

// LogConfig holds logging settings
type LogConfig struct {
	Level internal.LogLevel
}

// Defaults mirror the reference usage: 1e4 realizations at 95% mass
const (
	DefaultRealizations  = 10000
	DefaultTargetMass    = 0.95
	DefaultSeed          = 42
	DefaultStreams       = 8
	DefaultTolerance     = 1e-10
	DefaultMaxIterations = 200
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	method, err := coverage.ParseMethod(getEnvOrDefault("CREDCAL_METHOD", string(coverage.MethodHDI)))
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to load calibration configuration")
	}

	level, _ := internal.ParseLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO"))

	config := &Config{
		Calibration: CalibrationConfig{
			Realizations:  getEnvIntOrDefault("CREDCAL_REALIZATIONS", DefaultRealizations),
			TargetMass:    getEnvFloatOrDefault("CREDCAL_TARGET_MASS", DefaultTargetMass),
			Seed:          getEnvInt64OrDefault("CREDCAL_SEED", DefaultSeed),
			Streams:       getEnvIntOrDefault("CREDCAL_STREAMS", DefaultStreams),
			Workers:       getEnvIntOrDefault("CREDCAL_WORKERS", runtime.GOMAXPROCS(0)),
			Method:        method,
			Tolerance:     getEnvFloatOrDefault("CREDCAL_TOLERANCE", DefaultTolerance),
			MaxIterations: getEnvIntOrDefault("CREDCAL_MAX_ITERATIONS", DefaultMaxIterations),
			SkipFailed:    getEnvBoolOrDefault("CREDCAL_SKIP_FAILED", false),
		},
		Output: OutputConfig{
			Path:   getEnvOrDefault("CREDCAL_OUTPUT", ""),
			Format: strings.ToLower(getEnvOrDefault("CREDCAL_OUTPUT_FORMAT", "")),
		},
		Log: LogConfig{Level: level},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Validate checks every field against its domain
func (c *Config) Validate() error {
	cal := c.Calibration
	if cal.Realizations < 1 {
		return errors.ConfigInvalid("CREDCAL_REALIZATIONS must be >= 1")
	}
	if !(cal.TargetMass > 0 && cal.TargetMass < 1) {
		return errors.ConfigInvalid("CREDCAL_TARGET_MASS must lie in (0, 1)")
	}
	if cal.Streams < 1 {
		return errors.ConfigInvalid("CREDCAL_STREAMS must be >= 1")
	}
	if cal.Workers < 1 {
		return errors.ConfigInvalid("CREDCAL_WORKERS must be >= 1")
	}
	if !(cal.Tolerance > 0) {
		return errors.ConfigInvalid("CREDCAL_TOLERANCE must be positive")
	}
	if cal.MaxIterations < 1 {
		return errors.ConfigInvalid("CREDCAL_MAX_ITERATIONS must be >= 1")
	}
	switch c.Output.Format {
	case "", "xlsx", "csv":
	default:
		return errors.ConfigInvalid("CREDCAL_OUTPUT_FORMAT must be xlsx or csv")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
