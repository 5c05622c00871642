package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
)

// Config holds the sinkcat settings. Environment variables override the
// defaults and command-line flags override both.
type Config struct {
	Input  string `envconfig:"SINKCAT_INPUT"`
	Output string `envconfig:"SINKCAT_OUTPUT"`

	RedisKey    string        `envconfig:"SINKCAT_REDIS_KEY"`
	RedisMaxLen int64         `envconfig:"SINKCAT_REDIS_MAXLEN"`
	RedisTTL    time.Duration `envconfig:"SINKCAT_REDIS_TTL"`

	HighWaterMark float64 `envconfig:"SINKCAT_HIGH_WATER_MARK"`
	ChunkSize     int     `envconfig:"SINKCAT_CHUNK_SIZE"`
	Rate          float64 `envconfig:"SINKCAT_RATE"`
	Retries       uint    `envconfig:"SINKCAT_RETRIES"`

	LogLevel    string `envconfig:"SINKCAT_LOG_LEVEL"`
	MetricsAddr string `envconfig:"SINKCAT_METRICS_ADDR"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Output:        "-",
		RedisKey:      "sinkcat",
		HighWaterMark: 1 << 20,
		ChunkSize:     32 * 1024,
		LogLevel:      "info",
	}
}

// loadConfig applies environment variables found through lookup on top of
// the defaults.
func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	config := DefaultConfig()
	if err := envconfig.Process("", &config, lookup); err != nil {
		return config, fmt.Errorf("reading environment: %w", err)
	}
	return config, nil
}

// Validate checks the settings before anything is opened.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("sinkcat", "chunkSize", c.ChunkSize); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("sinkcat", "highWaterMark", c.HighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidateFiniteNonNegative("sinkcat", "rate", c.Rate); err != nil {
		return err
	}
	if c.RedisMaxLen < 0 {
		return gferrors.NewValidationError("sinkcat", "redisMaxLen", c.RedisMaxLen, "cannot be negative").
			WithHint("use 0 to keep every entry")
	}
	if c.isRedis() {
		if err := validation.ValidateNotEmpty("sinkcat", "redisKey", c.RedisKey); err != nil {
			return err
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return gferrors.NewValidationError("sinkcat", "logLevel", c.LogLevel, err.Error()).
			WithHint("use one of panic, fatal, error, warn, info, debug, trace")
	}
	return nil
}

func (c Config) isRedis() bool {
	return strings.HasPrefix(c.Output, "redis://") || strings.HasPrefix(c.Output, "rediss://")
}
