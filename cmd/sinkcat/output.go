package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vnykmshr/sinkflow/pkg/streaming/sink"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// output is the sink chunks are written to plus whatever must be released
// once the stream has settled.
type output struct {
	sink    writable.Sink[[]byte]
	cleanup func() error
}

// openOutput builds the sink for config.Output: "-" for stdout, a redis://
// URL for a Redis stream, anything else is a file path.
func openOutput(config Config, stdout io.Writer, logger logrus.FieldLogger) (*output, error) {
	var out *output
	switch {
	case config.Output == "" || config.Output == "-":
		// Hide any Close method: stdout outlives the stream.
		out = &output{
			sink:    sink.FromWriter(struct{ io.Writer }{stdout}),
			cleanup: func() error { return nil },
		}

	case config.isRedis():
		opts, err := redis.ParseURL(config.Output)
		if err != nil {
			return nil, fmt.Errorf("parsing redis output: %w", err)
		}
		client := redis.NewClient(opts)

		redisConfig := sink.DefaultRedisConfig()
		redisConfig.Redis = client
		redisConfig.Key = config.RedisKey
		redisConfig.MaxLen = config.RedisMaxLen
		redisConfig.TTL = config.RedisTTL
		s, err := sink.NewRedisSink(redisConfig)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		out = &output{sink: s, cleanup: client.Close}

	default:
		file, err := os.Create(config.Output)
		if err != nil {
			return nil, err
		}
		// The sink closes the file with the stream.
		out = &output{
			sink:    sink.FromWriter(file),
			cleanup: func() error { return nil },
		}
	}

	if config.Rate > 0 {
		limiter := rate.NewLimiter(rate.Limit(config.Rate), 1)
		out.sink = sink.RateLimit(out.sink, limiter, nil)
	}
	if config.Retries > 0 {
		retryConfig := sink.DefaultRetryConfig()
		retryConfig.Attempts = config.Retries + 1
		retryConfig.DelayType = sink.DelayTypeExponential
		retryConfig.MaxDelay = 5 * time.Second
		retryConfig.Logger = logger
		out.sink = sink.Retry(out.sink, retryConfig)
	}
	return out, nil
}
