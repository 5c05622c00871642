package sink

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/common/validation"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// DefaultRedisField is the stream entry field chunks are stored under.
const DefaultRedisField = "data"

// RedisConfig holds configuration for a Redis stream sink.
type RedisConfig struct {
	// Redis client to write through
	Redis redis.UniversalClient

	// Key is the Redis stream key
	Key string

	// Field is the entry field holding the chunk.
	// Default: "data"
	Field string

	// MaxLen trims the stream to about this many entries on every append.
	// Zero keeps every entry.
	MaxLen int64

	// TTL sets an expiry on the key once the stream closes. Zero leaves the
	// key persistent.
	TTL time.Duration

	// DeleteOnAbort removes the key when the stream is aborted.
	DeleteOnAbort bool

	// Timeout bounds each Redis command.
	// Default: 5s
	Timeout time.Duration
}

// DefaultRedisConfig returns a default configuration without a client or key.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Field:   DefaultRedisField,
		Timeout: 5 * time.Second,
	}
}

// RedisSink appends chunks as entries of a Redis stream.
type RedisSink struct {
	config RedisConfig
}

var (
	_ writable.Sink[[]byte]    = (*RedisSink)(nil)
	_ writable.Starter[[]byte] = (*RedisSink)(nil)
	_ writable.Closer          = (*RedisSink)(nil)
	_ writable.Aborter         = (*RedisSink)(nil)
)

// NewRedisSink creates a sink writing to config.Key with XADD.
func NewRedisSink(config RedisConfig) (*RedisSink, error) {
	if err := validation.ValidateNotNil("sink", "redis", config.Redis); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty("sink", "key", config.Key); err != nil {
		return nil, err
	}
	if config.MaxLen < 0 {
		return nil, gferrors.NewValidationError("sink", "maxLen", config.MaxLen, "cannot be negative").
			WithHint("use 0 to keep every entry")
	}

	defaults := DefaultRedisConfig()
	if config.Field == "" {
		config.Field = defaults.Field
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &RedisSink{config: config}, nil
}

// Start checks that Redis is reachable.
func (s *RedisSink) Start(ctx context.Context, _ *writable.Controller[[]byte]) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.config.Redis.Ping(ctx).Err(); err != nil {
		return s.redisError("ping", err)
	}
	return nil
}

// Write appends chunk as one stream entry.
func (s *RedisSink) Write(ctx context.Context, chunk []byte, _ *writable.Controller[[]byte]) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.config.Key,
		Values: map[string]interface{}{s.config.Field: chunk},
	}
	if s.config.MaxLen > 0 {
		args.MaxLen = s.config.MaxLen
		args.Approx = true
	}

	if err := s.config.Redis.XAdd(ctx, args).Err(); err != nil {
		return s.redisError("xadd", err)
	}
	return nil
}

// Close applies the configured TTL.
func (s *RedisSink) Close(ctx context.Context) error {
	if s.config.TTL <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.config.Redis.Expire(ctx, s.config.Key, s.config.TTL).Err(); err != nil {
		return s.redisError("expire", err)
	}
	return nil
}

// Abort deletes the key when DeleteOnAbort is set.
func (s *RedisSink) Abort(ctx context.Context, _ error) error {
	if !s.config.DeleteOnAbort {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.config.Redis.Del(ctx, s.config.Key).Err(); err != nil {
		return s.redisError("del", err)
	}
	return nil
}

// Key returns the Redis stream key.
func (s *RedisSink) Key() string {
	return s.config.Key
}

func (s *RedisSink) redisError(op string, err error) error {
	return gferrors.NewOperationError("redis", op, err).WithContext("key=" + s.config.Key)
}
