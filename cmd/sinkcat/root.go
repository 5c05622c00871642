package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vnykmshr/sinkflow/pkg/metrics"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// globalState is everything sinkcat takes from its process, so tests can
// run the command in-process.
type globalState struct {
	ctx       context.Context
	stdin     io.Reader
	stdout    io.Writer
	lookupEnv func(string) (string, bool)
	logger    *logrus.Logger
}

func newGlobalState(ctx context.Context) *globalState {
	return &globalState{
		ctx:       ctx,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		lookupEnv: os.LookupEnv,
		logger: &logrus.Logger{
			Out:       os.Stderr,
			Formatter: new(logrus.TextFormatter),
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
	}
}

type rootCommand struct {
	gs     *globalState
	config Config
	cmd    *cobra.Command
}

func newRootCommand(gs *globalState) (*rootCommand, error) {
	config, err := loadConfig(gs.lookupEnv)
	if err != nil {
		return nil, err
	}

	c := &rootCommand{gs: gs, config: config}
	c.cmd = &cobra.Command{
		Use:   "sinkcat",
		Short: "copy a byte stream into a sink with backpressure",
		Long: `sinkcat reads standard input, or --input, in chunks and writes them
through a writable stream to stdout, a file or a Redis stream.

Every flag can also be set with a SINKCAT_ environment variable, for example
SINKCAT_OUTPUT or SINKCAT_HIGH_WATER_MARK.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}
	c.cmd.SetIn(gs.stdin)
	c.cmd.SetOut(gs.stdout)
	c.cmd.Flags().AddFlagSet(c.flagSet())
	return c, nil
}

func (c *rootCommand) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringVarP(&c.config.Input, "input", "i", c.config.Input, "read from this file instead of stdin")
	flags.StringVarP(&c.config.Output, "output", "o", c.config.Output, `"-" for stdout, a file path, or redis://host:port/db`)
	flags.StringVar(&c.config.RedisKey, "redis-key", c.config.RedisKey, "Redis stream key")
	flags.Int64Var(&c.config.RedisMaxLen, "redis-maxlen", c.config.RedisMaxLen, "trim the Redis stream to about this many entries (0 keeps all)")
	flags.DurationVar(&c.config.RedisTTL, "redis-ttl", c.config.RedisTTL, "expire the Redis stream this long after a clean close (0 never)")
	flags.Float64Var(&c.config.HighWaterMark, "high-water-mark", c.config.HighWaterMark, "queued bytes at which reading pauses")
	flags.IntVar(&c.config.ChunkSize, "chunk-size", c.config.ChunkSize, "maximum chunk size in bytes")
	flags.Float64Var(&c.config.Rate, "rate", c.config.Rate, "maximum chunks per second (0 unlimited)")
	flags.UintVar(&c.config.Retries, "retries", c.config.Retries, "retries per failed chunk")
	flags.StringVar(&c.config.LogLevel, "log-level", c.config.LogLevel, "log level")
	flags.StringVar(&c.config.MetricsAddr, "metrics-addr", c.config.MetricsAddr, "serve Prometheus metrics on this address")
	return flags
}

func (c *rootCommand) run(cmd *cobra.Command, _ []string) error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	level, _ := logrus.ParseLevel(c.config.LogLevel)
	c.gs.logger.SetLevel(level)
	logger := c.gs.logger.WithField("cmd", "sinkcat")

	input := cmd.InOrStdin()
	if c.config.Input != "" && c.config.Input != "-" {
		file, err := os.Open(c.config.Input)
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()
		input = file
	}

	var registry *metrics.Registry
	if c.config.MetricsAddr != "" {
		promRegistry := prometheus.NewRegistry()
		registry = metrics.NewRegistry(promRegistry)
		_, stop, err := serveMetrics(c.config.MetricsAddr, promRegistry, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	out, err := openOutput(c.config, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.cleanup(); err != nil {
			logger.WithError(err).Warn("releasing output")
		}
	}()

	stream, err := writable.NewWithConfig(out.sink, writable.Config[[]byte]{
		Strategy: writable.ByteLengthStrategy(c.config.HighWaterMark),
		Name:     "sinkcat",
		Logger:   logger,
		Metrics:  registry,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := copyStream(c.gs.ctx, stream, input, c.config.ChunkSize)
	stats := stream.Stats()
	logger.WithFields(logrus.Fields{
		"bytes":    n,
		"chunks":   stats.ChunksWritten,
		"state":    stats.State,
		"duration": time.Since(start),
	}).Info("copy finished")
	return err
}

// serveMetrics exposes registry on addr until the returned function is
// called. It returns the address actually bound.
func serveMetrics(addr string, registry *prometheus.Registry, logger logrus.FieldLogger) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server")
		}
	}()
	logger.WithField("addr", listener.Addr().String()).Debug("serving metrics")

	return listener.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		<-done
	}, nil
}
