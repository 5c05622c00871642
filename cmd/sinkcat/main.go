// Command sinkcat copies standard input or a file into stdout, a file or a
// Redis stream through a backpressure-aware writable stream.
//
//	sinkcat --input access.log --output redis://localhost:6379/0 --redis-key logs
//	tail -f app.log | SINKCAT_RATE=50 sinkcat -o app.copy
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second signal kills the process the default way.
		<-ctx.Done()
		stop()
	}()

	gs := newGlobalState(ctx)
	c, err := newRootCommand(gs)
	if err != nil {
		gs.logger.WithError(err).Error("sinkcat failed")
		return 1
	}
	if err := c.cmd.Execute(); err != nil {
		gs.logger.WithError(err).Error("sinkcat failed")
		return 1
	}
	return 0
}
