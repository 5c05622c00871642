package writable

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vnykmshr/sinkflow/pkg/metrics"
)

// instruments bundles the logger and the optional metrics of one stream.
type instruments struct {
	name     string
	log      logrus.FieldLogger
	registry *metrics.Registry
}

func newInstruments(name string, log logrus.FieldLogger, registry *metrics.Registry) *instruments {
	return &instruments{
		name:     name,
		log:      log.WithField("stream", name),
		registry: registry,
	}
}

func (in *instruments) stateChanged(state State, err error) {
	entry := in.log.WithField("state", state.String())
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("stream state changed")

	if in.registry != nil {
		in.registry.StateTransitions.WithLabelValues(in.name, state.String()).Inc()
	}
}

func (in *instruments) aborted(reason error) {
	in.log.WithError(reason).Debug("stream abort requested")
	if in.registry != nil {
		in.registry.Aborts.WithLabelValues(in.name).Inc()
	}
}

func (in *instruments) backpressureApplied() {
	if in.registry != nil {
		in.registry.BackpressureEvents.WithLabelValues(in.name).Inc()
	}
}

func (in *instruments) chunkEnqueued() {
	if in.registry != nil {
		in.registry.ChunksEnqueued.WithLabelValues(in.name).Inc()
	}
}

func (in *instruments) chunkWritten() {
	if in.registry != nil {
		in.registry.ChunksWritten.WithLabelValues(in.name).Inc()
	}
}

func (in *instruments) queueChanged(queueSize, desiredSize float64) {
	if in.registry != nil {
		in.registry.QueueSize.WithLabelValues(in.name).Set(queueSize)
		in.registry.DesiredSize.WithLabelValues(in.name).Set(desiredSize)
	}
}

// observeStep runs one sink step, timing it and counting failures.
func (in *instruments) observeStep(step string, fn func() error) error {
	start := time.Now()
	err := fn()

	if in.registry != nil {
		in.registry.SinkStepDuration.WithLabelValues(in.name, step).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		in.log.WithError(err).WithField("step", step).Debug("sink step failed")
		if in.registry != nil {
			in.registry.SinkErrors.WithLabelValues(in.name, step).Inc()
		}
	}
	return err
}
