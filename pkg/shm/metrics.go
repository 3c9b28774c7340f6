package shm

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/srediag/telemetry-shm/pkg/shm"

type instruments struct {
	reads        metric.Int64Counter
	writes       metric.Int64Counter
	readDuration metric.Float64Histogram
}

func newInstruments(m metric.Meter) (*instruments, error) {
	if m == nil {
		m = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	reads, err := m.Int64Counter("shm.snapshot.reads",
		metric.WithDescription("Snapshot reads by outcome."),
		metric.WithUnit("{read}"))
	if err != nil {
		return nil, fmt.Errorf("shm.snapshot.reads: %w", err)
	}
	writes, err := m.Int64Counter("shm.settings.writes",
		metric.WithDescription("Settings block writes by outcome."),
		metric.WithUnit("{write}"))
	if err != nil {
		return nil, fmt.Errorf("shm.settings.writes: %w", err)
	}
	readDuration, err := m.Float64Histogram("shm.snapshot.read.duration",
		metric.WithDescription("Time to copy and decode one snapshot."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("shm.snapshot.read.duration: %w", err)
	}
	return &instruments{reads: reads, writes: writes, readDuration: readDuration}, nil
}

func defaultTracer(t trace.Tracer) trace.Tracer {
	if t != nil {
		return t
	}
	return tracenoop.NewTracerProvider().Tracer(instrumentationName)
}

func outcome(v string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("outcome", v))
}
