package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/resilience"
	"github.com/kbukum/resilience/errors"
)

// Instruments holds OpenTelemetry metric instruments for the resilience
// primitives.
type Instruments struct {
	callTotal    metric.Int64Counter
	callDuration metric.Float64Histogram
	transitions  metric.Int64Counter
	rejections   metric.Int64Counter
}

// NewInstruments creates metric instruments on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	callTotal, err := meter.Int64Counter("resilience.calls.total",
		metric.WithDescription("Total protected calls by breaker and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.calls.total counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("resilience.call.duration",
		metric.WithDescription("Duration of protected calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.call.duration histogram: %w", err)
	}

	transitions, err := meter.Int64Counter("resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.breaker.transitions counter: %w", err)
	}

	rejections, err := meter.Int64Counter("resilience.rejections.total",
		metric.WithDescription("Calls rejected by a resilience policy, by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.rejections.total counter: %w", err)
	}

	return &Instruments{
		callTotal:    callTotal,
		callDuration: callDuration,
		transitions:  transitions,
		rejections:   rejections,
	}, nil
}

// RecordCall records a completed protected call.
func (i *Instruments) RecordCall(ctx context.Context, name, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("status", status),
	)
	i.callTotal.Add(ctx, 1, attrs)
	i.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("name", name),
	))
}

// RecordTransition records a breaker state change.
func (i *Instruments) RecordTransition(ctx context.Context, change resilience.StateChange) {
	i.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", change.Name),
		attribute.String("from", change.From.String()),
		attribute.String("to", change.To.String()),
	))
}

// RecordRejection records a call denied by a policy.
func (i *Instruments) RecordRejection(ctx context.Context, name string, code errors.ErrorCode) {
	i.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("code", string(code)),
	))
}

// MeterListener exports breaker notifications through Instruments. Register
// it with CircuitBreaker.AddListener. Notifications fire on the caller's
// goroutine, so recording uses a background context.
type MeterListener struct {
	instruments *Instruments
}

// NewMeterListener creates a listener backed by the given instruments.
func NewMeterListener(instruments *Instruments) *MeterListener {
	return &MeterListener{instruments: instruments}
}

// OnStateChange implements resilience.Listener.
func (l *MeterListener) OnStateChange(change resilience.StateChange) {
	l.instruments.RecordTransition(context.Background(), change)
}

// OnSuccess implements resilience.Listener.
func (l *MeterListener) OnSuccess(name string, duration time.Duration) {
	l.instruments.RecordCall(context.Background(), name, "ok", duration)
}

// OnFailure implements resilience.Listener.
func (l *MeterListener) OnFailure(name string, duration time.Duration, err error) {
	l.instruments.RecordCall(context.Background(), name, string(errors.Code(err)), duration)
}

// TraceExecute runs fn under the executor inside a span named after the
// protected target. Rejections and failures are recorded on the span with
// their machine-readable code.
func TraceExecute(ctx context.Context, name string, e resilience.Executor, fn resilience.UnitOfWork) error {
	ctx, span := StartSpan(ctx, "resilience.execute")
	defer span.End()

	span.SetAttributes(attribute.String("resilience.target", name))

	err := e.Execute(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("resilience.code", string(errors.Code(err))))
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
