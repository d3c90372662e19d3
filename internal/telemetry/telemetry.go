package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// State values reported by Status.
const (
	StateDisabled = "disabled"
	StateOK       = "ok"
	StateDegraded = "degraded"
	StateStopped  = "stopped"
)

// Status is a point-in-time view of the exporters, shown on /health.
type Status struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Telemetry owns the tracer, meter and logger providers.
//
// A provider that fails to start leaves Telemetry degraded; the service
// keeps running with the global no-op provider in its place.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider

	mu      sync.RWMutex
	state   string
	lastErr error
}

// New creates a Telemetry instance. A disabled config yields a no-op instance.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg, state: StateDisabled}
	if !cfg.Enabled {
		return t, nil
	}
	t.state = StateOK

	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.degrade(fmt.Errorf("tracer provider: %w", err))
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.degrade(fmt.Errorf("meter provider: %w", err))
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	if lp, err := newLoggerProvider(ctx, cfg, res); err != nil {
		t.degrade(fmt.Errorf("logger provider: %w", err))
	} else if lp != nil {
		t.loggerProvider = lp
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// Tracer returns a tracer for the given instrumentation scope, falling back
// to the global provider.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope, falling back
// to the global provider.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// LoggerProvider returns the OTLP log provider for the logging bridge, or
// nil when log export is off.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// Shutdown flushes pending spans, metrics and log records and stops the providers.
// Without a deadline on ctx the configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownAfter.Duration())
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider shutdown: %w", err))
		}
	}

	t.mu.Lock()
	if t.state != StateDisabled {
		t.state = StateStopped
	}
	t.mu.Unlock()
	return errors.Join(errs...)
}

// Status reports the exporter state. A nil Telemetry reports disabled.
func (t *Telemetry) Status() Status {
	if t == nil {
		return Status{State: StateDisabled}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Status{State: t.state}
	if t.lastErr != nil {
		s.Error = t.lastErr.Error()
	}
	return s
}

// IsEnabled reports whether telemetry is configured on and not degraded.
func (t *Telemetry) IsEnabled() bool {
	return t.Status().State == StateOK
}

func (t *Telemetry) degrade(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateDegraded
	t.lastErr = err
}
