package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceVersion is used when the host reports no version.
const DefaultServiceVersion = "unknown"

// Config holds instrumentation configuration.
type Config struct {
	// ServiceName names the service in telemetry resources. Defaults to
	// "sonar-auth-aad".
	ServiceName string

	// ServiceVersion is the version reported alongside the service name.
	ServiceVersion string

	// Enabled builds SDK meter and tracer providers carrying the resource.
	// When false, no-op providers are installed and recording costs
	// nothing. The SDK providers ship without exporters; hosts that need
	// export attach readers and span processors by supplying providers.
	Enabled bool

	// Resource overrides the default resource. When nil, one is built
	// from the service name and version.
	Resource *resource.Resource

	// MeterProvider overrides the provider built here, letting the host
	// bring one with its own readers and exporters. Takes precedence over
	// Enabled.
	MeterProvider metric.MeterProvider

	// TracerProvider overrides the tracer provider, same rules as
	// MeterProvider.
	TracerProvider trace.TracerProvider
}

// Instrumentation bundles the meter and tracer providers with the
// pre-registered metric instruments of the adapter.
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	// Registered during New only; Shutdown runs them once.
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates an instrumentation instance.
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = "sonar-auth-aad"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	switch {
	case config.MeterProvider != nil:
		inst.meterProvider = config.MeterProvider
	case config.Enabled:
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		inst.meterProvider = mp
		inst.shutdownFuncs = append(inst.shutdownFuncs, mp.Shutdown)
	default:
		inst.meterProvider = noop.NewMeterProvider()
	}

	switch {
	case config.TracerProvider != nil:
		inst.tracerProvider = config.TracerProvider
	case config.Enabled:
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		inst.tracerProvider = tp
		inst.shutdownFuncs = append(inst.shutdownFuncs, tp.Shutdown)
	default:
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// Shutdown flushes and stops the providers. Safe to call more than once;
// only the first call runs the registered shutdown functions.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope.
// Scopes are layer names like "flow", "token", "graph".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter("github.com/volver-13/sonar-auth-aad/" + scope)
}

// Tracer returns a named tracer for the given scope.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer("github.com/volver-13/sonar-auth-aad/" + scope)
}

// Metrics returns the registered metric instruments.
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// TracerProvider returns the underlying tracer provider.
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider.
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}
