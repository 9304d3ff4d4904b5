package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "mnemoscan"

// Standard OTel environment variables.
const (
	envOTLPHeaders      = "OTEL_EXPORTER_OTLP_HEADERS"
	envTracesSampler    = "OTEL_TRACES_SAMPLER"
	envTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

// Sampler names understood in Config.Sampler.
const (
	SamplerAlwaysOn     = "always_on"
	SamplerAlwaysOff    = "always_off"
	SamplerTraceIDRatio = "traceidratio"
)

// Providers are the telemetry handles a scan runs with.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// MetricsHandler serves Prometheus text format; nil unless Config.Prometheus.
	MetricsHandler http.Handler

	// Shutdown flushes exporters. Call it once before exit.
	Shutdown func(ctx context.Context) error
}

type shutdownFunc func(ctx context.Context) error

// shutdownChain runs shutdown hooks in reverse registration order.
type shutdownChain []shutdownFunc

func (c shutdownChain) run(ctx context.Context) error {
	var errs []error

	for _, fn := range slices.Backward(c) {
		errs = append(errs, fn(ctx))
	}

	return errors.Join(errs...)
}

// Init builds the logger and the tracer and meter providers, and installs the
// providers globally. Exporters are only created when configured.
func Init(cfg Config) (Providers, error) {
	cfg = resolveEnv(cfg)
	ctx := context.Background()

	logger := NewLogger(cfg.LogOutput, cfg.LogLevel, cfg.LogJSON, cfg.ServiceName, cfg.Environment)

	res, err := newResource(ctx, cfg)
	if err != nil {
		return Providers{}, err
	}

	var chain shutdownChain

	tp, err := newTracerProvider(ctx, cfg, res, &chain)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}

	mp, handler, err := newMeterProvider(ctx, cfg, res, &chain)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), chain.run(ctx))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeoutSec * time.Second
	}

	return Providers{
		Tracer:         tp.Tracer(instrumentationName),
		Meter:          mp.Meter(instrumentationName),
		Logger:         logger,
		MetricsHandler: handler,
		Shutdown: func(shutdownCtx context.Context) error {
			deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeout)
			defer cancel()

			return chain.run(deadlineCtx)
		},
	}, nil
}

// resolveEnv fills unset exporter settings from the standard OTel variables.
func resolveEnv(cfg Config) Config {
	if cfg.OTLPHeaders == nil {
		cfg.OTLPHeaders = ParseOTLPHeaders(os.Getenv(envOTLPHeaders))
	}

	if cfg.Sampler == "" {
		cfg.Sampler = os.Getenv(envTracesSampler)
		cfg.SamplerArg = os.Getenv(envTracesSamplerArg)
	}

	return cfg
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
		resource.WithProcessRuntimeVersion(),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

func newTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource, chain *shutdownChain,
) (trace.TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(SamplerFor(cfg)),
	)
	*chain = append(*chain, tp.Shutdown)

	return tp, nil
}

// SamplerFor picks the trace sampler: an explicit Sampler name wins, then
// SampleRatio, then parent-based always-on.
func SamplerFor(cfg Config) sdktrace.Sampler {
	switch strings.ToLower(cfg.Sampler) {
	case SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case SamplerTraceIDRatio:
		return sdktrace.TraceIDRatioBased(parseRatio(cfg.SamplerArg))
	}

	if cfg.SampleRatio > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

func newMeterProvider(
	ctx context.Context, cfg Config, res *resource.Resource, chain *shutdownChain,
) (metric.MeterProvider, http.Handler, error) {
	if cfg.OTLPEndpoint == "" && !cfg.Prometheus {
		return noopmetric.NewMeterProvider(), nil, nil
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	var handler http.Handler

	if cfg.Prometheus {
		reader, promHandler, err := newPrometheusReader()
		if err != nil {
			return nil, nil, err
		}

		opts = append(opts, sdkmetric.WithReader(reader))
		handler = promHandler
	}

	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(cfg.OTLPHeaders) > 0 {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
		}

		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	*chain = append(*chain, mp.Shutdown)

	return mp, handler, nil
}

// ParseOTLPHeaders parses "key=value,key=value". Malformed pairs are skipped;
// nil is returned when nothing parses.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return headers
}

// parseRatio reads a sampling ratio, falling back to 1.
func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1
	}

	return ratio
}
