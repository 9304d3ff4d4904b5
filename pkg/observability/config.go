// Package observability wires mnemoscan's structured logging, OpenTelemetry
// tracing and scan metrics.
package observability

import (
	"io"
	"log/slog"
)

const (
	defaultServiceName        = "mnemoscan"
	defaultShutdownTimeoutSec = 5
)

// Config selects log output and telemetry exporters. The zero exporter
// settings give no-op tracing and metrics.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Environment becomes the deployment.environment resource attribute and
	// the env log attribute when set.
	Environment string

	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	OTLPEndpoint string
	// OTLPHeaders default to OTEL_EXPORTER_OTLP_HEADERS when nil.
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// Prometheus attaches a scrape registry; Providers.MetricsHandler serves it.
	Prometheus bool

	// Sampler and SamplerArg default to OTEL_TRACES_SAMPLER and
	// OTEL_TRACES_SAMPLER_ARG. SampleRatio applies when neither is set.
	Sampler     string
	SamplerArg  string
	SampleRatio float64

	LogLevel  slog.Level
	LogJSON   bool
	LogOutput io.Writer // nil means os.Stderr

	ShutdownTimeoutSec int
}

// DefaultConfig returns info-level text logging and no exporters.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
