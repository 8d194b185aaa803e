package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig controls session tracing. Spans cover pty allocation and
// the lifetime of each emulated terminal; the resource describes the
// terminal they came from.
type TelemetryConfig struct {
	Enabled  bool
	Endpoint string

	// SampleRatio is the share of sessions traced. Values outside (0, 1)
	// trace every session.
	SampleRatio float64

	Version string
	Commit  string

	// Term and Program are the TERM and program handed to child processes.
	Term    string
	Program string

	// Logger receives export failures at debug level. Nil discards them.
	Logger *slog.Logger
}

// TelemetryShutdown flushes buffered spans and restores the previous globals.
type TelemetryShutdown func(ctx context.Context) error

// SetupTelemetry installs an OTLP/HTTP tracer provider. When disabled or cfg
// is nil, it returns a noop shutdown and leaves the global provider alone.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	origTP := otel.GetTracerProvider()
	origPropagator := otel.GetTextMapPropagator()
	origErrorHandler := otel.GetErrorHandler()

	res, err := telemetryResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporterOpts := []otlptracehttp.Option{
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}

	if cfg.Endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return noopShutdown, fmt.Errorf("create otel exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sessionSampler(cfg.SampleRatio)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Export failures must never reach the terminal the user is typing in.
	logger := cfg.Logger
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		if logger != nil {
			logger.Debug("telemetry export failed", slog.String("error", err.Error()))
		}
	}))

	return func(shutdownCtx context.Context) error {
		err := provider.Shutdown(shutdownCtx)

		otel.SetTracerProvider(origTP)
		otel.SetTextMapPropagator(origPropagator)
		otel.SetErrorHandler(origErrorHandler)

		if err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}

		return nil
	}, nil
}

// telemetryResource merges the SDK defaults, which honor OTEL_SERVICE_NAME
// and OTEL_RESOURCE_ATTRIBUTES, with vigil's build and terminal attributes.
func telemetryResource(cfg *TelemetryConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String("service.namespace", "vigil"),
		attribute.String("service.version", cfg.Version),
	}

	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		attrs = append(attrs, attribute.String("service.name", "vigil"))
	}

	if cfg.Commit != "" {
		attrs = append(attrs, attribute.String("vcs.revision", cfg.Commit))
	}

	if cfg.Term != "" {
		attrs = append(attrs, attribute.String("terminal.term", cfg.Term))
	}

	if cfg.Program != "" {
		attrs = append(attrs, attribute.String("process.executable.name", filepath.Base(cfg.Program)))
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	return res, nil
}

// sessionSampler samples whole sessions: child spans follow the decision
// made for the terminal.session root.
func sessionSampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Tracer returns a named tracer from the global TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsTelemetryEnabled checks the OTEL_ENABLED env var.
func IsTelemetryEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED")))
	return v == "1" || v == "true" || v == "yes"
}

func noopShutdown(context.Context) error { return nil }
