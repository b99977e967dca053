package tracingsvc

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/trezcool/somo/core"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global tracer provider when tracing is enabled, exporting spans to stdout.
func Init(conf *core.Config) (ShutdownFunc, error) {
	if !conf.Tracing.Enabled {
		return noopShutdown, nil
	}
	return InitWriter(conf, os.Stdout)
}

// InitWriter installs a tracer provider exporting spans as JSON to w.
func InitWriter(conf *core.Config, w io.Writer) (ShutdownFunc, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Wrap(err, "creating trace exporter")
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", conf.AppName),
		attribute.String("service.version", conf.Build),
		attribute.String("deployment.environment", conf.Env),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
