// Package observability configures process-wide structured logging.
//
// Records always go to a local text or JSON handler. When an OpenTelemetry
// exporter is selected they are additionally bridged into an OTel log pipeline,
// filtered to the same minimum severity.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies records produced through the slog bridge.
const instrumentationName = "github.com/florianilch/thinkgate"

// Exporter selects where OpenTelemetry log records are sent.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPHTTP Exporter = "otlp-http"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
)

// Options configures Instrument.
type Options struct {
	Level slog.Level
	// Format is "text" or "json".
	Format   string
	Exporter Exporter
	// Output receives local log records. Defaults to os.Stderr.
	Output io.Writer
}

// ShutdownFunc flushes and stops the log pipeline.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger. OTLP exporters read their endpoint
// and headers from the standard OTEL_EXPORTER_OTLP_* environment variables.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	local, err := newLocalHandler(out, opts.Format, opts.Level)
	if err != nil {
		return nil, err
	}

	noop := func(context.Context) error { return nil }

	if opts.Exporter == "" || opts.Exporter == ExporterNone {
		slog.SetDefault(slog.New(local))
		return noop, nil
	}

	exporter, err := newExporter(ctx, opts.Exporter)
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", opts.Exporter, err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), levelSeverity(opts.Level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))

	// Route SDK-internal errors to the local handler only; sending them through the
	// bridge could loop back into the failing exporter.
	localLogger := slog.New(local)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		localLogger.Error("opentelemetry error", "error", err)
	}))

	bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(fanoutHandler{local, bridge}))

	return provider.Shutdown, nil
}

func newLocalHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch format {
	case "", "text":
		return slog.NewTextHandler(w, handlerOpts), nil
	case "json":
		return slog.NewJSONHandler(w, handlerOpts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, exporter Exporter) (sdklog.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(os.Stdout))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", exporter)
	}
}

// sevOffset aligns slog levels with OTel severities (slog.LevelDebug ↔ SeverityDebug),
// the same mapping the otelslog bridge applies to records.
const sevOffset = slog.Level(otellog.SeverityDebug) - slog.LevelDebug

// levelSeverity adapts a slog level to minsev's Severitier.
type levelSeverity slog.Level

func (l levelSeverity) Severity() otellog.Severity {
	return otellog.Severity(slog.Level(l) + sevOffset)
}
