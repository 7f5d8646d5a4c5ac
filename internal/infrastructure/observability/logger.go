package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions controls where log lines go besides stdout
type LoggerOptions struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	// ExportToOTEL forwards every entry to the global OpenTelemetry logger provider
	ExportToOTEL bool
}

// InitLogger initializes the global zerolog logger
func InitLogger(serviceName, env string, opts LoggerOptions) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var stdout io.Writer = os.Stdout
	if env == "development" {
		stdout = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	out := stdout
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}

	ctx := zerolog.New(out).With().Timestamp().Str("service", serviceName)
	if env != "development" {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()
	if opts.ExportToOTEL {
		logger = logger.Hook(NewOTELHook(serviceName))
	}
	log.Logger = logger
}

// LoggerFromContext returns a logger with trace context
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.With().Logger()

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
