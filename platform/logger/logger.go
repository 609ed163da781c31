// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// JobNameKey is the context key for the batch job currently running
	JobNameKey contextKey = "job_name"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and job_name from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if jobName, ok := ctx.Value(JobNameKey).(string); ok && jobName != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("job", jobName)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// JobStart logs a batch job start.
func (l *Logger) JobStart(job string) {
	l.Info("job_start", slog.String("job", job))
}

// JobEnd logs a batch job completion with the number of items processed.
func (l *Logger) JobEnd(job string, processed int, elapsed time.Duration) {
	l.Info("job_end",
		slog.String("job", job),
		slog.Int("processed", processed),
		slog.Float64("elapsed_ms", float64(elapsed.Milliseconds())),
	)
}

// JobFailed logs a batch job failure. Failures are contained at the
// orchestrator boundary and never stop other jobs.
func (l *Logger) JobFailed(job string, err error) {
	l.Error("job_failed",
		slog.String("job", job),
		slog.String("error", err.Error()),
	)
}

// ClassifierFallback logs a degraded external classifier call that was
// recovered with default values.
func (l *Logger) ClassifierFallback(operation string, err error) {
	l.Warn("classifier_fallback",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// EmailError logs a failed outbound email send.
func (l *Logger) EmailError(recipient, kind string, err error) {
	l.Warn("email_send_failed",
		slog.String("recipient", recipient),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
