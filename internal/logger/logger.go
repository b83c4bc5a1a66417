package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "request_id"
	LoggerKey    ctxKey = "logger"
	SessionIDKey ctxKey = "session_id"
	TraceIDKey   ctxKey = "trace_id"
)

var globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the global logger
func Init(level string, jsonFormat bool) {
	InitWithWriter(level, jsonFormat, os.Stdout)
}

// InitWithWriter configures the global logger on a custom writer
func InitWithWriter(level string, jsonFormat bool, out io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	output := out
	if !jsonFormat {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	globalLogger = zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "fearings-services").
		Logger()

	InitAudit()
}

// Global returns the global logger
func Global() *zerolog.Logger {
	return &globalLogger
}

// Get returns the logger stored in ctx, or the global one
func Get(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &globalLogger
	}
	if l, ok := ctx.Value(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	return &globalLogger
}

// FromGin extracts the request logger from a gin context
func FromGin(c *gin.Context) *zerolog.Logger {
	return Get(c.Request.Context())
}

// WithRequestID adds request_id to the context and its logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := globalLogger.With().Str("request_id", requestID).Logger()
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	ctx = context.WithValue(ctx, LoggerKey, &l)
	return ctx
}

// WithSessionID adds the anonymous session ID to the context and its logger
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	l := Get(ctx).With().Str("session_id", sessionID).Logger()
	ctx = context.WithValue(ctx, SessionIDKey, sessionID)
	ctx = context.WithValue(ctx, LoggerKey, &l)
	return ctx
}

// WithTraceID adds a trace ID for distributed tracing
func WithTraceID(ctx context.Context, traceID string) context.Context {
	l := Get(ctx).With().Str("trace_id", traceID).Logger()
	ctx = context.WithValue(ctx, TraceIDKey, traceID)
	ctx = context.WithValue(ctx, LoggerKey, &l)
	return ctx
}

// GetRequestID extracts request_id from the context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetSessionID extracts session_id from the context
func GetSessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// TraceContext returns every tracing value held by the context
func TraceContext(ctx context.Context) map[string]string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return map[string]string{
		"request_id": GetRequestID(ctx),
		"session_id": GetSessionID(ctx),
		"trace_id":   traceID,
	}
}
