// Package logging provides the structured Logger used across anchorplay.
//
// The interface mirrors how the rest of the code logs: informational calls
// take key/value pairs, warnings and errors additionally take the error they
// report. The implementation is backed by zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// ZapLogger implements Logger on top of a zap core.
type ZapLogger struct {
	logger *zap.Logger
}

// NewLogger creates a new structured logger
func NewLogger(config *LoggerConfig) *ZapLogger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), config.Level.zapLevel())

	return &ZapLogger{logger: zap.New(core)}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

// Debug logs a debug message
func (l *ZapLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zapcore.DebugLevel, nil, msg, fields...)
}

// Info logs an info message
func (l *ZapLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, zapcore.InfoLevel, nil, msg, fields...)
}

// Warn logs a warning message
func (l *ZapLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, zapcore.WarnLevel, err, msg, fields...)
}

// Error logs an error message
func (l *ZapLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, zapcore.ErrorLevel, err, msg, fields...)
}

// With creates a new logger with additional fields
func (l *ZapLogger) With(fields ...interface{}) Logger {
	return &ZapLogger{logger: l.logger.With(toZapFields(fields)...)}
}

// WithComponent creates a new logger with component context
func (l *ZapLogger) WithComponent(component string) Logger {
	return &ZapLogger{logger: l.logger.With(zap.String("component", component))}
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request id that every log call made with
// the returned context will include.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (l *ZapLogger) log(ctx context.Context, level zapcore.Level, err error, msg string, fields ...interface{}) {
	ce := l.logger.Check(level, msg)
	if ce == nil {
		return
	}

	zapFields := make([]zap.Field, 0, len(fields)/2+2)
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		zapFields = append(zapFields, zap.String("request_id", requestID))
	}
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	zapFields = append(zapFields, toZapFields(fields)...)

	ce.Write(zapFields...)
}

// toZapFields converts alternating key/value pairs. Pairs whose key is not a
// string and a trailing odd value are dropped.
func toZapFields(fields []interface{}) []zap.Field {
	result := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		result = append(result, zap.Any(key, fields[i+1]))
	}
	return result
}
