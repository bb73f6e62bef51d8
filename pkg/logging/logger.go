package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a configured level name (debug, info, warn, error, fatal) to a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level: %q", s)
}

// Fields represents structured log fields
type Fields map[string]interface{}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID attaches a request id that every log line written with ctx will carry
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored by WithRequestID
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// StructuredLogger provides structured JSON logging with context, backed by zap
type StructuredLogger struct {
	mu      sync.RWMutex
	level   zap.AtomicLevel
	logger  *zap.Logger
	service string
	version string
}

// NewStructuredLogger creates a new structured logger writing JSON lines to stdout
func NewStructuredLogger(service, version string, level LogLevel) *StructuredLogger {
	l := &StructuredLogger{
		level:   zap.NewAtomicLevelAt(level.zapLevel()),
		service: service,
		version: version,
	}
	l.logger = l.build(os.Stdout)
	return l
}

// NewNop returns a logger that discards everything
func NewNop() *StructuredLogger {
	return &StructuredLogger{
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		logger: zap.NewNop(),
	}
}

func (l *StructuredLogger) build(w io.Writer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stack_trace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(w)),
		l.level,
	)

	hostname, _ := os.Hostname()
	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.AddStacktrace(zapcore.FatalLevel),
	).With(
		zap.String("service", l.service),
		zap.String("version", l.version),
		zap.String("hostname", hostname),
	)
}

// SetOutput sets the output destination for logs
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = l.build(w)
}

// SetLevel sets the minimum log level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Sync flushes buffered log entries
func (l *StructuredLogger) Sync() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger.Sync()
}

// Debug logs a debug message with structured fields
func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, DebugLevel, message, fields, nil)
}

// Info logs an info message with structured fields
func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, InfoLevel, message, fields, nil)
}

// Warn logs a warning message with structured fields
func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, WarnLevel, message, fields, nil)
}

// Error logs an error message with structured fields and error details
func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, ErrorLevel, message, fields, err)
}

// Fatal logs a fatal message and exits the program
func (l *StructuredLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	l.log(ctx, FatalLevel, message, fields, err)
}

func (l *StructuredLogger) log(ctx context.Context, level LogLevel, message string, fields Fields, err error) {
	l.mu.RLock()
	logger := l.logger
	l.mu.RUnlock()

	ce := logger.Check(level.zapLevel(), message)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, 3)
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", map[string]interface{}(fields)))
	}
	if id := RequestID(ctx); id != "" {
		zf = append(zf, zap.String("request_id", id))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}

	ce.Write(zf...)
}

// WithFields creates a new logger with additional fields
func (l *StructuredLogger) WithFields(fields Fields) *ContextLogger {
	return &ContextLogger{
		logger: l,
		fields: fields,
	}
}

// ContextLogger wraps StructuredLogger with additional context fields
type ContextLogger struct {
	logger *StructuredLogger
	fields Fields
}

// Debug logs a debug message with context fields
func (c *ContextLogger) Debug(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, DebugLevel, message, c.mergeFields(fields), nil)
}

// Info logs an info message with context fields
func (c *ContextLogger) Info(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, InfoLevel, message, c.mergeFields(fields), nil)
}

// Warn logs a warning message with context fields
func (c *ContextLogger) Warn(ctx context.Context, message string, fields Fields) {
	c.logger.log(ctx, WarnLevel, message, c.mergeFields(fields), nil)
}

// Error logs an error message with context fields
func (c *ContextLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	c.logger.log(ctx, ErrorLevel, message, c.mergeFields(fields), err)
}

// Fatal logs a fatal message with context fields
func (c *ContextLogger) Fatal(ctx context.Context, message string, fields Fields, err error) {
	c.logger.log(ctx, FatalLevel, message, c.mergeFields(fields), err)
}

// mergeFields merges context fields with provided fields
func (c *ContextLogger) mergeFields(fields Fields) Fields {
	merged := make(Fields, len(c.fields)+len(fields))

	for k, v := range c.fields {
		merged[k] = v
	}

	// Call-site fields win
	for k, v := range fields {
		merged[k] = v
	}

	return merged
}
