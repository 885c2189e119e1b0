package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
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

// ParseLevel converts a level name (case-insensitive) into a Level.
func ParseLevel(s string) (Level, error) {
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
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Fields is a map of field names to values.
type Fields map[string]interface{}

// Context keys for propagating logging context
const (
	RequestIDKey = "request_id"
	ComponentKey = "component"
	OperationKey = "operation"
)

// Entry represents a single log entry.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
	Error     error
}

// Logger defines the core logging interface for ringlog components.
type Logger interface {
	// Standard logging methods with structured context (Field-based API)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// Printf-style variants
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
	Fatalf(msg string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	// With adds multiple fields to the logger
	With(fields ...Field) Logger

	// WithContext adds request context to the Logger
	WithContext(ctx context.Context) Logger

	// WithComponent tags logs with a component name
	WithComponent(component string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Formatter defines the interface for formatting log entries.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output defines the interface for log outputs.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// LoggerOption is a function that configures a logger.
type LoggerOption func(*BaseLogger)

// BaseLogger implements the Logger interface.
type BaseLogger struct {
	level      Level
	fields     Fields
	formatter  Formatter
	outputs    []Output
	handler    *bridgeHandler
	slogLogger *slog.Logger
}

// ContextExtractor extracts logging context from a context.Context.
func ContextExtractor(ctx context.Context) Fields {
	fields := Fields{}
	if ctx == nil {
		return fields
	}
	for _, k := range []string{RequestIDKey, ComponentKey, OperationKey} {
		if v := ctx.Value(k); v != nil {
			fields[k] = v
		}
	}
	return fields
}

// NewLogger creates a new logger with the given options.
func NewLogger(options ...LoggerOption) Logger {
	logger := &BaseLogger{
		level:     InfoLevel,
		fields:    Fields{},
		formatter: &JSONFormatter{},
		outputs:   []Output{},
	}

	for _, option := range options {
		option(logger)
	}

	if len(logger.outputs) == 0 {
		logger.outputs = append(logger.outputs, &ConsoleOutput{})
	}

	logger.handler = newBridgeHandler(logger)
	logger.slogLogger = slog.New(logger.handler)

	return logger
}

// NewNopLogger returns a logger that discards everything. Components use it
// when the caller does not supply one.
func NewNopLogger() Logger {
	return NewLogger(WithLevel(FatalLevel+1), WithOutput(&NullOutput{}))
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) {
		l.level = level
	}
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) {
		l.formatter = formatter
	}
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) {
		l.outputs = append(l.outputs, output)
	}
}

func (l *BaseLogger) log(level Level, msg string, attrs []slog.Attr) {
	if level < l.level {
		return
	}
	var pcs [1]uintptr
	// skip Callers, log, and the public method
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), toSlogLevel(level), msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = l.handler.handle(level, r)
}

func (l *BaseLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, attrsFromFieldSlice(fields))
	os.Exit(1)
}

func (l *BaseLogger) Debugf(msg string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Infof(msg string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Warnf(msg string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Errorf(msg string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Fatalf(msg string, args ...interface{}) {
	l.log(FatalLevel, fmt.Sprintf(msg, args...), nil)
	os.Exit(1)
}

// derive returns a child logger carrying the extra attributes.
func (l *BaseLogger) derive(attrs []slog.Attr) Logger {
	child := &BaseLogger{
		level:     l.level,
		fields:    Fields{},
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for _, a := range attrs {
		child.fields[a.Key] = a.Value.Any()
	}
	h := l.handler.WithAttrs(attrs).(*bridgeHandler)
	h.logger = child
	child.handler = h
	child.slogLogger = slog.New(h)
	return child
}

func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.derive([]slog.Attr{slog.Any(key, value)})
}

func (l *BaseLogger) WithFields(fields Fields) Logger {
	return l.derive(attrsFromMap(fields))
}

func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.derive([]slog.Attr{slog.String("error", err.Error())})
}

func (l *BaseLogger) With(fields ...Field) Logger {
	return l.derive(attrsFromFieldSlice(fields))
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.derive(attrsFromMap(ContextExtractor(ctx)))
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.derive([]slog.Attr{slog.String(ComponentKey, component)})
}

func (l *BaseLogger) SetLevel(level Level) { l.level = level }

func (l *BaseLogger) GetLevel() Level { return l.level }

// Slog exposes the slog.Logger backed by this logger's pipeline.
func (l *BaseLogger) Slog() *slog.Logger { return l.slogLogger }
