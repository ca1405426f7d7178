package log

// Logger is the structured logger used across the module.
// keysAndValues are alternating keys and values, e.g. "method", "getBalance".
type Logger interface {
	// Debug logs detail that is only useful while diagnosing a problem.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine progress such as a batch being sent.
	Info(msg string, keysAndValues ...any)
	// Warn logs a recoverable anomaly.
	Warn(msg string, keysAndValues ...any)
	// Error logs a failure of the current operation.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure; the backing logger may exit.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that attaches key/value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the key/value pairs attached with WithKV.
	GetAllKV() []any
	// WithName returns a logger with name appended to its name hierarchy.
	WithName(name string) Logger
	// Name returns the dotted logger name.
	Name() string
	// AddCallerSkip returns a logger that skips extra frames when reporting the caller.
	AddCallerSkip(skip int) Logger
}

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder receives log entries as trace span events.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	// RecordEvent adds a span event named name with the given attributes.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError adds a span event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}
