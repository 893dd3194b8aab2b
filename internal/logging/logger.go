package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs very detailed trace information and all above
	LevelTrace
)

// traceLevel sits one step below zap's debug level.
const traceLevel = zapcore.DebugLevel - 1

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

var zapLevels = map[LogLevel]zapcore.Level{
	LevelError: zapcore.ErrorLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelDebug: zapcore.DebugLevel,
	LevelTrace: traceLevel,
}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a level name such as "DEBUG" to its LogLevel.
func ParseLevel(name string) (LogLevel, bool) {
	for level, levelName := range levelNames {
		if levelName == name {
			return level, true
		}
	}
	return LevelWarn, false
}

// Logger provides leveled printf-style logging on top of zap.
// All loggers derived from the same root share one level.
type Logger struct {
	level *zap.AtomicLevel
	sugar *zap.SugaredLogger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("inlinefs")

		// Set initial log level from environment
		if name := os.Getenv("LOG_LEVEL"); name != "" {
			if level, ok := ParseLevel(name); ok {
				defaultLogger.SetLevel(level)
			}
		}

		if os.Getenv("INLINEFS_DEBUG") != "" {
			defaultLogger.SetLevel(LevelDebug)
		}
	})
	return defaultLogger
}

// NewLogger creates a new logger with the given name. Output goes to stderr:
// stdin carries the handshake and stdout belongs to the consumer.
func NewLogger(name string) *Logger {
	return newLogger(name, zapcore.Lock(os.Stderr))
}

func newLogger(name string, ws zapcore.WriteSyncer) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = encodeLevel
	if os.Getenv("LOG_LONGFILE") != "" {
		encCfg.EncodeCaller = zapcore.FullCallerEncoder
	} else {
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	}

	atom := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, atom)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Named(name)

	return &Logger{
		level: &atom,
		sugar: base.Sugar(),
	}
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == traceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	zl, ok := zapLevels[level]
	if !ok {
		return
	}
	l.level.SetLevel(zl)
}

// Level reports the current logging level.
func (l *Logger) Level() LogLevel {
	current := l.level.Level()
	for level, zl := range zapLevels {
		if zl == current {
			return level
		}
	}
	return LevelWarn
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.sugar.Logf(zapLevels[level], format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// WithPrefix creates a child logger named after the component. The child
// shares the parent's level.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		level: l.level,
		sugar: l.sugar.Named(prefix),
	}
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
