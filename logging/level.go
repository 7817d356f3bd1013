package logging

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log line. Higher values are more severe, matching the
// ordering used by the underlying zap levels.
type Level int32

const (
	// DEBUG is the lowest severity; verbose and intended for development.
	DEBUG Level = iota
	// INFO is the default severity for routine operational messages.
	INFO
	// WARN flags a condition that is not fatal but deserves attention.
	WARN
	// ERROR flags a failed operation.
	ERROR
)

// String returns the capitalized name of the level, e.g. "Info".
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Unknown"
	}
}

// AsZap converts to the equivalent zapcore.Level.
func (l Level) AsZap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFromString parses a level name (case-insensitive) into a Level.
func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// AtomicLevel is a Level that can be read and mutated concurrently, mirroring zap.AtomicLevel but
// over our own Level type so `impl` doesn't need to round-trip through zapcore on every log call.
type AtomicLevel struct {
	v *atomic.Int32
}

// NewAtomicLevelAt constructs an AtomicLevel initialized to the given level.
func NewAtomicLevelAt(level Level) AtomicLevel {
	al := AtomicLevel{v: new(atomic.Int32)}
	al.Set(level)
	return al
}

// Get returns the current level.
func (al AtomicLevel) Get() Level {
	return Level(al.v.Load())
}

// Set updates the current level.
func (al AtomicLevel) Set(level Level) {
	al.v.Store(int32(level))
}

// GlobalLogLevel is a process-wide zap atomic level, mutated by debug-mode toggles so that any
// zap.Logger created via AsZap observes the change without needing to be rebuilt.
var GlobalLogLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// NewZapLoggerConfig returns the zap.Config backing every Logger constructed by this package:
// console-encoded, ISO8601 timestamps, colorized levels, short caller, stacktraces disabled.
func NewZapLoggerConfig() zap.Config {
	return zap.Config{
		Level:    GlobalLogLevel,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}
