package logging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the timestamp format used by appenders that render entries as plain text.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000-0700"

// Appender is a sink for log entries. zapcore.Core satisfies this interface too, which lets
// observer/test cores from zap's testing helpers be wired in directly alongside our own appenders.
type Appender interface {
	Write(entry zapcore.Entry, fields []zapcore.Field) error
	Sync() error
}

// Logger is the logging interface used throughout the engine. It mirrors zap's SugaredLogger
// surface for the common Debug/Info/Warn/Error calls, plus CDebug* variants that also check for
// a per-context debug override, and administrative methods for building sub-loggers and wiring
// appenders.
type Logger interface {
	Debug(args ...interface{})
	CDebug(ctx context.Context, args ...interface{})
	Debugf(template string, args ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	Level() zapcore.Level

	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	Sync() error
	AsZap() *zap.SugaredLogger
	Desugar() *zap.Logger
}

type stdoutAppender struct {
	inLocalTime bool
}

// NewStdoutAppender returns an Appender that writes tab-delimited plain text to stdout in UTC.
func NewStdoutAppender() Appender {
	return &stdoutAppender{inLocalTime: false}
}

// NewStdoutTestAppender returns an Appender like NewStdoutAppender but rendering timestamps in
// the local timezone, matching the convention used by test output.
func NewStdoutTestAppender() Appender {
	return &stdoutAppender{inLocalTime: true}
}

func (sa *stdoutAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	t := entry.Time
	if !sa.inLocalTime {
		t = t.UTC()
	}

	line := fmt.Sprintf("%s\t%s\t%s", t.Format(DefaultTimeFormatStr), entry.Level.CapitalString(), entry.LoggerName)
	if entry.Caller.Defined {
		line += "\t" + callerToString(&entry.Caller)
	}
	line += "\t" + entry.Message

	if len(fields) > 0 {
		enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
		if err != nil {
			fmt.Println(line)
			return err
		}
		line += "\t" + buf.String()
	}

	fmt.Println(line)
	return nil
}

func (sa *stdoutAppender) Sync() error { return nil }

// callerToString renders a caller as "shortpath/file.go:line".
func callerToString(caller *zapcore.EntryCaller) string {
	return fmt.Sprintf("%s:%d", shortPath(caller.File), caller.Line)
}

// shortPath keeps the last two path segments, e.g. "/a/b/logging/impl.go" -> "logging/impl.go".
func shortPath(file string) string {
	segments := strings.Split(file, "/")
	if len(segments) <= 2 {
		return file
	}
	return strings.Join(segments[len(segments)-2:], "/")
}
