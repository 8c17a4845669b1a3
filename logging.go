package rollcheck

import "context"

// LogLevel represents the severity of the log message, and is one of
//   - [LogLevelDebug]
//   - [LogLevelInfo]
//   - [LogLevelWarning]
//   - [LogLevelError]
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelError   LogLevel = "error"
	LogLevelWarning LogLevel = "warning"
)

// LogField holds a key/value pair for structured logging.
type LogField struct {
	Key   string
	Value any
}

// Logger is a generic logging interface so that you can use rollcheck with
// your existing structured logging solution. Writing an adapter should only
// take a few lines; see cmd/rollcheck/shared for one built on
// charmbracelet/log.
type Logger interface {
	Log(context.Context, LogLevel, string, ...LogField)
}

// Helper is an optional interface that your logger can implement to help
// make debugging and stacktraces easier to understand, primarily in tests.
// If a [Logger] implements this interface, rollcheck will call Helper() in
// its own logging helpers so that they are omitted from your stacktraces.
//
// The [TestLogger] embeds a [testing.T], which implements Helper().
type Helper interface {
	Helper()
}

// logger wraps an optional [Logger] with the level helpers used by every
// component in this package. The zero value discards everything.
type logger struct {
	Logger Logger
}

func (l logger) log(ctx context.Context, level LogLevel, msg string, args ...LogField) {
	if l.Logger == nil {
		return
	}
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.Logger.Log(ctx, level, msg, args...)
}

func (l logger) info(ctx context.Context, msg string, args ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.log(ctx, LogLevelInfo, msg, args...)
}

func (l logger) debug(ctx context.Context, msg string, args ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.log(ctx, LogLevelDebug, msg, args...)
}

func (l logger) warn(ctx context.Context, msg string, args ...LogField) {
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.log(ctx, LogLevelWarning, msg, args...)
}

func (l logger) error(ctx context.Context, err error, msg string, args ...LogField) {
	args = append(args, LogField{Key: "error", Value: err})
	if hl, ok := l.Logger.(Helper); ok {
		hl.Helper()
	}
	l.log(ctx, LogLevelError, msg, args...)
}
