package shared

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/peterldowns/rollcheck"
)

type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LogAdapter lets rollcheck log through a charmbracelet logger.
type LogAdapter struct {
	*log.Logger
}

func (l LogAdapter) Log(_ context.Context, level rollcheck.LogLevel, msg string, fields ...rollcheck.LogField) {
	args := make([]any, 0, 2*len(fields))
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}
	switch level {
	case rollcheck.LogLevelDebug:
		l.Logger.Debug(msg, args...)
	case rollcheck.LogLevelInfo:
		l.Logger.Info(msg, args...)
	case rollcheck.LogLevelWarning:
		l.Logger.Warn(msg, args...)
	case rollcheck.LogLevelError:
		l.Logger.Error(msg, args...)
	}
}
