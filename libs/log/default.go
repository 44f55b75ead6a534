package log

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

const (
	LogFormatPlain = "plain"
	LogFormatJSON  = "json"

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelError = "error"
	LogLevelNone  = "none"
)

// NewDefaultLogger returns a logger that writes to stdout using the given
// format ("plain" or "json") and filters entries below the given level.
func NewDefaultLogger(format, level string) (Logger, error) {
	var logger zerolog.Logger

	switch format {
	case LogFormatJSON:
		logger = zerolog.New(os.Stdout)
	case LogFormatPlain:
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false})
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	logger = logger.With().Timestamp().Logger()

	zlvl, err := parseZeroLevel(level)
	if err != nil {
		return nil, err
	}
	logger = logger.Level(zlvl)

	return &defaultLogger{Logger: logger}, nil
}

func parseZeroLevel(level string) (zerolog.Level, error) {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel, nil
	case LogLevelInfo:
		return zerolog.InfoLevel, nil
	case LogLevelError:
		return zerolog.ErrorLevel, nil
	case LogLevelNone:
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// defaultLogger wraps a zerolog.Logger, adapting it to this package's
// keyval-style Logger interface used throughout the relay.
type defaultLogger struct {
	Logger zerolog.Logger
}

var _ Logger = (*defaultLogger)(nil)

func (l *defaultLogger) Debug(msg string, keyvals ...interface{}) {
	logEvent(l.Logger.Debug(), msg, keyvals...)
}

func (l *defaultLogger) Info(msg string, keyvals ...interface{}) {
	logEvent(l.Logger.Info(), msg, keyvals...)
}

func (l *defaultLogger) Error(msg string, keyvals ...interface{}) {
	logEvent(l.Logger.Error(), msg, keyvals...)
}

func (l *defaultLogger) With(keyvals ...interface{}) Logger {
	ctx := l.Logger.With()
	for i := 0; i < len(keyvals)-1; i += 2 {
		ctx = ctx.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	return &defaultLogger{Logger: ctx.Logger()}
}

func logEvent(ev *zerolog.Event, msg string, keyvals ...interface{}) {
	for i := 0; i < len(keyvals)-1; i += 2 {
		ev = ev.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	ev.Msg(msg)
}
