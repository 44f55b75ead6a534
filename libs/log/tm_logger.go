package log

import (
	"fmt"
	"io"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/term"
)

// NewTMLogger returns a logger that encodes msg and keyvals to the Writer
// using go-kit's log package, colorizes output by level and writes a
// timestamp for every entry. Suitable for command-line and human consumption.
func NewTMLogger(w io.Writer) Logger {
	return NewTMLoggerWithColorFn(w, defaultColorFn)
}

// NewTMLoggerWithColorFn allows a customization of the default colorization.
func NewTMLoggerWithColorFn(w io.Writer, colorFn func(keyvals ...interface{}) term.FgBgColor) Logger {
	logger := term.NewLogger(w, kitlog.NewLogfmtLogger, colorFn)
	logger = kitlog.With(logger, defaultTimestampFormat, kitlog.TimestampFormat(time.Now, "2006-01-02T15:04:05.00-0700"))
	return &tmLogger{logger}
}

// NewTMJSONLogger returns a logger that encodes msg and keyvals to the
// Writer as a single JSON object, with a timestamp key added automatically.
func NewTMJSONLogger(w io.Writer) Logger {
	logger := kitlog.NewJSONLogger(w)
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	return &tmLogger{logger}
}

// NewTMJSONLoggerNoTS is like NewTMJSONLogger but without the timestamp key,
// used for deterministic, diffable test output.
func NewTMJSONLoggerNoTS(w io.Writer) Logger {
	return &tmLogger{kitlog.NewJSONLogger(w)}
}

const defaultTimestampFormat = "time"

func defaultColorFn(keyvals ...interface{}) term.FgBgColor {
	for i := 0; i < len(keyvals)-1; i += 2 {
		if keyvals[i] != "level" {
			continue
		}
		switch keyvals[i+1] {
		case "debug":
			return term.FgBgColor{Fg: term.DarkGray}
		case "error":
			return term.FgBgColor{Fg: term.Red}
		default:
			return term.FgBgColor{}
		}
	}
	return term.FgBgColor{}
}

type tmLogger struct {
	srcLogger kitlog.Logger
}

var _ Logger = (*tmLogger)(nil)

func (l *tmLogger) Info(msg string, keyvals ...interface{}) {
	lWithLevel := kitlog.WithPrefix(l.srcLogger, "level", "info")
	lWithMsg := kitlog.WithPrefix(lWithLevel, "_msg", msg)
	if err := lWithMsg.Log(keyvals...); err != nil {
		fmt.Fprintln(os.Stderr, "log error:", err)
	}
}

func (l *tmLogger) Debug(msg string, keyvals ...interface{}) {
	lWithLevel := kitlog.WithPrefix(l.srcLogger, "level", "debug")
	lWithMsg := kitlog.WithPrefix(lWithLevel, "_msg", msg)
	if err := lWithMsg.Log(keyvals...); err != nil {
		fmt.Fprintln(os.Stderr, "log error:", err)
	}
}

func (l *tmLogger) Error(msg string, keyvals ...interface{}) {
	lWithLevel := kitlog.WithPrefix(l.srcLogger, "level", "error")
	lWithMsg := kitlog.WithPrefix(lWithLevel, "_msg", msg)
	if err := lWithMsg.Log(keyvals...); err != nil {
		fmt.Fprintln(os.Stderr, "log error:", err)
	}
}

func (l *tmLogger) With(keyvals ...interface{}) Logger {
	return &tmLogger{kitlog.With(l.srcLogger, keyvals...)}
}
