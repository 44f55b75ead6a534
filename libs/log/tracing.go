package log

import "fmt"

// NewTracingLogger returns a logger that formats error-typed values with
// "%+v" so stack traces attached via github.com/pkg/errors survive into the
// log line, instead of being flattened to their bare Error() string.
func NewTracingLogger(next Logger) Logger {
	return &tracingLogger{next}
}

type tracingLogger struct {
	next Logger
}

var _ Logger = (*tracingLogger)(nil)

func (l *tracingLogger) Info(msg string, keyvals ...interface{}) {
	l.next.Info(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) Debug(msg string, keyvals ...interface{}) {
	l.next.Debug(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) Error(msg string, keyvals ...interface{}) {
	l.next.Error(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) With(keyvals ...interface{}) Logger {
	return &tracingLogger{l.next.With(formatErrors(keyvals)...)}
}

func formatErrors(keyvals []interface{}) []interface{} {
	out := make([]interface{}, len(keyvals))
	copy(out, keyvals)
	for i := 1; i < len(out); i += 2 {
		if err, ok := out[i].(error); ok {
			out[i] = fmt.Sprintf("%+v", err)
		}
	}
	return out
}
