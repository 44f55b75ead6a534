package log

import "fmt"

type level byte

const (
	levelDebug level = 1 << iota
	levelInfo
	levelError
)

type keyval struct {
	key, value interface{}
}

// NewFilter wraps next and implements filtering. See the commentary on the
// Option functions for a detailed description of how to configure levels.
func NewFilter(next Logger, options ...Option) Logger {
	l := &filter{
		next:           next,
		allowed:        levelDebug | levelInfo | levelError, // by default everything is allowed
		allowedKeyvals: make(map[keyval]level),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

type filter struct {
	next    Logger
	allowed level // OR'd levels for default case
	// used in case of key-value pairs overriding the default
	allowedKeyvals map[keyval]level
}

func (l *filter) Info(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelInfo != 0
	if !levelAllowed && !l.anyAllowed(levelInfo, keyvals...) {
		return
	}
	l.next.Info(msg, keyvals...)
}

func (l *filter) Debug(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelDebug != 0
	if !levelAllowed && !l.anyAllowed(levelDebug, keyvals...) {
		return
	}
	l.next.Debug(msg, keyvals...)
}

func (l *filter) Error(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelError != 0
	if !levelAllowed && !l.anyAllowed(levelError, keyvals...) {
		return
	}
	l.next.Error(msg, keyvals...)
}

func (l *filter) anyAllowed(level level, keyvals ...interface{}) bool {
	for i := 0; i < len(keyvals)-1; i += 2 {
		if allowed, ok := l.allowedKeyvals[keyval{keyvals[i], keyvals[i+1]}]; ok && allowed&level != 0 {
			return true
		}
	}
	return false
}

func (l *filter) With(keyvals ...interface{}) Logger {
	keyInAllowedKeyvals := false

	// The last matching pair wins, and its levels replace the default ones.
	for i := len(keyvals) - 2; i >= 0; i -= 2 {
		for kv, allowed := range l.allowedKeyvals {
			if keyvals[i] == kv.key {
				keyInAllowedKeyvals = true
				// check if value matches
				if keyvals[i+1] == kv.value {
					return &filter{
						next:           l.next.With(keyvals...),
						allowed:        allowed,
						allowedKeyvals: l.allowedKeyvals,
					}
				}
			}
		}
	}

	if keyInAllowedKeyvals {
		return &filter{
			next:           l.next.With(keyvals...),
			allowed:        l.allowed,
			allowedKeyvals: l.allowedKeyvals,
		}
	}

	return &filter{
		next:           l.next.With(keyvals...),
		allowed:        l.allowed,
		allowedKeyvals: l.allowedKeyvals,
	}
}

// Option sets a parameter for the filter.
type Option func(*filter)

// AllowLevel returns an option for a new filter that allows the given level
// and above.
func AllowLevel(lvl string) (Option, error) {
	switch lvl {
	case "debug":
		return AllowDebug(), nil
	case "info":
		return AllowInfo(), nil
	case "error":
		return AllowError(), nil
	case "none":
		return AllowNone(), nil
	default:
		return nil, fmt.Errorf("expected either \"info\", \"debug\", \"error\" or \"none\" level, given %s", lvl)
	}
}

// AllowAll is an alias for AllowDebug.
func AllowAll() Option {
	return AllowDebug()
}

// AllowDebug allows error, info and debug level log events to pass.
func AllowDebug() Option {
	return allowed(levelError | levelInfo | levelDebug)
}

// AllowInfo allows error and info level log events to pass.
func AllowInfo() Option {
	return allowed(levelError | levelInfo)
}

// AllowError allows only error level log events to pass.
func AllowError() Option {
	return allowed(levelError)
}

// AllowNone allows no log events to pass.
func AllowNone() Option {
	return allowed(0)
}

func allowed(allowed level) Option {
	return func(l *filter) { l.allowed = allowed }
}

// AllowDebugWith allows error, info and debug level log events to pass for a
// specific key value pair.
func AllowDebugWith(key, value interface{}) Option {
	return allowedKeyvals(levelError|levelInfo|levelDebug, key, value)
}

// AllowInfoWith allows error and info level log events to pass for a
// specific key value pair.
func AllowInfoWith(key, value interface{}) Option {
	return allowedKeyvals(levelError|levelInfo, key, value)
}

// AllowErrorWith allows only error level log events to pass for a specific
// key value pair.
func AllowErrorWith(key, value interface{}) Option {
	return allowedKeyvals(levelError, key, value)
}

// AllowNoneWith allows no log events to pass for a specific key value pair,
// overriding a broader Allow* used alongside it.
func AllowNoneWith(key, value interface{}) Option {
	return allowedKeyvals(0, key, value)
}

func allowedKeyvals(allowed level, key, value interface{}) Option {
	return func(l *filter) { l.allowedKeyvals[keyval{key, value}] = allowed }
}
