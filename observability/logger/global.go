package logger

import (
	"context"
	"sync"
	"sync/atomic"
)

//nolint:gochecknoglobals // global logger singleton
var (
	global   atomic.Value // stores Logger
	setOnce  sync.Once
	initOnce sync.Once
)

// SetGlobal configures the global logger. It must be called once during
// startup before any logging happens; a second call panics.
func SetGlobal(cfg Config) {
	called := false
	setOnce.Do(func() {
		// Prevent lazy initialization from happening after this
		initOnce.Do(func() {})

		l, err := New(cfg)
		if err != nil {
			panic("[logger]: failed to initialize global logger: " + err.Error())
		}
		global.Store(l)
		called = true
	})
	if !called {
		panic("[logger]: SetGlobal can only be called once")
	}
}

func Debug(msg any) { getGlobal().Debug(msg) }
func Info(msg any)  { getGlobal().Info(msg) }
func Warn(msg any)  { getGlobal().Warn(msg) }
func Error(msg any) { getGlobal().Error(msg) }
func Fatal(msg any) { getGlobal().Fatal(msg) }

func Debugf(format string, args ...any) { getGlobal().Debugf(format, args...) }
func Infof(format string, args ...any)  { getGlobal().Infof(format, args...) }
func Warnf(format string, args ...any)  { getGlobal().Warnf(format, args...) }
func Errorf(format string, args ...any) { getGlobal().Errorf(format, args...) }
func Fatalf(format string, args ...any) { getGlobal().Fatalf(format, args...) }

func Warnx(err error)  { getGlobal().Warnx(err) }
func Errorx(err error) { getGlobal().Errorx(err) }
func Fatalx(err error) { getGlobal().Fatalx(err) }

// With creates a child of the global logger.
func With(keysAndValues ...any) Logger {
	return getGlobal().With(keysAndValues...)
}

// WithContext creates a child of the global logger carrying request metadata from ctx.
func WithContext(ctx context.Context) Logger {
	return getGlobal().WithContext(ctx)
}

// Named adds a sub-scope to the global logger's name.
func Named(name string) Logger {
	return getGlobal().Named(name)
}

// Sync flushes any buffered entries of the global logger.
func Sync() error {
	return getGlobal().Sync()
}

func getGlobal() Logger {
	initOnce.Do(func() {
		l, err := New(Config{Level: levelDebug, Encoding: encPretty})
		if err != nil {
			panic("[logger]: failed to initialize default logger: " + err.Error())
		}
		global.Store(l)
	})

	l, ok := global.Load().(Logger)
	if !ok {
		panic("[logger]: global contains invalid type")
	}
	return l
}
