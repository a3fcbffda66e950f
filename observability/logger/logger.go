// Package logger provides a structured logging interface for applications.
package logger

import (
	"context"
	"errors"

	"github.com/code19m/errx"
	"go.uber.org/zap"

	"github.com/rise-and-shine/filesmanager/meta"
)

// Logger is the service logger. The x variants take an error and log its errx
// code, type, trace, fields and details as separate fields. Fatal variants exit the process.
type Logger interface {
	Debug(msg any)
	Debugf(format string, args ...any)
	Info(msg any)
	Infof(format string, args ...any)
	Warn(msg any)
	Warnf(format string, args ...any)
	Warnx(err error)
	Error(msg any)
	Errorf(format string, args ...any)
	Errorx(err error)
	Fatal(msg any)
	Fatalf(format string, args ...any)
	Fatalx(err error)

	With(keysAndValues ...any) Logger
	// WithContext adds the request metadata stored in ctx.
	WithContext(ctx context.Context) Logger
	Named(name string) Logger
	Sync() error
}

type logger struct {
	*zap.SugaredLogger
}

// New builds a zap backed Logger. A disabled config yields a no-op logger.
func New(cfg Config) (Logger, error) {
	base, err := build(cfg)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return &logger{base.Sugar()}, nil
}

func build(cfg Config) (*zap.Logger, error) {
	if cfg.Disable {
		return zap.NewNop(), nil
	}

	zapConfig, err := cfg.getZapConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Encoding == encPretty {
		return newPrettyLogger(zapConfig, stdout()), nil
	}
	return zapConfig.Build()
}

// errorFields returns the structured attributes of err when it is an errx.ErrorX.
func errorFields(err error) []any {
	var e errx.ErrorX
	if !errors.As(err, &e) {
		return nil
	}
	return []any{
		"error_code", e.Code(),
		"error_type", e.Type().String(),
		"error_trace", e.Trace(),
		"error_fields", e.Fields(),
		"error_details", e.Details(),
	}
}

func (l *logger) withErr(err error) *zap.SugaredLogger {
	return l.SugaredLogger.With(errorFields(err)...)
}

func (l *logger) Warnx(err error)  { l.withErr(err).Warn(err.Error()) }
func (l *logger) Errorx(err error) { l.withErr(err).Error(err.Error()) }
func (l *logger) Fatalx(err error) { l.withErr(err).Fatal(err.Error()) }

func (l *logger) With(keysAndValues ...any) Logger {
	return &logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}

	data := meta.ExtractMetaFromContext(ctx)
	if len(data) == 0 {
		return l
	}

	fields := make([]any, 0, len(data)*2)
	for k, v := range data {
		// zap rejects non-string keys
		fields = append(fields, string(k), v)
	}
	return l.With(fields...)
}

func (l *logger) Named(name string) Logger {
	return &logger{SugaredLogger: l.SugaredLogger.Named(name)}
}

func (l *logger) Debug(msg any) { l.SugaredLogger.Debug(msg) }
func (l *logger) Info(msg any)  { l.SugaredLogger.Info(msg) }
func (l *logger) Warn(msg any)  { l.SugaredLogger.Warn(msg) }
func (l *logger) Error(msg any) { l.SugaredLogger.Error(msg) }
func (l *logger) Fatal(msg any) { l.SugaredLogger.Fatal(msg) }
