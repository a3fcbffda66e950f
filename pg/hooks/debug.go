// Package hooks contains bun query hooks.
package hooks

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/observability/logger"
)

var _ bun.QueryHook = (*DebugHook)(nil)

const defaultSlowQueryThreshold = 100 * time.Millisecond

// DebugHook logs bun queries through the service logger.
//
// Failed queries are logged at error level. Queries returning no rows and
// queries slower than the threshold are logged at warn level. Everything
// else is logged at debug level only in verbose mode.
type DebugHook struct {
	verbose            bool
	slowQueryThreshold time.Duration
	log                logger.Logger
}

// DebugHookOption configures a DebugHook.
type DebugHookOption func(*DebugHook)

// NewDebugHook creates a verbose hook with a 100ms slow query threshold.
func NewDebugHook(opts ...DebugHookOption) *DebugHook {
	hook := &DebugHook{
		verbose:            true,
		slowQueryThreshold: defaultSlowQueryThreshold,
	}
	for _, opt := range opts {
		opt(hook)
	}
	if hook.log == nil {
		hook.log = logger.Named("bun")
	}
	return hook
}

func WithVerbose(verbose bool) DebugHookOption {
	return func(h *DebugHook) {
		h.verbose = verbose
	}
}

// WithSlowQueryThreshold sets the slow query threshold. Zero disables slow query warnings.
func WithSlowQueryThreshold(threshold time.Duration) DebugHookOption {
	return func(h *DebugHook) {
		h.slowQueryThreshold = threshold
	}
}

// WithLogger replaces the default named global logger.
func WithLogger(l logger.Logger) DebugHookOption {
	return func(h *DebugHook) {
		h.log = l
	}
}

type suppressKey struct{}

// WithSuppressedQueryLogs marks ctx so that successful queries run with it are
// not logged. Polling loops use it. Failures are still logged.
func WithSuppressedQueryLogs(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

func suppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}

func (h *DebugHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *DebugHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	noRows := errors.Is(event.Err, sql.ErrNoRows)
	failed := event.Err != nil && !noRows && !errors.Is(event.Err, sql.ErrTxDone)
	slow := h.slowQueryThreshold > 0 && duration >= h.slowQueryThreshold

	if !failed && suppressed(ctx) {
		return
	}
	if !h.verbose && !failed && !noRows && !slow {
		return
	}

	entry := h.log.WithContext(ctx).With(
		"query", strings.ReplaceAll(event.Query, `"`, ""),
		"duration", duration.Round(time.Microsecond),
	)
	msg := "[bun] " + event.Operation()

	switch {
	case failed:
		entry.With("error", event.Err.Error()).Error(msg)
	case noRows, slow:
		entry.Warn(msg)
	default:
		entry.Debug(msg)
	}
}
