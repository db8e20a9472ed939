package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SwappableHandler is a slog.Handler whose backing handler can be replaced
// while loggers built on it stay valid. The daemon logs through it from the
// first line of startup; once the config is loaded, Upgrade swaps in the
// fanout handler and every held *slog.Logger picks up the new destination.
type SwappableHandler struct {
	handler atomic.Pointer[slog.Handler]
}

// NewSwappableHandler wraps initial in a SwappableHandler.
func NewSwappableHandler(initial slog.Handler) *SwappableHandler {
	sh := &SwappableHandler{}
	sh.handler.Store(&initial)
	return sh
}

// Swap replaces the backing handler. Safe to call concurrently with logging.
func (sh *SwappableHandler) Swap(next slog.Handler) {
	sh.handler.Store(&next)
}

func (sh *SwappableHandler) current() slog.Handler {
	return *sh.handler.Load()
}

// Enabled delegates to the current backing handler.
func (sh *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return sh.current().Enabled(ctx, level)
}

// Handle delegates to the current backing handler.
func (sh *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return sh.current().Handle(ctx, r)
}

// WithAttrs returns a new SwappableHandler carrying the given attributes.
// The result snapshots the current backing handler; a later Swap on the
// parent does not propagate to it.
func (sh *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler(sh.current().WithAttrs(attrs))
}

// WithGroup returns a new SwappableHandler scoped to the given group.
func (sh *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler(sh.current().WithGroup(name))
}
