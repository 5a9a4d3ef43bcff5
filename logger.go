package portrait

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by portrait and its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels:
//   - [slog.LevelDebug]: per-layer load and draw details
//   - [slog.LevelInfo]: session lifecycle
//   - [slog.LevelWarn]: failed loads, stale generations
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
