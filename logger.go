package blit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false, so disabled log
// calls never format their arguments.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr holds the engine logger; SetLogger may race with logging.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for blit and the substrates it drives.
// By default, blit produces no log output. Call SetLogger to enable logging.
//
// SetLogger may be called from any goroutine. A nil logger silences the
// engine again.
//
// Log levels used by blit:
//   - [slog.LevelDebug]: flush sizes, dispatches, arena high watermark
//   - [slog.LevelInfo]: lifecycle events (engine created, resize, adapter selected)
//   - [slog.LevelWarn]: dropped requests (once per reason), release errors
//   - [slog.LevelError]: the transition into a fatal state
//
// To see flushes and dispatches:
//
//	blit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	propagateLogger(l)
}

// Logger returns the logger set by SetLogger, or a silent one.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by substrates that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// substrates that were handed to New and want the logger.
var (
	subsMu sync.Mutex
	subs   = make(map[loggerSetter]int)
)

// propagateLogger passes the logger to every live substrate that
// implements loggerSetter.
func propagateLogger(l *slog.Logger) {
	subsMu.Lock()
	defer subsMu.Unlock()
	for s := range subs {
		s.SetLogger(l)
	}
}

// trackSubstrate hands the current logger to s and keeps it updated until
// untrackSubstrate.
func trackSubstrate(s any) {
	ls, ok := s.(loggerSetter)
	if !ok {
		return
	}
	subsMu.Lock()
	subs[ls]++
	subsMu.Unlock()
	ls.SetLogger(Logger())
}

func untrackSubstrate(s any) {
	ls, ok := s.(loggerSetter)
	if !ok {
		return
	}
	subsMu.Lock()
	defer subsMu.Unlock()
	if subs[ls]--; subs[ls] <= 0 {
		delete(subs, ls)
	}
}
