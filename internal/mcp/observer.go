package mcp

import (
	"context"
	"log/slog"
	"time"
)

// Event describes one dispatched message. Tool is set for tools/call once
// the params have been read; Code and Err are set when the call failed.
type Event struct {
	Method       string
	ID           string
	Notification bool
	Tool         string
	Code         int
	Err          error
	Elapsed      time.Duration
}

// Observer is notified at dispatch entry and exit. Begin may return a
// derived context that is passed to the handler and to End.
type Observer interface {
	Begin(ctx context.Context, ev Event) context.Context
	End(ctx context.Context, ev Event)
}

type nopObserver struct{}

func (nopObserver) Begin(ctx context.Context, _ Event) context.Context { return ctx }
func (nopObserver) End(context.Context, Event)                         {}

// LogObserver writes one structured log line per dispatched message.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Begin(ctx context.Context, ev Event) context.Context {
	o.logger.Debug("rpc received", "method", ev.Method, "id", ev.ID)
	return ctx
}

func (o *LogObserver) End(_ context.Context, ev Event) {
	attrs := []any{
		"method", ev.Method,
		"id", ev.ID,
		"duration_ms", ev.Elapsed.Milliseconds(),
	}
	if ev.Tool != "" {
		attrs = append(attrs, "tool", ev.Tool)
	}
	if ev.Err != nil {
		attrs = append(attrs, "code", ev.Code, "error", ev.Err)
		o.logger.Warn("rpc failed", attrs...)
		return
	}
	o.logger.Info("rpc", attrs...)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Begin(ctx context.Context, ev Event) context.Context {
	for _, o := range m {
		ctx = o.Begin(ctx, ev)
	}
	return ctx
}

func (m MultiObserver) End(ctx context.Context, ev Event) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].End(ctx, ev)
	}
}
