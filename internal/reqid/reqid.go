// Package reqid carries the HTTP request id through a request's context so
// the access log and long-lived handlers such as the status stream can tag
// their records with it.
package reqid

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With attaches id to ctx. An empty id leaves ctx unchanged.
func With(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the request id stored by With.
func From(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Logger returns l tagged with the request id in ctx, or l itself when
// there is none.
func Logger(ctx context.Context, l *slog.Logger) *slog.Logger {
	if id, ok := From(ctx); ok {
		return l.With("request_id", id)
	}
	return l
}
