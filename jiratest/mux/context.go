package mux

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ctxKey int

const (
	base ctxKey = iota + 1
	user
)

// BaseValues represents values that are shared across all requests for logging.
type BaseValues struct {
	TraceID    string
	Now        time.Time
	Tracer     trace.Tracer
	StatusCode int
}

// SetStatusCode updates the BaseValue's status code.
func SetStatusCode(ctx context.Context, statusCode int) {
	v, ok := ctx.Value(base).(*BaseValues)
	if !ok {
		return
	}

	v.StatusCode = statusCode
}

// GetValues retrieves the BaseValues from the given context.
func GetValues(ctx context.Context) *BaseValues {
	v, ok := ctx.Value(base).(*BaseValues)
	if !ok {
		return &BaseValues{
			TraceID: uuid.Nil.String(),
			Tracer:  noop.NewTracerProvider().Tracer(""),
			Now:     time.Now(),
		}
	}

	return v
}

// GetTraceID retrieves the current trace ID from the BaseValue in the given context.
func GetTraceID(ctx context.Context) string {
	v, ok := ctx.Value(base).(*BaseValues)
	if !ok {
		return uuid.Nil.String()
	}

	return v.TraceID
}

// SetUser stores the authenticated username.
func SetUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, user, username)
}

// GetUser returns the authenticated username, or "" when the request
// was not authenticated.
func GetUser(ctx context.Context) string {
	v, _ := ctx.Value(user).(string)
	return v
}

// setValues sets the specified BaseValues in the context.
func setValues(ctx context.Context, v *BaseValues) context.Context {
	return context.WithValue(ctx, base, v)
}
