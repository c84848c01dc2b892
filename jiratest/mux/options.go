package mux

import (
	"log/slog"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type Option func(*options)

// options represents optional parameters.
type options struct {
	tracer trace.Tracer
	logger *slog.Logger
	mw     []Middleware
}

type ordered struct {
	priority int
	fn       Middleware
}

// WithMiddleware orders the given middleware by function name so that
// Logger runs first, then Errors, then BasicAuth, with Panics closest
// to the handler. Unknown middleware runs after BasicAuth in the order
// given.
func WithMiddleware(mw ...Middleware) Option {
	mwOrdered := make([]ordered, 0, len(mw))

	for _, m := range mw {
		switch name(m) {
		case "Logger":
			mwOrdered = append(mwOrdered, ordered{priority: 1, fn: m})
		case "Errors":
			mwOrdered = append(mwOrdered, ordered{priority: 2, fn: m})
		case "BasicAuth":
			mwOrdered = append(mwOrdered, ordered{priority: 3, fn: m})
		case "Panics":
			mwOrdered = append(mwOrdered, ordered{priority: 100, fn: m})
		default:
			mwOrdered = append(mwOrdered, ordered{priority: 4, fn: m})
		}
	}

	slices.SortStableFunc(mwOrdered, func(a, b ordered) int {
		return a.priority - b.priority
	})

	mwSorted := make([]Middleware, len(mwOrdered))
	for i, v := range mwOrdered {
		mwSorted[i] = v.fn
	}

	return Option(func(opts *options) {
		opts.mw = mwSorted
	})
}

// WithTracer injects the given tracer into the App.
func WithTracer(tracer trace.Tracer) Option {
	return Option(func(opts *options) {
		opts.tracer = tracer
	})
}

// WithLogger sets the logger used by the App for internal errors.
func WithLogger(log *slog.Logger) Option {
	return Option(func(opts *options) {
		opts.logger = log
	})
}

func name(mw Middleware) string {
	fnName := runtime.FuncForPC(reflect.ValueOf(mw).Pointer()).Name()

	// ".../jiratest/middleware.Logger.func1" -> "middleware.Logger.func1"
	if i := strings.LastIndex(fnName, "/"); i >= 0 {
		fnName = fnName[i+1:]
	}

	// Index 1 is the enclosing function name.
	parts := strings.Split(fnName, ".")
	if len(parts) >= 2 {
		return parts[1]
	}

	return fnName
}
