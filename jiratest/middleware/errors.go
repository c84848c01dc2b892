package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/adamwoolhether/jira/jiratest/errs"
	"github.com/adamwoolhether/jira/jiratest/mux"
)

// Errors renders errors coming out of the call chain as Jira error bodies.
func Errors(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			if fieldErr, ok := errors.AsType[errs.FieldErrors](err); ok {
				return mux.RespondJSON(ctx, w, http.StatusBadRequest, fieldErr.ToError())
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok { // to catch errs that may have escaped, obscure them from public view.
				appErr = errs.NewInternal(err)
			}

			reqLog := log.With("trace_id", mux.GetTraceID(ctx))
			reqLog.Error(err.Error(), "statusCode", appErr.Code, "source_err_file", path.Base(appErr.FileName), "source_err_func", path.Base(appErr.FuncName))

			if appErr.InnerErr { // after logging, obscure the internal error from public view.
				appErr.ErrorMessages = []string{"Internal server error"}
			}

			return mux.RespondJSON(ctx, w, appErr.Code, appErr)
		}

		return h
	}

	return m
}
