package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/adamwoolhether/jira/jiratest/errs"
	"github.com/adamwoolhether/jira/jiratest/mux"
)

// ErrNotAuthenticated is the message Jira Cloud returns for missing or
// wrong credentials.
var ErrNotAuthenticated = errors.New("Client must be authenticated to access this resource.")

// BasicAuth rejects requests whose Basic credentials are not
// username:apiToken with a 401. The username of an accepted request is
// available through mux.GetUser.
func BasicAuth(username, apiToken string) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			user, token, ok := r.BasicAuth()
			if !ok || !equal(user, username) || !equal(token, apiToken) {
				w.Header().Set("WWW-Authenticate", `Basic realm="jira"`)
				return errs.New(http.StatusUnauthorized, ErrNotAuthenticated)
			}

			ctx = mux.SetUser(ctx, user)

			return handler(ctx, w, r.WithContext(ctx))
		}

		return h
	}

	return m
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
