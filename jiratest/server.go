// Package jiratest runs an in-memory fake of the Jira Cloud REST API
// for tests and local development.
//
// The fake serves a handful of /rest/api/3 routes (myself, issue
// create/read/update/delete and search/jql), checks Basic credentials
// and answers failures with Jira error bodies, so code built on the
// client package can be exercised end to end:
//
//	srv := jiratest.New(jiratest.WithIssues(issue))
//	defer srv.Close()
//
//	c, err := client.Build(srv.Config())
package jiratest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/jira/client"
	"github.com/adamwoolhether/jira/issues"
	"github.com/adamwoolhether/jira/jiratest/middleware"
	"github.com/adamwoolhether/jira/jiratest/mux"
)

const (
	// DefaultUsername is the account the fake accepts unless WithCredentials is given.
	DefaultUsername = "tester@example.com"
	// DefaultAPIToken is the token paired with DefaultUsername.
	DefaultAPIToken = "test-token"
)

// Option configures the fake server.
type Option func(*options)

type options struct {
	username string
	apiToken string
	account  issues.User
	issues   []issues.Issue
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// WithCredentials sets the only username and API token the server accepts.
func WithCredentials(username, apiToken string) Option {
	return func(o *options) {
		o.username = username
		o.apiToken = apiToken
	}
}

// WithAccount sets the account returned by the myself endpoint.
func WithAccount(u issues.User) Option {
	return func(o *options) {
		o.account = u
	}
}

// WithIssues seeds the server with the given issues. Issues without an
// id get one assigned.
func WithIssues(is ...issues.Issue) Option {
	return func(o *options) {
		o.issues = append(o.issues, is...)
	}
}

// WithLogger sets the logger used for request logs. By default the
// server logs nothing.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithTracer records a span per request on tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithClock sets the clock used for created and updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Handler serves the fake Jira API.
type Handler struct {
	app      *mux.App
	store    *store
	username string
	account  issues.User
	requests atomic.Int64
}

// NewHandler builds the fake API. It panics when a seeded issue has
// an invalid key.
func NewHandler(optFns ...Option) *Handler {
	opts := options{
		username: DefaultUsername,
		apiToken: DefaultAPIToken,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range optFns {
		opt(&opts)
	}

	if opts.account.AccountID == "" {
		opts.account = issues.User{
			AccountID:    "5b10a2844c20165700ede21g",
			DisplayName:  "Test User",
			EmailAddress: opts.username,
			Active:       true,
		}
	}

	h := &Handler{
		store:    newStore(opts.now),
		username: opts.username,
		account:  opts.account,
	}

	for _, is := range opts.issues {
		if _, err := h.store.put(is); err != nil {
			panic("jiratest: " + err.Error())
		}
	}

	muxOpts := []mux.Option{
		mux.WithLogger(opts.logger),
		mux.WithMiddleware(
			middleware.Logger(opts.logger),
			middleware.Errors(opts.logger),
			middleware.Panics(),
			middleware.BasicAuth(opts.username, opts.apiToken),
		),
	}
	if opts.tracer != nil {
		muxOpts = append(muxOpts, mux.WithTracer(opts.tracer))
	}

	h.app = mux.New(muxOpts...)
	h.routes(h.app.Mount(client.APIPath))

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests.Add(1)
	h.app.ServeHTTP(w, r)
}

// Requests returns the number of requests received so far.
func (h *Handler) Requests() int64 {
	return h.requests.Load()
}

// Issue returns the stored issue with the given key or id.
func (h *Handler) Issue(keyOrID string) (issues.Issue, bool) {
	return h.store.get(keyOrID)
}

// Len returns the number of stored issues.
func (h *Handler) Len() int {
	return h.store.count()
}

// Server is a fake Jira site listening on a local port.
type Server struct {
	*Handler

	srv      *httptest.Server
	username string
	apiToken string
}

// New starts a fake Jira site. Call Close when done.
func New(optFns ...Option) *Server {
	var creds options
	creds.username, creds.apiToken = DefaultUsername, DefaultAPIToken
	for _, opt := range optFns {
		opt(&creds)
	}

	h := NewHandler(optFns...)

	return &Server{
		Handler:  h,
		srv:      httptest.NewServer(h),
		username: creds.username,
		apiToken: creds.apiToken,
	}
}

// URL returns the site root, e.g. http://127.0.0.1:54321.
func (s *Server) URL() string {
	return s.srv.URL
}

// Config returns a client configuration with valid credentials for s.
func (s *Server) Config() client.Config {
	return client.Config{
		HostURL:  s.srv.URL,
		Username: s.username,
		APIToken: s.apiToken,
		Timeout:  5 * time.Second,
	}
}

// Close shuts the server down, blocking until all requests finish.
func (s *Server) Close() {
	s.srv.Close()
}
