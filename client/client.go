// Package client exposes a typed client for the Jira Cloud REST API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/jira/client/throttle"
)

// Client sends authenticated requests to a single Jira site.
// All of its state is fixed by [Build], so it is safe for concurrent use.
type Client struct {
	doer    Doer
	urls    *URLBuilder
	auth    string
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer

	retry        bool
	maxRetries   int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// Build validates cfg and returns a Client configured by optFns. Unless
// WithDoer is given, requests go through a fresh [http.Client] on
// [http.DefaultTransport].
func Build(cfg Config, optFns ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		urls:         NewURLBuilder(cfg.HostURL),
		auth:         cfg.authorization(),
		timeout:      cfg.Timeout,
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer("no-op tracer"),
		retry:        opts.retry,
		maxRetries:   cfg.MaxRetries,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
	}

	if client.timeout == 0 {
		client.timeout = DefaultTimeout
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if opts.retryWaitMin > 0 {
		client.retryWaitMin = opts.retryWaitMin
		client.retryWaitMax = opts.retryWaitMax
	}

	if opts.doer != nil {
		client.doer = opts.doer
		return client, nil
	}

	hc, err := client.httpClient(opts)
	if err != nil {
		return nil, err
	}
	client.doer = hc

	return client, nil
}

// httpClient assembles the default transport chain.
func (c *Client) httpClient(opts options) (*http.Client, error) {
	hc := &http.Client{}
	if opts.client != nil {
		cpy := *opts.client
		hc = &cpy
	}

	if opts.noFollowRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return c.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	hc.Transport = transport

	return hc, nil
}

// BaseURL returns the REST base URL every endpoint is joined onto.
func (c *Client) BaseURL() string {
	return c.urls.BaseURL()
}

// Send performs r and decodes a successful response into the value
// given with WithDestination. A 204 No Content response decodes as an
// empty JSON object without reading the body.
//
// Every failure is one of [*NetworkError], [*AuthenticationError] or
// [*APIError].
func (c *Client) Send(ctx context.Context, r Request, opts ...SendOption) error {
	var settings sendOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return &APIError{Message: "applying send option: " + err.Error(), Err: err}
		}
	}

	if err := Validate(r); err != nil {
		return &APIError{Message: "invalid request: " + err.Error(), Err: err}
	}

	ctx, span := c.tracer.Start(ctx, "jira.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", string(r.Method)),
		attribute.String("jira.endpoint", r.Endpoint),
	)

	traceID := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		traceID = uuid.New().String()
	}
	log := c.logger.With("trace_id", traceID, "method", string(r.Method), "endpoint", r.Endpoint)

	log.Debug("request started")
	start := time.Now()

	status, err := c.withRetry(ctx, log, func(ctx context.Context) (int, error) {
		return c.attempt(ctx, r, settings)
	})
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("request failed", "statusCode", status, "since", time.Since(start).String(), "error", err)
		return err
	}

	log.Debug("request completed", "statusCode", status, "since", time.Since(start).String())

	return nil
}

// SendRequest performs r and returns the response decoded as T.
func SendRequest[T any](ctx context.Context, c *Client, r Request, opts ...SendOption) (T, error) {
	var dest T
	opts = append(opts, WithDestination(&dest))

	if err := c.Send(ctx, r, opts...); err != nil {
		var zero T
		return zero, err
	}

	return dest, nil
}

// attempt makes one bounded call and returns the status it saw.
func (c *Client) attempt(ctx context.Context, r Request, settings sendOpts) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newHTTPRequest(ctx, r)
	if err != nil {
		return 0, &APIError{Message: err.Error(), Err: err}
	}

	return c.exec(req, settings)
}

// exec runs the request and classifies the outcome.
func (c *Client) exec(req *http.Request, settings sendOpts) (int, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, transportError(err)
	}
	if resp == nil {
		return 0, &NetworkError{Message: "transport returned no response"}
	}

	defer func() {
		if resp.Body == nil {
			return
		}
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			c.logger.Error("failed to discard unused body", "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, statusError(resp)
	}

	if settings.responseBody == nil {
		return resp.StatusCode, nil
	}

	var body io.Reader = strings.NewReader("{}")
	switch {
	case resp.StatusCode == http.StatusNoContent:
	case resp.Body == nil:
		body = http.NoBody
	default:
		body = resp.Body
	}

	d := json.NewDecoder(body)
	if settings.useJSONNum {
		d.UseNumber()
	}

	if err := d.Decode(settings.responseBody); err != nil {
		return resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "decoding response body: " + err.Error(),
			Err:        err,
		}
	}

	return resp.StatusCode, nil
}

// transportError classifies a failed round trip. A typed client error
// already present in the chain is returned as is.
func transportError(err error) error {
	if typed, ok := errors.AsType[kinded](err); ok {
		return typed
	}

	return &NetworkError{Message: err.Error(), Err: err}
}

// statusError builds the typed error for a non-2xx response.
func statusError(resp *http.Response) error {
	var se ServerErrors
	if resp.Body != nil {
		if b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize)); err == nil {
			se = parseServerErrors(b)
		}
	}

	statusText := http.StatusText(resp.StatusCode)
	if statusText == "" {
		statusText = fmt.Sprintf("status %d", resp.StatusCode)
	}
	msg := se.summary(statusText)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthenticationError{
			StatusCode:   resp.StatusCode,
			Message:      msg,
			ServerErrors: se,
		}
	}

	return &APIError{
		StatusCode:   resp.StatusCode,
		Message:      msg,
		ServerErrors: se,
	}
}

// parseServerErrors decodes a Jira error body. Field error values that
// are not strings are kept as their raw JSON text. A body that is not
// JSON yields no messages.
func parseServerErrors(b []byte) ServerErrors {
	var body struct {
		ErrorMessages []string                   `json:"errorMessages"`
		Errors        map[string]json.RawMessage `json:"errors"`
		Message       string                     `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return ServerErrors{}
	}

	se := ServerErrors{ErrorMessages: body.ErrorMessages}
	if len(se.ErrorMessages) == 0 && body.Message != "" {
		se.ErrorMessages = []string{body.Message}
	}

	if len(body.Errors) > 0 {
		se.Errors = make(map[string]string, len(body.Errors))
		for field, raw := range body.Errors {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				s = string(raw)
			}
			se.Errors[field] = s
		}
	}

	return se
}
