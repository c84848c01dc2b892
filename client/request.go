package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Request describes a single call to the Jira REST API. Every field
// other than Endpoint and Method is optional.
type Request struct {
	// Endpoint is the path below the REST base URL, e.g. "issue/TEST-1".
	// Leading slashes are ignored.
	Endpoint string `json:"endpoint"`

	// Method is the HTTP method of the call.
	Method Method `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`

	// Query holds the query parameters. It must be empty when Endpoint
	// already embeds a query string.
	Query *Query `json:"-" validate:"-"`

	// Headers are added on top of the defaults. They may replace Accept
	// and Content-Type but never Authorization.
	Headers map[string]string `json:"-" validate:"-"`

	// Body is JSON-encoded and sent when non-nil, whatever the method.
	// A typed nil pointer, map or slice counts as nil. Body is never
	// validated; its own validate tags are ignored.
	Body any `json:"-" validate:"-"`
}

// newHTTPRequest assembles the outbound *http.Request for r.
func (c *Client) newHTTPRequest(ctx context.Context, r Request) (*http.Request, error) {
	var body io.Reader
	if !isNil(r.Body) {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	reqURL := c.urls.Build(r.Endpoint, r.Query)

	req, err := http.NewRequestWithContext(ctx, string(r.Method), reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	for k, v := range r.Headers {
		if textproto.CanonicalMIMEHeaderKey(k) == "Authorization" {
			c.logger.Warn("ignoring caller supplied authorization header", "endpoint", r.Endpoint)
			continue
		}
		req.Header.Set(k, v)
	}

	req.Header.Set("Authorization", c.auth)

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// isNil reports whether v is nil or a typed nil.
func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}

	return false
}
