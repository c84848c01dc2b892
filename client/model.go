package client

import (
	"net/http"
	"time"
)

// maxErrBodySize caps the amount of response body read when
// building an error for a non-2xx status. Jira error bodies are
// small; this keeps an unexpected HTML error page from being
// buffered whole.
const maxErrBodySize = 64 << 10 // 64KB

const (
	// DefaultTimeout bounds a single Send when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

// Method is one of the HTTP methods the Jira REST API accepts.
type Method string

// Supported methods.
const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// Doer performs a single HTTP round trip. [*http.Client] satisfies it;
// tests can supply a fake without touching any shared state.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts an ordinary function to the [Doer] interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}
