package client

import "strings"

// APIPath is the path segment appended to the Jira host to form the
// REST base URL.
const APIPath = "rest/api/3"

// URLBuilder joins endpoints onto a Jira REST base URL. It is immutable
// and safe for concurrent use.
type URLBuilder struct {
	baseURL string
}

// NewURLBuilder computes the base URL for hostURL once. A single '/'
// is inserted before [APIPath] only when hostURL does not already end
// in one; any run of trailing separators is kept as is.
func NewURLBuilder(hostURL string) *URLBuilder {
	base := hostURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &URLBuilder{baseURL: base + APIPath}
}

// BaseURL returns the precomputed base URL.
func (b *URLBuilder) BaseURL() string {
	return b.baseURL
}

// Build returns the absolute URL for endpoint. Leading slashes on
// endpoint are dropped and exactly one '/' joins it to the base URL.
// When q encodes to a non-empty string it is appended after '?'.
//
// An endpoint that already embeds a query string is used verbatim;
// Build does not merge it with q.
func (b *URLBuilder) Build(endpoint string, q *Query) string {
	u := b.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	if qs := q.Encode(); qs != "" {
		u += "?" + qs
	}

	return u
}
