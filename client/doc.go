// Package client provides a typed client for the Jira Cloud REST API,
// built on [net/http].
//
// # Building a Client
//
// Use [Build] with a [Config] and functional options:
//
//	c, err := client.Build(client.Config{
//		HostURL:  "https://example.atlassian.net",
//		Username: "me@example.com",
//		APIToken: token,
//	},
//		client.WithUserAgent("myapp/1.0"),
//		client.WithThrottle(10, 5),
//	)
//
// # Making Requests
//
// Describe the call with a [Request] and execute it with [Client.Send]
// or the generic [SendRequest]:
//
//	q := client.NewQuery().Set("jql", "project = TEST").Set("maxResults", 50)
//
//	resp, err := client.SendRequest[SearchResponse](ctx, c, client.Request{
//		Endpoint: "search/jql",
//		Method:   client.MethodGet,
//		Query:    q,
//	})
//
// Endpoints are joined onto the REST base URL built by [URLBuilder],
// so "issue/TEST-1" and "/issue/TEST-1" address the same resource.
//
// # Errors
//
// Every failed call returns one of three types:
//
//   - [*NetworkError] when no HTTP response was received.
//   - [*AuthenticationError] for 401 and 403 responses.
//   - [*APIError] for any other non-2xx response or a response that
//     could not be decoded.
//
// Use [errors.As], the sentinels [ErrNetwork], [ErrAuthentication] and
// [ErrAPI], or [KindOf] to branch on them.
//
// # Retries
//
// Requests are sent once by default. [WithRetry] retries network
// failures up to Config.MaxRetries times with exponential backoff.
//
// For rate limiting see the
// [github.com/adamwoolhether/jira/client/throttle] package.
package client
