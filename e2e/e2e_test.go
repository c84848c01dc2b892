//go:build integration

package e2e_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/jira"
	"github.com/adamwoolhether/jira/client"
	"github.com/adamwoolhether/jira/issues"
	"github.com/adamwoolhether/jira/jiratest"
)

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func seedIssues(n int) []issues.Issue {
	out := make([]issues.Issue, n)
	for i := range n {
		out[i] = issues.Issue{
			Key:    fmt.Sprintf("TEST-%d", i+1),
			Fields: issues.Fields{Summary: fmt.Sprintf("Issue %d", i+1)},
		}
	}

	return out
}

func newClient(t *testing.T, srv *jiratest.Server, opts ...client.Option) *jira.Client {
	t.Helper()

	j, err := jira.NewClient(srv.Config(), opts...)
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	return j
}

// flaky fails the first n round trips with a transport error.
type flaky struct {
	n    int32
	seen atomic.Int32
	base http.RoundTripper
}

func (f *flaky) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.seen.Add(1) <= f.n {
		return nil, errors.New("connection reset by peer")
	}

	return f.base.RoundTrip(r)
}

// -------------------------------------------------------------------------
// Tests
// -------------------------------------------------------------------------

func TestE2E_Pagination(t *testing.T) {
	srv := jiratest.New(jiratest.WithIssues(seedIssues(12)...))
	defer srv.Close()

	j := newClient(t, srv)

	var keys []string
	opts := issues.SearchOptions{JQL: "project = TEST ORDER BY key", MaxResults: 5, Fields: []string{"summary"}}
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatal("pagination did not terminate")
		}

		page, err := j.Search.SearchIssues(t.Context(), opts)
		if err != nil {
			t.Fatalf("searching page %d: %v", pages, err)
		}
		if page.Total != 12 {
			t.Errorf("exp total 12, got %d", page.Total)
		}

		for _, is := range page.Issues {
			keys = append(keys, is.Key)
		}
		if page.IsLast {
			break
		}
		opts.StartAt += len(page.Issues)
	}

	var exp []string
	for _, is := range seedIssues(12) {
		exp = append(exp, is.Key)
	}
	if diff := cmp.Diff(exp, keys); diff != "" {
		t.Errorf("keys mismatch (-exp +got):\n%s", diff)
	}
}

func TestE2E_TracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var serverLogs bytes.Buffer
	srv := jiratest.New(jiratest.WithLogger(slog.New(slog.NewJSONHandler(&serverLogs, nil))))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithRemoteSpanContext(t.Context(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	if _, err := newClient(t, srv).Myself(ctx); err != nil {
		t.Fatalf("myself: %v", err)
	}

	if exp := `"trace_id":"` + traceID.String() + `"`; !strings.Contains(serverLogs.String(), exp) {
		t.Errorf("exp server logs to carry the client trace id, got:\n%s", serverLogs.String())
	}
}

func TestE2E_ThrottledConcurrency(t *testing.T) {
	srv := jiratest.New(jiratest.WithIssues(seedIssues(3)...))
	defer srv.Close()

	j := newClient(t, srv, client.WithThrottle(100, 2))

	const workers = 12
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	start := time.Now()
	for i := range workers {
		wg.Go(func() {
			key := fmt.Sprintf("TEST-%d", i%3+1)
			is, err := j.Issues.GetIssue(t.Context(), key)
			if err == nil && is.Key != key {
				err = fmt.Errorf("exp %s, got %s", key, is.Key)
			}
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}

	if n := srv.Requests(); n != workers {
		t.Errorf("exp %d requests, got %d", workers, n)
	}

	// 12 requests with a burst of 2 at 100 rps need at least ~100ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("exp throttling to slow the burst down, took %s", elapsed)
	}
}

func TestE2E_RetryRecovers(t *testing.T) {
	srv := jiratest.New()
	defer srv.Close()

	cfg := srv.Config()
	cfg.MaxRetries = 3

	rt := &flaky{n: 2, base: http.DefaultTransport}
	j, err := jira.NewClient(cfg,
		client.WithTransport(rt),
		client.WithRetry(),
		client.WithRetryWait(time.Millisecond, 10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	if _, err := j.Myself(t.Context()); err != nil {
		t.Fatalf("exp retries to recover, got: %v", err)
	}

	if n := rt.seen.Load(); n != 3 {
		t.Errorf("exp 3 round trips, got %d", n)
	}
	if n := srv.Requests(); n != 1 {
		t.Errorf("exp 1 request to reach the server, got %d", n)
	}
}

func TestE2E_ErrorsAreTyped(t *testing.T) {
	srv := jiratest.New(jiratest.WithCredentials("me@example.com", "right"))
	defer srv.Close()

	cfg := srv.Config()
	good := newClient(t, srv)

	cfg.APIToken = "wrong"
	bad, err := jira.NewClient(cfg)
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	_, err = bad.Myself(t.Context())
	if kind, _ := client.KindOf(err); kind != client.KindAuthentication {
		t.Errorf("exp authentication error, got %v", err)
	}

	_, err = good.Issues.GetIssue(t.Context(), "TEST-404")
	if kind, _ := client.KindOf(err); kind != client.KindAPI {
		t.Errorf("exp api error, got %v", err)
	}

	srv.Close()
	_, err = good.Myself(t.Context())
	if !client.IsRetryable(err) {
		t.Errorf("exp retryable network error after shutdown, got %v", err)
	}
}
