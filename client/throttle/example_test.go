package throttle_test

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/adamwoolhether/jira/client/throttle"
)

func ExampleNewRoundTripper() {
	rt, err := throttle.NewRoundTripper(
		10, // requests per second
		5,  // burst capacity
		func() *slog.Logger { return slog.Default() },
		http.DefaultTransport,
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = &http.Client{Transport: rt}

	fmt.Println("throttled transport created")
	// Output: throttled transport created
}

// A 429 carrying Retry-After pauses every later request through the
// same transport until the cooldown has passed.
func ExampleNewRoundTripper_retryAfter() {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt, err := throttle.NewRoundTripper(10, 5, nil, http.DefaultTransport)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	hc := &http.Client{Transport: rt}

	start := time.Now()
	for range 2 {
		resp, err := hc.Get(srv.URL)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		resp.Body.Close()
		fmt.Println(resp.StatusCode)
	}

	fmt.Println("waited for cooldown:", time.Since(start) >= time.Second)
	// Output:
	// 429
	// 200
	// waited for cooldown: true
}
