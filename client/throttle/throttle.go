package throttle

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// throttle is an http.RoundTripper, using the time/rate token
// bucket limiter to restrict outbound calls and pausing them while
// a server reported cooldown is in effect.
type throttle struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	next    http.RoundTripper
	logFn   func() *slog.Logger

	// cooldownUntil holds the unix nano time before which no request
	// may be sent. Zero means no cooldown.
	cooldownUntil atomic.Int64
	now           func() time.Time
}

// NewRoundTripper returns an http.RoundTripper that throttles outbound requests
// using a token bucket rate limiter. logFn lazily resolves the logger at request
// time, making option ordering irrelevant. A nil-returning logFn disables logging.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &throttle{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		next:    next,
		logFn:   logFn,
		now:     time.Now,
	}

	return t, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	logger := t.logFn()

	if err := t.waitCooldown(r, logger); err != nil {
		return nil, err
	}

	var waited time.Duration
	if logger != nil && !t.limiter.Allow() {
		logger.Info("throttle tokens exhausted", "rate", t.rps, "burst", t.burst, "path", r.URL.Path)

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.rps, "burst", t.burst)
		}()
	}

	start := time.Now()

	err := t.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	resp, err := t.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), t.now()); ok {
			t.startCooldown(d)
			if logger != nil {
				logger.Warn("jira rate limit reached", "retryAfter", d.String(), "path", r.URL.Path)
			}
		}
	}

	return resp, nil
}

// waitCooldown blocks until any active cooldown has passed.
func (t *throttle) waitCooldown(r *http.Request, logger *slog.Logger) error {
	until := t.cooldownUntil.Load()
	if until == 0 {
		return nil
	}

	wait := time.Unix(0, until).Sub(t.now())
	if wait <= 0 {
		return nil
	}

	if logger != nil {
		logger.Info("throttle cooling down", "wait", wait.String(), "path", r.URL.Path)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		return fmt.Errorf("%w during cooldown: %w", ErrContextEnded, r.Context().Err())
	case <-timer.C:
		return nil
	}
}

// startCooldown extends the cooldown to now+d. A shorter cooldown
// never cuts an existing longer one.
func (t *throttle) startCooldown(d time.Duration) {
	until := t.now().Add(min(d, maxCooldown)).UnixNano()

	for {
		current := t.cooldownUntil.Load()
		if current >= until {
			return
		}
		if t.cooldownUntil.CompareAndSwap(current, until) {
			return
		}
	}
}

// parseRetryAfter reads a Retry-After value given either as delay
// seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}

	d := at.Sub(now)
	if d <= 0 {
		return 0, false
	}

	return d, true
}
